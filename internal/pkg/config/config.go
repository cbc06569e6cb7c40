package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	LiveMap   LiveMapConfig   `mapstructure:"livemap"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
	// Enabled=false makes the API dispatch updates to its own sessions only.
	Enabled bool `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LiveMapConfig tunes map sessions and the location poller.
type LiveMapConfig struct {
	FrameIntervalMS     int     `mapstructure:"frame_interval_ms"`
	SettleDelayMS       int     `mapstructure:"settle_delay_ms"`
	AutoCenterZoom      float64 `mapstructure:"auto_center_zoom"`
	FitPaddingPX        int     `mapstructure:"fit_padding_px"`
	DefaultWidth        int     `mapstructure:"default_width"`
	DefaultHeight       int     `mapstructure:"default_height"`
	SnapshotTTLSeconds  int     `mapstructure:"snapshot_ttl_seconds"`
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds"`
	PollSourceURL       string  `mapstructure:"poll_source_url"`
	// ExternalPoller is set when cmd/locationpoller feeds the rides, so API
	// instances do not poll the source themselves.
	ExternalPoller bool `mapstructure:"external_poller"`
}

func (l LiveMapConfig) FrameInterval() time.Duration {
	return time.Duration(l.FrameIntervalMS) * time.Millisecond
}

func (l LiveMapConfig) SettleDelay() time.Duration {
	return time.Duration(l.SettleDelayMS) * time.Millisecond
}

func (l LiveMapConfig) PollInterval() time.Duration {
	return time.Duration(l.PollIntervalSeconds) * time.Second
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "livemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "livemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("livemap.frame_interval_ms", 16)
	v.SetDefault("livemap.settle_delay_ms", 100)
	v.SetDefault("livemap.auto_center_zoom", 15)
	v.SetDefault("livemap.fit_padding_px", 50)
	v.SetDefault("livemap.default_width", 800)
	v.SetDefault("livemap.default_height", 600)
	v.SetDefault("livemap.snapshot_ttl_seconds", 3600)
	v.SetDefault("livemap.poll_interval_seconds", 10)
	v.SetDefault("livemap.poll_source_url", "http://localhost:9000")
	v.SetDefault("livemap.external_poller", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: LIVEMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("LIVEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled is set")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.LiveMap.FrameIntervalMS <= 0 {
		errs = append(errs, "livemap.frame_interval_ms must be positive")
	}
	if c.LiveMap.SettleDelayMS <= 0 {
		errs = append(errs, "livemap.settle_delay_ms must be positive")
	}
	if c.LiveMap.AutoCenterZoom <= 0 || c.LiveMap.AutoCenterZoom > 22 {
		errs = append(errs, fmt.Sprintf("livemap.auto_center_zoom must be in (0, 22], got %v", c.LiveMap.AutoCenterZoom))
	}
	if c.LiveMap.FitPaddingPX < 0 {
		errs = append(errs, "livemap.fit_padding_px must not be negative")
	}
	if c.LiveMap.DefaultWidth <= 0 || c.LiveMap.DefaultHeight <= 0 {
		errs = append(errs, "livemap.default_width and livemap.default_height must be positive")
	}
	if c.LiveMap.PollIntervalSeconds <= 0 {
		errs = append(errs, "livemap.poll_interval_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
