package valkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/samirrijal/livemap/internal/core/ports"
)

// BreakerConfig tunes the circuit breaker in front of the cache.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
}

// DefaultBreakerConfig trips after five consecutive failures and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "snapshot-cache",
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		Interval:         time.Minute,
	}
}

// GuardedCache wraps a CacheService with a circuit breaker so a failing cache costs one
// fast error per call instead of a network timeout. Misses do not count as failures.
type GuardedCache struct {
	next    ports.CacheService
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var _ ports.CacheService = (*GuardedCache)(nil)

// NewGuardedCache wraps next.
func NewGuardedCache(next ports.CacheService, cfg BreakerConfig, log *slog.Logger) *GuardedCache {
	if log == nil {
		log = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("cache circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &GuardedCache{next: next, breaker: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

func (g *GuardedCache) Get(ctx context.Context, key string) ([]byte, error) {
	return g.breaker.Execute(func() ([]byte, error) {
		return g.next.Get(ctx, key)
	})
}

func (g *GuardedCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	_, err := g.breaker.Execute(func() ([]byte, error) {
		return nil, g.next.Set(ctx, key, value, ttlSeconds)
	})
	return err
}

func (g *GuardedCache) Delete(ctx context.Context, key string) error {
	_, err := g.breaker.Execute(func() ([]byte, error) {
		return nil, g.next.Delete(ctx, key)
	})
	return err
}

// State reports the breaker state, for readiness probes.
func (g *GuardedCache) State() gobreaker.State {
	return g.breaker.State()
}

// Ping checks the wrapped cache directly, bypassing the breaker, so readiness probes see
// the backend's real state. An open breaker is reported as an error.
func (g *GuardedCache) Ping(ctx context.Context) error {
	if g.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("cache circuit breaker %s", gobreaker.StateOpen)
	}
	if p, ok := g.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
