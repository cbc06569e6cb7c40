package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/migrations"
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: migrate <up|down>")
		os.Exit(2)
	}

	cfg, err := config.Load("livemap-migrate")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, "text")

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error("db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var names []string
	switch os.Args[1] {
	case "up":
		names, err = migrations.Up()
	case "down":
		names, err = migrations.Down()
	default:
		logger.Error("unknown command", "command", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		logger.Error("list migrations", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, pool, names, logger); err != nil {
		logger.Error("migration failed", "error", err)
		pool.Close()
		os.Exit(1)
	}
	logger.Info("all migrations applied", "count", len(names))
}

func run(ctx context.Context, pool *pgxpool.Pool, names []string, logger *slog.Logger) error {
	for _, name := range names {
		sql, err := migrations.Read(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("exec %s: %w", name, err)
		}
		logger.Info("applied", "file", name)
	}
	return nil
}
