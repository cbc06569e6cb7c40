package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/livemap/internal/adapters/http"
	"github.com/samirrijal/livemap/internal/adapters/locationsource"
	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
	"github.com/samirrijal/livemap/internal/pkg/telemetry"
	"github.com/samirrijal/livemap/internal/supervisor"
	"github.com/samirrijal/livemap/internal/supervisor/services"
)

// locationpoller feeds driver locations from the dispatch service into the ride
// snapshots and publishes them to every API instance over NATS.
func main() {
	cfg, err := config.Load("livemap-poller")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("telemetry init failed", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	db, err := postgres.New(connectCtx, cfg.Database.DSN())
	cancelConnect()
	if err != nil {
		logger.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if !cfg.NATS.Enabled {
		logger.Error("nats.enabled must be set: the poller reaches API instances only through NATS")
		os.Exit(1)
	}
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		logger.Error("nats", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	// No cache: API instances own the snapshot cache and refresh it on read.
	feed := usecases.NewRideFeedService(postgres.NewSnapshotRepo(db), nil, pub, nil,
		cfg.LiveMap.SnapshotTTLSeconds, logger)
	poller := usecases.NewLocationPoller(
		locationsource.NewHTTPSource(cfg.LiveMap.PollSourceURL, nil),
		feed, cfg.LiveMap.PollInterval(), logger,
	)

	// Metrics and probes
	deps := &http.Dependencies{NATS: pub.Conn(), DB: db, Logger: logger}
	app := fiber.New(fiber.Config{AppName: "LiveMap Poller", DisableStartupMessage: true})
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/health", http.HealthHandler(deps))
	app.Get("/v1/ready", http.ReadyHandler(deps))

	tree := supervisor.NewTree("livemap-poller", logger, supervisor.DefaultTreeConfig())
	tree.AddFeedService(services.NewRunnerService("location-poller", poller))
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	tree.AddAPIService(services.NewFiberServerService(app, addr, 5*time.Second))

	logger.Info("location poller starting",
		"source", cfg.LiveMap.PollSourceURL,
		"interval", cfg.LiveMap.PollInterval().String(),
		"addr", addr,
	)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("supervisor stopped", "error", err)
	}
	logger.Info("location poller stopped")
}
