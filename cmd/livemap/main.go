package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/livemap/internal/adapters/http"
	"github.com/samirrijal/livemap/internal/adapters/locationsource"
	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/adapters/scene"
	"github.com/samirrijal/livemap/internal/adapters/valkey"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/internal/pkg/telemetry"
	"github.com/samirrijal/livemap/internal/supervisor"
	"github.com/samirrijal/livemap/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load("livemap-api")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("telemetry init failed", "error", err)
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(flushCtx)
		}()
	}

	// Database
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	db, err := postgres.New(connectCtx, cfg.Database.DSN())
	cancelConnect()
	if err != nil {
		logger.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Cache, behind a circuit breaker
	var cache ports.CacheService
	var cachePing http.Pinger
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		logger.Warn("valkey unavailable, serving snapshots from postgres", "error", err)
	} else {
		defer vc.Close()
		guarded := valkey.NewGuardedCache(vc, valkey.DefaultBreakerConfig(), logger)
		cache, cachePing = guarded, guarded
	}

	// NATS fan-out between instances
	var publisher ports.EventPublisher
	var natsConn *nats.Conn
	var subscriber *natsadapter.Subscriber
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Warn("nats unavailable, dispatching updates locally", "error", err)
		} else {
			defer pub.Close()
			publisher, natsConn = pub, pub.Conn()

			subscriber, err = natsadapter.NewSubscriber(cfg.NATS.URL, logger)
			if err != nil {
				logger.Error("nats subscriber", "error", err)
				os.Exit(1)
			}
			defer subscriber.Close()
		}
	}

	// Use cases
	lm := usecases.LiveMapConfig{
		AutoCenterZoom: cfg.LiveMap.AutoCenterZoom,
		FitPadding:     cfg.LiveMap.FitPaddingPX,
		SettleDelay:    cfg.LiveMap.SettleDelay(),
	}
	hub := usecases.NewSessionHub(logger)
	defer hub.CloseAll()
	feed := usecases.NewRideFeedService(
		postgres.NewSnapshotRepo(db), cache, publisher, hub,
		cfg.LiveMap.SnapshotTTLSeconds, logger,
	)
	render := usecases.NewMapRenderService(feed, scene.NewAttacher(nil), lm, logger)

	deps := &http.Dependencies{
		Feed:   feed,
		Render: render,
		Hub:    hub,
		Session: usecases.SessionConfig{
			LiveMap:       lm,
			FrameInterval: cfg.LiveMap.FrameInterval(),
			Width:         cfg.LiveMap.DefaultWidth,
			Height:        cfg.LiveMap.DefaultHeight,
		},
		NATS:   natsConn,
		DB:     db,
		Cache:  cachePing,
		Logger: logger,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             4 * 1024 * 1024, // routes can carry thousands of points
		AppName:               "LiveMap API",
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000, http://localhost:5173",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))
	http.SetupRoutes(app, deps)

	// Supervised services
	tree := supervisor.NewTree("livemap", logger, supervisor.DefaultTreeConfig())
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	tree.AddAPIService(services.NewFiberServerService(app, addr, 10*time.Second))
	if subscriber != nil {
		tree.AddFeedService(services.NewSubscriptionService(subscriber, feed.HandleRideUpdate))
	}
	if cfg.LiveMap.PollSourceURL != "" && !cfg.LiveMap.ExternalPoller {
		poller := usecases.NewLocationPoller(
			locationsource.NewHTTPSource(cfg.LiveMap.PollSourceURL, nil),
			feed, cfg.LiveMap.PollInterval(), logger,
		)
		tree.AddFeedService(services.NewRunnerService("location-poller", poller))
	}

	logger.Info("livemap starting", "addr", addr, "nats", natsConn != nil, "cache", cache != nil)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("supervisor stopped", "error", err)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logger.Warn("services did not stop in time", "count", len(report))
	}
	logger.Info("server stopped")
}
