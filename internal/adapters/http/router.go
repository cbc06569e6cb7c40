package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware(deps.Logger))

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware("/metrics"))

	// Rate limiting: 120 requests per minute per IP. Long-lived map sockets are exempt.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return websocket.IsWebSocketUpgrade(c)
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1
	v1 := app.Group("/v1")
	v1.Get("/rides", timeout.NewWithContext(ListRidesHandler(deps), requestTimeout))
	v1.Get("/rides/:id/snapshot", timeout.NewWithContext(GetRideSnapshotHandler(deps), requestTimeout))
	v1.Get("/rides/:id/map", timeout.NewWithContext(RenderRideMapHandler(deps), requestTimeout))
	v1.Post("/rides/:id/driver-location", timeout.NewWithContext(UpdateDriverLocationHandler(deps), requestTimeout))
	v1.Delete("/rides/:id/driver-location", timeout.NewWithContext(ClearDriverLocationHandler(deps), requestTimeout))
	v1.Put("/rides/:id/routes", timeout.NewWithContext(UpdateRoutesHandler(deps), requestTimeout))
	v1.Put("/rides/:id/offline", timeout.NewWithContext(SetOfflineHandler(deps), requestTimeout))
	v1.Post("/rides/:id/updates", timeout.NewWithContext(ApplyRideUpdateHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, DefaultSpecPath)

	// WebSocket live map
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rides/:id", websocket.New(RideMapSocketHandler(deps)))
}
