package http

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// Pinger is a backend that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Feed    *usecases.RideFeedService
	Render  *usecases.MapRenderService
	Hub     *usecases.SessionHub
	Session usecases.SessionConfig
	NATS    *nats.Conn
	DB      *postgres.DB
	Cache   Pinger
	Logger  *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
