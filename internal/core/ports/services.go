package ports

import (
	"context"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// EventPublisher publishes ride map updates to a message broker.
type EventPublisher interface {
	PublishRideUpdate(ctx context.Context, ev *domain.RideUpdate) error
}

// EventSubscriber subscribes to ride map updates from a message broker.
type EventSubscriber interface {
	SubscribeRideUpdates(ctx context.Context, handler func(ctx context.Context, ev *domain.RideUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// UpdateDispatcher delivers an update to the map sessions open on a ride.
type UpdateDispatcher interface {
	Dispatch(rideID string, u domain.SnapshotUpdate) int
}

// LocationSource reports the current driver location of every active ride.
type LocationSource interface {
	ActiveLocations(ctx context.Context) ([]domain.DriverLocationReading, error)
}
