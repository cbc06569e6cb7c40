package ports

import (
	"context"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// SnapshotRepository persists the latest map inputs per ride.
type SnapshotRepository interface {
	// Get returns domain.ErrRideNotFound when nothing has been stored for the ride.
	Get(ctx context.Context, rideID string) (*domain.RouteSnapshot, error)
	// Apply replaces the fields set in u and returns the resulting snapshot.
	Apply(ctx context.Context, rideID string, u domain.SnapshotUpdate) (*domain.RouteSnapshot, error)
	// ListActive pages through ride ids, most recently updated first.
	ListActive(ctx context.Context, offset, limit int) ([]string, error)
	CountActive(ctx context.Context) (int, error)
}
