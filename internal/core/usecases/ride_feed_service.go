package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/geospatial"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// DefaultSnapshotTTL is how long a cached snapshot lives, in seconds.
const DefaultSnapshotTTL = 3600

var tracer = otel.Tracer("github.com/samirrijal/livemap/usecases")

// RideFeedService stores incoming map inputs and routes them to the open map views.
type RideFeedService struct {
	repo       ports.SnapshotRepository
	cache      ports.CacheService
	publisher  ports.EventPublisher
	dispatcher ports.UpdateDispatcher
	ttl        int
	instanceID string
	log        *slog.Logger
}

// NewRideFeedService creates a RideFeedService. cache and publisher may be nil; without a
// publisher, updates go straight to dispatcher.
func NewRideFeedService(
	repo ports.SnapshotRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	dispatcher ports.UpdateDispatcher,
	ttlSeconds int,
	log *slog.Logger,
) *RideFeedService {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultSnapshotTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RideFeedService{
		repo:       repo,
		cache:      cache,
		publisher:  publisher,
		dispatcher: dispatcher,
		ttl:        ttlSeconds,
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// Ingest applies u to the stored snapshot of rideID and forwards it to the ride's views.
// source labels the origin of the update for metrics (http, poller, ws).
func (s *RideFeedService) Ingest(ctx context.Context, rideID, source string, u domain.SnapshotUpdate) (*domain.RouteSnapshot, error) {
	ctx, span := tracer.Start(ctx, "RideFeedService.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("ride.id", rideID),
		attribute.String("update.source", source),
		attribute.StringSlice("update.fields", u.Fields()),
	)

	if rideID == "" {
		return nil, fmt.Errorf("ride id must not be empty")
	}
	if u.IsEmpty() {
		return nil, domain.ErrEmptyUpdate
	}

	var prevDriver *domain.GeoPoint
	if u.DriverLocation.Valid && u.DriverLocation.Value != nil {
		if prev, err := s.repo.Get(ctx, rideID); err == nil {
			prevDriver = prev.DriverLocation
		}
	}

	snap, err := s.repo.Apply(ctx, rideID, u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply snapshot")
		return nil, fmt.Errorf("apply snapshot: %w", err)
	}
	metrics.UpdatesIngested.WithLabelValues(source).Inc()

	if prevDriver != nil && snap.DriverLocation != nil {
		metrics.DriverDisplacement.Observe(geospatial.Distance(
			prevDriver.Lat, prevDriver.Lon,
			snap.DriverLocation.Lat, snap.DriverLocation.Lon,
		))
	}

	s.storeCached(ctx, rideID, snap)

	ev := domain.NewRideUpdate(rideID, u)
	ev.Origin = s.instanceID
	if s.publisher != nil {
		err := s.publisher.PublishRideUpdate(ctx, &ev)
		if err == nil {
			return snap, nil
		}
		s.log.WarnContext(ctx, "publish ride update failed, dispatching locally",
			"ride_id", rideID, "error", err)
	}
	s.dispatch(rideID, u)
	return snap, nil
}

// HandleRideUpdate delivers a broker event to the local map views. Events published by
// another process drop the cached snapshot, since that process may not share the cache.
// Our own events leave it alone: Ingest already wrote it through.
func (s *RideFeedService) HandleRideUpdate(ctx context.Context, ev *domain.RideUpdate) error {
	if ev == nil || ev.RideID == "" {
		return fmt.Errorf("ride update without ride id")
	}
	if s.cache != nil && ev.Origin != s.instanceID {
		if err := s.cache.Delete(ctx, snapshotCacheKey(ev.RideID)); err != nil {
			s.log.DebugContext(ctx, "evict cached snapshot failed", "ride_id", ev.RideID, "error", err)
		}
	}
	s.dispatch(ev.RideID, ev.Update())
	return nil
}

// Snapshot returns the stored snapshot of rideID, served from cache when possible.
func (s *RideFeedService) Snapshot(ctx context.Context, rideID string) (*domain.RouteSnapshot, error) {
	ctx, span := tracer.Start(ctx, "RideFeedService.Snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("ride.id", rideID))

	key := snapshotCacheKey(rideID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var snap domain.RouteSnapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				metrics.CacheHits.WithLabelValues("snapshot").Inc()
				return &snap, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("snapshot").Inc()
	}

	snap, err := s.repo.Get(ctx, rideID)
	if err != nil {
		if !errors.Is(err, domain.ErrRideNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "get snapshot")
		}
		return nil, err
	}
	s.storeCached(ctx, rideID, snap)
	return snap, nil
}

// ActiveRides pages through rides with a stored snapshot.
func (s *RideFeedService) ActiveRides(ctx context.Context, offset, limit int) ([]string, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListActive(ctx, offset, limit)
}

// CountActiveRides returns how many rides have a stored snapshot.
func (s *RideFeedService) CountActiveRides(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

func (s *RideFeedService) dispatch(rideID string, u domain.SnapshotUpdate) {
	if s.dispatcher == nil {
		return
	}
	if n := s.dispatcher.Dispatch(rideID, u); n > 0 {
		metrics.UpdatesDispatched.Add(float64(n))
	}
}

func (s *RideFeedService) storeCached(ctx context.Context, rideID string, snap *domain.RouteSnapshot) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, snapshotCacheKey(rideID), data, s.ttl); err != nil {
		s.log.DebugContext(ctx, "cache snapshot failed", "ride_id", rideID, "error", err)
	}
}

func snapshotCacheKey(rideID string) string {
	return "ride:snapshot:" + rideID
}
