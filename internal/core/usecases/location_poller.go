package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// DefaultPollInterval is used when the poller is created with a non-positive interval.
const DefaultPollInterval = 10 * time.Second

// PollSource labels updates coming from the location poller.
const PollSource = "poller"

// locationIngester is the part of RideFeedService the poller needs.
type locationIngester interface {
	Ingest(ctx context.Context, rideID, source string, u domain.SnapshotUpdate) (*domain.RouteSnapshot, error)
}

type lastReading struct {
	loc  *domain.GeoPoint
	time time.Time
}

// LocationPoller feeds driver locations from an external source into the ride feed.
// Readings that repeat the last location of a ride, or are older than it, are skipped.
// PollOnce and Run must not be called concurrently.
type LocationPoller struct {
	source   ports.LocationSource
	feed     locationIngester
	interval time.Duration
	log      *slog.Logger

	last map[string]lastReading
}

// NewLocationPoller creates a poller. feed is usually a *RideFeedService.
func NewLocationPoller(source ports.LocationSource, feed locationIngester, interval time.Duration, log *slog.Logger) *LocationPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &LocationPoller{
		source:   source,
		feed:     feed,
		interval: interval,
		log:      log.With("component", "location-poller"),
		last:     make(map[string]lastReading),
	}
}

// Run polls once immediately and then on every interval until ctx is done.
// Poll failures are logged and counted; they never stop the loop.
func (p *LocationPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.InfoContext(ctx, "polling driver locations", "interval", p.interval.String())
	p.pollLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollLogged(ctx)
		}
	}
}

func (p *LocationPoller) pollLogged(ctx context.Context) {
	n, err := p.PollOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.WarnContext(ctx, "poll failed", "error", err)
		}
		return
	}
	if n > 0 {
		p.log.DebugContext(ctx, "driver locations ingested", "count", n)
	}
}

// PollOnce fetches the current readings and ingests the changed ones. It returns the
// number of rides updated. A failed ingest for one ride does not stop the others.
func (p *LocationPoller) PollOnce(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "LocationPoller.PollOnce")
	defer span.End()

	readings, err := p.source.ActiveLocations(ctx)
	if err != nil {
		metrics.PollErrors.Inc()
		span.RecordError(err)
		return 0, fmt.Errorf("fetch active locations: %w", err)
	}

	ingested := 0
	var firstErr error
	for _, r := range readings {
		if r.RideID == "" {
			metrics.PollReadings.WithLabelValues("invalid").Inc()
			continue
		}
		if !p.changed(r) {
			metrics.PollReadings.WithLabelValues("unchanged").Inc()
			continue
		}
		_, err := p.feed.Ingest(ctx, r.RideID, PollSource, domain.SnapshotUpdate{
			DriverLocation: domain.Some(r.Location),
		})
		if err != nil {
			metrics.PollErrors.Inc()
			metrics.PollReadings.WithLabelValues("failed").Inc()
			p.log.WarnContext(ctx, "ingest driver location failed", "ride_id", r.RideID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("ingest ride %s: %w", r.RideID, err)
			}
			continue
		}
		p.last[r.RideID] = lastReading{loc: r.Location, time: r.Time}
		metrics.PollReadings.WithLabelValues("ingested").Inc()
		ingested++
	}

	p.forgetMissing(readings)
	if ingested == 0 && firstErr != nil {
		return 0, firstErr
	}
	return ingested, nil
}

func (p *LocationPoller) changed(r domain.DriverLocationReading) bool {
	prev, ok := p.last[r.RideID]
	if !ok {
		return true
	}
	if !r.Time.IsZero() && !prev.time.IsZero() && r.Time.Before(prev.time) {
		return false
	}
	switch {
	case prev.loc == nil && r.Location == nil:
		return false
	case prev.loc == nil || r.Location == nil:
		return true
	default:
		return *prev.loc != *r.Location
	}
}

// forgetMissing drops rides the source no longer reports so the map stays bounded.
func (p *LocationPoller) forgetMissing(readings []domain.DriverLocationReading) {
	if len(p.last) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(readings))
	for _, r := range readings {
		seen[r.RideID] = struct{}{}
	}
	for id := range p.last {
		if _, ok := seen[id]; !ok {
			delete(p.last, id)
		}
	}
}
