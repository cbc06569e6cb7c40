package usecases

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// DefaultSettleDelay is how long after attach the one-off layout invalidation runs.
const DefaultSettleDelay = 100 * time.Millisecond

// LiveMapConfig tunes a LiveMapController.
type LiveMapConfig struct {
	AutoCenterZoom float64
	FitPadding     int
	SettleDelay    time.Duration
}

// DefaultLiveMapConfig returns the production defaults.
func DefaultLiveMapConfig() LiveMapConfig {
	return LiveMapConfig{
		AutoCenterZoom: DefaultAutoCenterZoom,
		FitPadding:     DefaultFitPadding,
		SettleDelay:    DefaultSettleDelay,
	}
}

// LiveMapController owns one canvas and keeps it in line with the ride snapshot.
// It is not safe for concurrent use; MapSession serializes calls onto one goroutine.
type LiveMapController struct {
	cfg      LiveMapConfig
	engine   *RouteSyncEngine
	attacher ports.CanvasAttacher
	timer    ports.Timer
	watcher  *ResizeWatcher
	log      *slog.Logger

	snapshot domain.RouteSnapshot
	synced   *domain.RouteSnapshot
	viewport domain.ViewportState

	canvas     ports.GeoCanvas
	stopSettle func()
}

// NewLiveMapController creates a detached controller.
func NewLiveMapController(attacher ports.CanvasAttacher, frames ports.FrameScheduler, timer ports.Timer, cfg LiveMapConfig, log *slog.Logger) *LiveMapController {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &LiveMapController{
		cfg:      cfg,
		engine:   NewRouteSyncEngine(cfg.AutoCenterZoom, cfg.FitPadding),
		attacher: attacher,
		timer:    timer,
		watcher:  NewResizeWatcher(frames),
		log:      log,
	}
}

// Attach creates the canvas on host, syncs whatever snapshot is already set, starts
// watching for resizes and schedules one deferred layout invalidation. Attaching an
// attached controller tears the old canvas down first.
func (c *LiveMapController) Attach(host ports.HostSurface) error {
	if c.canvas != nil {
		c.Teardown()
	}

	canvas, err := c.attacher.Attach(host)
	if err != nil {
		return fmt.Errorf("attach canvas: %w", err)
	}
	c.canvas = canvas
	c.synced = nil

	c.sync()
	c.watcher.Watch(host, c.invalidate)
	c.stopSettle = c.timer.AfterFunc(c.cfg.SettleDelay, func() {
		c.stopSettle = nil
		c.invalidate()
	})

	c.log.Debug("live map attached",
		"driver", c.snapshot.HasDriver(),
		"routes", c.snapshot.HasRoute(),
		"offline", c.snapshot.IsOffline,
	)
	return nil
}

// Apply replaces the fields set in u and runs one sync for the whole batch.
func (c *LiveMapController) Apply(u domain.SnapshotUpdate) {
	if u.IsEmpty() {
		return
	}
	c.snapshot = u.ApplyTo(c.snapshot)
	if c.canvas != nil {
		c.sync()
	}
}

// SetDriverLocation replaces the driver location; nil means absent.
func (c *LiveMapController) SetDriverLocation(p *domain.GeoPoint) {
	c.Apply(domain.SnapshotUpdate{DriverLocation: domain.Some(p)})
}

// SetRideRoute replaces the ride route.
func (c *LiveMapController) SetRideRoute(pts []domain.GeoPoint) {
	c.Apply(domain.SnapshotUpdate{RideRoute: domain.Some(pts)})
}

// SetApproachRoute replaces the approach route.
func (c *LiveMapController) SetApproachRoute(pts []domain.GeoPoint) {
	c.Apply(domain.SnapshotUpdate{ApproachRoute: domain.Some(pts)})
}

// SetOffline replaces the offline flag.
func (c *LiveMapController) SetOffline(offline bool) {
	c.Apply(domain.SnapshotUpdate{IsOffline: domain.Some(offline)})
}

// Teardown stops the watcher, cancels the deferred invalidation, destroys the canvas and
// resets the auto-center latch. Every step runs regardless of state, so calling it twice
// is harmless.
func (c *LiveMapController) Teardown() {
	c.watcher.Unwatch()
	if c.stopSettle != nil {
		c.stopSettle()
		c.stopSettle = nil
	}
	if c.canvas != nil {
		c.canvas.Destroy()
		c.canvas = nil
		c.log.Debug("live map torn down")
	}
	c.synced = nil
	// A fresh canvas starts from the default view, so it may auto-center again.
	c.viewport = domain.ViewportState{}
}

// Attached reports whether a canvas is live.
func (c *LiveMapController) Attached() bool { return c.canvas != nil }

// Canvas returns the live canvas, or nil when detached.
func (c *LiveMapController) Canvas() ports.GeoCanvas { return c.canvas }

// Snapshot returns the current inputs.
func (c *LiveMapController) Snapshot() domain.RouteSnapshot { return c.snapshot.Clone() }

// Viewport returns the auto-center latch.
func (c *LiveMapController) Viewport() domain.ViewportState { return c.viewport }

func (c *LiveMapController) sync() {
	plan := c.engine.Plan(c.synced, c.snapshot, c.viewport)
	plan.Apply(c.canvas)

	c.viewport = plan.Viewport
	synced := c.snapshot
	c.synced = &synced

	metrics.SyncRuns.WithLabelValues(strconv.FormatBool(plan.RoutesRebuilt)).Inc()
	for _, op := range plan.Ops {
		metrics.CanvasOps.WithLabelValues(op.Kind.String()).Inc()
	}
	if plan.AutoCentered {
		metrics.AutoCenters.Inc()
		c.log.Debug("auto-centered on driver")
	}
	if plan.FittedBounds {
		metrics.BoundsFits.Inc()
	}
}

func (c *LiveMapController) invalidate() {
	if c.canvas == nil {
		return
	}
	c.canvas.InvalidateLayout()
	metrics.LayoutInvalidations.Inc()
}
