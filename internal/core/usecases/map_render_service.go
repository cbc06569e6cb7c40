package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// SnapshotSource returns the stored map inputs of a ride.
type SnapshotSource interface {
	Snapshot(ctx context.Context, rideID string) (*domain.RouteSnapshot, error)
}

// MapRenderService renders a ride's map once, without a live view, and exports the scene.
type MapRenderService struct {
	snapshots SnapshotSource
	attacher  ports.CanvasAttacher
	cfg       LiveMapConfig
	log       *slog.Logger
}

// NewMapRenderService creates a MapRenderService. attacher must produce canvases that
// implement ports.SceneExporter.
func NewMapRenderService(snapshots SnapshotSource, attacher ports.CanvasAttacher, cfg LiveMapConfig, log *slog.Logger) *MapRenderService {
	if log == nil {
		log = slog.Default()
	}
	return &MapRenderService{snapshots: snapshots, attacher: attacher, cfg: cfg, log: log}
}

// RenderGeoJSON attaches a fresh controller for rideID to a width x height surface, runs
// one sync and returns the resulting scene as a GeoJSON FeatureCollection.
func (s *MapRenderService) RenderGeoJSON(ctx context.Context, rideID string, width, height int) ([]byte, error) {
	snap, err := s.snapshots.Snapshot(ctx, rideID)
	if err != nil {
		return nil, err
	}

	ctrl := NewLiveMapController(s.attacher, detached{}, detached{}, s.cfg, s.log)
	ctrl.Apply(domain.FullUpdate(*snap))
	if err := ctrl.Attach(NewRemoteSurface(width, height)); err != nil {
		return nil, err
	}
	defer ctrl.Teardown()

	exp, ok := ctrl.Canvas().(ports.SceneExporter)
	if !ok {
		return nil, fmt.Errorf("canvas %T cannot export a scene", ctrl.Canvas())
	}
	data, err := exp.ExportGeoJSON()
	if err != nil {
		return nil, fmt.Errorf("export scene: %w", err)
	}
	return data, nil
}

// detached schedules nothing. A one-shot render never resizes and is torn down before any
// deferred work could matter.
type detached struct{}

func (detached) RequestFrame(func()) func() { return func() {} }
func (detached) AfterFunc(time.Duration, func()) func() { return func() {} }
