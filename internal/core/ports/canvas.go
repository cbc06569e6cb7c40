package ports

import (
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// GeoCanvas is the capability surface of a map renderer. Implementations are
// single-threaded; callers serialize access.
type GeoCanvas interface {
	// AddOrMoveMarker creates the marker for role, or repositions the existing one in place.
	AddOrMoveMarker(role domain.Role, p domain.GeoPoint, style domain.MarkerStyle) domain.MarkerHandle
	RemoveMarker(role domain.Role)
	// SetPolyline replaces the line for role; the new line exists before the old is removed.
	SetPolyline(role domain.Role, pts []domain.GeoPoint, style domain.PolylineStyle) domain.PolylineHandle
	RemovePolyline(role domain.Role)
	SetView(center domain.GeoPoint, zoom float64)
	// FitToBounds returns false and leaves the viewport alone for empty or single-point input.
	FitToBounds(pts []domain.GeoPoint, padding int) bool
	InvalidateLayout()
	// Destroy releases every owned primitive. Safe to call more than once.
	Destroy()
}

// CanvasAttacher creates a canvas bound to a host surface.
type CanvasAttacher interface {
	Attach(host HostSurface) (GeoCanvas, error)
}

// HostSurface is the rectangular region a canvas renders into. Subscriptions return a
// function that detaches the listener.
type HostSurface interface {
	Size() (width, height int)
	OnWindowResize(fn func()) (unsubscribe func())
	OnSizeChange(fn func()) (unsubscribe func())
}

// FrameScheduler runs callbacks on the next rendering frame.
type FrameScheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// Timer runs a callback once after a delay on the owner's thread.
type Timer interface {
	AfterFunc(d time.Duration, fn func()) (stop func())
}

// SceneExporter is implemented by canvases that can serialize what they currently show.
type SceneExporter interface {
	ExportGeoJSON() ([]byte, error)
}
