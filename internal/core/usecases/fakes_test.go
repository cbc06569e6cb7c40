package usecases_test

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// --- Recording GeoCanvas ---

type fakeCanvas struct {
	mu sync.Mutex

	calls     []string
	markers   map[domain.Role]domain.GeoPoint
	polylines map[domain.Role][]domain.GeoPoint
	view      *domain.GeoPoint
	zoom      float64
	fitted    []domain.GeoPoint

	invalidations int
	destroys      int
	released      int
}

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{
		markers:   make(map[domain.Role]domain.GeoPoint),
		polylines: make(map[domain.Role][]domain.GeoPoint),
	}
}

func (c *fakeCanvas) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *fakeCanvas) AddOrMoveMarker(role domain.Role, p domain.GeoPoint, _ domain.MarkerStyle) domain.MarkerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("marker %s", role)
	c.markers[role] = p
	return domain.MarkerHandle(role)
}

func (c *fakeCanvas) RemoveMarker(role domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("remove_marker %s", role)
	delete(c.markers, role)
}

func (c *fakeCanvas) SetPolyline(role domain.Role, pts []domain.GeoPoint, _ domain.PolylineStyle) domain.PolylineHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("polyline %s", role)
	c.polylines[role] = append([]domain.GeoPoint(nil), pts...)
	return domain.PolylineHandle(role)
}

func (c *fakeCanvas) RemovePolyline(role domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("remove_polyline %s", role)
	delete(c.polylines, role)
}

func (c *fakeCanvas) SetView(center domain.GeoPoint, zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("set_view")
	c.view = center.Ptr()
	c.zoom = zoom
}

func (c *fakeCanvas) FitToBounds(pts []domain.GeoPoint, _ int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if domain.CountDistinct(pts, 2) < 2 {
		return false
	}
	c.record("fit")
	c.fitted = append([]domain.GeoPoint(nil), pts...)
	return true
}

func (c *fakeCanvas) InvalidateLayout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("invalidate")
	c.invalidations++
}

func (c *fakeCanvas) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroys++
	if c.destroys > 1 {
		return
	}
	c.released += len(c.markers) + len(c.polylines)
	clear(c.markers)
	clear(c.polylines)
}

func (c *fakeCanvas) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeCanvas) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

func (c *fakeCanvas) Count(call string) int {
	n := 0
	for _, got := range c.Calls() {
		if got == call {
			n++
		}
	}
	return n
}

func (c *fakeCanvas) Marker(role domain.Role) (domain.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.markers[role]
	return p, ok
}

func (c *fakeCanvas) Polyline(role domain.Role) ([]domain.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pts, ok := c.polylines[role]
	return pts, ok
}

// --- Attacher ---

type fakeAttacher struct {
	mu       sync.Mutex
	canvases []*fakeCanvas
	err      error
}

func (a *fakeAttacher) Attach(ports.HostSurface) (ports.GeoCanvas, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	c := newFakeCanvas()
	a.canvases = append(a.canvases, c)
	return c, nil
}

func (a *fakeAttacher) Last() *fakeCanvas {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.canvases) == 0 {
		return nil
	}
	return a.canvases[len(a.canvases)-1]
}

var errAttach = errors.New("host gone")

// --- Manual frame scheduler and timer ---

type manualClock struct {
	nextID  int
	pending map[int]func()
	order   []int
	delays  []time.Duration
}

func newManualClock() *manualClock {
	return &manualClock{pending: make(map[int]func())}
}

func (m *manualClock) RequestFrame(fn func()) func() {
	return m.AfterFunc(0, fn)
}

func (m *manualClock) AfterFunc(d time.Duration, fn func()) func() {
	id := m.nextID
	m.nextID++
	m.pending[id] = fn
	m.order = append(m.order, id)
	m.delays = append(m.delays, d)
	return func() { delete(m.pending, id) }
}

// Flush runs every callback scheduled so far, in order. Callbacks scheduled while
// flushing wait for the next Flush.
func (m *manualClock) Flush() int {
	order := m.order
	m.order = nil
	n := 0
	for _, id := range order {
		fn, ok := m.pending[id]
		if !ok {
			continue
		}
		delete(m.pending, id)
		fn()
		n++
	}
	return n
}

func (m *manualClock) Pending() int { return len(m.pending) }

// --- Helpers ---

func pt(lat, lon float64) domain.GeoPoint { return domain.GeoPoint{Lat: lat, Lon: lon} }

func contains(pts []domain.GeoPoint, p domain.GeoPoint) bool {
	for _, q := range pts {
		if q == p {
			return true
		}
	}
	return false
}
