// Package scene implements an in-memory map canvas. It keeps the authoritative record of
// which primitive is bound to which role, computes the viewport the way a slippy-map
// renderer would, and streams every mutation to a CommandSink.
package scene

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/geospatial"
)

// CommandSink receives each canvas mutation in order.
type CommandSink interface {
	Send(cmd domain.CanvasCommand)
}

// SinkFunc adapts a function to CommandSink.
type SinkFunc func(cmd domain.CanvasCommand)

// Send calls f(cmd).
func (f SinkFunc) Send(cmd domain.CanvasCommand) { f(cmd) }

type marker struct {
	handle domain.MarkerHandle
	point  domain.GeoPoint
	style  domain.MarkerStyle
}

type polyline struct {
	handle domain.PolylineHandle
	points []domain.GeoPoint
	style  domain.PolylineStyle
}

// Canvas is a ports.GeoCanvas kept entirely in memory. Not safe for concurrent use.
type Canvas struct {
	host ports.HostSurface
	sink CommandSink

	width, height int
	seq           uint64

	markers   map[domain.Role]*marker
	polylines map[domain.Role]*polyline

	center  domain.GeoPoint
	zoom    float64
	hasView bool

	invalidations int
	destroyed     bool
}

var (
	_ ports.GeoCanvas     = (*Canvas)(nil)
	_ ports.SceneExporter = (*Canvas)(nil)
)

// NewCanvas creates a canvas sized to host. A nil sink drops commands.
func NewCanvas(host ports.HostSurface, width, height int, sink CommandSink) *Canvas {
	if sink == nil {
		sink = SinkFunc(func(domain.CanvasCommand) {})
	}
	return &Canvas{
		host:      host,
		sink:      sink,
		width:     width,
		height:    height,
		markers:   make(map[domain.Role]*marker),
		polylines: make(map[domain.Role]*polyline),
	}
}

// AddOrMoveMarker implements ports.GeoCanvas.
func (c *Canvas) AddOrMoveMarker(role domain.Role, p domain.GeoPoint, style domain.MarkerStyle) domain.MarkerHandle {
	if c.destroyed {
		return ""
	}
	if m, ok := c.markers[role]; ok {
		m.point = p
		c.emit(domain.CanvasCommand{Op: domain.OpMoveMarker, Role: role, Handle: string(m.handle), Point: p.Ptr()})
		return m.handle
	}
	m := &marker{handle: domain.MarkerHandle(uuid.NewString()), point: p, style: style}
	c.markers[role] = m
	c.emit(domain.CanvasCommand{
		Op:          domain.OpAddMarker,
		Role:        role,
		Handle:      string(m.handle),
		Point:       p.Ptr(),
		MarkerStyle: &style,
	})
	return m.handle
}

// RemoveMarker implements ports.GeoCanvas. Removing an empty slot does nothing.
func (c *Canvas) RemoveMarker(role domain.Role) {
	m, ok := c.markers[role]
	if !ok || c.destroyed {
		return
	}
	delete(c.markers, role)
	c.emit(domain.CanvasCommand{Op: domain.OpRemoveMarker, Role: role, Handle: string(m.handle)})
}

// SetPolyline implements ports.GeoCanvas. The replacement is added before the previous
// line is removed so the view never shows an empty slot.
func (c *Canvas) SetPolyline(role domain.Role, pts []domain.GeoPoint, style domain.PolylineStyle) domain.PolylineHandle {
	if c.destroyed {
		return ""
	}
	old := c.polylines[role]
	l := &polyline{
		handle: domain.PolylineHandle(uuid.NewString()),
		points: append([]domain.GeoPoint(nil), pts...),
		style:  style,
	}
	c.polylines[role] = l
	c.emit(domain.CanvasCommand{
		Op:            domain.OpAddPolyline,
		Role:          role,
		Handle:        string(l.handle),
		Points:        l.points,
		PolylineStyle: &style,
	})
	if old != nil {
		c.emit(domain.CanvasCommand{Op: domain.OpRemovePolyline, Role: role, Handle: string(old.handle)})
	}
	return l.handle
}

// RemovePolyline implements ports.GeoCanvas. Removing an empty slot does nothing.
func (c *Canvas) RemovePolyline(role domain.Role) {
	l, ok := c.polylines[role]
	if !ok || c.destroyed {
		return
	}
	delete(c.polylines, role)
	c.emit(domain.CanvasCommand{Op: domain.OpRemovePolyline, Role: role, Handle: string(l.handle)})
}

// SetView implements ports.GeoCanvas.
func (c *Canvas) SetView(center domain.GeoPoint, zoom float64) {
	if c.destroyed {
		return
	}
	c.center, c.zoom, c.hasView = center, zoom, true
	c.emit(domain.CanvasCommand{Op: domain.OpSetView, Center: center.Ptr(), Zoom: zoom})
}

// FitToBounds implements ports.GeoCanvas.
func (c *Canvas) FitToBounds(pts []domain.GeoPoint, padding int) bool {
	if c.destroyed || domain.CountDistinct(pts, 2) < 2 {
		return false
	}
	mp := make(orb.MultiPoint, 0, len(pts))
	for _, p := range pts {
		mp = append(mp, orb.Point{p.Lon, p.Lat})
	}
	b := mp.Bound()
	center, zoom := geospatial.FitBound(b, c.width, c.height, padding)

	c.center = domain.GeoPoint{Lat: center.Lat(), Lon: center.Lon()}
	c.zoom, c.hasView = zoom, true
	c.emit(domain.CanvasCommand{
		Op:      domain.OpFitBounds,
		Center:  c.center.Ptr(),
		Zoom:    zoom,
		Padding: padding,
		Bounds: &domain.Bounds{
			MinLat: b.Min.Lat(), MinLon: b.Min.Lon(),
			MaxLat: b.Max.Lat(), MaxLon: b.Max.Lon(),
		},
	})
	return true
}

// InvalidateLayout implements ports.GeoCanvas by re-reading the host size.
func (c *Canvas) InvalidateLayout() {
	if c.destroyed {
		return
	}
	if c.host != nil {
		if w, h := c.host.Size(); w > 0 && h > 0 {
			c.width, c.height = w, h
		}
	}
	c.invalidations++
	c.emit(domain.CanvasCommand{Op: domain.OpInvalidateLayout, Width: c.width, Height: c.height})
}

// Destroy implements ports.GeoCanvas.
func (c *Canvas) Destroy() {
	if c.destroyed {
		return
	}
	c.emit(domain.CanvasCommand{Op: domain.OpDestroy})
	c.destroyed = true
	clear(c.markers)
	clear(c.polylines)
	c.hasView = false
}

// Marker returns the marker bound to role.
func (c *Canvas) Marker(role domain.Role) (domain.GeoPoint, domain.MarkerHandle, bool) {
	m, ok := c.markers[role]
	if !ok {
		return domain.GeoPoint{}, "", false
	}
	return m.point, m.handle, true
}

// Polyline returns the line bound to role.
func (c *Canvas) Polyline(role domain.Role) ([]domain.GeoPoint, domain.PolylineHandle, bool) {
	l, ok := c.polylines[role]
	if !ok {
		return nil, "", false
	}
	return l.points, l.handle, true
}

// View returns the current center and zoom; ok is false until a view has been set.
func (c *Canvas) View() (center domain.GeoPoint, zoom float64, ok bool) {
	return c.center, c.zoom, c.hasView
}

// Size returns the layout size last read from the host.
func (c *Canvas) Size() (int, int) { return c.width, c.height }

// Primitives returns the number of markers and lines currently drawn.
func (c *Canvas) Primitives() int { return len(c.markers) + len(c.polylines) }

// Invalidations returns how many times the layout was invalidated.
func (c *Canvas) Invalidations() int { return c.invalidations }

// Destroyed reports whether Destroy has run.
func (c *Canvas) Destroyed() bool { return c.destroyed }

// FeatureCollection renders the current scene as GeoJSON, lines below markers and each
// group ordered by z-index. Features are identified by role, so equal scenes encode to
// equal bytes.
func (c *Canvas) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, role := range sortedRoles(domain.PolylineRoles, func(r domain.Role) (int, bool) {
		l, ok := c.polylines[r]
		if !ok {
			return 0, false
		}
		return l.style.ZIndex, true
	}) {
		l := c.polylines[role]
		ls := make(orb.LineString, 0, len(l.points))
		for _, p := range l.points {
			ls = append(ls, orb.Point{p.Lon, p.Lat})
		}
		f := geojson.NewFeature(ls)
		f.ID = string(role)
		f.Properties["role"] = string(role)
		f.Properties["color"] = l.style.Color
		f.Properties["weight"] = l.style.Weight
		f.Properties["opacity"] = l.style.Opacity
		f.Properties["dashed"] = l.style.Dashed
		f.Properties["z_index"] = l.style.ZIndex
		f.Properties["length_m"] = math.Round(geospatial.PathLength(ls))
		fc.Append(f)
	}

	for _, role := range sortedRoles(domain.MarkerRoles, func(r domain.Role) (int, bool) {
		m, ok := c.markers[r]
		if !ok {
			return 0, false
		}
		return m.style.ZIndex, true
	}) {
		m := c.markers[role]
		f := geojson.NewFeature(orb.Point{m.point.Lon, m.point.Lat})
		f.ID = string(role)
		f.Properties["role"] = string(role)
		f.Properties["icon"] = m.style.Icon
		f.Properties["color"] = m.style.Color
		f.Properties["z_index"] = m.style.ZIndex
		fc.Append(f)
	}

	viewport := map[string]interface{}{
		"width":  c.width,
		"height": c.height,
	}
	if c.hasView {
		viewport["center"] = []float64{c.center.Lon, c.center.Lat}
		viewport["zoom"] = c.zoom
	}
	fc.ExtraMembers = geojson.Properties{"viewport": viewport}
	return fc
}

// ExportGeoJSON implements ports.SceneExporter.
func (c *Canvas) ExportGeoJSON() ([]byte, error) {
	if c.destroyed {
		return nil, domain.ErrCanvasDestroyed
	}
	return c.FeatureCollection().MarshalJSON()
}

func (c *Canvas) emit(cmd domain.CanvasCommand) {
	c.seq++
	cmd.Seq = c.seq
	c.sink.Send(cmd)
}

func sortedRoles(roles []domain.Role, z func(domain.Role) (int, bool)) []domain.Role {
	type entry struct {
		role domain.Role
		z    int
	}
	var out []entry
	for _, r := range roles {
		if zi, ok := z(r); ok {
			out = append(out, entry{r, zi})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].z < out[j].z })
	res := make([]domain.Role, len(out))
	for i, e := range out {
		res[i] = e.role
	}
	return res
}
