package scene_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samirrijal/livemap/internal/adapters/scene"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

func newCanvas(t *testing.T) (*scene.Canvas, *scene.Recorder, *usecases.RemoteSurface) {
	t.Helper()
	rec := &scene.Recorder{}
	host := usecases.NewRemoteSurface(800, 600)
	gc, err := scene.NewAttacher(rec).Attach(host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gc.(*scene.Canvas), rec, host
}

func TestCanvas_MarkerUpsertKeepsHandle(t *testing.T) {
	c, rec, _ := newCanvas(t)

	h1 := c.AddOrMoveMarker(domain.RoleDriver, domain.GeoPoint{Lat: 1, Lon: 1}, domain.DriverMarkerStyle)
	h2 := c.AddOrMoveMarker(domain.RoleDriver, domain.GeoPoint{Lat: 2, Lon: 2}, domain.DriverMarkerStyle)

	if h1 == "" || h1 != h2 {
		t.Errorf("expected the same handle on move, got %q then %q", h1, h2)
	}
	if got := rec.Ops(); !slices.Equal(got, []domain.CanvasOp{domain.OpAddMarker, domain.OpMoveMarker}) {
		t.Errorf("unexpected ops %v", got)
	}
	if p, _, _ := c.Marker(domain.RoleDriver); p != (domain.GeoPoint{Lat: 2, Lon: 2}) {
		t.Errorf("expected marker at {2,2}, got %v", p)
	}
}

func TestCanvas_PolylineReplaceAddsBeforeRemove(t *testing.T) {
	c, rec, _ := newCanvas(t)
	pts := []domain.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}

	old := c.SetPolyline(domain.RoleRide, pts, domain.RidePolylineStyle)
	next := c.SetPolyline(domain.RoleRide, pts, domain.RidePolylineStyle)

	if old == next {
		t.Fatal("expected a new handle for the replacement")
	}
	cmds := rec.Commands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if cmds[1].Op != domain.OpAddPolyline || cmds[1].Handle != string(next) {
		t.Errorf("expected the replacement added second, got %+v", cmds[1])
	}
	if cmds[2].Op != domain.OpRemovePolyline || cmds[2].Handle != string(old) {
		t.Errorf("expected the old line removed last, got %+v", cmds[2])
	}
	if c.Primitives() != 1 {
		t.Errorf("expected one line on the canvas, got %d", c.Primitives())
	}
}

func TestCanvas_RemoveEmptySlotIsNoop(t *testing.T) {
	c, rec, _ := newCanvas(t)
	c.RemoveMarker(domain.RolePickup)
	c.RemovePolyline(domain.RoleApproach)
	if len(rec.Commands()) != 0 {
		t.Errorf("expected no commands, got %v", rec.Ops())
	}
}

func TestCanvas_FitToBounds(t *testing.T) {
	c, _, _ := newCanvas(t)

	if c.FitToBounds(nil, 50) {
		t.Error("expected empty input rejected")
	}
	if c.FitToBounds([]domain.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 1, Lon: 1}}, 50) {
		t.Error("expected a single distinct point rejected")
	}
	if _, _, ok := c.View(); ok {
		t.Fatal("expected viewport untouched by rejected fits")
	}

	pts := []domain.GeoPoint{{Lat: 43.25, Lon: -2.95}, {Lat: 43.27, Lon: -2.91}}
	if !c.FitToBounds(pts, 50) {
		t.Fatal("expected fit")
	}
	center, zoom, ok := c.View()
	if !ok {
		t.Fatal("expected viewport set")
	}
	if center.Lat < 43.25 || center.Lat > 43.27 || center.Lon < -2.95 || center.Lon > -2.91 {
		t.Errorf("expected center inside the box, got %v", center)
	}
	if zoom < 10 || zoom > 16 {
		t.Errorf("expected a city-scale zoom, got %v", zoom)
	}
}

func TestCanvas_InvalidateLayoutReadsHostSize(t *testing.T) {
	c, rec, host := newCanvas(t)
	host.Resize(1280, 720, true)

	c.InvalidateLayout()

	if w, h := c.Size(); w != 1280 || h != 720 {
		t.Errorf("expected 1280x720, got %dx%d", w, h)
	}
	cmds := rec.Commands()
	if last := cmds[len(cmds)-1]; last.Op != domain.OpInvalidateLayout || last.Width != 1280 {
		t.Errorf("unexpected command %+v", last)
	}
}

func TestCanvas_DestroyIsIdempotent(t *testing.T) {
	c, rec, _ := newCanvas(t)
	c.AddOrMoveMarker(domain.RoleDriver, domain.GeoPoint{Lat: 1, Lon: 1}, domain.DriverMarkerStyle)
	c.SetPolyline(domain.RoleRide, []domain.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}, domain.RidePolylineStyle)

	c.Destroy()
	c.Destroy()

	destroys := 0
	for _, op := range rec.Ops() {
		if op == domain.OpDestroy {
			destroys++
		}
	}
	if destroys != 1 {
		t.Errorf("expected one destroy command, got %d", destroys)
	}
	if c.Primitives() != 0 || !c.Destroyed() {
		t.Error("expected an empty, destroyed canvas")
	}
	if h := c.AddOrMoveMarker(domain.RoleDriver, domain.GeoPoint{}, domain.DriverMarkerStyle); h != "" {
		t.Error("expected mutations ignored after destroy")
	}
	if _, err := c.ExportGeoJSON(); !errors.Is(err, domain.ErrCanvasDestroyed) {
		t.Errorf("expected ErrCanvasDestroyed, got %v", err)
	}
}

func TestCanvas_SequenceNumbers(t *testing.T) {
	c, rec, _ := newCanvas(t)
	c.SetView(domain.GeoPoint{Lat: 1, Lon: 1}, 15)
	c.AddOrMoveMarker(domain.RoleDriver, domain.GeoPoint{Lat: 1, Lon: 1}, domain.DriverMarkerStyle)
	c.InvalidateLayout()

	for i, cmd := range rec.Commands() {
		if cmd.Seq != uint64(i+1) {
			t.Errorf("command %d has seq %d", i, cmd.Seq)
		}
	}
}

func TestCanvas_FeatureCollectionOrder(t *testing.T) {
	c, _, _ := newCanvas(t)
	c.AddOrMoveMarker(domain.RoleDriver, domain.GeoPoint{Lat: 1, Lon: 1}, domain.DriverMarkerStyle)
	c.SetPolyline(domain.RoleApproach, []domain.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}, domain.ApproachPolylineStyle)
	c.SetPolyline(domain.RoleRide, []domain.GeoPoint{{Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}}, domain.RidePolylineStyle)
	c.AddOrMoveMarker(domain.RolePickup, domain.GeoPoint{Lat: 2, Lon: 2}, domain.PickupMarkerStyle)

	fc := c.FeatureCollection()
	var roles []string
	for _, f := range fc.Features {
		roles = append(roles, f.Properties["role"].(string))
	}
	want := []string{"ride", "approach", "pickup", "driver"}
	if !slices.Equal(roles, want) {
		t.Errorf("expected z-ordered features %v, got %v", want, roles)
	}
	// One degree diagonal near the equator is about 157 km.
	if l, _ := fc.Features[0].Properties["length_m"].(float64); l < 150000 || l > 160000 {
		t.Errorf("expected ride length near 157 km, got %v", fc.Features[0].Properties["length_m"])
	}

	data, err := c.ExportGeoJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["viewport"]; !ok {
		t.Error("expected viewport member in export")
	}
}
