package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/livemap/internal/adapters/http"
	"github.com/samirrijal/livemap/internal/adapters/scene"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// ---- Mock repository ----

type mockSnapshotRepo struct {
	mu           sync.Mutex
	store        map[string]domain.RouteSnapshot
	applied      []domain.SnapshotUpdate
	getFn        func(ctx context.Context, rideID string) (*domain.RouteSnapshot, error)
	listActiveFn func(ctx context.Context, offset, limit int) ([]string, error)
	countFn      func(ctx context.Context) (int, error)
}

func newMockRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{store: map[string]domain.RouteSnapshot{}}
}

func (m *mockSnapshotRepo) Get(ctx context.Context, rideID string) (*domain.RouteSnapshot, error) {
	if m.getFn != nil {
		return m.getFn(ctx, rideID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[rideID]
	if !ok {
		return nil, domain.ErrRideNotFound
	}
	return &s, nil
}

func (m *mockSnapshotRepo) Apply(_ context.Context, rideID string, u domain.SnapshotUpdate) (*domain.RouteSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := u.ApplyTo(m.store[rideID])
	m.store[rideID] = s
	m.applied = append(m.applied, u)
	return &s, nil
}

func (m *mockSnapshotRepo) ListActive(ctx context.Context, offset, limit int) ([]string, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, offset, limit)
	}
	return nil, nil
}

func (m *mockSnapshotRepo) CountActive(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockSnapshotRepo) put(rideID string, s domain.RouteSnapshot) {
	m.mu.Lock()
	m.store[rideID] = s
	m.mu.Unlock()
}

func (m *mockSnapshotRepo) lastApplied() domain.SnapshotUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.applied) == 0 {
		return domain.SnapshotUpdate{}
	}
	return m.applied[len(m.applied)-1]
}

// ---- Helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(repo *mockSnapshotRepo, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	if repo == nil {
		repo = newMockRepo()
	}
	live := usecases.DefaultLiveMapConfig()
	live.SettleDelay = time.Millisecond

	hub := usecases.NewSessionHub(nil)
	feed := usecases.NewRideFeedService(repo, nil, nil, hub, 0, nil)
	d := &handler.Dependencies{
		Feed:   feed,
		Render: usecases.NewMapRenderService(feed, scene.NewAttacher(nil), live, nil),
		Hub:    hub,
		Session: usecases.SessionConfig{
			LiveMap:       live,
			FrameInterval: time.Millisecond,
			Width:         800,
			Height:        600,
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, body io.Reader) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func pt(lat, lon float64) domain.GeoPoint { return domain.GeoPoint{Lat: lat, Lon: lon} }

func seededRide() domain.RouteSnapshot {
	return domain.RouteSnapshot{
		DriverLocation: pt(43.25, -2.92).Ptr(),
		RideRoute:      []domain.GeoPoint{pt(43.26, -2.93), pt(43.27, -2.94)},
	}
}

// ---- Tests: ride list ----

// activeRides serves ride-0 .. ride-(n-1) through the repository's paging calls.
func activeRides(repo *mockSnapshotRepo, n int) {
	repo.countFn = func(context.Context) (int, error) { return n, nil }
	repo.listActiveFn = func(_ context.Context, offset, limit int) ([]string, error) {
		var ids []string
		for i := offset; i < n && i < offset+limit; i++ {
			ids = append(ids, fmt.Sprintf("ride-%d", i))
		}
		return ids, nil
	}
}

func TestListRides_Pagination(t *testing.T) {
	repo := newMockRepo()
	activeRides(repo, 5)
	app := setupApp(makeDeps(repo))

	req := httptest.NewRequest("GET", "/v1/rides?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data       []handler.RideSummary `json:"data"`
		Pagination handler.Pagination    `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Data) != 2 || body.Data[0].RideID != "ride-2" {
		t.Errorf("unexpected page %+v", body.Data)
	}
	if body.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", body.Pagination.Total)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %q", link)
	}
}

func TestListRides_PagesBeyondFiveHundred(t *testing.T) {
	repo := newMockRepo()
	activeRides(repo, 1200)
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides?offset=1100&limit=50", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data       []handler.RideSummary `json:"data"`
		Pagination handler.Pagination    `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Data) != 50 || body.Data[0].RideID != "ride-1100" {
		t.Errorf("unexpected page starting %+v", body.Data[:min(1, len(body.Data))])
	}
	if body.Pagination.Total != 1200 {
		t.Errorf("expected total 1200, got %d", body.Pagination.Total)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "offset=1150&limit=50>; rel=\"last\"") {
		t.Errorf("expected last link at offset 1150, got %q", link)
	}
}

func TestListRides_OffsetPastEnd(t *testing.T) {
	repo := newMockRepo()
	activeRides(repo, 3)
	called := false
	list := repo.listActiveFn
	repo.listActiveFn = func(ctx context.Context, offset, limit int) ([]string, error) {
		called = true
		return list(ctx, offset, limit)
	}
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides?offset=10", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Data []handler.RideSummary `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Data == nil || len(body.Data) != 0 {
		t.Errorf("expected an empty data array, got %v", body.Data)
	}
	if called {
		t.Error("expected no list query past the last ride")
	}
}

// ---- Tests: snapshot ----

func TestGetRideSnapshot_Success(t *testing.T) {
	repo := newMockRepo()
	repo.put("ride-1", seededRide())
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/ride-1/snapshot", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
	if resp.Header.Get("ETag") != "" {
		t.Error("expected no ETag on a no-store response")
	}

	var state handler.RideState
	json.NewDecoder(resp.Body).Decode(&state)
	if state.RideID != "ride-1" || len(state.Snapshot.RideRoute) != 2 || state.Snapshot.DriverLocation == nil {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestGetRideSnapshot_NotFound(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/nope/snapshot", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

func TestGetRideSnapshot_InvalidID(t *testing.T) {
	app := setupApp(makeDeps(nil))

	long := strings.Repeat("x", 200)
	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/"+long+"/snapshot", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetRideSnapshot_RepoError(t *testing.T) {
	repo := newMockRepo()
	repo.getFn = func(ctx context.Context, rideID string) (*domain.RouteSnapshot, error) {
		return nil, fmt.Errorf("connection reset")
	}
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/ride-1/snapshot", nil), -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); strings.Contains(apiErr.Message, "connection reset") {
		t.Errorf("expected the internal error to stay internal, got %q", apiErr.Message)
	}
}

// ---- Tests: rendered map ----

func TestRenderRideMap_GeoJSON(t *testing.T) {
	repo := newMockRepo()
	repo.put("ride-1", seededRide())
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/ride-1/map?width=640&height=480", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
		Viewport struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"viewport"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %q", fc.Type)
	}
	// ride line + driver + pickup + dropoff
	if len(fc.Features) != 4 {
		t.Errorf("expected 4 features, got %d", len(fc.Features))
	}
	if fc.Viewport.Width != 640 || fc.Viewport.Height != 480 {
		t.Errorf("expected 640x480 viewport, got %+v", fc.Viewport)
	}
}

func TestRenderRideMap_ETagNotModified(t *testing.T) {
	repo := newMockRepo()
	repo.put("ride-1", seededRide())
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/ride-1/map", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/rides/ride-1/map", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestRenderRideMap_BadSize(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/ride-1/map?width=10000", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Tests: updates ----

func TestUpdateDriverLocation_Success(t *testing.T) {
	repo := newMockRepo()
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(jsonRequest("POST", "/v1/rides/ride-1/driver-location", `{"lat":43.25,"lon":-2.92}`), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	u := repo.lastApplied()
	if !u.DriverLocation.Valid || u.DriverLocation.Value == nil || u.DriverLocation.Value.Lat != 43.25 {
		t.Errorf("unexpected update %+v", u)
	}
	if u.RideRoute.Valid || u.IsOffline.Valid {
		t.Errorf("expected only the driver field to be set, got %v", u.Fields())
	}
}

func TestUpdateDriverLocation_Validation(t *testing.T) {
	app := setupApp(makeDeps(nil))

	tests := map[string]string{
		"lat out of range": `{"lat":120,"lon":-2.92}`,
		"missing lon":      `{"lat":43.25}`,
		"not json":         `{"lat":`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp, _ := app.Test(jsonRequest("POST", "/v1/rides/ride-1/driver-location", body), -1)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if apiErr := decodeError(t, resp.Body); apiErr.Code != "bad_request" {
				t.Errorf("expected bad_request, got %s", apiErr.Code)
			}
		})
	}
}

func TestClearDriverLocation(t *testing.T) {
	repo := newMockRepo()
	repo.put("ride-1", seededRide())
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/v1/rides/ride-1/driver-location", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var state handler.RideState
	json.NewDecoder(resp.Body).Decode(&state)
	if state.Snapshot.DriverLocation != nil {
		t.Errorf("expected driver cleared, got %+v", state.Snapshot.DriverLocation)
	}
	if len(state.Snapshot.RideRoute) != 2 {
		t.Errorf("expected route untouched, got %v", state.Snapshot.RideRoute)
	}
}

func TestUpdateRoutes_EmptyArrayClears(t *testing.T) {
	repo := newMockRepo()
	repo.put("ride-1", domain.RouteSnapshot{ApproachRoute: []domain.GeoPoint{pt(1, 1), pt(2, 2)}})
	app := setupApp(makeDeps(repo))

	body := `{"ride_route":[{"lat":43.26,"lon":-2.93},{"lat":43.27,"lon":-2.94}],"approach_route":[]}`
	resp, _ := app.Test(jsonRequest("PUT", "/v1/rides/ride-1/routes", body), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var state handler.RideState
	json.NewDecoder(resp.Body).Decode(&state)
	if len(state.Snapshot.RideRoute) != 2 || len(state.Snapshot.ApproachRoute) != 0 {
		t.Errorf("unexpected snapshot %+v", state.Snapshot)
	}
}

func TestUpdateRoutes_RequiresARoute(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(jsonRequest("PUT", "/v1/rides/ride-1/routes", `{}`), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateRoutes_InvalidPoint(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(jsonRequest("PUT", "/v1/rides/ride-1/routes", `{"ride_route":[{"lat":43.2,"lon":500}]}`), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); !strings.Contains(apiErr.Message, "ride_route[0].lon") {
		t.Errorf("expected the failing field in the message, got %q", apiErr.Message)
	}
}

func TestSetOffline(t *testing.T) {
	repo := newMockRepo()
	app := setupApp(makeDeps(repo))

	resp, _ := app.Test(jsonRequest("PUT", "/v1/rides/ride-1/offline", `{}`), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 without the flag, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonRequest("PUT", "/v1/rides/ride-1/offline", `{"offline":false}`), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if u := repo.lastApplied(); !u.IsOffline.Valid || u.IsOffline.Value {
		t.Errorf("expected an explicit offline=false, got %+v", u.IsOffline)
	}
}

func TestApplyRideUpdate_Batch(t *testing.T) {
	repo := newMockRepo()
	app := setupApp(makeDeps(repo))

	body := `{"driver_location":{"lat":43.25,"lon":-2.92},"approach_route":[{"lat":43.24,"lon":-2.91},{"lat":43.26,"lon":-2.93}],"offline":true}`
	resp, _ := app.Test(jsonRequest("POST", "/v1/rides/ride-1/updates", body), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := repo.lastApplied().Fields()
	want := []string{"driver_location", "approach_route", "is_offline"}
	if !slices.Equal(got, want) {
		t.Errorf("expected fields %v, got %v", want, got)
	}
}

func TestApplyRideUpdate_Rejects(t *testing.T) {
	app := setupApp(makeDeps(nil))

	tests := map[string]string{
		"empty update":            `{}`,
		"location and absent set": `{"driver_location":{"lat":1,"lon":1},"driver_absent":true}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp, _ := app.Test(jsonRequest("POST", "/v1/rides/ride-1/updates", body), -1)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestApplyRideUpdate_ReachesOpenSession(t *testing.T) {
	deps := makeDeps(nil)
	app := setupApp(deps)

	rec := &scene.Recorder{}
	sess := usecases.NewMapSession("ride-1", scene.NewAttacher(rec), deps.Session, nil)
	deps.Hub.Register(sess)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	body := `{"ride_route":[{"lat":43.26,"lon":-2.93},{"lat":43.27,"lon":-2.94}]}`
	resp, _ := app.Test(jsonRequest("POST", "/v1/rides/ride-1/updates", body), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var state handler.RideState
	json.NewDecoder(resp.Body).Decode(&state)
	if state.Sessions != 1 {
		t.Errorf("expected 1 open session, got %d", state.Sessions)
	}

	waitFor(t, "ride polyline", func() bool {
		return slices.Contains(rec.Ops(), domain.OpAddPolyline)
	})
}

// ---- Tests: health ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if _, ok := body["sessions"]; !ok {
		t.Error("expected a session count")
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return fmt.Errorf("connection refused") }

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps(nil, func(d *handler.Dependencies) { d.Cache = failingPinger{} }))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["database"] != "not configured" {
		t.Errorf("unexpected database check %q", body.Checks["database"])
	}
	if !strings.HasPrefix(body.Checks["cache"], "degraded") {
		t.Errorf("expected degraded cache, got %q", body.Checks["cache"])
	}
}

// ---- Tests: middleware ----

func TestRequestID_InErrorBody(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/rides/nope/snapshot", nil), -1)
	apiErr := decodeError(t, resp.Body)
	if apiErr.RequestID == "" || apiErr.RequestID != resp.Header.Get("X-Request-ID") {
		t.Errorf("expected request id %q in body, got %q", resp.Header.Get("X-Request-ID"), apiErr.RequestID)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	for h, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-API-Version":          "1.0.0",
	} {
		if got := resp.Header.Get(h); got != want {
			t.Errorf("%s: expected %q, got %q", h, want, got)
		}
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/ws/rides/ride-1", nil), -1)
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}
