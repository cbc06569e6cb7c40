package locationsource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/livemap/internal/adapters/locationsource"
)

func TestHTTPSource_ActiveLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rides/active/locations" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"ride_id":"r1","driver_id":"d1","location":{"lat":43.26,"lon":-2.93},"time":"2026-10-17T10:00:00Z"},
			{"ride_id":"r2","location":null,"time":"2026-10-17T10:00:01Z"}
		]`))
	}))
	defer srv.Close()

	src := locationsource.NewHTTPSource(srv.URL+"/", srv.Client())
	readings, err := src.ActiveLocations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].RideID != "r1" || readings[0].Location == nil || readings[0].Location.Lat != 43.26 {
		t.Errorf("unexpected first reading %+v", readings[0])
	}
	if readings[1].Location != nil {
		t.Errorf("expected absent location for r2, got %+v", readings[1].Location)
	}
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := locationsource.NewHTTPSource(srv.URL, srv.Client()).ActiveLocations(context.Background())
	if err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestHTTPSource_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := locationsource.NewHTTPSource(srv.URL, srv.Client()).ActiveLocations(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
}
