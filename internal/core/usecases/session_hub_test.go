package usecases_test

import (
	"testing"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

func TestSessionHub_RegisterDispatchUnregister(t *testing.T) {
	hub := usecases.NewSessionHub(nil)
	a := usecases.NewMapSession("ride-1", &fakeAttacher{}, sessionConfig(), nil)
	b := usecases.NewMapSession("ride-1", &fakeAttacher{}, sessionConfig(), nil)
	other := usecases.NewMapSession("ride-2", &fakeAttacher{}, sessionConfig(), nil)

	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	if hub.Count("ride-1") != 2 || hub.Total() != 3 {
		t.Fatalf("expected 2 sessions on ride-1 and 3 total, got %d / %d", hub.Count("ride-1"), hub.Total())
	}

	u := domain.SnapshotUpdate{IsOffline: domain.Some(true)}
	if n := hub.Dispatch("ride-1", u); n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	if n := hub.Dispatch("ride-unknown", u); n != 0 {
		t.Errorf("expected 0 deliveries for an unknown ride, got %d", n)
	}

	hub.Unregister(a)
	hub.Unregister(a)
	if hub.Count("ride-1") != 1 {
		t.Errorf("expected 1 session after unregister, got %d", hub.Count("ride-1"))
	}
	hub.Unregister(b)
	if hub.Count("ride-1") != 0 {
		t.Errorf("expected ride-1 empty, got %d", hub.Count("ride-1"))
	}
}

func TestSessionHub_SkipsClosedSessions(t *testing.T) {
	hub := usecases.NewSessionHub(nil)
	open := usecases.NewMapSession("ride-1", &fakeAttacher{}, sessionConfig(), nil)
	closed := usecases.NewMapSession("ride-1", &fakeAttacher{}, sessionConfig(), nil)
	closed.Close()
	hub.Register(open)
	hub.Register(closed)

	if n := hub.Dispatch("ride-1", domain.SnapshotUpdate{IsOffline: domain.Some(false)}); n != 1 {
		t.Errorf("expected only the open session to accept, got %d", n)
	}
}

func TestSessionHub_CloseAll(t *testing.T) {
	hub := usecases.NewSessionHub(nil)
	s := usecases.NewMapSession("ride-1", &fakeAttacher{}, sessionConfig(), nil)
	hub.Register(s)

	hub.CloseAll()

	select {
	case <-s.Done():
	default:
		t.Error("expected session closed")
	}
}
