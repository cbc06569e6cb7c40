package usecases

import (
	"log/slog"
	"sync"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// SessionHub fans ride updates out to every open map session of that ride.
type SessionHub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*MapSession
	log      *slog.Logger
}

// NewSessionHub creates an empty hub.
func NewSessionHub(log *slog.Logger) *SessionHub {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHub{
		sessions: make(map[string]map[string]*MapSession),
		log:      log,
	}
}

// Register adds s to the hub.
func (h *SessionHub) Register(s *MapSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID, ok := h.sessions[s.RideID]
	if !ok {
		byID = make(map[string]*MapSession)
		h.sessions[s.RideID] = byID
	}
	byID[s.ID] = s
}

// Unregister removes s. Unknown sessions are ignored.
func (h *SessionHub) Unregister(s *MapSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID, ok := h.sessions[s.RideID]
	if !ok {
		return
	}
	delete(byID, s.ID)
	if len(byID) == 0 {
		delete(h.sessions, s.RideID)
	}
}

// Dispatch posts u to every session of rideID and returns how many accepted it.
func (h *SessionHub) Dispatch(rideID string, u domain.SnapshotUpdate) int {
	h.mu.RLock()
	targets := make([]*MapSession, 0, len(h.sessions[rideID]))
	for _, s := range h.sessions[rideID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	n := 0
	for _, s := range targets {
		if err := s.Post(u); err != nil {
			h.log.Debug("skipping closed session", "ride_id", rideID, "session_id", s.ID)
			continue
		}
		n++
	}
	return n
}

// Count returns the number of sessions open for rideID.
func (h *SessionHub) Count(rideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[rideID])
}

// Total returns the number of open sessions across all rides.
func (h *SessionHub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, byID := range h.sessions {
		n += len(byID)
	}
	return n
}

// CloseAll closes every registered session.
func (h *SessionHub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, byID := range h.sessions {
		for _, s := range byID {
			s.Close()
		}
	}
}
