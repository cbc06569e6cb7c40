package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// DefaultFrameInterval approximates one display refresh at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// SessionConfig tunes a MapSession.
type SessionConfig struct {
	LiveMap       LiveMapConfig
	FrameInterval time.Duration
	Width         int
	Height        int
}

// MapSession is the event loop for one attached map view. Every snapshot update, resize
// signal, frame callback and timer runs on the goroutine executing Run, which is the only
// goroutine that touches the controller, its watcher and its canvas.
type MapSession struct {
	ID     string
	RideID string

	frameInterval time.Duration
	ctrl          *LiveMapController
	surface       *RemoteSurface
	log           *slog.Logger

	mu      sync.Mutex
	pending domain.SnapshotUpdate
	notify  chan struct{}

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewMapSession creates a session whose canvas comes from attacher.
func NewMapSession(rideID string, attacher ports.CanvasAttacher, cfg SessionConfig, log *slog.Logger) *MapSession {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	log = log.With("ride_id", rideID, "session_id", id)

	s := &MapSession{
		ID:            id,
		RideID:        rideID,
		frameInterval: cfg.FrameInterval,
		surface:       NewRemoteSurface(cfg.Width, cfg.Height),
		log:           log,
		notify:        make(chan struct{}, 1),
		tasks:         make(chan func(), 64),
		done:          make(chan struct{}),
	}
	s.ctrl = NewLiveMapController(attacher, s, s, cfg.LiveMap, log)
	return s
}

// Post queues a snapshot update. Updates queued before the loop picks them up are merged
// and synced as one batch. Post never blocks.
func (s *MapSession) Post(u domain.SnapshotUpdate) error {
	select {
	case <-s.done:
		return domain.ErrSessionClosed
	default:
	}

	s.mu.Lock()
	s.pending = s.pending.Merge(u)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Seed queues u underneath whatever is already pending, so updates posted earlier by the
// hub still win over a possibly older stored snapshot.
func (s *MapSession) Seed(u domain.SnapshotUpdate) error {
	select {
	case <-s.done:
		return domain.ErrSessionClosed
	default:
	}

	s.mu.Lock()
	s.pending = u.Merge(s.pending)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Resize reports a size change of the remote view.
func (s *MapSession) Resize(width, height int, window bool) error {
	return s.do(func() { s.surface.Resize(width, height, window) })
}

// Call runs fn on the loop and waits for it to finish.
func (s *MapSession) Call(fn func(c *LiveMapController)) error {
	ack := make(chan struct{})
	if err := s.do(func() { fn(s.ctrl); close(ack) }); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-s.done:
		return domain.ErrSessionClosed
	}
}

// RequestFrame implements ports.FrameScheduler.
func (s *MapSession) RequestFrame(fn func()) func() {
	return s.AfterFunc(s.frameInterval, fn)
}

// AfterFunc implements ports.Timer. The returned stop func must be called on the loop.
func (s *MapSession) AfterFunc(d time.Duration, fn func()) func() {
	cancelled := false
	t := time.AfterFunc(d, func() {
		_ = s.do(func() {
			if !cancelled {
				fn()
			}
		})
	})
	return func() {
		cancelled = true
		t.Stop()
	}
}

// Run attaches the map and processes events until ctx is cancelled or Close is called.
// The map is torn down before Run returns.
func (s *MapSession) Run(ctx context.Context) error {
	s.ctrl.Apply(s.takePending())
	if err := s.ctrl.Attach(s.surface); err != nil {
		s.Close()
		return err
	}
	metrics.ActiveSessions.Inc()
	s.log.Info("map session attached")

	defer func() {
		s.ctrl.Teardown()
		s.Close()
		metrics.ActiveSessions.Dec()
		s.log.Info("map session closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case fn := <-s.tasks:
			fn()
		case <-s.notify:
			s.ctrl.Apply(s.takePending())
		}
	}
}

// Close stops the loop. Safe to call more than once and from any goroutine.
func (s *MapSession) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the session stops accepting events.
func (s *MapSession) Done() <-chan struct{} { return s.done }

func (s *MapSession) takePending() domain.SnapshotUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.pending
	s.pending = domain.SnapshotUpdate{}
	return u
}

func (s *MapSession) do(fn func()) error {
	select {
	case <-s.done:
		return domain.ErrSessionClosed
	default:
	}
	select {
	case s.tasks <- fn:
		return nil
	case <-s.done:
		return domain.ErrSessionClosed
	}
}
