package usecases

import (
	"github.com/samirrijal/livemap/internal/core/ports"
)

// ResizeWatcher turns window and host-element resize signals into at most one onChange
// call per rendering frame.
type ResizeWatcher struct {
	frames ports.FrameScheduler

	onChange    func()
	unsubscribe []func()
	pending     bool
	cancelFrame func()
}

// NewResizeWatcher creates a watcher that schedules on frames.
func NewResizeWatcher(frames ports.FrameScheduler) *ResizeWatcher {
	return &ResizeWatcher{frames: frames}
}

// Watch starts observing host. Any previous watch is detached first.
func (w *ResizeWatcher) Watch(host ports.HostSurface, onChange func()) {
	w.Unwatch()
	w.onChange = onChange
	w.unsubscribe = append(w.unsubscribe,
		host.OnWindowResize(w.signal),
		host.OnSizeChange(w.signal),
	)
}

// Unwatch detaches every listener and drops a pending frame. Safe without a prior Watch.
func (w *ResizeWatcher) Unwatch() {
	for _, unsub := range w.unsubscribe {
		if unsub != nil {
			unsub()
		}
	}
	w.unsubscribe = nil
	if w.cancelFrame != nil {
		w.cancelFrame()
		w.cancelFrame = nil
	}
	w.pending = false
	w.onChange = nil
}

// Watching reports whether listeners are attached.
func (w *ResizeWatcher) Watching() bool {
	return w.onChange != nil
}

func (w *ResizeWatcher) signal() {
	if w.pending || w.onChange == nil {
		return
	}
	w.pending = true
	w.cancelFrame = w.frames.RequestFrame(w.fire)
}

func (w *ResizeWatcher) fire() {
	w.pending = false
	w.cancelFrame = nil
	if w.onChange != nil {
		w.onChange()
	}
}
