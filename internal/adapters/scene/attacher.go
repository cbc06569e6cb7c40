package scene

import (
	"sync"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// Default layout size for hosts that report no size yet.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Attacher creates scene canvases that stream to one sink.
type Attacher struct {
	Sink          CommandSink
	DefaultWidth  int
	DefaultHeight int
}

var _ ports.CanvasAttacher = (*Attacher)(nil)

// NewAttacher creates an Attacher with the default layout size.
func NewAttacher(sink CommandSink) *Attacher {
	return &Attacher{Sink: sink, DefaultWidth: DefaultWidth, DefaultHeight: DefaultHeight}
}

// Attach implements ports.CanvasAttacher.
func (a *Attacher) Attach(host ports.HostSurface) (ports.GeoCanvas, error) {
	w, h := a.DefaultWidth, a.DefaultHeight
	if host != nil {
		if hw, hh := host.Size(); hw > 0 && hh > 0 {
			w, h = hw, hh
		}
	}
	if w <= 0 || h <= 0 {
		w, h = DefaultWidth, DefaultHeight
	}
	return NewCanvas(host, w, h, a.Sink), nil
}

// Recorder is a CommandSink that keeps every command. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	cmds []domain.CanvasCommand
}

// Send implements CommandSink.
func (r *Recorder) Send(cmd domain.CanvasCommand) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
}

// Commands returns a copy of everything received so far.
func (r *Recorder) Commands() []domain.CanvasCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CanvasCommand(nil), r.cmds...)
}

// Ops returns the op of every command received so far.
func (r *Recorder) Ops() []domain.CanvasOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]domain.CanvasOp, len(r.cmds))
	for i, c := range r.cmds {
		ops[i] = c.Op
	}
	return ops
}
