package usecases

// RemoteSurface is a host surface whose size is reported by a remote view, such as a
// browser over a WebSocket. Like the controller it is confined to one goroutine.
type RemoteSurface struct {
	width, height int

	nextID  int
	window  map[int]func()
	element map[int]func()
}

// NewRemoteSurface creates a surface with an initial size.
func NewRemoteSurface(width, height int) *RemoteSurface {
	return &RemoteSurface{
		width:   width,
		height:  height,
		window:  make(map[int]func()),
		element: make(map[int]func()),
	}
}

// Size returns the last reported size.
func (s *RemoteSurface) Size() (int, int) { return s.width, s.height }

// OnWindowResize registers fn for window-level resizes.
func (s *RemoteSurface) OnWindowResize(fn func()) func() {
	return s.listen(s.window, fn)
}

// OnSizeChange registers fn for host-element size changes.
func (s *RemoteSurface) OnSizeChange(fn func()) func() {
	return s.listen(s.element, fn)
}

// Resize records a new size and notifies the matching listeners. Element listeners only
// fire when the size actually changed; window listeners fire on every window event.
func (s *RemoteSurface) Resize(width, height int, window bool) {
	if width <= 0 || height <= 0 {
		width, height = s.width, s.height
	}
	changed := width != s.width || height != s.height
	s.width, s.height = width, height
	if window {
		s.notify(s.window)
	}
	if changed {
		s.notify(s.element)
	}
}

// Listeners returns the number of attached listeners.
func (s *RemoteSurface) Listeners() int { return len(s.window) + len(s.element) }

func (s *RemoteSurface) listen(set map[int]func(), fn func()) func() {
	id := s.nextID
	s.nextID++
	set[id] = fn
	return func() { delete(set, id) }
}

func (s *RemoteSurface) notify(set map[int]func()) {
	for _, fn := range set {
		fn()
	}
}
