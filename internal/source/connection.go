package source

import "xevsource/internal/xevent"

// Connection is the part of a display connection the source consumes. It
// keeps a local queue of decoded events that PollEvent pops from and that
// ExtractEvents filters.
type Connection interface {
	// PollEvent pops the next queued event without blocking.
	PollEvent() (xevent.Raw, bool)

	// WaitForEvent blocks until at least one event is queued. It returns
	// ErrConnectionClosed once the connection is gone.
	WaitForEvent() error

	// Sync blocks until the server has processed every request sent so far
	// and queues the events generated before that point.
	Sync() error

	// ExtractEvents removes and returns, in queue order, every queued event
	// for which match returns true.
	ExtractEvents(match func(xevent.Raw) bool) []xevent.Raw

	// CreateMarkerWindow creates a 1x1 override-redirect window on the
	// default root with PropertyChange events selected.
	CreateMarkerWindow() (xevent.Window, error)
	DestroyWindow(w xevent.Window) error
	InternAtom(name string) (xevent.Atom, error)
	ChangeProperty(w xevent.Window, property, typ xevent.Atom, format uint8, data []byte) error

	// UseXkbExtension negotiates the XKB version and reports whether the
	// server supports it.
	UseXkbExtension(major, minor uint16) (bool, error)

	// SetXkbPerClientFlags changes the per-client XKB flags of the core
	// keyboard and returns the flags the server reports as supported.
	SetXkbPerClientFlags(change, value uint32) (uint32, error)

	// SelectDeviceEvents selects XInput2 topology and input events on
	// the root window.
	SelectDeviceEvents() error
}
