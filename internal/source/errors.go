package source

import "errors"

var (
	// ErrAlreadyRegistered is returned when a dispatcher or observer is
	// added twice.
	ErrAlreadyRegistered = errors.New("source: already registered")

	// ErrNotRegistered is returned when removing something that was never
	// added.
	ErrNotRegistered = errors.New("source: not registered")

	// ErrOverrideActive is returned when an override is installed while
	// another guard is still live.
	ErrOverrideActive = errors.New("source: override dispatcher already installed")

	// ErrNilDispatcher is returned for nil dispatchers and observers.
	ErrNilDispatcher = errors.New("source: nil dispatcher")

	// ErrNotComparable is returned for dispatchers and observers whose
	// dynamic type cannot be compared, such as value receivers holding a
	// slice or map.
	ErrNotComparable = errors.New("source: dispatcher type is not comparable")

	// ErrDispatchPanic wraps a panic recovered while dispatching an event.
	ErrDispatchPanic = errors.New("source: dispatch panicked")

	// ErrConnectionClosed is returned by a Connection once the display
	// connection has gone away.
	ErrConnectionClosed = errors.New("source: connection closed")
)
