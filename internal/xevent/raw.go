// Package xevent defines the raw X11 event model consumed by the event source
// and the translation of raw events into neutral platform events.
//
// Raw events form a closed set of variants. Consumers are expected to match on
// them with a type switch:
//
//	switch ev := raw.(type) {
//	case *xevent.KeyEvent:
//	case *xevent.PropertyEvent:
//	...
//	}
package xevent

import "fmt"

// Timestamp is a server clock value in milliseconds. Values are opaque and
// only compared for equality with the reserved sentinels.
type Timestamp uint32

const (
	// CurrentTime is the protocol's reserved "current time" value.
	CurrentTime Timestamp = 0

	// NoTimestamp is returned when no server time could be obtained. It
	// shares its value with CurrentTime, as it does on the wire.
	NoTimestamp = CurrentTime
)

// Window is an X resource id for a window.
type Window uint32

// Atom is an interned X atom.
type Atom uint32

// None is the null resource id.
const None = 0

// AtomString is the predefined STRING atom.
const AtomString Atom = 31

// Opcode is the core protocol event code.
type Opcode uint8

// Core event codes used by the source.
const (
	OpKeyPress         Opcode = 2
	OpKeyRelease       Opcode = 3
	OpButtonPress      Opcode = 4
	OpButtonRelease    Opcode = 5
	OpMotionNotify     Opcode = 6
	OpEnterNotify      Opcode = 7
	OpLeaveNotify      Opcode = 8
	OpPropertyNotify   Opcode = 28
	OpSelectionClear   Opcode = 29
	OpSelectionRequest Opcode = 30
	OpSelectionNotify  Opcode = 31
	OpGeGeneric        Opcode = 35
)

// Raw is a decoded server event. The set of implementations is closed.
type Raw interface {
	// Opcode returns the core event code the variant was decoded from.
	Opcode() Opcode
	// Sequence returns the sequence number of the last request the server
	// processed before sending the event.
	Sequence() uint16

	raw()
}

// Header carries the fields shared by every raw event. Embedding it is what
// makes a type a Raw.
type Header struct {
	Seq uint16
}

func (h Header) Sequence() uint16 { return h.Seq }
func (Header) raw()               {}

// KeyEvent is a core KeyPress or KeyRelease.
type KeyEvent struct {
	Header
	Release    bool
	Detail     uint8 // keycode
	Time       Timestamp
	Root       Window
	Event      Window
	Child      Window
	RootX      int16
	RootY      int16
	EventX     int16
	EventY     int16
	State      uint16
	SameScreen bool
}

func (e *KeyEvent) Opcode() Opcode {
	if e.Release {
		return OpKeyRelease
	}
	return OpKeyPress
}

// ButtonEvent is a core ButtonPress or ButtonRelease.
type ButtonEvent struct {
	Header
	Release    bool
	Detail     uint8 // button
	Time       Timestamp
	Root       Window
	Event      Window
	Child      Window
	RootX      int16
	RootY      int16
	EventX     int16
	EventY     int16
	State      uint16
	SameScreen bool
}

func (e *ButtonEvent) Opcode() Opcode {
	if e.Release {
		return OpButtonRelease
	}
	return OpButtonPress
}

// MotionEvent is a core MotionNotify.
type MotionEvent struct {
	Header
	Detail     uint8
	Time       Timestamp
	Root       Window
	Event      Window
	Child      Window
	RootX      int16
	RootY      int16
	EventX     int16
	EventY     int16
	State      uint16
	SameScreen bool
}

func (*MotionEvent) Opcode() Opcode { return OpMotionNotify }

// CrossingDetail is the detail field of a crossing event.
type CrossingDetail uint8

const (
	NotifyAncestor         CrossingDetail = 0
	NotifyVirtual          CrossingDetail = 1
	NotifyInferior         CrossingDetail = 2
	NotifyNonlinear        CrossingDetail = 3
	NotifyNonlinearVirtual CrossingDetail = 4
)

// CrossingMode is the mode field of a crossing event.
type CrossingMode uint8

const (
	NotifyNormal       CrossingMode = 0
	NotifyGrab         CrossingMode = 1
	NotifyUngrab       CrossingMode = 2
	NotifyWhileGrabbed CrossingMode = 3
)

// CrossingEvent is a core EnterNotify or LeaveNotify.
type CrossingEvent struct {
	Header
	Leave           bool
	Detail          CrossingDetail
	Time            Timestamp
	Root            Window
	Event           Window
	Child           Window
	RootX           int16
	RootY           int16
	EventX          int16
	EventY          int16
	State           uint16
	Mode            CrossingMode
	SameScreenFocus uint8
}

func (e *CrossingEvent) Opcode() Opcode {
	if e.Leave {
		return OpLeaveNotify
	}
	return OpEnterNotify
}

// PropertyEvent is a PropertyNotify.
type PropertyEvent struct {
	Header
	Window  Window
	Atom    Atom
	Time    Timestamp
	Deleted bool
}

func (*PropertyEvent) Opcode() Opcode { return OpPropertyNotify }

// SelectionClearEvent is a SelectionClear.
type SelectionClearEvent struct {
	Header
	Time      Timestamp
	Owner     Window
	Selection Atom
}

func (*SelectionClearEvent) Opcode() Opcode { return OpSelectionClear }

// SelectionRequestEvent is a SelectionRequest.
type SelectionRequestEvent struct {
	Header
	Time      Timestamp
	Owner     Window
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
}

func (*SelectionRequestEvent) Opcode() Opcode { return OpSelectionRequest }

// SelectionNotifyEvent is a SelectionNotify.
type SelectionNotifyEvent struct {
	Header
	Time      Timestamp
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
}

func (*SelectionNotifyEvent) Opcode() Opcode { return OpSelectionNotify }

// UnknownEvent carries a core event the decoder does not model.
type UnknownEvent struct {
	Header
	Code uint8
	Data []byte
}

func (e *UnknownEvent) Opcode() Opcode { return Opcode(e.Code & 0x7f) }

// String implements fmt.Stringer for log output.
func (e *UnknownEvent) String() string {
	return fmt.Sprintf("UnknownEvent{code=%d len=%d}", e.Code, len(e.Data))
}

// Name returns a short, stable name for the variant of ev.
func Name(ev Raw) string {
	switch e := ev.(type) {
	case *KeyEvent:
		if e.Release {
			return "KeyRelease"
		}
		return "KeyPress"
	case *ButtonEvent:
		if e.Release {
			return "ButtonRelease"
		}
		return "ButtonPress"
	case *MotionEvent:
		return "MotionNotify"
	case *CrossingEvent:
		if e.Leave {
			return "LeaveNotify"
		}
		return "EnterNotify"
	case *PropertyEvent:
		return "PropertyNotify"
	case *SelectionClearEvent:
		return "SelectionClear"
	case *SelectionRequestEvent:
		return "SelectionRequest"
	case *SelectionNotifyEvent:
		return "SelectionNotify"
	case *DeviceEvent:
		return "XI" + e.Type.String()
	case *DeviceCrossingEvent:
		if e.Leave {
			return "XILeave"
		}
		return "XIEnter"
	case *HierarchyEvent:
		return "XIHierarchyChanged"
	case *DeviceChangedEvent:
		return "XIDeviceChanged"
	case *GenericEvent:
		return fmt.Sprintf("GenericEvent(%d:%d)", e.Extension, e.EvType)
	case *UnknownEvent:
		return fmt.Sprintf("Unknown(%d)", e.Code)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", ev)
	}
}

// TargetWindow returns the window an event is reported relative to, or None.
func TargetWindow(ev Raw) Window {
	switch e := ev.(type) {
	case *KeyEvent:
		return e.Event
	case *ButtonEvent:
		return e.Event
	case *MotionEvent:
		return e.Event
	case *CrossingEvent:
		return e.Event
	case *PropertyEvent:
		return e.Window
	case *SelectionClearEvent:
		return e.Owner
	case *SelectionRequestEvent:
		return e.Owner
	case *SelectionNotifyEvent:
		return e.Requestor
	case *DeviceEvent:
		return e.Event
	case *DeviceCrossingEvent:
		return e.Event
	default:
		return None
	}
}
