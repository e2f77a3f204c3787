package xevent

// EventType identifies the kind of a neutral platform event.
type EventType int

const (
	EventUnknown EventType = iota
	EventMousePressed
	EventMouseReleased
	EventMouseMoved
	EventMouseDragged
	EventMouseEntered
	EventMouseExited
	EventMouseWheel
	EventKeyPressed
	EventKeyReleased
	EventTouchPressed
	EventTouchMoved
	EventTouchReleased
)

var eventTypeNames = [...]string{
	EventUnknown:       "unknown",
	EventMousePressed:  "mouse_pressed",
	EventMouseReleased: "mouse_released",
	EventMouseMoved:    "mouse_moved",
	EventMouseDragged:  "mouse_dragged",
	EventMouseEntered:  "mouse_entered",
	EventMouseExited:   "mouse_exited",
	EventMouseWheel:    "mouse_wheel",
	EventKeyPressed:    "key_pressed",
	EventKeyReleased:   "key_released",
	EventTouchPressed:  "touch_pressed",
	EventTouchMoved:    "touch_moved",
	EventTouchReleased: "touch_released",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Flags are modifier and button states attached to a platform event.
type Flags uint32

const (
	FlagShiftDown Flags = 1 << iota
	FlagCapsLockOn
	FlagControlDown
	FlagAltDown
	FlagLeftButton
	FlagMiddleButton
	FlagRightButton
)

// WheelDelta is the offset reported for one wheel notch.
const WheelDelta = 120

// PointF is a location in pixels.
type PointF struct {
	X, Y float64
}

// Platform is a toolkit-facing event produced from exactly one Raw.
type Platform struct {
	Type         EventType
	Flags        Flags
	Time         Timestamp
	Location     PointF
	RootLocation PointF
	Window       Window
	DeviceID     uint16

	KeyCode uint8
	Button  int
	WheelX  int
	WheelY  int
	TouchID uint32
}

// IsMouseEvent reports whether e is a mouse event, wheel included.
func (e *Platform) IsMouseEvent() bool {
	switch e.Type {
	case EventMousePressed, EventMouseReleased, EventMouseMoved, EventMouseDragged,
		EventMouseEntered, EventMouseExited, EventMouseWheel:
		return true
	}
	return false
}

// IsKeyEvent reports whether e is a key event.
func (e *Platform) IsKeyEvent() bool {
	return e.Type == EventKeyPressed || e.Type == EventKeyReleased
}

// IsTouchEvent reports whether e is a touch event.
func (e *Platform) IsTouchEvent() bool {
	return e.Type == EventTouchPressed || e.Type == EventTouchMoved || e.Type == EventTouchReleased
}

// IsLocatedEvent reports whether e carries a meaningful location.
func (e *Platform) IsLocatedEvent() bool {
	return e.IsMouseEvent() || e.IsTouchEvent()
}
