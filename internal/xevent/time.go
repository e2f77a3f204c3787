package xevent

// TimeOf returns the server timestamp embedded in ev, or NoTimestamp when the
// variant carries none. Generic events only yield a time when they are XI2
// device events; hierarchy and device-changed notifications do not count.
func TimeOf(ev Raw) Timestamp {
	switch e := ev.(type) {
	case *KeyEvent:
		return e.Time
	case *ButtonEvent:
		return e.Time
	case *MotionEvent:
		return e.Time
	case *CrossingEvent:
		return e.Time
	case *PropertyEvent:
		return e.Time
	case *SelectionClearEvent:
		return e.Time
	case *SelectionRequestEvent:
		return e.Time
	case *SelectionNotifyEvent:
		return e.Time
	case *DeviceEvent:
		return e.Time
	}
	return NoTimestamp
}
