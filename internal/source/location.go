package source

import "xevsource/internal/xevent"

// RootCursorLocation returns the pointer position, in root window
// coordinates, implied by the event being dispatched. XI2 events only count
// when the device manager would process them.
func (s *EventSource) RootCursorLocation() (xevent.PointF, bool) {
	switch e := s.current.(type) {
	case *xevent.ButtonEvent:
		return xevent.PointF{X: float64(e.RootX), Y: float64(e.RootY)}, true
	case *xevent.MotionEvent:
		return xevent.PointF{X: float64(e.RootX), Y: float64(e.RootY)}, true
	case *xevent.CrossingEvent:
		return xevent.PointF{X: float64(e.RootX), Y: float64(e.RootY)}, true
	case *xevent.DeviceEvent:
		switch e.Type {
		case xevent.XIButtonPress, xevent.XIButtonRelease, xevent.XIMotion:
			if s.devices.ShouldProcessDeviceEvent(e) {
				return xevent.PointF{X: e.RootX, Y: e.RootY}, true
			}
		}
	case *xevent.DeviceCrossingEvent:
		if s.devices.ShouldProcessCrossingEvent(e) {
			return xevent.PointF{X: e.RootX, Y: e.RootY}, true
		}
	}
	return xevent.PointF{}, false
}

// CurrentEvent returns the raw event being dispatched, or nil.
func (s *EventSource) CurrentEvent() xevent.Raw {
	return s.current
}
