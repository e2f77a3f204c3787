package xevent

// Core protocol modifier and button masks.
const (
	stateShift   uint16 = 1 << 0
	stateLock    uint16 = 1 << 1
	stateControl uint16 = 1 << 2
	stateMod1    uint16 = 1 << 3
	stateButton1 uint16 = 1 << 8
	stateButton2 uint16 = 1 << 9
	stateButton3 uint16 = 1 << 10
	stateButtons uint16 = 0x1f << 8
)

// Translator turns a raw event into zero or one platform event.
type Translator interface {
	Translate(ev Raw) *Platform
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ev Raw) *Platform

// Translate calls f(ev).
func (f TranslatorFunc) Translate(ev Raw) *Platform { return f(ev) }

// DefaultTranslator maps core and XI2 input events. Bookkeeping events
// (property, selection, hierarchy) produce nothing.
type DefaultTranslator struct{}

// Translate implements Translator.
func (DefaultTranslator) Translate(ev Raw) *Platform {
	switch e := ev.(type) {
	case *KeyEvent:
		t := EventKeyPressed
		if e.Release {
			t = EventKeyReleased
		}
		return &Platform{
			Type:         t,
			Flags:        flagsFromState(e.State),
			Time:         e.Time,
			Location:     PointF{float64(e.EventX), float64(e.EventY)},
			RootLocation: PointF{float64(e.RootX), float64(e.RootY)},
			Window:       e.Event,
			KeyCode:      e.Detail,
		}
	case *ButtonEvent:
		p := &Platform{
			Flags:        flagsFromState(e.State),
			Time:         e.Time,
			Location:     PointF{float64(e.EventX), float64(e.EventY)},
			RootLocation: PointF{float64(e.RootX), float64(e.RootY)},
			Window:       e.Event,
			Button:       int(e.Detail),
		}
		return buttonEvent(p, e.Release)
	case *MotionEvent:
		t := EventMouseMoved
		if e.State&stateButtons != 0 {
			t = EventMouseDragged
		}
		return &Platform{
			Type:         t,
			Flags:        flagsFromState(e.State),
			Time:         e.Time,
			Location:     PointF{float64(e.EventX), float64(e.EventY)},
			RootLocation: PointF{float64(e.RootX), float64(e.RootY)},
			Window:       e.Event,
		}
	case *CrossingEvent:
		t := EventMouseEntered
		if e.Leave {
			t = EventMouseExited
		}
		return &Platform{
			Type:         t,
			Flags:        flagsFromState(e.State),
			Time:         e.Time,
			Location:     PointF{float64(e.EventX), float64(e.EventY)},
			RootLocation: PointF{float64(e.RootX), float64(e.RootY)},
			Window:       e.Event,
		}
	case *DeviceEvent:
		return translateDeviceEvent(e)
	case *DeviceCrossingEvent:
		t := EventMouseEntered
		if e.Leave {
			t = EventMouseExited
		}
		return &Platform{
			Type:         t,
			Time:         e.Time,
			Location:     PointF{e.EventX, e.EventY},
			RootLocation: PointF{e.RootX, e.RootY},
			Window:       e.Event,
			DeviceID:     e.SourceID,
		}
	}
	return nil
}

func translateDeviceEvent(e *DeviceEvent) *Platform {
	p := &Platform{
		Flags:        flagsFromState(uint16(e.Mods)),
		Time:         e.Time,
		Location:     PointF{e.EventX, e.EventY},
		RootLocation: PointF{e.RootX, e.RootY},
		Window:       e.Event,
		DeviceID:     e.SourceID,
	}
	switch e.Type {
	case XIKeyPress, XIKeyRelease:
		p.Type = EventKeyPressed
		if e.Type == XIKeyRelease {
			p.Type = EventKeyReleased
		}
		p.KeyCode = uint8(e.Detail)
		return p
	case XIButtonPress, XIButtonRelease:
		if e.Flags&XIPointerEmulated != 0 {
			return nil
		}
		p.Button = int(e.Detail)
		return buttonEvent(p, e.Type == XIButtonRelease)
	case XIMotion:
		if e.Flags&XIPointerEmulated != 0 {
			return nil
		}
		p.Type = EventMouseMoved
		return p
	case XITouchBegin:
		p.Type = EventTouchPressed
	case XITouchUpdate:
		p.Type = EventTouchMoved
	case XITouchEnd:
		p.Type = EventTouchReleased
	default:
		return nil
	}
	p.TouchID = e.Detail
	return p
}

// buttonEvent fills in the type of a button event. Buttons 4-7 are wheel
// notches; their releases carry no information and yield nothing.
func buttonEvent(p *Platform, release bool) *Platform {
	switch p.Button {
	case 4, 5, 6, 7:
		if release {
			return nil
		}
		p.Type = EventMouseWheel
		switch p.Button {
		case 4:
			p.WheelY = WheelDelta
		case 5:
			p.WheelY = -WheelDelta
		case 6:
			p.WheelX = WheelDelta
		case 7:
			p.WheelX = -WheelDelta
		}
		return p
	}
	p.Type = EventMousePressed
	if release {
		p.Type = EventMouseReleased
	}
	switch p.Button {
	case 1:
		p.Flags |= FlagLeftButton
	case 2:
		p.Flags |= FlagMiddleButton
	case 3:
		p.Flags |= FlagRightButton
	}
	return p
}

func flagsFromState(state uint16) Flags {
	var f Flags
	if state&stateShift != 0 {
		f |= FlagShiftDown
	}
	if state&stateLock != 0 {
		f |= FlagCapsLockOn
	}
	if state&stateControl != 0 {
		f |= FlagControlDown
	}
	if state&stateMod1 != 0 {
		f |= FlagAltDown
	}
	if state&stateButton1 != 0 {
		f |= FlagLeftButton
	}
	if state&stateButton2 != 0 {
		f |= FlagMiddleButton
	}
	if state&stateButton3 != 0 {
		f |= FlagRightButton
	}
	return f
}
