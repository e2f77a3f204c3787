package x11

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"xevsource/internal/xevent"
)

// decode converts an xgb event into the source's raw representation.
// xiOpcode is the XInputExtension major opcode, or 0 when XI2 is absent.
func decode(ev xgb.Event, xiOpcode uint8) (xevent.Raw, error) {
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		return keyEvent(e, false), nil
	case xproto.KeyReleaseEvent:
		return keyEvent(xproto.KeyPressEvent(e), true), nil
	case xproto.ButtonPressEvent:
		return buttonEvent(e, false), nil
	case xproto.ButtonReleaseEvent:
		return buttonEvent(xproto.ButtonPressEvent(e), true), nil
	case xproto.MotionNotifyEvent:
		return &xevent.MotionEvent{
			Header:     xevent.Header{Seq: e.Sequence},
			Detail:     e.Detail,
			Time:       xevent.Timestamp(e.Time),
			Root:       xevent.Window(e.Root),
			Event:      xevent.Window(e.Event),
			Child:      xevent.Window(e.Child),
			RootX:      e.RootX,
			RootY:      e.RootY,
			EventX:     e.EventX,
			EventY:     e.EventY,
			State:      e.State,
			SameScreen: e.SameScreen,
		}, nil
	case xproto.EnterNotifyEvent:
		return crossingEvent(e, false), nil
	case xproto.LeaveNotifyEvent:
		return crossingEvent(xproto.EnterNotifyEvent(e), true), nil
	case xproto.PropertyNotifyEvent:
		return &xevent.PropertyEvent{
			Header:  xevent.Header{Seq: e.Sequence},
			Window:  xevent.Window(e.Window),
			Atom:    xevent.Atom(e.Atom),
			Time:    xevent.Timestamp(e.Time),
			Deleted: e.State == xproto.PropertyDelete,
		}, nil
	case xproto.SelectionClearEvent:
		return &xevent.SelectionClearEvent{
			Header:    xevent.Header{Seq: e.Sequence},
			Time:      xevent.Timestamp(e.Time),
			Owner:     xevent.Window(e.Owner),
			Selection: xevent.Atom(e.Selection),
		}, nil
	case xproto.SelectionRequestEvent:
		return &xevent.SelectionRequestEvent{
			Header:    xevent.Header{Seq: e.Sequence},
			Time:      xevent.Timestamp(e.Time),
			Owner:     xevent.Window(e.Owner),
			Requestor: xevent.Window(e.Requestor),
			Selection: xevent.Atom(e.Selection),
			Target:    xevent.Atom(e.Target),
			Property:  xevent.Atom(e.Property),
		}, nil
	case xproto.SelectionNotifyEvent:
		return &xevent.SelectionNotifyEvent{
			Header:    xevent.Header{Seq: e.Sequence},
			Time:      xevent.Timestamp(e.Time),
			Requestor: xevent.Window(e.Requestor),
			Selection: xevent.Atom(e.Selection),
			Target:    xevent.Atom(e.Target),
			Property:  xevent.Atom(e.Property),
		}, nil
	case genericEvent:
		return xevent.DecodeGeneric(e.data, xiOpcode)
	}

	// Bytes leaves the sequence field zeroed.
	var seq uint16
	if s, ok := ev.(interface{ SequenceId() uint16 }); ok {
		seq = s.SequenceId()
	}
	data := ev.Bytes()
	return &xevent.UnknownEvent{
		Header: xevent.Header{Seq: seq},
		Code:   data[0],
		Data:   data,
	}, nil
}

func keyEvent(e xproto.KeyPressEvent, release bool) *xevent.KeyEvent {
	return &xevent.KeyEvent{
		Header:     xevent.Header{Seq: e.Sequence},
		Release:    release,
		Detail:     uint8(e.Detail),
		Time:       xevent.Timestamp(e.Time),
		Root:       xevent.Window(e.Root),
		Event:      xevent.Window(e.Event),
		Child:      xevent.Window(e.Child),
		RootX:      e.RootX,
		RootY:      e.RootY,
		EventX:     e.EventX,
		EventY:     e.EventY,
		State:      e.State,
		SameScreen: e.SameScreen,
	}
}

func buttonEvent(e xproto.ButtonPressEvent, release bool) *xevent.ButtonEvent {
	return &xevent.ButtonEvent{
		Header:     xevent.Header{Seq: e.Sequence},
		Release:    release,
		Detail:     uint8(e.Detail),
		Time:       xevent.Timestamp(e.Time),
		Root:       xevent.Window(e.Root),
		Event:      xevent.Window(e.Event),
		Child:      xevent.Window(e.Child),
		RootX:      e.RootX,
		RootY:      e.RootY,
		EventX:     e.EventX,
		EventY:     e.EventY,
		State:      e.State,
		SameScreen: e.SameScreen,
	}
}

func crossingEvent(e xproto.EnterNotifyEvent, leave bool) *xevent.CrossingEvent {
	return &xevent.CrossingEvent{
		Header:          xevent.Header{Seq: e.Sequence},
		Leave:           leave,
		Detail:          xevent.CrossingDetail(e.Detail),
		Time:            xevent.Timestamp(e.Time),
		Root:            xevent.Window(e.Root),
		Event:           xevent.Window(e.Event),
		Child:           xevent.Window(e.Child),
		RootX:           e.RootX,
		RootY:           e.RootY,
		EventX:          e.EventX,
		EventY:          e.EventY,
		State:           e.State,
		Mode:            xevent.CrossingMode(e.Mode),
		SameScreenFocus: e.SameScreenFocus,
	}
}
