package x11

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Wire framing constants.
const (
	frameSize       = 32
	setupHeadSize   = 8
	setupReqSize    = 12
	responseReply   = 1
	stampOffset     = 28
	geGenericOpcode = xproto.GeGeneric
)

// frameConn sits between xgb and the socket. xgb reads every event as a
// fixed 32-byte frame, which breaks on GenericEvents that carry a length.
// frameConn consumes the full GenericEvent itself, queues the payload, and
// hands xgb only the head with the connection id stamped into its tail so
// the event constructor can find the payload again.
//
// It also completes the setup request with an authorization cookie when
// xgb could not find one, since xgb only resolves Xauthority for
// connections it dials itself.
type frameConn struct {
	net.Conn
	id   uint32
	auth *Authority

	wroteSetup bool
	readSetup  bool
	pending    []byte

	mu    sync.Mutex
	queue [][]byte
}

var frames = struct {
	sync.Mutex
	next uint32
	byID map[uint32]*frameConn
}{byID: make(map[uint32]*frameConn)}

func init() {
	xgb.NewEventFuncs[int(geGenericOpcode)] = newGenericEvent
}

func newFrameConn(c net.Conn, auth *Authority) *frameConn {
	frames.Lock()
	defer frames.Unlock()
	frames.next++
	f := &frameConn{Conn: c, id: frames.next, auth: auth}
	frames.byID[f.id] = f
	return f
}

func lookupFrame(id uint32) *frameConn {
	frames.Lock()
	defer frames.Unlock()
	return frames.byID[id]
}

func (f *frameConn) Close() error {
	frames.Lock()
	delete(frames.byID, f.id)
	frames.Unlock()
	return f.Conn.Close()
}

func (f *frameConn) Write(p []byte) (int, error) {
	if f.wroteSetup {
		return f.Conn.Write(p)
	}
	f.wroteSetup = true
	if f.auth == nil || len(p) < setupReqSize || xgb.Get16(p[6:]) != 0 || xgb.Get16(p[8:]) != 0 {
		return f.Conn.Write(p)
	}
	if _, err := f.Conn.Write(setupRequest(p, f.auth)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// setupRequest rebuilds an unauthenticated setup request with a cookie.
func setupRequest(p []byte, a *Authority) []byte {
	buf := make([]byte, setupReqSize+xgb.Pad(len(a.Name))+xgb.Pad(len(a.Data)))
	copy(buf, p[:setupReqSize])
	xgb.Put16(buf[6:], uint16(len(a.Name)))
	xgb.Put16(buf[8:], uint16(len(a.Data)))
	copy(buf[setupReqSize:], a.Name)
	copy(buf[setupReqSize+xgb.Pad(len(a.Name)):], a.Data)
	return buf
}

func (f *frameConn) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		if err := f.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *frameConn) fill() error {
	if !f.readSetup {
		head := make([]byte, setupHeadSize)
		if _, err := io.ReadFull(f.Conn, head); err != nil {
			return err
		}
		body := make([]byte, int(xgb.Get16(head[6:]))*4)
		if _, err := io.ReadFull(f.Conn, body); err != nil {
			return err
		}
		f.readSetup = true
		f.pending = append(head, body...)
		return nil
	}

	buf := make([]byte, frameSize)
	if _, err := io.ReadFull(f.Conn, buf); err != nil {
		return err
	}
	switch {
	case buf[0] == responseReply:
		full, err := f.readBody(buf)
		if err != nil {
			return fmt.Errorf("read reply body: %w", err)
		}
		f.pending = full
	case buf[0]&0x7f == geGenericOpcode:
		full, err := f.readBody(buf)
		if err != nil {
			return fmt.Errorf("read generic event body: %w", err)
		}
		f.push(full)
		head := make([]byte, frameSize)
		copy(head, buf)
		xgb.Put32(head[stampOffset:], f.id)
		f.pending = head
	default:
		f.pending = buf
	}
	return nil
}

// readBody reads the length-prefixed tail that follows a 32-byte head.
func (f *frameConn) readBody(head []byte) ([]byte, error) {
	extra := int(xgb.Get32(head[4:])) * 4
	if extra == 0 {
		return head, nil
	}
	full := make([]byte, frameSize+extra)
	copy(full, head)
	if _, err := io.ReadFull(f.Conn, full[frameSize:]); err != nil {
		return nil, err
	}
	return full, nil
}

func (f *frameConn) push(full []byte) {
	f.mu.Lock()
	f.queue = append(f.queue, full)
	f.mu.Unlock()
}

func (f *frameConn) pop() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil
	}
	full := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	return full
}

// genericEvent is a complete GenericEvent payload as an xgb.Event.
type genericEvent struct {
	data []byte
}

func (e genericEvent) Bytes() []byte { return e.data }

func (e genericEvent) String() string {
	return fmt.Sprintf("GenericEvent{extension=%d len=%d}", e.data[1], len(e.data))
}

func newGenericEvent(buf []byte) xgb.Event {
	if f := lookupFrame(xgb.Get32(buf[stampOffset:])); f != nil {
		if full := f.pop(); full != nil {
			return genericEvent{data: full}
		}
	}
	return xproto.GeGenericEventNew(buf)
}
