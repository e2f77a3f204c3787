// Package x11 connects the event source to an X server through jezek/xgb.
// It keeps the local event queue the source pumps from, completes the
// framing xgb lacks for XInput2 generic events, and issues the handful of
// raw XKB and XInput2 requests the source needs at startup.
package x11

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"xevsource/internal/logging"
	"xevsource/internal/source"
	"xevsource/internal/xevent"
)

// DefaultDialTimeout bounds the socket connect.
const DefaultDialTimeout = 5 * time.Second

// Options configures Dial.
type Options struct {
	Display     string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Conn is a display connection. It satisfies source.Connection.
type Conn struct {
	x       *xgb.Conn
	frame   *frameConn
	display Display
	root    xproto.Window
	logger  *slog.Logger

	mu    sync.Mutex
	queue []xevent.Raw

	extMu    sync.Mutex
	exts     map[string]extension
	xiOpcode atomic.Uint32

	closed atomic.Bool
	lost   atomic.Bool
}

var _ source.Connection = (*Conn)(nil)

var routeXgbLog sync.Once

// Dial connects to the display named in opts, or $DISPLAY.
func Dial(opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default().WithComponent("x11").Logger
	}
	routeXgbLog.Do(func() {
		xgb.Logger = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	})

	d, err := ParseDisplay(opts.Display)
	if err != nil {
		return nil, err
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	nc, err := d.Dial(timeout)
	if err != nil {
		return nil, err
	}

	var auth *Authority
	if a, err := LookupAuthority(d); err != nil {
		logger.Debug("connecting without authority", "display", d.Name, "error", err)
	} else {
		auth = &a
	}

	frame := newFrameConn(nc, auth)
	x, err := xgb.NewConnNet(frame)
	if err != nil {
		frame.Close()
		return nil, fmt.Errorf("x11 setup on %s: %w", d.Name, err)
	}

	setup := xproto.Setup(x)
	screen := setup.DefaultScreen(x)
	if d.Screen < len(setup.Roots) {
		screen = &setup.Roots[d.Screen]
	}

	logger.Info("connected to display", "display", d.Name, "screen", d.Screen, "root", screen.Root)
	return &Conn{
		x:       x,
		frame:   frame,
		display: d,
		root:    screen.Root,
		logger:  logger,
		exts:    make(map[string]extension),
	}, nil
}

// Display returns the parsed display the connection was opened on.
func (c *Conn) Display() Display { return c.display }

// Root returns the root window of the connection's screen.
func (c *Conn) Root() xevent.Window { return xevent.Window(c.root) }

// Close shuts the connection down. A blocked WaitForEvent returns
// source.ErrConnectionClosed.
func (c *Conn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.x.Close()
	}
	return nil
}

// Closed reports whether Close has been called or the connection failed.
func (c *Conn) Closed() bool { return c.closed.Load() || c.lost.Load() }

// fetch reads one event from xgb. Without block it returns nil when
// nothing is buffered. X errors for unchecked requests are logged and
// skipped.
func (c *Conn) fetch(block bool) (xevent.Raw, error) {
	for {
		var (
			ev   xgb.Event
			xerr xgb.Error
		)
		if block {
			ev, xerr = c.x.WaitForEvent()
		} else {
			ev, xerr = c.x.PollForEvent()
		}
		switch {
		case xerr != nil:
			c.logger.Debug("x protocol error", "error", xerr, "sequence", xerr.SequenceId())
			continue
		case ev == nil && block:
			c.lost.Store(true)
			return nil, source.ErrConnectionClosed
		case ev == nil:
			return nil, nil
		}

		raw, err := decode(ev, uint8(c.xiOpcode.Load()))
		if err != nil {
			c.logger.Debug("dropping undecodable event", "event", ev.String(), "error", err)
			continue
		}
		return raw, nil
	}
}

func (c *Conn) enqueue(raw xevent.Raw) {
	c.mu.Lock()
	c.queue = append(c.queue, raw)
	c.mu.Unlock()
}

func (c *Conn) pop() (xevent.Raw, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	raw := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return raw, true
}

func (c *Conn) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// PollEvent pops the next event, pulling from the socket buffer when the
// local queue is empty.
func (c *Conn) PollEvent() (xevent.Raw, bool) {
	if raw, ok := c.pop(); ok {
		return raw, true
	}
	raw, _ := c.fetch(false)
	return raw, raw != nil
}

// WaitForEvent blocks until the local queue holds an event.
func (c *Conn) WaitForEvent() error {
	if c.queued() > 0 {
		return nil
	}
	if c.closed.Load() {
		return source.ErrConnectionClosed
	}
	raw, err := c.fetch(true)
	if err != nil {
		return err
	}
	c.enqueue(raw)
	return nil
}

// Sync round-trips GetInputFocus. Replies are delivered after every event
// the server sent before them, so once the reply is in, draining xgb's
// buffer captures everything generated up to this point.
func (c *Conn) Sync() error {
	if _, err := xproto.GetInputFocus(c.x).Reply(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	for {
		raw, _ := c.fetch(false)
		if raw == nil {
			return nil
		}
		c.enqueue(raw)
	}
}

// ExtractEvents removes matching events from the local queue.
func (c *Conn) ExtractEvents(match func(xevent.Raw) bool) []xevent.Raw {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []xevent.Raw
	kept := c.queue[:0]
	for _, raw := range c.queue {
		if match(raw) {
			out = append(out, raw)
		} else {
			kept = append(kept, raw)
		}
	}
	clear(c.queue[len(kept):])
	c.queue = kept
	return out
}

// CreateMarkerWindow creates an unmapped 1x1 window that only reports
// property changes.
func (c *Conn) CreateMarkerWindow() (xevent.Window, error) {
	wid, err := xproto.NewWindowId(c.x)
	if err != nil {
		return 0, fmt.Errorf("allocate window id: %w", err)
	}
	err = xproto.CreateWindowChecked(c.x, 0, wid, c.root,
		-100, -100, 1, 1, 0,
		xproto.WindowClassInputOutput, 0,
		xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{1, xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		return 0, fmt.Errorf("create marker window: %w", err)
	}
	return xevent.Window(wid), nil
}

func (c *Conn) DestroyWindow(w xevent.Window) error {
	if err := xproto.DestroyWindowChecked(c.x, xproto.Window(w)).Check(); err != nil {
		return fmt.Errorf("destroy window %#x: %w", uint32(w), err)
	}
	return nil
}

func (c *Conn) InternAtom(name string) (xevent.Atom, error) {
	reply, err := xproto.InternAtom(c.x, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern atom %s: %w", name, err)
	}
	return xevent.Atom(reply.Atom), nil
}

// ChangeProperty replaces a property without waiting for the server.
// Failures surface as logged protocol errors.
func (c *Conn) ChangeProperty(w xevent.Window, property, typ xevent.Atom, format uint8, data []byte) error {
	switch format {
	case 8, 16, 32:
	default:
		return fmt.Errorf("change property: bad format %d", format)
	}
	unit := int(format / 8)
	if len(data)%unit != 0 {
		return fmt.Errorf("change property: %d bytes is not a multiple of %d", len(data), unit)
	}
	xproto.ChangeProperty(c.x, xproto.PropModeReplace, xproto.Window(w),
		xproto.Atom(property), xproto.Atom(typ), format,
		uint32(len(data)/unit), data)
	return nil
}

// QueryPointer reports the pointer position on the root window.
func (c *Conn) QueryPointer() (xevent.PointF, error) {
	reply, err := xproto.QueryPointer(c.x, c.root).Reply()
	if err != nil {
		return xevent.PointF{}, fmt.Errorf("query pointer: %w", err)
	}
	return xevent.PointF{X: float64(reply.RootX), Y: float64(reply.RootY)}, nil
}

// ErrExtensionMissing is returned when the server lacks an extension.
var ErrExtensionMissing = errors.New("x11: extension not present")
