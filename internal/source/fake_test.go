package source

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"xevsource/internal/metrics"
	"xevsource/internal/xevent"
)

// fakeConn is an in-memory Connection. Property changes queue a
// PropertyNotify that only becomes visible after Sync, as on a real server.
type fakeConn struct {
	queue   []xevent.Raw
	pending []xevent.Raw

	serverTime xevent.Timestamp
	dropNotify bool
	nextWindow xevent.Window
	atoms      map[string]xevent.Atom

	createErr error
	atomErr   error
	changeErr error
	syncErr   error

	xkbSupported bool
	xkbErr       error
	xkbFlags     uint32
	selectErr    error

	syncs     int
	changes   int
	markers   int
	destroyed []xevent.Window
	xkbCalls  int
	flagCalls int
	selects   int
}

func newFakeConn(events ...xevent.Raw) *fakeConn {
	return &fakeConn{
		queue:        events,
		serverTime:   5000,
		nextWindow:   0x200001,
		atoms:        map[string]xevent.Atom{},
		xkbSupported: true,
		xkbFlags:     XkbPerClientDetectableAutoRepeat,
	}
}

func (c *fakeConn) push(events ...xevent.Raw) { c.queue = append(c.queue, events...) }

func (c *fakeConn) PollEvent() (xevent.Raw, bool) {
	if len(c.queue) == 0 {
		return nil, false
	}
	ev := c.queue[0]
	c.queue = c.queue[1:]
	return ev, true
}

func (c *fakeConn) WaitForEvent() error {
	if len(c.queue) > 0 {
		return nil
	}
	return ErrConnectionClosed
}

func (c *fakeConn) Sync() error {
	c.syncs++
	if c.syncErr != nil {
		return c.syncErr
	}
	c.queue = append(c.queue, c.pending...)
	c.pending = nil
	return nil
}

func (c *fakeConn) ExtractEvents(match func(xevent.Raw) bool) []xevent.Raw {
	var out, keep []xevent.Raw
	for _, ev := range c.queue {
		if match(ev) {
			out = append(out, ev)
		} else {
			keep = append(keep, ev)
		}
	}
	c.queue = keep
	return out
}

func (c *fakeConn) CreateMarkerWindow() (xevent.Window, error) {
	if c.createErr != nil {
		return xevent.None, c.createErr
	}
	c.markers++
	w := c.nextWindow
	c.nextWindow++
	return w, nil
}

func (c *fakeConn) DestroyWindow(w xevent.Window) error {
	c.destroyed = append(c.destroyed, w)
	return nil
}

func (c *fakeConn) InternAtom(name string) (xevent.Atom, error) {
	if c.atomErr != nil {
		return 0, c.atomErr
	}
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	a := xevent.Atom(300 + len(c.atoms))
	c.atoms[name] = a
	return a, nil
}

func (c *fakeConn) ChangeProperty(w xevent.Window, property, typ xevent.Atom, format uint8, data []byte) error {
	c.changes++
	if c.changeErr != nil {
		return c.changeErr
	}
	if typ != xevent.AtomString || format != 8 || len(data) != 1 {
		return fmt.Errorf("unexpected property write type=%d format=%d len=%d", typ, format, len(data))
	}
	if !c.dropNotify {
		c.pending = append(c.pending, &xevent.PropertyEvent{Window: w, Atom: property, Time: c.serverTime})
	}
	return nil
}

func (c *fakeConn) UseXkbExtension(major, minor uint16) (bool, error) {
	c.xkbCalls++
	return c.xkbSupported, c.xkbErr
}

func (c *fakeConn) SetXkbPerClientFlags(change, value uint32) (uint32, error) {
	c.flagCalls++
	return c.xkbFlags, c.xkbErr
}

func (c *fakeConn) SelectDeviceEvents() error {
	c.selects++
	return c.selectErr
}

// trace collects callback names across every test double.
type trace struct {
	calls []string
}

func (t *trace) add(s string) { t.calls = append(t.calls, s) }

func (t *trace) reset() { t.calls = nil }

type testDispatcher struct {
	name     string
	tr       *trace
	claim    bool
	platform PlatformEventDispatcher
	handle   func(ev xevent.Raw)
	seen     []xevent.Raw
}

func (d *testDispatcher) DispatchXEvent(ev xevent.Raw) bool {
	d.tr.add(d.name + ".dispatch")
	d.seen = append(d.seen, ev)
	if d.handle != nil {
		d.handle(ev)
	}
	return d.claim
}

func (d *testDispatcher) CheckCanDispatchNextPlatformEvent(xevent.Raw) {
	d.tr.add(d.name + ".pre")
}

func (d *testDispatcher) PlatformEventDispatchFinished() {
	d.tr.add(d.name + ".post")
}

func (d *testDispatcher) PlatformEventDispatcher() PlatformEventDispatcher {
	return d.platform
}

// plainDispatcher implements only XEventDispatcher.
type plainDispatcher struct {
	seen int
}

func (d *plainDispatcher) DispatchXEvent(xevent.Raw) bool {
	d.seen++
	return false
}

type testObserver struct {
	name string
	tr   *trace
}

func (o *testObserver) WillProcessXEvent(xevent.Raw) { o.tr.add(o.name + ".will") }
func (o *testObserver) DidProcessXEvent(xevent.Raw)  { o.tr.add(o.name + ".did") }

type testPlatform struct {
	name   string
	tr     *trace
	can    bool
	action PostDispatchAction
	seen   []*xevent.Platform
}

func (p *testPlatform) CanDispatchEvent(*xevent.Platform) bool { return p.can }

func (p *testPlatform) DispatchEvent(ev *xevent.Platform) PostDispatchAction {
	p.tr.add(p.name + ".platform")
	p.seen = append(p.seen, ev)
	return p.action
}

type fakeDevices struct {
	tr          *trace
	updates     int
	invalidated []int
	accept      bool
}

func (d *fakeDevices) UpdateDeviceList() {
	d.updates++
	if d.tr != nil {
		d.tr.add("devices.update")
	}
}

func (d *fakeDevices) InvalidateScrollClasses(id int) {
	d.invalidated = append(d.invalidated, id)
}

func (d *fakeDevices) ShouldProcessDeviceEvent(*xevent.DeviceEvent) bool           { return d.accept }
func (d *fakeDevices) ShouldProcessCrossingEvent(*xevent.DeviceCrossingEvent) bool { return d.accept }

type fakeHotplug struct {
	tr    *trace
	calls int
}

func (h *fakeHotplug) OnHotplugEvent() {
	h.calls++
	if h.tr != nil {
		h.tr.add("hotplug")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(t *testing.T, conn *fakeConn, opts Options) *EventSource {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry("test", "")
	}
	s, err := New(conn, opts)
	require.NoError(t, err)
	return s
}

// prop returns an untranslated event, so it takes the raw routing path.
func prop(seq uint16) *xevent.PropertyEvent {
	return &xevent.PropertyEvent{
		Header: xevent.Header{Seq: seq},
		Window: 0x100,
		Atom:   42,
		Time:   xevent.Timestamp(1000 + int(seq)),
	}
}

// key returns an event the default translator turns into a platform event.
func key(seq uint16) *xevent.KeyEvent {
	return &xevent.KeyEvent{Header: xevent.Header{Seq: seq}, Detail: 38, Time: 900, Event: 0x100}
}

func seqs(events []xevent.Raw) []uint16 {
	out := make([]uint16, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Sequence())
	}
	return out
}
