package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xevsource/internal/metrics"
	"xevsource/internal/xevent"
)

func TestNew(t *testing.T) {
	t.Run("nil connection", func(t *testing.T) {
		_, err := New(nil, Options{})
		assert.Error(t, err)
	})

	t.Run("initialises extensions", func(t *testing.T) {
		conn := newFakeConn()
		newTestSource(t, conn, Options{})
		assert.Equal(t, 1, conn.xkbCalls)
		assert.Equal(t, 1, conn.flagCalls)
		assert.Equal(t, 1, conn.selects)
	})

	t.Run("extension failures degrade", func(t *testing.T) {
		conn := newFakeConn()
		conn.xkbSupported = false
		conn.xkbFlags = 0
		conn.selectErr = errors.New("no XInputExtension")
		s := newTestSource(t, conn, Options{})
		require.NotNil(t, s)

		conn.xkbErr = errors.New("boom")
		s = newTestSource(t, conn, Options{})
		require.NotNil(t, s)
	})
}

func TestDispatchAllDrainsQueue(t *testing.T) {
	conn := newFakeConn(prop(1), prop(2), prop(3))
	s := newTestSource(t, conn, Options{})
	d := &testDispatcher{name: "a", tr: &trace{}}
	require.NoError(t, s.AddDispatcher(d))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2, 3}, seqs(d.seen))
	assert.Empty(t, conn.queue)
	assert.True(t, s.ShouldContinueStream())

	require.NoError(t, s.DispatchAll())
	assert.Len(t, d.seen, 3)
}

func TestDispatchContext(t *testing.T) {
	conn := newFakeConn(prop(1))
	s := newTestSource(t, conn, Options{})

	var during xevent.Raw
	d := &testDispatcher{name: "a", tr: &trace{}}
	d.handle = func(xevent.Raw) { during = s.CurrentEvent() }
	require.NoError(t, s.AddDispatcher(d))

	assert.Nil(t, s.CurrentEvent())
	require.NoError(t, s.DispatchAll())
	require.NotNil(t, during)
	assert.Equal(t, uint16(1), during.Sequence())
	assert.Nil(t, s.CurrentEvent())
}

func TestNestedDispatchClearsContext(t *testing.T) {
	conn := newFakeConn(prop(1), prop(2))
	s := newTestSource(t, conn, Options{})

	var afterNested xevent.Raw = prop(99)
	nested := false
	d := &testDispatcher{name: "a", tr: &trace{}}
	d.handle = func(ev xevent.Raw) {
		if ev.Sequence() != 1 || nested {
			return
		}
		nested = true
		require.NoError(t, s.DispatchAll())
		afterNested = s.CurrentEvent()
	}
	require.NoError(t, s.AddDispatcher(d))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2}, seqs(d.seen))
	// The inner dispatch leaves no current event behind, not even the outer
	// one.
	assert.Nil(t, afterNested)
	assert.Nil(t, s.CurrentEvent())
}

func TestDispatchPanic(t *testing.T) {
	reg := metrics.NewRegistry("test", "")
	conn := newFakeConn(prop(1), prop(2), prop(3))
	s := newTestSource(t, conn, Options{Metrics: reg})

	armed := true
	d := &testDispatcher{name: "a", tr: &trace{}}
	d.handle = func(ev xevent.Raw) {
		if ev.Sequence() == 2 && armed {
			armed = false
			panic("dispatcher exploded")
		}
	}
	require.NoError(t, s.AddDispatcher(d))

	err := s.DispatchAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatchPanic)
	assert.Contains(t, err.Error(), "dispatcher exploded")
	assert.Nil(t, s.CurrentEvent())
	assert.Len(t, conn.queue, 1)
	assert.Equal(t, uint64(1), metrics.NewSourceMetrics(reg).DispatchPanics.Value())

	// The registry is still usable after a panic unwound through it.
	require.NoError(t, s.RemoveDispatcher(d))
	require.NoError(t, s.AddDispatcher(d))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2, 3}, seqs(d.seen))
}

func TestStopCurrentEventStream(t *testing.T) {
	reg := metrics.NewRegistry("test", "")
	conn := newFakeConn(prop(1), prop(2), prop(3))
	s := newTestSource(t, conn, Options{Metrics: reg})

	d := &testDispatcher{name: "a", tr: &trace{}}
	d.handle = func(ev xevent.Raw) {
		if ev.Sequence() == 2 {
			s.StopCurrentEventStream()
		}
	}
	require.NoError(t, s.AddDispatcher(d))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2}, seqs(d.seen))
	assert.False(t, s.ShouldContinueStream())
	assert.Equal(t, []uint16{3}, seqs(conn.queue))
	assert.Equal(t, uint64(1), metrics.NewSourceMetrics(reg).BatchesTruncated.Value())

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2, 3}, seqs(d.seen))
}

func TestIgnoreNativeMouseEvents(t *testing.T) {
	tr := &trace{}
	conn := newFakeConn()
	s := newTestSource(t, conn, Options{})
	p := &testPlatform{name: "p", tr: tr, can: true}
	d := &testDispatcher{name: "a", tr: tr}
	require.NoError(t, s.AddPlatformDispatcher(p))
	require.NoError(t, s.AddDispatcher(d))

	s.SetIgnoreNativeMouseEvents(true)
	conn.push(&xevent.ButtonEvent{Detail: 1}, key(2))
	require.NoError(t, s.DispatchAll())

	require.Len(t, p.seen, 1)
	assert.Equal(t, xevent.EventKeyPressed, p.seen[0].Type)
	assert.Empty(t, d.seen)

	s.SetIgnoreNativeMouseEvents(false)
	conn.push(&xevent.ButtonEvent{Detail: 1})
	require.NoError(t, s.DispatchAll())
	require.Len(t, p.seen, 2)
	assert.Equal(t, xevent.EventMousePressed, p.seen[1].Type)
}

func TestUnknownPlatformEventTakesRawPath(t *testing.T) {
	tr := &trace{}
	conn := newFakeConn(prop(1))
	s := newTestSource(t, conn, Options{
		Translator: xevent.TranslatorFunc(func(xevent.Raw) *xevent.Platform {
			return &xevent.Platform{Type: xevent.EventUnknown}
		}),
	})
	p := &testPlatform{name: "p", tr: tr, can: true}
	d := &testDispatcher{name: "a", tr: tr}
	require.NoError(t, s.AddPlatformDispatcher(p))
	require.NoError(t, s.AddDispatcher(d))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []string{"a.dispatch"}, tr.calls)
}

func TestRun(t *testing.T) {
	t.Run("returns when the connection closes", func(t *testing.T) {
		conn := newFakeConn(prop(1), prop(2), prop(3))
		s := newTestSource(t, conn, Options{})
		d := &testDispatcher{name: "a", tr: &trace{}}
		require.NoError(t, s.AddDispatcher(d))

		err := s.Run(context.Background())
		assert.ErrorIs(t, err, ErrConnectionClosed)
		assert.Len(t, d.seen, 3)
	})

	t.Run("resumes truncated batches", func(t *testing.T) {
		conn := newFakeConn(prop(1), prop(2), prop(3))
		s := newTestSource(t, conn, Options{})
		d := &testDispatcher{name: "a", tr: &trace{}}
		d.handle = func(xevent.Raw) { s.StopCurrentEventStream() }
		require.NoError(t, s.AddDispatcher(d))

		err := s.Run(context.Background())
		assert.ErrorIs(t, err, ErrConnectionClosed)
		assert.Equal(t, []uint16{1, 2, 3}, seqs(d.seen))
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		conn := newFakeConn(prop(1))
		s := newTestSource(t, conn, Options{})
		ctx, cancel := context.WithCancel(context.Background())
		d := &testDispatcher{name: "a", tr: &trace{}}
		d.handle = func(xevent.Raw) { cancel() }
		require.NoError(t, s.AddDispatcher(d))

		assert.NoError(t, s.Run(ctx))
		assert.Len(t, d.seen, 1)
	})
}

func TestClose(t *testing.T) {
	conn := newFakeConn()
	s := newTestSource(t, conn, Options{})
	require.NoError(t, s.Close())
	assert.Empty(t, conn.destroyed)

	s.GetCurrentServerTime()
	require.NoError(t, s.Close())
	assert.Equal(t, []xevent.Window{0x200001}, conn.destroyed)

	require.NoError(t, s.Close())
	assert.Len(t, conn.destroyed, 1)
}

// sourceFilter rejects XI2 events from one source device.
type sourceFilter struct {
	nopDevices
	blocked uint16
}

func (f sourceFilter) ShouldProcessDeviceEvent(ev *xevent.DeviceEvent) bool {
	return ev.SourceID != f.blocked
}

func (f sourceFilter) ShouldProcessCrossingEvent(ev *xevent.DeviceCrossingEvent) bool {
	return ev.SourceID != f.blocked
}

func TestDeviceFilterDropsRejectedEvents(t *testing.T) {
	reg := metrics.NewRegistry("test", "")
	tr := &trace{}
	conn := newFakeConn(
		&xevent.DeviceEvent{Header: xevent.Header{Seq: 1}, Type: xevent.XIMotion, SourceID: 9},
		&xevent.DeviceCrossingEvent{Header: xevent.Header{Seq: 2}, SourceID: 9},
		&xevent.DeviceEvent{Header: xevent.Header{Seq: 3}, Type: xevent.XIMotion, SourceID: 4},
		&xevent.DeviceCrossingEvent{Header: xevent.Header{Seq: 4}, SourceID: 4},
	)
	s := newTestSource(t, conn, Options{
		Devices:    sourceFilter{blocked: 9},
		Metrics:    reg,
		Translator: xevent.TranslatorFunc(func(xevent.Raw) *xevent.Platform { return nil }),
	})
	d := &testDispatcher{name: "a", tr: tr}
	require.NoError(t, s.AddDispatcher(d))
	require.NoError(t, s.AddObserver(&testObserver{name: "o", tr: tr}))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{3, 4}, seqs(d.seen))
	assert.Len(t, tr.calls, 6, "observers only see accepted events")
	assert.Equal(t, uint64(2), metrics.NewSourceMetrics(reg).EventsFiltered.Value())
}
