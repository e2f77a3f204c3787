package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xevsource/internal/xevent"
)

func TestOverridePrecedence(t *testing.T) {
	tr := &trace{}
	conn := newFakeConn(prop(1), prop(2))
	s := newTestSource(t, conn, Options{})
	a := &testDispatcher{name: "a", tr: tr}
	b := &testDispatcher{name: "b", tr: tr}
	require.NoError(t, s.AddDispatcher(a))
	require.NoError(t, s.AddDispatcher(b))

	o := &testDispatcher{name: "o", tr: tr, claim: true}
	g, err := s.OverrideDispatcher(o)
	require.NoError(t, err)
	defer g.Close()
	assert.True(t, s.Overridden())
	assert.Same(t, o, g.Dispatcher())

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []string{"o.dispatch", "o.dispatch"}, tr.calls)
	assert.Empty(t, a.seen)
	assert.Empty(t, b.seen)
}

func TestOverrideFallsThroughToChain(t *testing.T) {
	tr := &trace{}
	s := newTestSource(t, newFakeConn(prop(1)), Options{})
	require.NoError(t, s.AddDispatcher(&testDispatcher{name: "a", tr: tr}))
	require.NoError(t, s.AddObserver(&testObserver{name: "obs", tr: tr}))

	g, err := s.OverrideDispatcher(&testDispatcher{name: "o", tr: tr})
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []string{"obs.will", "o.dispatch", "a.dispatch", "obs.did"}, tr.calls)
}

func TestOverrideNoAliasing(t *testing.T) {
	tr := &trace{}
	s := newTestSource(t, newFakeConn(prop(1)), Options{})
	first := &testDispatcher{name: "first", tr: tr, claim: true}
	second := &testDispatcher{name: "second", tr: tr, claim: true}

	g, err := s.OverrideDispatcher(first)
	require.NoError(t, err)
	defer g.Close()

	g2, err := s.OverrideDispatcher(second)
	assert.ErrorIs(t, err, ErrOverrideActive)
	assert.Nil(t, g2)

	_, err = s.OverrideDispatcher(nil)
	assert.ErrorIs(t, err, ErrNilDispatcher)

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []string{"first.dispatch"}, tr.calls)
	assert.False(t, g.Released())
}

func TestOverrideRelease(t *testing.T) {
	tr := &trace{}
	conn := newFakeConn()
	s := newTestSource(t, conn, Options{})
	a := &testDispatcher{name: "a", tr: tr}
	require.NoError(t, s.AddDispatcher(a))

	g, err := s.OverrideDispatcher(&testDispatcher{name: "o", tr: tr, claim: true})
	require.NoError(t, err)

	g.Restore()
	assert.True(t, g.Released())
	assert.False(t, s.Overridden())
	assert.NoError(t, g.Close())
	g.Restore()

	conn.push(prop(1))
	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []string{"a.dispatch"}, tr.calls)

	// The slot is free again.
	g2, err := s.OverrideDispatcher(&testDispatcher{name: "o2", tr: tr})
	require.NoError(t, err)
	require.NoError(t, g2.Close())

	// A stale guard cannot release a newer occupant.
	g3, err := s.OverrideDispatcher(&testDispatcher{name: "o3", tr: tr, claim: true})
	require.NoError(t, err)
	defer g3.Close()
	g.Restore()
	require.NoError(t, g2.Close())
	assert.True(t, s.Overridden())
}

func TestOverrideReleaseTruncatesBatch(t *testing.T) {
	conn := newFakeConn(prop(1), prop(2), prop(3), prop(4), prop(5))
	s := newTestSource(t, conn, Options{})
	chain := &testDispatcher{name: "chain", tr: &trace{}}
	require.NoError(t, s.AddDispatcher(chain))

	o := &testDispatcher{name: "o", tr: &trace{}}
	g, err := s.OverrideDispatcher(o)
	require.NoError(t, err)
	o.handle = func(ev xevent.Raw) {
		if ev.Sequence() == 3 {
			g.Close()
		}
	}

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2, 3}, seqs(o.seen))
	assert.Equal(t, []uint16{1, 2, 3}, seqs(chain.seen))
	assert.Equal(t, []uint16{4, 5}, seqs(conn.queue))
	assert.False(t, s.ShouldContinueStream())

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2, 3}, seqs(o.seen))
	assert.Equal(t, []uint16{1, 2, 3, 4, 5}, seqs(chain.seen))
	assert.Empty(t, conn.queue)
}

func TestOverrideReleasedByChainMember(t *testing.T) {
	conn := newFakeConn(prop(1), prop(2))
	s := newTestSource(t, conn, Options{})
	g, err := s.OverrideDispatcher(&testDispatcher{name: "o", tr: &trace{}})
	require.NoError(t, err)

	a := &testDispatcher{name: "a", tr: &trace{}}
	a.handle = func(xevent.Raw) { g.Restore() }
	require.NoError(t, s.AddDispatcher(a))

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1}, seqs(a.seen))
	assert.Equal(t, []uint16{2}, seqs(conn.queue))
}

func TestOverrideReleasedOutsideDispatch(t *testing.T) {
	conn := newFakeConn()
	s := newTestSource(t, conn, Options{})
	a := &testDispatcher{name: "a", tr: &trace{}}
	require.NoError(t, s.AddDispatcher(a))

	g, err := s.OverrideDispatcher(&testDispatcher{name: "o", tr: &trace{}})
	require.NoError(t, err)
	require.NoError(t, g.Close())

	conn.push(prop(1), prop(2))
	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2}, seqs(a.seen))
}

func TestOverrideReleasedInNestedLoop(t *testing.T) {
	conn := newFakeConn(prop(1), prop(2), prop(3))
	s := newTestSource(t, conn, Options{})
	chain := &testDispatcher{name: "chain", tr: &trace{}}
	require.NoError(t, s.AddDispatcher(chain))

	o := &testDispatcher{name: "o", tr: &trace{}}
	g, err := s.OverrideDispatcher(o)
	require.NoError(t, err)
	o.handle = func(ev xevent.Raw) {
		switch ev.Sequence() {
		case 1:
			// A modal loop running inside the override.
			require.NoError(t, s.DispatchAll())
		case 2:
			g.Close()
		}
	}

	require.NoError(t, s.DispatchAll())
	assert.Equal(t, []uint16{1, 2}, seqs(o.seen))
	assert.Equal(t, []uint16{3}, seqs(conn.queue))
	assert.False(t, s.ShouldContinueStream())
}
