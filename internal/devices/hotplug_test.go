package devices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	changes []Change
}

func (r *recordingListener) DevicesChanged(c Change) { r.changes = append(r.changes, c) }

func TestHotplugHandlerDiffs(t *testing.T) {
	enum := &stubEnumerator{devs: []Device{dev("kbd"), dev("mouse")}}
	m := NewManager(ManagerOptions{Enumerator: enum, Logger: discardLogger()})
	h := NewHotplugHandler(m, discardLogger())
	rec := &recordingListener{}
	h.AddListener(rec)

	// The first notification enumerates on its own and reports everything.
	h.OnHotplugEvent()
	require.Len(t, rec.changes, 1)
	first := rec.changes[0]
	assert.True(t, first.Initial)
	assert.Len(t, first.Added, 2)
	assert.Empty(t, first.Removed)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 1, enum.calls)

	// No change, no notification.
	m.UpdateDeviceList()
	h.OnHotplugEvent()
	assert.Len(t, rec.changes, 1)

	enum.devs = []Device{dev("kbd"), dev("pen")}
	m.UpdateDeviceList()
	h.OnHotplugEvent()
	require.Len(t, rec.changes, 2)
	c := rec.changes[1]
	assert.False(t, c.Initial)
	assert.Equal(t, []Device{dev("pen")}, c.Added)
	assert.Equal(t, []Device{dev("mouse")}, c.Removed)
	assert.Equal(t, 2, c.Total)
}

func TestHotplugHandlerInitialEmpty(t *testing.T) {
	m := NewManager(ManagerOptions{Enumerator: &stubEnumerator{}, Logger: discardLogger()})
	h := NewHotplugHandler(m, discardLogger())
	var got []Change
	h.AddListener(ListenerFunc(func(c Change) { got = append(got, c) }))

	h.OnHotplugEvent()
	require.Len(t, got, 1, "the initial enumeration is reported even when empty")
	assert.True(t, got[0].Empty())
	assert.True(t, got[0].Initial)

	h.OnHotplugEvent()
	assert.Len(t, got, 1)
}

func TestFollow(t *testing.T) {
	enum := &stubEnumerator{devs: []Device{dev("kbd")}}
	m := NewManager(ManagerOptions{Enumerator: enum, Logger: discardLogger()})
	h := NewHotplugHandler(m, discardLogger())
	done := make(chan Change, 4)
	h.AddListener(ListenerFunc(func(c Change) { done <- c }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{}, 1)
	go Follow(ctx, changes, m, h)

	changes <- struct{}{}
	select {
	case c := <-done:
		assert.Len(t, c.Added, 1)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}
	assert.Equal(t, uint64(1), m.Generation())
}
