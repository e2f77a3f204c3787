package busnotify

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xevsource/internal/devices"
)

type emitted struct {
	path   dbus.ObjectPath
	name   string
	values []interface{}
}

type fakeEmitter struct {
	signals []emitted
	err     error
}

func (f *fakeEmitter) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.signals = append(f.signals, emitted{path, name, values})
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierEmitsChanges(t *testing.T) {
	em := &fakeEmitter{}
	n := New(em, quiet())

	n.DevicesChanged(devices.Change{
		Added:   []devices.Device{{Name: "kbd"}, {Name: "mouse"}},
		Total:   2,
		Initial: true,
	})
	require.Len(t, em.signals, 1)
	sig := em.signals[0]
	assert.Equal(t, Path, sig.path)
	assert.Equal(t, "org.xevsource.Devices.Changed", sig.name)
	assert.Equal(t, []interface{}{int32(2), int32(0), int32(2)}, sig.values)
	assert.Equal(t, []string{"kbd", "mouse"}, n.Names())

	n.DevicesChanged(devices.Change{
		Added:   []devices.Device{{Name: "pen"}},
		Removed: []devices.Device{{Name: "kbd"}},
		Total:   2,
	})
	require.Len(t, em.signals, 2)
	assert.Equal(t, []interface{}{int32(1), int32(1), int32(2)}, em.signals[1].values)
	assert.Equal(t, []string{"mouse", "pen"}, n.Names())
	assert.Equal(t, uint64(2), n.Emitted())

	names, derr := deviceObject{n}.List()
	assert.Nil(t, derr)
	assert.Equal(t, []string{"mouse", "pen"}, names)
}

func TestNotifierSkipsEmptyChange(t *testing.T) {
	em := &fakeEmitter{}
	n := New(em, quiet())
	n.DevicesChanged(devices.Change{Total: 3})
	assert.Empty(t, em.signals)

	n.DevicesChanged(devices.Change{Initial: true})
	assert.Len(t, em.signals, 1, "the initial enumeration is always announced")
}

func TestNotifierEmitFailure(t *testing.T) {
	em := &fakeEmitter{err: errors.New("bus gone")}
	n := New(em, quiet())
	n.DevicesChanged(devices.Change{Added: []devices.Device{{Name: "kbd"}}, Total: 1})
	assert.Zero(t, n.Emitted())
	assert.Equal(t, []string{"kbd"}, n.Names(), "the list still tracks the change")
	assert.NoError(t, n.Close())
}
