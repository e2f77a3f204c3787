// Package busnotify publishes input device changes on the D-Bus session bus
// so desktop components can react to hotplug without polling.
package busnotify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"xevsource/internal/devices"
	"xevsource/internal/logging"
)

const (
	BusName   = "org.xevsource"
	Interface = "org.xevsource.Devices"
	Path      = dbus.ObjectPath("/org/xevsource/Devices")

	signalChanged = Interface + ".Changed"
)

// ErrNameTaken is returned when another process owns BusName.
var ErrNameTaken = errors.New("busnotify: bus name already taken")

// Emitter is the part of *dbus.Conn the notifier needs.
type Emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Notifier emits a Changed(added, removed, total) signal for every device
// change and answers List() with the current device names.
type Notifier struct {
	conn   Emitter
	closer func() error
	logger *slog.Logger

	mu      sync.Mutex
	names   []string
	emitted uint64
}

// New returns a notifier that emits on conn. It does not claim a bus name.
func New(conn Emitter, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default().WithComponent("busnotify").Logger
	}
	return &Notifier{conn: conn, logger: logger}
}

// Connect joins the session bus, claims BusName and exports the device
// object at Path.
func Connect(logger *slog.Logger) (*Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, ErrNameTaken
	}

	n := New(conn, logger)
	n.closer = func() error {
		if _, err := conn.ReleaseName(BusName); err != nil {
			n.logger.Debug("release bus name", "error", err)
		}
		return nil
	}
	if err := conn.Export(deviceObject{n}, Path, Interface); err != nil {
		return nil, fmt.Errorf("export %s: %w", Path, err)
	}
	n.logger.Info("registered on session bus", "name", BusName, "path", string(Path))
	return n, nil
}

// DevicesChanged emits the change signal and remembers the device list.
func (n *Notifier) DevicesChanged(c devices.Change) {
	n.mu.Lock()
	n.names = applyChange(n.names, c)
	n.mu.Unlock()

	if c.Empty() && !c.Initial {
		return
	}
	err := n.conn.Emit(Path, signalChanged, int32(len(c.Added)), int32(len(c.Removed)), int32(c.Total))
	if err != nil {
		n.logger.Warn("emit device change", "error", err)
		return
	}
	n.mu.Lock()
	n.emitted++
	n.mu.Unlock()
}

// Emitted returns how many signals went out.
func (n *Notifier) Emitted() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.emitted
}

// Names returns the device names known from the change stream.
func (n *Notifier) Names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.names...)
}

// Close releases the bus name when Connect claimed one. The shared session
// connection stays open.
func (n *Notifier) Close() error {
	if n.closer != nil {
		return n.closer()
	}
	return nil
}

func applyChange(names []string, c devices.Change) []string {
	removed := make(map[string]bool, len(c.Removed))
	for _, d := range c.Removed {
		removed[d.Name] = true
	}
	out := names[:0:0]
	for _, name := range names {
		if removed[name] {
			delete(removed, name)
			continue
		}
		out = append(out, name)
	}
	for _, d := range c.Added {
		out = append(out, d.Name)
	}
	return out
}

// deviceObject is the exported D-Bus object.
type deviceObject struct {
	n *Notifier
}

// List returns the names of the known input devices.
func (o deviceObject) List() ([]string, *dbus.Error) {
	return o.n.Names(), nil
}
