package devices

import (
	"log/slog"
	"slices"
	"sync"

	"xevsource/internal/logging"
	"xevsource/internal/source"
	"xevsource/internal/xevent"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Enumerator Enumerator
	// IgnoreEmulatedPointer drops pointer events the server synthesised
	// from touch input.
	IgnoreEmulatedPointer bool
	// Blocked lists X input device ids whose events are never processed.
	Blocked []int
	Logger  *slog.Logger
}

// Manager holds the device list and per-device filtering state. It is safe
// for concurrent use; the event source calls it from the dispatch goroutine
// while the watcher refreshes it from another.
type Manager struct {
	enum           Enumerator
	logger         *slog.Logger
	ignoreEmulated bool

	mu          sync.RWMutex
	devices     []Device
	blocked     map[uint16]struct{}
	stale       map[int]struct{}
	fresh       map[int]struct{}
	allStale    bool
	generations uint64
}

var _ source.DeviceManager = (*Manager)(nil)

// NewManager creates a manager. The device list is empty until the first
// UpdateDeviceList.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Enumerator == nil {
		opts.Enumerator = ProcEnumerator{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("devices").Logger
	}
	m := &Manager{
		enum:           opts.Enumerator,
		logger:         opts.Logger,
		ignoreEmulated: opts.IgnoreEmulatedPointer,
		blocked:        make(map[uint16]struct{}),
		stale:          make(map[int]struct{}),
		fresh:          make(map[int]struct{}),
	}
	for _, id := range opts.Blocked {
		m.blocked[uint16(id)] = struct{}{}
	}
	return m
}

// UpdateDeviceList re-enumerates. A failed enumeration keeps the previous
// list. Scroll classes are fresh after a successful update.
func (m *Manager) UpdateDeviceList() {
	devs, err := m.enum.Enumerate()
	if err != nil {
		m.logger.Warn("device enumeration failed", "error", err)
		return
	}

	m.mu.Lock()
	m.devices = devs
	clear(m.stale)
	clear(m.fresh)
	m.allStale = false
	m.generations++
	m.mu.Unlock()

	m.logger.Debug("device list updated", "devices", len(devs))
}

// Devices returns a copy of the current list.
func (m *Manager) Devices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.devices)
}

// Generation counts successful updates.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generations
}

// InvalidateScrollClasses marks the scroll state of one device, or of all
// devices for source.AllDevices, as stale.
func (m *Manager) InvalidateScrollClasses(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == source.AllDevices {
		m.allStale = true
		clear(m.stale)
		clear(m.fresh)
		return
	}
	m.stale[id] = struct{}{}
	delete(m.fresh, id)
}

// scrollClassValid reports whether the scroll state of id can be trusted.
// The state is kept for a scroll valuator decoder, which needs XI2
// valuator data that DeviceEvent does not decode yet.
func (m *Manager) scrollClassValid(id int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.allStale {
		_, ok := m.fresh[id]
		return ok
	}
	_, stale := m.stale[id]
	return !stale
}

// refreshScrollClass marks id valid again once its consumer has re-read
// the device's scroll valuators.
func (m *Manager) refreshScrollClass(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stale, id)
	if m.allStale {
		m.fresh[id] = struct{}{}
	}
}

// Block stops events from an X input device.
func (m *Manager) Block(id uint16) {
	m.mu.Lock()
	m.blocked[id] = struct{}{}
	m.mu.Unlock()
}

// Unblock reverses Block.
func (m *Manager) Unblock(id uint16) {
	m.mu.Lock()
	delete(m.blocked, id)
	m.mu.Unlock()
}

func (m *Manager) isBlocked(id uint16) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocked[id]
	return ok
}

// ShouldProcessDeviceEvent filters XI2 device events by source device and,
// when configured, drops touch-emulated pointer events.
func (m *Manager) ShouldProcessDeviceEvent(ev *xevent.DeviceEvent) bool {
	if m.isBlocked(ev.SourceID) {
		return false
	}
	if m.ignoreEmulated && ev.Flags&xevent.XIPointerEmulated != 0 {
		switch ev.Type {
		case xevent.XIButtonPress, xevent.XIButtonRelease, xevent.XIMotion:
			return false
		}
	}
	return true
}

// ShouldProcessCrossingEvent filters XI2 crossing events by source device.
func (m *Manager) ShouldProcessCrossingEvent(ev *xevent.DeviceCrossingEvent) bool {
	return !m.isBlocked(ev.SourceID)
}
