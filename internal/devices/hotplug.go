package devices

import (
	"log/slog"
	"sort"
	"sync"

	"xevsource/internal/logging"
	"xevsource/internal/source"
)

// Change describes the difference between two enumerations.
type Change struct {
	Added   []Device
	Removed []Device
	Total   int
	Initial bool
}

// Empty reports whether nothing was added or removed.
func (c Change) Empty() bool { return len(c.Added) == 0 && len(c.Removed) == 0 }

// Listener is told about device changes.
type Listener interface {
	DevicesChanged(Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Change)

func (f ListenerFunc) DevicesChanged(c Change) { f(c) }

// HotplugHandler diffs the manager's device list on every hotplug
// notification and forwards non-empty changes to its listeners. The first
// notification is the initial enumeration and is always forwarded.
type HotplugHandler struct {
	mgr    *Manager
	logger *slog.Logger

	mu        sync.Mutex
	known     map[string]Device
	primed    bool
	listeners []Listener
}

var _ source.HotplugHandler = (*HotplugHandler)(nil)

// NewHotplugHandler creates a handler over mgr.
func NewHotplugHandler(mgr *Manager, logger *slog.Logger) *HotplugHandler {
	if logger == nil {
		logger = logging.Default().WithComponent("hotplug").Logger
	}
	return &HotplugHandler{mgr: mgr, logger: logger, known: make(map[string]Device)}
}

// AddListener registers l.
func (h *HotplugHandler) AddListener(l Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// OnHotplugEvent reads the manager's list, enumerating first if it never
// has, and reports what changed since the previous call.
func (h *HotplugHandler) OnHotplugEvent() {
	if h.mgr.Generation() == 0 {
		h.mgr.UpdateDeviceList()
	}
	devs := h.mgr.Devices()

	h.mu.Lock()
	defer h.mu.Unlock()

	next := make(map[string]Device, len(devs))
	change := Change{Total: len(devs), Initial: !h.primed}
	for _, d := range devs {
		next[d.Key()] = d
		if _, ok := h.known[d.Key()]; !ok {
			change.Added = append(change.Added, d)
		}
	}
	for k, d := range h.known {
		if _, ok := next[k]; !ok {
			change.Removed = append(change.Removed, d)
		}
	}
	sort.Slice(change.Removed, func(i, j int) bool { return change.Removed[i].Key() < change.Removed[j].Key() })
	h.known = next

	if !change.Initial && change.Empty() {
		return
	}
	h.primed = true
	h.logger.Info("input devices changed",
		"added", len(change.Added),
		"removed", len(change.Removed),
		"total", change.Total,
		"initial", change.Initial)
	for _, l := range h.listeners {
		l.DevicesChanged(change)
	}
}
