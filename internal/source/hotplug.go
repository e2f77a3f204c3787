package source

import "xevsource/internal/xevent"

// hotplugCoordinator forwards topology changes to the hotplug handler.
type hotplugCoordinator struct {
	handler HotplugHandler
	onEvent func()
}

func newHotplugCoordinator(handler HotplugHandler, onEvent func()) *hotplugCoordinator {
	c := &hotplugCoordinator{handler: handler, onEvent: onEvent}
	// Initial enumeration so the device list exists before any hotplug.
	c.notify()
	return c
}

func (c *hotplugCoordinator) notify() {
	c.handler.OnHotplugEvent()
	if c.onEvent != nil {
		c.onEvent()
	}
}

// ensureHotplug creates the coordinator on first use. It reports whether
// this call created it.
func (s *EventSource) ensureHotplug() bool {
	if s.hotplug != nil {
		return false
	}
	s.logger.Debug("creating hotplug coordinator")
	s.hotplug = newHotplugCoordinator(s.hotplugHandler, s.metrics.HotplugEvents.Inc)
	return true
}

// postDispatchEvent looks for events that change the device topology or
// invalidate cached scroll state.
func (s *EventSource) postDispatchEvent(ev xevent.Raw) {
	switch e := ev.(type) {
	case *xevent.HierarchyEvent:
		s.updateDeviceList(ev)
	case *xevent.DeviceChangedEvent:
		switch e.Reason {
		case xevent.DeviceChange:
			s.updateDeviceList(ev)
		case xevent.SlaveSwitch:
			s.devices.InvalidateScrollClasses(int(e.SourceID))
		}
	case *xevent.CrossingEvent:
		if !e.Leave && e.Detail != xevent.NotifyInferior && e.Mode != xevent.NotifyUngrab {
			s.devices.InvalidateScrollClasses(AllDevices)
		}
	}
}

func (s *EventSource) updateDeviceList(ev xevent.Raw) {
	s.logger.Info("input device hierarchy changed", "event", xevent.Name(ev))
	s.devices.UpdateDeviceList()
	// A coordinator created here enumerates on creation, which counts as
	// the notification for ev.
	if !s.ensureHotplug() {
		s.hotplug.notify()
	}
}
