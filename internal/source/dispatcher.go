package source

import "xevsource/internal/xevent"

// XEventDispatcher receives raw events that were not translated into a
// platform event. Implementations must be comparable; registering one that
// is not fails with ErrNotComparable.
type XEventDispatcher interface {
	// DispatchXEvent returns true when ev was handled; later dispatchers in
	// the chain do not see it.
	DispatchXEvent(ev xevent.Raw) bool
}

// PlatformEventClaimer is implemented by dispatchers that want to claim the
// platform event about to be produced from a raw event, typically by
// matching the raw event's target window.
type PlatformEventClaimer interface {
	CheckCanDispatchNextPlatformEvent(ev xevent.Raw)
	PlatformEventDispatchFinished()
}

// PlatformDispatcherProvider is implemented by dispatchers that also own a
// toolkit dispatcher. It is registered and unregistered with them.
type PlatformDispatcherProvider interface {
	PlatformEventDispatcher() PlatformEventDispatcher
}

// XEventObserver sees every routed raw event but never consumes it.
type XEventObserver interface {
	WillProcessXEvent(ev xevent.Raw)
	DidProcessXEvent(ev xevent.Raw)
}

// PostDispatchAction tells the source what to do after a platform
// dispatcher ran.
type PostDispatchAction int

const (
	// PostDispatchPerformDefault lets later dispatchers see the event.
	PostDispatchPerformDefault PostDispatchAction = iota
	// PostDispatchStopPropagation ends delivery of the event.
	PostDispatchStopPropagation
)

// PlatformEventDispatcher is the toolkit side of dispatch.
type PlatformEventDispatcher interface {
	CanDispatchEvent(ev *xevent.Platform) bool
	DispatchEvent(ev *xevent.Platform) PostDispatchAction
}

// AllDevices asks InvalidateScrollClasses to drop every cached device.
const AllDevices = -1

// DeviceManager caches per-device state derived from the XInput hierarchy.
// XI2 device and crossing events it rejects are dropped before translation.
type DeviceManager interface {
	UpdateDeviceList()
	InvalidateScrollClasses(deviceID int)
	ShouldProcessDeviceEvent(ev *xevent.DeviceEvent) bool
	ShouldProcessCrossingEvent(ev *xevent.DeviceCrossingEvent) bool
}

// HotplugHandler re-enumerates input devices.
type HotplugHandler interface {
	OnHotplugEvent()
}

type nopDevices struct{}

func (nopDevices) UpdateDeviceList()                                           {}
func (nopDevices) InvalidateScrollClasses(int)                                 {}
func (nopDevices) ShouldProcessDeviceEvent(*xevent.DeviceEvent) bool           { return true }
func (nopDevices) ShouldProcessCrossingEvent(*xevent.DeviceCrossingEvent) bool { return true }

type nopHotplug struct{}

func (nopHotplug) OnHotplugEvent() {}
