// Package source implements the X11 platform event source: it drains the
// display connection, translates raw events and routes them through a
// mutable chain of dispatchers.
//
// An EventSource is driven by a single goroutine. Registration, override
// and timestamp calls are made from that goroutine, usually from inside
// dispatch callbacks, and take no locks.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"xevsource/internal/logging"
	"xevsource/internal/metrics"
	"xevsource/internal/xevent"
)

// Options configures an EventSource. Zero values select defaults.
type Options struct {
	// Translator turns raw events into platform events.
	// Default: xevent.DefaultTranslator.
	Translator xevent.Translator

	// Devices caches XInput device state. Default: accepts every event.
	Devices DeviceManager

	// Hotplug is notified when the device topology changes.
	Hotplug HotplugHandler

	Logger  *slog.Logger
	Metrics *metrics.Registry

	// RTTSampleRate times one in RTTSampleRate timestamp round trips.
	// Zero means DefaultRTTSampleRate; negative disables timing.
	RTTSampleRate int
}

// EventSource owns the dispatch state for one display connection.
type EventSource struct {
	conn           Connection
	translator     xevent.Translator
	devices        DeviceManager
	hotplugHandler HotplugHandler
	logger         *slog.Logger
	metrics        *metrics.SourceMetrics

	dispatchers slotList[XEventDispatcher]
	observers   slotList[XEventObserver]
	platform    slotList[PlatformEventDispatcher]

	override         XEventDispatcher
	guard            *OverrideGuard
	overrideReleases uint64

	current           xevent.Raw
	continueStream    bool
	ignoreNativeMouse bool

	hotplug *hotplugCoordinator

	marker        xevent.Window
	markerAtom    xevent.Atom
	rttSampleRate int
	randN         func(n int) int
	now           func() time.Time
}

// New creates an EventSource on conn and initialises XKB and XInput2 event
// selection. Extension failures are logged and otherwise ignored.
func New(conn Connection, opts Options) (*EventSource, error) {
	if conn == nil {
		return nil, errors.New("source: nil connection")
	}
	s := &EventSource{
		conn:           conn,
		translator:     opts.Translator,
		devices:        opts.Devices,
		hotplugHandler: opts.Hotplug,
		logger:         opts.Logger,
		metrics:        metrics.NewSourceMetrics(opts.Metrics),
		rttSampleRate:  opts.RTTSampleRate,
		randN:          defaultRandN,
		now:            time.Now,
	}
	if s.translator == nil {
		s.translator = xevent.DefaultTranslator{}
	}
	if s.devices == nil {
		s.devices = nopDevices{}
	}
	if s.hotplugHandler == nil {
		s.hotplugHandler = nopHotplug{}
	}
	if s.logger == nil {
		s.logger = logging.Default().WithComponent("source").Logger
	}
	if s.rttSampleRate == 0 {
		s.rttSampleRate = DefaultRTTSampleRate
	}

	s.initXkb()
	s.selectDeviceEvents()
	return s, nil
}

// Close destroys the timestamp marker window if one was created. It does
// not close the connection.
func (s *EventSource) Close() error {
	if s.marker == xevent.None {
		return nil
	}
	w := s.marker
	s.marker = xevent.None
	if err := s.conn.DestroyWindow(w); err != nil {
		return fmt.Errorf("destroy marker window: %w", err)
	}
	return nil
}

// DispatchAll dispatches queued events until the queue is empty or the
// stream is stopped. Events left behind by a stop stay queued for the next
// call. It never blocks on the connection.
//
// A panic in a dispatcher ends the batch; it is returned wrapped in
// ErrDispatchPanic.
func (s *EventSource) DispatchAll() error {
	s.continueStream = true
	for s.continueStream {
		ev, ok := s.conn.PollEvent()
		if !ok {
			return nil
		}
		if err := s.dispatchRecovered(ev); err != nil {
			s.continueStream = false
			return err
		}
	}
	s.metrics.BatchesTruncated.Inc()
	return nil
}

func (s *EventSource) dispatchRecovered(ev xevent.Raw) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.DispatchPanics.Inc()
			s.logger.Error("dispatcher panicked", "event", xevent.Name(ev), "panic", r)
			err = fmt.Errorf("%w: %s: %v", ErrDispatchPanic, xevent.Name(ev), r)
		}
	}()
	s.DispatchOne(ev)
	return nil
}

// DispatchOne dispatches a single event. While it runs, ev is the current
// event seen by GetTimestamp and RootCursorLocation.
func (s *EventSource) DispatchOne(ev xevent.Raw) {
	// Reset to nil rather than to the previous value: a nested loop that
	// returns must not make an outer caller see its finished event as
	// current.
	s.current = ev
	defer func() { s.current = nil }()

	s.metrics.EventsDispatched.Inc()
	s.processEvent(ev)
	s.postDispatchEvent(ev)
}

func (s *EventSource) processEvent(ev xevent.Raw) {
	if !s.shouldProcess(ev) {
		s.metrics.EventsFiltered.Inc()
		return
	}
	pe := s.translator.Translate(ev)
	if pe != nil && s.ignoreNativeMouse && pe.IsMouseEvent() {
		return
	}
	if pe != nil && pe.Type != xevent.EventUnknown {
		s.dispatchPlatformEvent(pe, ev)
		return
	}
	s.routeRaw(ev)
}

// shouldProcess asks the device manager about XI2 input events. Events it
// rejects are neither translated nor routed.
func (s *EventSource) shouldProcess(ev xevent.Raw) bool {
	switch e := ev.(type) {
	case *xevent.DeviceEvent:
		return s.devices.ShouldProcessDeviceEvent(e)
	case *xevent.DeviceCrossingEvent:
		return s.devices.ShouldProcessCrossingEvent(e)
	}
	return true
}

// StopCurrentEventStream makes the running DispatchAll return after the
// current event.
func (s *EventSource) StopCurrentEventStream() {
	s.continueStream = false
}

// ShouldContinueStream reports whether the running batch may continue.
func (s *EventSource) ShouldContinueStream() bool {
	return s.continueStream
}

// SetIgnoreNativeMouseEvents drops translated mouse events while set.
// Other events are still delivered.
func (s *EventSource) SetIgnoreNativeMouseEvents(ignore bool) {
	s.ignoreNativeMouse = ignore
}

// Run dispatches events until ctx is done or the connection fails. It only
// blocks in Connection.WaitForEvent, so callers cancel it by cancelling ctx
// and closing the connection.
func (s *EventSource) Run(ctx context.Context) error {
	for {
		if err := s.DispatchAll(); err != nil {
			s.logger.Error("dispatch batch aborted", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := s.conn.WaitForEvent(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for event: %w", err)
		}
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
