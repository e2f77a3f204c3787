package main

import (
	"log/slog"
	"sync/atomic"

	"xevsource/internal/metrics"
	"xevsource/internal/source"
	"xevsource/internal/xevent"
)

// eventLogger is the daemon's platform dispatcher. It counts every
// platform event by type and, when enabled, logs it at debug level. It
// never stops propagation.
type eventLogger struct {
	logger   *slog.Logger
	registry *metrics.Registry
	enabled  atomic.Bool
}

var _ source.PlatformEventDispatcher = (*eventLogger)(nil)

func newEventLogger(logger *slog.Logger, registry *metrics.Registry, enabled bool) *eventLogger {
	l := &eventLogger{logger: logger, registry: registry}
	l.enabled.Store(enabled)
	return l
}

func (l *eventLogger) setEnabled(v bool) { l.enabled.Store(v) }

func (l *eventLogger) CanDispatchEvent(*xevent.Platform) bool { return true }

func (l *eventLogger) DispatchEvent(ev *xevent.Platform) source.PostDispatchAction {
	l.registry.Counter("platform_events_total", "Platform events by type",
		metrics.Labels{"type": ev.Type.String()}).Inc()

	if l.enabled.Load() {
		l.logger.Debug("platform event",
			"type", ev.Type.String(),
			"time", uint32(ev.Time),
			"window", uint32(ev.Window),
			"device", ev.DeviceID,
			"x", ev.Location.X,
			"y", ev.Location.Y,
			"flags", uint32(ev.Flags))
	}
	return source.PostDispatchPerformDefault
}
