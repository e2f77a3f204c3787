package metrics

// SourceMetrics groups the instruments updated by the event source.
type SourceMetrics struct {
	EventsDispatched *Counter
	EventsTranslated *Counter
	EventsRawRouted  *Counter
	EventsFiltered   *Counter
	BatchesTruncated *Counter
	DispatchPanics   *Counter
	ServerRoundTrips *Counter
	ServerRTT        *Histogram
	HotplugEvents    *Counter
	Dispatchers      *Gauge
	Observers        *Gauge
}

// NewSourceMetrics registers the event source instruments on r. Calling it
// twice with the same registry returns the same instruments.
func NewSourceMetrics(r *Registry) *SourceMetrics {
	if r == nil {
		r = Default()
	}
	return &SourceMetrics{
		EventsDispatched: r.Counter("events_dispatched_total",
			"Raw events taken off the queue and dispatched", nil),
		EventsTranslated: r.Counter("events_translated_total",
			"Raw events delivered as platform events", nil),
		EventsRawRouted: r.Counter("events_raw_routed_total",
			"Raw events routed through observers and the dispatcher chain", nil),
		EventsFiltered: r.Counter("events_filtered_total",
			"XInput events dropped by the device filter", nil),
		BatchesTruncated: r.Counter("batches_truncated_total",
			"Dispatch batches ended early by a stop request", nil),
		DispatchPanics: r.Counter("dispatch_panics_total",
			"Panics recovered while dispatching an event", nil),
		ServerRoundTrips: r.Counter("server_round_trips_total",
			"Timestamp round trips to the display server", nil),
		ServerRTT: r.Histogram("server_rtt_seconds",
			"Sampled timestamp round-trip latency", nil, LatencyBuckets),
		HotplugEvents: r.Counter("hotplug_events_total",
			"Hotplug notifications delivered to the handler", nil),
		Dispatchers: r.Gauge("dispatchers",
			"Registered raw event dispatchers", nil),
		Observers: r.Gauge("observers",
			"Registered raw event observers", nil),
	}
}
