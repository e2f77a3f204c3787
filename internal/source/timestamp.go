package source

import (
	"fmt"
	"math/rand"
	"time"

	"xevsource/internal/xevent"
)

// TimestampAtom names the property written on the marker window.
const TimestampAtom = "XEVSOURCE_TIMESTAMP"

// DefaultRTTSampleRate is the default 1-in-N rate at which round trips are
// timed.
const DefaultRTTSampleRate = 1000

// GetTimestamp returns the time of the event being dispatched, or a fresh
// server time when there is none or it carries no timestamp.
func (s *EventSource) GetTimestamp() xevent.Timestamp {
	if s.current != nil {
		if t := xevent.TimeOf(s.current); t != xevent.CurrentTime {
			return t
		}
	}
	s.logger.Debug("making a round trip to get a recent server timestamp")
	return s.GetCurrentServerTime()
}

// GetCurrentServerTime asks the server for its current time by touching a
// property on the marker window and reading back the PropertyNotify. The
// notification is removed from the queue. On any failure it returns
// NoTimestamp.
func (s *EventSource) GetCurrentServerTime() xevent.Timestamp {
	if err := s.ensureMarker(); err != nil {
		s.logger.Debug("timestamp marker unavailable", "error", err)
		return xevent.NoTimestamp
	}

	measure := s.sampleRTT()
	var start time.Time
	if measure {
		start = s.now()
	}

	if err := s.conn.ChangeProperty(s.marker, s.markerAtom, xevent.AtomString, 8, []byte{0}); err != nil {
		s.logger.Debug("timestamp property change failed", "error", err)
		return xevent.NoTimestamp
	}
	if err := s.conn.Sync(); err != nil {
		s.logger.Debug("timestamp sync failed", "error", err)
		return xevent.NoTimestamp
	}
	s.metrics.ServerRoundTrips.Inc()
	if measure {
		s.metrics.ServerRTT.ObserveDuration(s.now().Sub(start))
	}

	t := xevent.NoTimestamp
	marker := s.marker
	for _, ev := range s.conn.ExtractEvents(func(ev xevent.Raw) bool {
		pe, ok := ev.(*xevent.PropertyEvent)
		return ok && pe.Window == marker
	}) {
		t = ev.(*xevent.PropertyEvent).Time
	}
	if t == xevent.NoTimestamp {
		s.logger.Debug("no PropertyNotify for timestamp marker", "window", marker)
	}
	return t
}

func (s *EventSource) ensureMarker() error {
	if s.marker != xevent.None {
		return nil
	}
	w, err := s.conn.CreateMarkerWindow()
	if err != nil {
		return fmt.Errorf("create marker window: %w", err)
	}
	atom, err := s.conn.InternAtom(TimestampAtom)
	if err != nil {
		_ = s.conn.DestroyWindow(w)
		return fmt.Errorf("intern %s: %w", TimestampAtom, err)
	}
	s.marker = w
	s.markerAtom = atom
	return nil
}

func (s *EventSource) sampleRTT() bool {
	switch {
	case s.rttSampleRate <= 0:
		return false
	case s.rttSampleRate == 1:
		return true
	}
	return s.randN(s.rttSampleRate) == 0
}

func defaultRandN(n int) int { return rand.Intn(n) }
