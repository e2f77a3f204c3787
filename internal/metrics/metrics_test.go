package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReturnsSameInstrument(t *testing.T) {
	r := NewRegistry("xevsource", "test")
	c1 := r.Counter("events_total", "events", nil)
	c2 := r.Counter("events_total", "ignored", nil)
	assert.Same(t, c1, c2)
	assert.Equal(t, "xevsource_test_events_total", c1.Name())

	g := r.Gauge("dispatchers", "", nil)
	g.Inc()
	g.Inc()
	g.Dec()
	assert.Equal(t, int64(1), r.Gauge("dispatchers", "", nil).Value())
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("", "")
	h := r.Histogram("rtt_seconds", "round trips", nil, []float64{0.01, 0.001})
	h.ObserveDuration(500 * time.Microsecond)
	h.Observe(0.001)
	h.Observe(0.2)

	assert.Equal(t, uint64(3), h.Count())
	assert.InDelta(t, 0.2015, h.Sum(), 1e-9)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "# TYPE rtt_seconds histogram")
	assert.Contains(t, out, `rtt_seconds_bucket{le="0.001"} 2`)
	assert.Contains(t, out, `rtt_seconds_bucket{le="0.01"} 2`)
	assert.Contains(t, out, `rtt_seconds_bucket{le="+Inf"} 3`)
	assert.Contains(t, out, "rtt_seconds_count 3")
}

func TestWritePrometheusLabels(t *testing.T) {
	r := NewRegistry("xev", "")
	r.Counter("hotplug_total", "hotplug", Labels{"kind": "keyboard", "bus": "usb"}).Add(4)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	assert.Contains(t, buf.String(), `xev_hotplug_total{bus="usb",kind="keyboard"} 4`)
}

func TestLabelledSeriesShareHeader(t *testing.T) {
	r := NewRegistry("xev", "")
	r.Counter("platform_events_total", "by type", Labels{"type": "key_pressed"}).Inc()
	r.Counter("platform_events_total", "by type", Labels{"type": "mouse_moved"}).Add(2)
	r.Counter("platform_events_total_x", "other", nil).Inc()

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "# TYPE xev_platform_events_total counter"))
	assert.Contains(t, out, `xev_platform_events_total{type="key_pressed"} 1`)
	assert.Contains(t, out, `xev_platform_events_total{type="mouse_moved"} 2`)
	assert.Less(t, strings.Index(out, "mouse_moved"), strings.Index(out, "# TYPE xev_platform_events_total_x"))

	snap := r.Snapshot()
	assert.Equal(t, uint64(2), snap[`xev_platform_events_total{type="mouse_moved"}`])
}

func TestSourceMetricsShareRegistry(t *testing.T) {
	r := NewRegistry("xevsource", "")
	a := NewSourceMetrics(r)
	b := NewSourceMetrics(r)
	a.EventsDispatched.Inc()
	assert.Equal(t, uint64(1), b.EventsDispatched.Value())

	a.ServerRTT.Observe(0.0002)
	snap := r.Snapshot()
	assert.Equal(t, uint64(1), snap["xevsource_events_dispatched_total"])
	assert.Equal(t, uint64(1), snap["xevsource_server_rtt_seconds_count"])
}

func TestHTTPHandler(t *testing.T) {
	r := NewRegistry("xevsource", "")
	r.Counter("batches_truncated_total", "", nil).Inc()
	srv := httptest.NewServer(r.HTTPHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()

	var snap map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&snap))
	assert.Equal(t, float64(1), snap["xevsource_batches_truncated_total"])
}
