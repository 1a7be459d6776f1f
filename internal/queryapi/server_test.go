package queryapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aegisflux/obsfabric/internal/detect"
	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/aegisflux/obsfabric/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetricSource struct {
	samples map[string][]processor.Sample
	recents []fabric.Record
}

func (f *fakeMetricSource) QueryMetric(key string, windowSeconds float64) []processor.Sample {
	return f.samples[key]
}

func (f *fakeMetricSource) MetricStats(key string) (processor.Stats, bool) {
	s, ok := f.samples[key]
	if !ok {
		return processor.Stats{}, false
	}
	return processor.Stats{Count: len(s)}, true
}

func (f *fakeMetricSource) ListMetricKeys() []string {
	keys := make([]string, 0, len(f.samples))
	for k := range f.samples {
		keys = append(keys, k)
	}
	return keys
}

func (f *fakeMetricSource) RecentEvents(eventType fabric.EventType, limit int) []fabric.Record {
	var out []fabric.Record
	for _, r := range f.recents {
		if r.EventType == eventType {
			out = append(out, r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (f *fakeMetricSource) Counters() processor.Counters {
	return processor.Counters{EventsProcessed: 42, ActiveMetrics: len(f.samples)}
}

type fakePipelineSource struct{}

func (fakePipelineSource) Counters() (int, int)                 { return 10, 2 }
func (fakePipelineSource) StateOf(key string) detect.MetricState { return detect.StateArmed }

func newTestServer() (*Server, *fakeMetricSource) {
	src := &fakeMetricSource{
		samples: map[string][]processor.Sample{
			"cpu.total": {{Timestamp: 1, Value: 25}, {Timestamp: 2, Value: 26}},
		},
		recents: []fabric.Record{
			fabric.NewRecord(fabric.EventAnomaly, "ml::anomaly_detector", fabric.Payload{}),
		},
	}
	bus := fabric.NewBus(16)
	s := New(src, fakePipelineSource{}, bus, nil)
	return s, src
}

func TestHandleKeys(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics/keys", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["count"])
}

func TestHandleHistory_RequiresKey(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics/history", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory_ReturnsSamples(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics/history?key=cpu.total", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["count"])
}

func TestHandleAnomalies(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/anomalies", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["count"])
}

func TestHandleReady_NotReadyUntilMarked(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.MarkReady()
	w2 := httptest.NewRecorder()
	s.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestHandleStats_IncludesPipelineCounters(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	pipeline, ok := body["pipeline"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 10, pipeline["ticks_run"])
}
