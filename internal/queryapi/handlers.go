package queryapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}

// handleSnapshot serves GET /metrics/snapshot: realtime stats for every
// tracked metric key.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := make(map[string]interface{})
	for _, key := range s.proc.ListMetricKeys() {
		if stats, ok := s.proc.MetricStats(key); ok {
			snapshot[key] = stats
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":   snapshot,
		"timestamp": time.Now().UTC(),
	})
}

// handleHistory serves GET /metrics/history?key=...&window_seconds=...
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	windowSeconds := 300.0
	if v := r.URL.Query().Get("window_seconds"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			windowSeconds = parsed
		}
	}

	samples := s.proc.QueryMetric(key, windowSeconds)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":            key,
		"window_seconds": windowSeconds,
		"samples":        samples,
		"count":          len(samples),
	})
}

// handleKeys serves GET /metrics/keys.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys := s.proc.ListMetricKeys()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

// handleAnomalies serves GET /anomalies?limit=..., the most recent ANOMALY
// records newest first.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	recs := s.proc.RecentEvents(fabric.EventAnomaly, limit)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": recs,
		"count":     len(recs),
	})
}

// handleEvents serves GET /events?type=...&limit=...
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventType := fabric.EventType(r.URL.Query().Get("type"))
	if eventType == "" {
		s.writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	limit := parseLimit(r, 100)
	recs := s.proc.RecentEvents(eventType, limit)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": recs,
		"count":  len(recs),
	})
}

// handleStats serves GET /stats: bus metrics plus processor and pipeline
// counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"bus":       s.bus.Metrics(),
		"processor": s.proc.Counters(),
		"timestamp": time.Now().UTC(),
	}
	if s.pipeline != nil {
		ticks, fired := s.pipeline.Counters()
		resp["pipeline"] = map[string]interface{}{
			"ticks_run":       ticks,
			"anomalies_fired": fired,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultLimit
}
