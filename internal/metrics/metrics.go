// Package metrics defines the Prometheus counters and gauges this fabric
// exports at /metrics, grounded on the ingest service's promauto-based
// Metrics struct and the correlator's Set*-style gauge updates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and gauge registered on the default
// registry, the one promhttp.Handler() exposes at /metrics.
type Metrics struct {
	BusPublishedTotal prometheus.Counter
	BusDroppedTotal   prometheus.Counter

	ProcessorEventsProcessedTotal prometheus.Counter
	ProcessorActiveMetrics        prometheus.Gauge

	PipelineTicksTotal     prometheus.Counter
	PipelineAnomaliesFired *prometheus.CounterVec
}

// New constructs and registers every metric.
func New() *Metrics {
	return &Metrics{
		BusPublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fabric_bus_published_total",
			Help: "Total records published to the event bus.",
		}),
		BusDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fabric_bus_dropped_total",
			Help: "Total records dropped from a subscriber queue on overflow.",
		}),
		ProcessorEventsProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fabric_processor_events_processed_total",
			Help: "Total records handled by the stream processor.",
		}),
		ProcessorActiveMetrics: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fabric_processor_active_metrics",
			Help: "Number of distinct metric keys currently tracked.",
		}),
		PipelineTicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fabric_pipeline_ticks_total",
			Help: "Total detection pipeline ticks run.",
		}),
		PipelineAnomaliesFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fabric_pipeline_anomalies_fired_total",
			Help: "Total anomaly findings emitted, by detection method.",
		}, []string{"method"}),
	}
}

// Every increment/set method is nil-receiver-safe so callers never have to
// guard a call site just because metrics were not wired in (e.g. in tests).

func (m *Metrics) IncBusPublished() {
	if m == nil {
		return
	}
	m.BusPublishedTotal.Inc()
}

func (m *Metrics) IncBusDropped() {
	if m == nil {
		return
	}
	m.BusDroppedTotal.Inc()
}

func (m *Metrics) IncProcessorEventsProcessed() {
	if m == nil {
		return
	}
	m.ProcessorEventsProcessedTotal.Inc()
}

func (m *Metrics) SetProcessorActiveMetrics(n float64) {
	if m == nil {
		return
	}
	m.ProcessorActiveMetrics.Set(n)
}

func (m *Metrics) IncPipelineTick() {
	if m == nil {
		return
	}
	m.PipelineTicksTotal.Inc()
}

func (m *Metrics) IncAnomalyFired(method string) {
	if m == nil {
		return
	}
	m.PipelineAnomaliesFired.WithLabelValues(method).Inc()
}
