// Package processor implements the Stream Processor (spec.md §4.3): it
// subscribes to every event on the fabric, enriches records with
// process-info context, extracts named scalar samples into per-metric
// circular buffers, and serves windowed read queries.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/aegisflux/obsfabric/internal/metrics"
)

// Counters mirrors the processor-side half of the "Stats" external
// interface contract (spec.md §6).
type Counters struct {
	EventsProcessed uint64
	ActiveMetrics   int
	ProcessCacheSize int
	EventHistorySize int
}

// Processor is the Stream Processor. It owns the time-series map, the
// process cache, and the event history ring; other components only ever
// see these through its exported read methods.
type Processor struct {
	bus           *fabric.Bus
	subscriberID  string
	cache         *ProcessCache
	history       *History
	seriesCap     int
	log           *slog.Logger
	metrics       *metrics.Metrics

	mu     sync.RWMutex
	series map[string]*TimeSeries

	eventsProcessed atomic.Uint64
}

type Option func(*Processor)

func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func New(bus *fabric.Bus, cache *ProcessCache, history *History, seriesCapacity int, opts ...Option) *Processor {
	p := &Processor{
		bus:          bus,
		subscriberID: "processor",
		cache:        cache,
		history:      history,
		seriesCap:    seriesCapacity,
		series:       make(map[string]*TimeSeries),
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run subscribes to the bus and processes records until ctx is
// cancelled or the bus shuts down. It returns nil on either clean exit.
func (p *Processor) Run(ctx context.Context) error {
	handle, err := p.bus.Subscribe(p.subscriberID, nil)
	if err != nil {
		return fmt.Errorf("processor subscribe: %w", err)
	}
	defer p.bus.Unsubscribe(p.subscriberID)

	for {
		rec, err := handle.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, fabric.ErrBusClosed) {
				return nil
			}
			return err
		}
		p.handle(rec)
	}
}

func (p *Processor) handle(rec fabric.Record) {
	p.enrich(&rec)

	for _, sample := range extractMetrics(rec) {
		p.appendSample(sample.Key, Sample{
			Timestamp: rec.Timestamp,
			Value:     sample.Value,
			Metadata:  sample.Metadata,
		})
	}

	p.history.Append(rec)
	p.eventsProcessed.Add(1)
	p.metrics.IncProcessorEventsProcessed()

	p.mu.RLock()
	active := len(p.series)
	p.mu.RUnlock()
	p.metrics.SetProcessorActiveMetrics(float64(active))
}

// enrich resolves the record's pid against the process cache. Records
// are immutable once published (§3) and their payload map may be shared
// with other subscribers, so enrichment replaces rec.Payload with a
// fresh copy rather than mutating the original in place. Failure to
// resolve is recorded as resolved=false and never propagates an error,
// per §4.3.
func (p *Processor) enrich(rec *fabric.Record) {
	if rec.PID == 0 || p.cache == nil {
		return
	}
	info, resolved := p.cache.Lookup(rec.PID)

	copied := make(fabric.Payload, len(rec.Payload)+1)
	for k, v := range rec.Payload {
		copied[k] = v
	}
	copied["_enrichment"] = fabric.Map(fabric.Payload{
		"resolved": fabric.Bool(resolved),
		"comm":     fabric.Str(info.Comm),
		"cmdline":  fabric.Str(info.Cmdline),
		"user":     fabric.Str(info.User),
	})
	rec.Payload = copied
}

func (p *Processor) appendSample(key string, s Sample) {
	p.mu.Lock()
	ts, ok := p.series[key]
	if !ok {
		ts = NewTimeSeries(p.seriesCap)
		p.series[key] = ts
	}
	p.mu.Unlock()
	ts.Append(s)
}

// QueryMetric returns every sample in key's buffer within
// [now-windowSeconds, now]. Unknown keys return an empty slice.
func (p *Processor) QueryMetric(key string, windowSeconds float64) []Sample {
	p.mu.RLock()
	ts, ok := p.series[key]
	p.mu.RUnlock()
	if !ok {
		return []Sample{}
	}
	return ts.Query(nowSeconds(), windowSeconds)
}

// MetricStats returns the full-buffer stats for key, or the zero Stats
// if the key is unknown.
func (p *Processor) MetricStats(key string) (Stats, bool) {
	p.mu.RLock()
	ts, ok := p.series[key]
	p.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return ts.Stats(), true
}

// ListMetricKeys returns every currently tracked metric key.
func (p *Processor) ListMetricKeys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.series))
	for k := range p.series {
		keys = append(keys, k)
	}
	return keys
}

// RecentEvents returns up to limit history records matching eventType,
// newest first.
func (p *Processor) RecentEvents(eventType fabric.EventType, limit int) []fabric.Record {
	return p.history.Recent(eventType, limit)
}

func (p *Processor) Counters() Counters {
	p.mu.RLock()
	active := len(p.series)
	p.mu.RUnlock()

	cacheSize := 0
	if p.cache != nil {
		cacheSize = p.cache.Len()
	}

	return Counters{
		EventsProcessed:  p.eventsProcessed.Load(),
		ActiveMetrics:    active,
		ProcessCacheSize: cacheSize,
		EventHistorySize: p.history.Len(),
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
