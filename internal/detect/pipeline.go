package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/aegisflux/obsfabric/internal/metrics"
	"github.com/aegisflux/obsfabric/internal/processor"
)

// MetricSource is the processor's read-side contract the pipeline pulls
// from each tick. Narrowed to an interface so the pipeline can be tested
// without a live bus/processor pair.
type MetricSource interface {
	QueryMetric(key string, windowSeconds float64) []processor.Sample
	MetricStats(key string) (processor.Stats, bool)
	ListMetricKeys() []string
}

// PublishFunc hands a completed ANOMALY Event Record to the bus.
type PublishFunc func(fabric.Record) error

// Config mirrors the ml.* options from spec.md §6.
type Config struct {
	DetectionInterval time.Duration
	MinSamples        int
	WindowSeconds     float64
	Cooldown          time.Duration
	EnsembleThreshold float64
	MinVoters         int
}

// DefaultWindowSeconds is the recent-window size the ensemble evaluates
// each tick over (§4.4). It has no corresponding external config option:
// ml.history_window_size governs per-metric buffer capacity, a distinct
// concept, and the buffer itself caps how much of this window can ever
// be populated.
const DefaultWindowSeconds = 300

func DefaultConfig() Config {
	return Config{
		DetectionInterval: 3 * time.Second,
		MinSamples:        20,
		WindowSeconds:     DefaultWindowSeconds,
		Cooldown:          30 * time.Second,
		EnsembleThreshold: 0.7,
		MinVoters:         2,
	}
}

// Pipeline is the Anomaly Detection Pipeline. It owns every model and
// all cooldown/state bookkeeping; nothing outside this type mutates
// model state, per §5's "owned by the pipeline task; no external
// access."
type Pipeline struct {
	source MetricSource
	cfg    Config
	models []Model
	log    *slog.Logger

	cooldowns *CooldownTracker
	states    *StateTracker
	metrics   *metrics.Metrics

	ticksRun    int
	anomaliesFired int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(source MetricSource, cfg Config, models []Model, log *slog.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		source:    source,
		cfg:       cfg,
		models:    models,
		log:       log,
		cooldowns: NewCooldownTracker(cfg.Cooldown),
		states:    NewStateTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ticks on cfg.DetectionInterval until ctx is cancelled. Within a
// tick, cancellation is checked before each metric key; findings are
// published as each key is evaluated, so a tick cancelled part-way has
// already published the findings of the keys evaluated before it stopped.
func (p *Pipeline) Run(ctx context.Context, publish PublishFunc) {
	ticker := time.NewTicker(p.cfg.DetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, publish)
		}
	}
}

func (p *Pipeline) tick(ctx context.Context, publish PublishFunc) {
	now := time.Now()
	for _, key := range p.source.ListMetricKeys() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.evaluateKey(key, now, publish)
	}
	p.ticksRun++
	p.metrics.IncPipelineTick()
}

func (p *Pipeline) evaluateKey(key string, now time.Time, publish PublishFunc) {
	stats, ok := p.source.MetricStats(key)
	if !ok || stats.Count < 1 || stats.Count < p.cfg.MinSamples {
		p.states.Observe(key, stats.Count, p.cfg.MinSamples, false)
		return
	}

	window := Window(p.source.QueryMetric(key, p.cfg.WindowSeconds))
	mean, std := meanStdDev(window.values())
	latest := latestOf(window)

	var ran []MethodScore
	for _, m := range p.models {
		if !m.Capable() {
			continue
		}
		if err := m.Fit(key, window); err != nil {
			p.log.Warn("detect model fit failed", "model", m.Name(), "metric_key", key, "error", err)
			continue
		}
		score, fired, err := m.Score(key, window)
		if err != nil {
			p.log.Warn("detect model score failed", "model", m.Name(), "metric_key", key, "error", err)
			continue
		}
		ran = append(ran, MethodScore{Method: m.Name(), Score: score, Fired: fired})

		if fired && p.cooldowns.Allow(key, m.Name(), now) {
			p.cooldowns.Record(key, m.Name(), now)
			p.emit(Finding{
				MetricKey:  key,
				Value:      latest,
				WindowSize: len(window),
				Mean:       mean,
				StdDev:     std,
				ZScore:     zScoreOf(latest, mean, std),
				Method:     m.Name(),
				Confidence: score,
				Labels:     buildLabels(key, m.Name()),
			}, publish)
		}
	}

	ensemble := Fuse(ran, EnsembleConfig{MinVoters: p.cfg.MinVoters, EnsembleThreshold: p.cfg.EnsembleThreshold})
	if ensemble.Fired && p.cooldowns.Allow(key, "ensemble", now) {
		p.cooldowns.Record(key, "ensemble", now)
		p.emit(Finding{
			MetricKey:           key,
			Value:               latest,
			WindowSize:          len(window),
			Mean:                mean,
			StdDev:              std,
			ZScore:              zScoreOf(latest, mean, std),
			Method:              "ensemble",
			Confidence:          ensemble.Confidence,
			ContributingMethods: ensemble.Voters,
			Labels:              buildLabels(key, "ensemble"),
		}, publish)
	}

	anyCooldownActive := !p.cooldowns.Allow(key, "ensemble", now)
	for _, m := range p.models {
		if !p.cooldowns.Allow(key, m.Name(), now) {
			anyCooldownActive = true
		}
	}
	p.states.Observe(key, stats.Count, p.cfg.MinSamples, anyCooldownActive)
}

func (p *Pipeline) emit(f Finding, publish PublishFunc) {
	rec := fabric.NewRecord(fabric.EventAnomaly, "ml::anomaly_detector", f.ToPayload())
	if err := publish(rec); err != nil {
		p.log.Warn("detect publish failed", "metric_key", f.MetricKey, "method", f.Method, "error", err)
		return
	}
	p.anomaliesFired++
	p.metrics.IncAnomalyFired(f.Method)
}

func zScoreOf(v, mean, std float64) float64 {
	if std <= 1e-9 {
		return 0
	}
	return (v - mean) / std
}

// Counters exposes tick/fire bookkeeping for the stats endpoint.
func (p *Pipeline) Counters() (ticksRun, anomaliesFired int) {
	return p.ticksRun, p.anomaliesFired
}

// StateOf reports a metric key's current lifecycle state.
func (p *Pipeline) StateOf(key string) MetricState {
	return p.states.Current(key)
}
