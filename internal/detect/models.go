// Package detect implements the Anomaly Detection Pipeline (spec.md
// §4.4): a per-metric ensemble of scoring models running on a fixed
// cadence, with per-(metric,method) cooldowns and confidence fusion.
package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/aegisflux/obsfabric/internal/processor"
)

// Window is the recent slice of samples a model scores against: the
// pipeline's "recent window (default 300 seconds, capped at buffer
// size)" per metric key.
type Window []processor.Sample

func (w Window) values() []float64 {
	vals := make([]float64, len(w))
	for i, s := range w {
		vals[i] = s.Value
	}
	return vals
}

func meanStdDev(vals []float64) (mean, stddev float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}

// latestOf returns the value of the sample with the greatest timestamp
// in the window — the window is an unordered set per §3, so "latest" is
// a property we compute, not assume positionally.
func latestOf(w Window) float64 {
	if len(w) == 0 {
		return 0
	}
	best := w[0]
	for _, s := range w[1:] {
		if s.Timestamp > best.Timestamp {
			best = s
		}
	}
	return best.Value
}

// Model is the capability trait from spec.md §9: ML models as optional
// collaborators. A model whose backing capability is unavailable reports
// Capable()=false at construction and is skipped forever by the
// pipeline without error.
type Model interface {
	Name() string
	Capable() bool
	// Fit is called on every evaluation of a key; each model retrains its
	// per-key state only when its own retrain condition is met. Z-score
	// has no training state and treats this as a no-op.
	Fit(key string, window Window) error
	// Score evaluates the window's latest value, returning a score in
	// [0,1] (1 = most anomalous) and whether it fires.
	Score(key string, window Window) (score float64, fired bool, err error)
}

// ZScoreModel is the mandatory model: no training state, fires when the
// latest value's z-score exceeds threshold.
type ZScoreModel struct {
	Threshold float64
}

func NewZScoreModel(threshold float64) *ZScoreModel {
	if threshold <= 0 {
		threshold = 3.0
	}
	return &ZScoreModel{Threshold: threshold}
}

func (m *ZScoreModel) Name() string   { return "z_score" }
func (m *ZScoreModel) Capable() bool  { return true }
func (m *ZScoreModel) Fit(string, Window) error { return nil }

func (m *ZScoreModel) Score(key string, w Window) (float64, bool, error) {
	mean, std := meanStdDev(w.values())
	v := latestOf(w)

	var z float64
	if std > 1e-9 {
		z = math.Abs(v-mean) / std
	}
	fired := z > m.Threshold
	score := math.Min(1, z/(2*m.Threshold))
	return score, fired, nil
}

// trainedBounds is the shared per-key fit state for the boundary-style
// models below: mean/std over the last train_window samples, refit once
// the scored window has grown by at least retrain_delta samples since the
// last fit. A window whose length stops growing keeps its last fit.
type trainedBounds struct {
	mean, std  float64
	lastFitLen int
	fitted     bool
}

type boundaryConfig struct {
	trainWindow  int
	retrainDelta int
}

func (c boundaryConfig) needsRefit(b trainedBounds, windowLen int) bool {
	if !b.fitted {
		return true
	}
	return windowLen-b.lastFitLen >= c.retrainDelta
}

func trainOn(w Window, trainWindow int) trainedBounds {
	vals := w.values()
	if len(vals) > trainWindow {
		vals = vals[len(vals)-trainWindow:]
	}
	mean, std := meanStdDev(vals)
	return trainedBounds{mean: mean, std: std, fitted: true}
}

// IsolationModel approximates an isolation-forest-style outlier score
// with a rank/percentile distance: no isolation-forest implementation
// exists among the reference libraries (see DESIGN.md), so this is a
// self-contained statistical stand-in gated the same way a real one
// would be, per the capability trait.
type IsolationModel struct {
	cfg      boundaryConfig
	lowerPct float64
	upperPct float64

	state map[string]trainedBounds
	ranks map[string][]float64
}

func NewIsolationModel(trainWindow, retrainDelta int) *IsolationModel {
	if trainWindow <= 0 {
		trainWindow = 100
	}
	if retrainDelta <= 0 {
		retrainDelta = 20
	}
	return &IsolationModel{
		cfg:      boundaryConfig{trainWindow: trainWindow, retrainDelta: retrainDelta},
		lowerPct: 0.01,
		upperPct: 0.99,
		state:    make(map[string]trainedBounds),
		ranks:    make(map[string][]float64),
	}
}

func (m *IsolationModel) Name() string  { return "isolation" }
func (m *IsolationModel) Capable() bool { return true }

func (m *IsolationModel) Fit(key string, w Window) error {
	b := m.state[key]
	if !m.cfg.needsRefit(b, len(w)) {
		return nil
	}
	vals := w.values()
	if len(vals) > m.cfg.trainWindow {
		vals = vals[len(vals)-m.cfg.trainWindow:]
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	nb := trainOn(w, m.cfg.trainWindow)
	nb.lastFitLen = len(w)
	m.state[key] = nb
	m.ranks[key] = sorted
	return nil
}

func (m *IsolationModel) Score(key string, w Window) (float64, bool, error) {
	sorted := m.ranks[key]
	if len(sorted) == 0 {
		return 0, false, fmt.Errorf("%w: isolation model not fit for %s", ErrModel, key)
	}
	v := latestOf(w)

	lowerIdx := int(m.lowerPct * float64(len(sorted)))
	upperIdx := int(m.upperPct * float64(len(sorted)))
	if upperIdx >= len(sorted) {
		upperIdx = len(sorted) - 1
	}
	lowerBound, upperBound := sorted[lowerIdx], sorted[upperIdx]

	rng := upperBound - lowerBound
	if rng <= 1e-9 {
		return 0, false, nil
	}

	var dist float64
	fired := false
	if v < lowerBound {
		dist = lowerBound - v
		fired = true
	} else if v > upperBound {
		dist = v - upperBound
		fired = true
	}
	score := math.Min(1, dist/rng)
	return score, fired, nil
}

// OneClassModel approximates a one-class boundary (e.g. one-class SVM)
// with a mean +/- k*std envelope trained the same way as IsolationModel,
// using a wider multiplier so it is not a redundant copy of z-score.
type OneClassModel struct {
	cfg        boundaryConfig
	kMultiplier float64
	state      map[string]trainedBounds
}

func NewOneClassModel(trainWindow, retrainDelta int) *OneClassModel {
	if trainWindow <= 0 {
		trainWindow = 100
	}
	if retrainDelta <= 0 {
		retrainDelta = 20
	}
	return &OneClassModel{
		cfg:         boundaryConfig{trainWindow: trainWindow, retrainDelta: retrainDelta},
		kMultiplier: 3.5,
		state:       make(map[string]trainedBounds),
	}
}

func (m *OneClassModel) Name() string  { return "one_class" }
func (m *OneClassModel) Capable() bool { return true }

func (m *OneClassModel) Fit(key string, w Window) error {
	b := m.state[key]
	if !m.cfg.needsRefit(b, len(w)) {
		return nil
	}
	nb := trainOn(w, m.cfg.trainWindow)
	nb.lastFitLen = len(w)
	m.state[key] = nb
	return nil
}

func (m *OneClassModel) Score(key string, w Window) (float64, bool, error) {
	b, ok := m.state[key]
	if !ok {
		return 0, false, fmt.Errorf("%w: one_class model not fit for %s", ErrModel, key)
	}
	v := latestOf(w)
	if b.std <= 1e-9 {
		return 0, false, nil
	}
	boundary := m.kMultiplier * b.std
	dist := math.Abs(v - b.mean)
	fired := dist > boundary
	score := math.Min(1, dist/(2*boundary))
	return score, fired, nil
}

// ReconstructionModel approximates an encoder-decoder's reconstruction
// error with a moving-average predictor: predicted value is the trained
// mean, error is the normalized residual. Only enabled when the caller
// sets Enabled; otherwise Capable() reports false and the pipeline skips
// it forever, per the capability trait.
type ReconstructionModel struct {
	cfg       boundaryConfig
	Enabled   bool
	threshold float64
	state     map[string]trainedBounds
}

func NewReconstructionModel(trainWindow, retrainDelta int, enabled bool) *ReconstructionModel {
	if trainWindow <= 0 {
		trainWindow = 100
	}
	if retrainDelta <= 0 {
		retrainDelta = 20
	}
	return &ReconstructionModel{
		cfg:       boundaryConfig{trainWindow: trainWindow, retrainDelta: retrainDelta},
		Enabled:   enabled,
		threshold: 3.0,
		state:     make(map[string]trainedBounds),
	}
}

func (m *ReconstructionModel) Name() string  { return "reconstruction" }
func (m *ReconstructionModel) Capable() bool { return m.Enabled }

func (m *ReconstructionModel) Fit(key string, w Window) error {
	b := m.state[key]
	if !m.cfg.needsRefit(b, len(w)) {
		return nil
	}
	nb := trainOn(w, m.cfg.trainWindow)
	nb.lastFitLen = len(w)
	m.state[key] = nb
	return nil
}

func (m *ReconstructionModel) Score(key string, w Window) (float64, bool, error) {
	b, ok := m.state[key]
	if !ok {
		return 0, false, fmt.Errorf("%w: reconstruction model not fit for %s", ErrModel, key)
	}
	v := latestOf(w)
	residual := math.Abs(v - b.mean)
	denom := b.std
	if denom <= 1e-9 {
		denom = 1e-9
	}
	errNorm := residual / denom
	fired := errNorm > m.threshold
	score := math.Min(1, errNorm/(2*m.threshold))
	return score, fired, nil
}
