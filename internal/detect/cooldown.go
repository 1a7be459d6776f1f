package detect

import (
	"sync"
	"time"
)

// CooldownTracker suppresses repeat fires for a (metric_key, method)
// pair for a fixed duration after the first fire, per spec.md §4.4's
// cooldown paragraph. Timestamps are monotonic clock reads, per §9's
// "use a monotonic clock for cooldowns" note — time.Now() on Go already
// returns a value with a monotonic reading attached for Sub/After/Before.
type CooldownTracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	firedAt  map[string]time.Time
}

func NewCooldownTracker(cooldown time.Duration) *CooldownTracker {
	return &CooldownTracker{cooldown: cooldown, firedAt: make(map[string]time.Time)}
}

func cooldownKey(metricKey, method string) string { return metricKey + "|" + method }

// Allow reports whether a fire for (metricKey, method) at now is
// permitted, i.e. not within cooldown of a previous fire.
func (c *CooldownTracker) Allow(metricKey, method string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.firedAt[cooldownKey(metricKey, method)]
	if !ok {
		return true
	}
	return now.Sub(last) >= c.cooldown
}

// Record marks (metricKey, method) as having fired at now.
func (c *CooldownTracker) Record(metricKey, method string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.firedAt[cooldownKey(metricKey, method)] = now
}

// MetricState is the per-metric_key lifecycle from spec.md §4.4's state
// table: UNTRACKED -> TRACKING -> ARMED -> COOLDOWN -> ARMED.
type MetricState int

const (
	StateUntracked MetricState = iota
	StateTracking
	StateArmed
	StateCooldown
)

func (s MetricState) String() string {
	switch s {
	case StateTracking:
		return "TRACKING"
	case StateArmed:
		return "ARMED"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "UNTRACKED"
	}
}

// StateTracker maintains the per-metric_key state above. It gates when
// the pipeline starts evaluating a metric (TRACKING -> ARMED at
// min_samples) and reports COOLDOWN while any method for that key is
// within its own cooldown window; the precise per-(metric,method)
// suppression is still enforced by CooldownTracker, this is the
// observable summary spec.md §4.4 names.
type StateTracker struct {
	mu     sync.Mutex
	states map[string]MetricState
}

func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[string]MetricState)}
}

func (s *StateTracker) Observe(key string, sampleCount, minSamples int, anyCooldownActive bool) MetricState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[key]
	if !ok {
		st = StateUntracked
	}
	if sampleCount > 0 && st == StateUntracked {
		st = StateTracking
	}
	if st == StateTracking && sampleCount >= minSamples {
		st = StateArmed
	}
	if st == StateArmed && anyCooldownActive {
		st = StateCooldown
	} else if st == StateCooldown && !anyCooldownActive {
		st = StateArmed
	}
	s.states[key] = st
	return st
}

func (s *StateTracker) Current(key string) MetricState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}
