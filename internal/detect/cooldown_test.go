package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCooldownTracker_SuppressesWithinWindow is invariant 5: after an
// anomaly of method m fires for key k at time t, no anomaly of (k, m) is
// emitted with timestamp in [t, t+cooldown).
func TestCooldownTracker_SuppressesWithinWindow(t *testing.T) {
	c := NewCooldownTracker(10 * time.Second)
	t0 := time.Now()

	assert.True(t, c.Allow("cpu.total", "z_score", t0))
	c.Record("cpu.total", "z_score", t0)

	assert.False(t, c.Allow("cpu.total", "z_score", t0.Add(5*time.Second)))
	assert.True(t, c.Allow("cpu.total", "z_score", t0.Add(10*time.Second)))
}

func TestCooldownTracker_IndependentPerMethod(t *testing.T) {
	c := NewCooldownTracker(10 * time.Second)
	t0 := time.Now()
	c.Record("cpu.total", "z_score", t0)

	assert.True(t, c.Allow("cpu.total", "isolation", t0))
	assert.True(t, c.Allow("cpu.total", "ensemble", t0))
}

func TestStateTracker_Transitions(t *testing.T) {
	s := NewStateTracker()
	assert.Equal(t, StateUntracked, s.Current("k"))

	st := s.Observe("k", 1, 20, false)
	assert.Equal(t, StateTracking, st)

	st = s.Observe("k", 20, 20, false)
	assert.Equal(t, StateArmed, st)

	st = s.Observe("k", 25, 20, true)
	assert.Equal(t, StateCooldown, st)

	st = s.Observe("k", 26, 20, false)
	assert.Equal(t, StateArmed, st)
}

func TestStateTracker_ZeroMinSamplesArmsOnFirstSample(t *testing.T) {
	s := NewStateTracker()
	st := s.Observe("k", 1, 0, false)
	assert.Equal(t, StateArmed, st)
}
