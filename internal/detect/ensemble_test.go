package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_FiresOnMinVoters(t *testing.T) {
	ran := []MethodScore{
		{Method: "z_score", Score: 0.9, Fired: true},
		{Method: "isolation", Score: 0.8, Fired: true},
		{Method: "one_class", Score: 0.1, Fired: false},
	}
	res := Fuse(ran, EnsembleConfig{MinVoters: 2, EnsembleThreshold: 0.95})
	assert.True(t, res.Fired)
	assert.Len(t, res.Voters, 2)
}

func TestFuse_FiresOnConfidenceAlone(t *testing.T) {
	ran := []MethodScore{
		{Method: "z_score", Score: 0.9, Fired: true},
		{Method: "isolation", Score: 0.8, Fired: false},
	}
	res := Fuse(ran, EnsembleConfig{MinVoters: 5, EnsembleThreshold: 0.7})
	assert.True(t, res.Fired)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
}

// TestFuse_SuppressesSingleWeakVoter is scenario S4: one model fires
// with score 0.5, others don't; min_voters=2, ensemble_threshold=0.7.
func TestFuse_SuppressesSingleWeakVoter(t *testing.T) {
	ran := []MethodScore{
		{Method: "z_score", Score: 0.5, Fired: true},
		{Method: "isolation", Score: 0.1, Fired: false},
		{Method: "one_class", Score: 0.05, Fired: false},
	}
	res := Fuse(ran, EnsembleConfig{MinVoters: 2, EnsembleThreshold: 0.7})
	assert.False(t, res.Fired)
}

func TestFuse_EmptyRanNeverFires(t *testing.T) {
	res := Fuse(nil, EnsembleConfig{MinVoters: 1, EnsembleThreshold: 0})
	assert.False(t, res.Fired)
}
