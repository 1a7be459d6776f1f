package detect

import (
	"testing"

	"github.com/aegisflux/obsfabric/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkWindow(values []float64) Window {
	w := make(Window, len(values))
	for i, v := range values {
		w[i] = processor.Sample{Timestamp: float64(i), Value: v}
	}
	return w
}

func TestZScoreModel_NeverFiresOnConstantSeries(t *testing.T) {
	m := NewZScoreModel(3.0)
	vals := make([]float64, 25)
	for i := range vals {
		vals[i] = 25
	}
	score, fired, err := m.Score("cpu.total", mkWindow(vals))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Zero(t, score)
}

func TestZScoreModel_FiresOnSpike(t *testing.T) {
	m := NewZScoreModel(3.0)
	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = 25
	}
	vals = append(vals, 95)

	score, fired, err := m.Score("cpu.total", mkWindow(vals))
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Greater(t, score, 0.0)
}

func TestIsolationModel_SkippedUntilFit(t *testing.T) {
	m := NewIsolationModel(100, 20)
	_, _, err := m.Score("cpu.total", mkWindow([]float64{1, 2, 3}))
	require.Error(t, err)

	require.NoError(t, m.Fit("cpu.total", mkWindow([]float64{1, 2, 3, 4, 5})))
	_, _, err = m.Score("cpu.total", mkWindow([]float64{1, 2, 3, 4, 5}))
	require.NoError(t, err)
}

func TestReconstructionModel_CapableOnlyWhenEnabled(t *testing.T) {
	disabled := NewReconstructionModel(100, 20, false)
	assert.False(t, disabled.Capable())

	enabled := NewReconstructionModel(100, 20, true)
	assert.True(t, enabled.Capable())
}

func TestOneClassModel_FiresOutsideBoundary(t *testing.T) {
	m := NewOneClassModel(100, 20)
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 50 + float64(i%3) // small jitter so std > 0
	}
	require.NoError(t, m.Fit("k", mkWindow(vals)))

	spike := append(append([]float64{}, vals...), 500)
	score, fired, err := m.Score("k", mkWindow(spike))
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Greater(t, score, 0.0)
}
