package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeSeries_StatsEmpty(t *testing.T) {
	ts := NewTimeSeries(10)
	st := ts.Stats()
	assert.Zero(t, st.Count)
	assert.Zero(t, st.StdDev)
}

func TestTimeSeries_StdDevZeroBelowTwoSamples(t *testing.T) {
	ts := NewTimeSeries(10)
	ts.Append(Sample{Timestamp: 1, Value: 42})
	st := ts.Stats()
	assert.Equal(t, 1, st.Count)
	assert.Zero(t, st.StdDev)
	assert.Equal(t, 42.0, st.Latest)
}

func TestTimeSeries_EvictsOldestOnOverflow(t *testing.T) {
	ts := NewTimeSeries(3)
	for i := 0; i < 5; i++ {
		ts.Append(Sample{Timestamp: float64(i), Value: float64(i)})
	}
	assert.Equal(t, 3, ts.Len())
	st := ts.Stats()
	assert.Equal(t, 4.0, st.Latest)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 4.0, st.Max)
}

func TestTimeSeries_QueryWindowFiltersByTimestamp(t *testing.T) {
	ts := NewTimeSeries(10)
	ts.Append(Sample{Timestamp: 100, Value: 1})
	ts.Append(Sample{Timestamp: 150, Value: 2})
	ts.Append(Sample{Timestamp: 195, Value: 3})

	got := ts.Query(200, 30)
	assert.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Value)
}

func TestTimeSeries_QueryUnknownRangeReturnsEmpty(t *testing.T) {
	ts := NewTimeSeries(10)
	got := ts.Query(1000, 10)
	assert.Empty(t, got)
}

func TestTimeSeries_MeanAndStdDev(t *testing.T) {
	ts := NewTimeSeries(10)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		ts.Append(Sample{Timestamp: v, Value: v})
	}
	st := ts.Stats()
	assert.InDelta(t, 5.0, st.Mean, 1e-9)
	assert.InDelta(t, 2.0, st.StdDev, 1e-9)
}
