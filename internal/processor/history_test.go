package processor

import (
	"testing"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_NewestFirst(t *testing.T) {
	h := NewHistory(3)
	h.Append(fabric.NewRecord(fabric.EventCPUMetric, "t", nil))
	h.Append(fabric.NewRecord(fabric.EventMemoryMetric, "t", nil))
	h.Append(fabric.NewRecord(fabric.EventAnomaly, "t", nil))

	recent := h.Recent("", 10)
	require.Len(t, recent, 3)
	assert.Equal(t, fabric.EventAnomaly, recent[0].EventType)
	assert.Equal(t, fabric.EventCPUMetric, recent[2].EventType)
}

func TestHistory_FilterByType(t *testing.T) {
	h := NewHistory(10)
	h.Append(fabric.NewRecord(fabric.EventCPUMetric, "t", nil))
	h.Append(fabric.NewRecord(fabric.EventAnomaly, "t", nil))
	h.Append(fabric.NewRecord(fabric.EventAnomaly, "t", nil))

	recent := h.Recent(fabric.EventAnomaly, 10)
	assert.Len(t, recent, 2)
}

func TestHistory_EvictsOldestOnOverflow(t *testing.T) {
	h := NewHistory(2)
	h.Append(fabric.NewRecord(fabric.EventCPUMetric, "t", nil))
	h.Append(fabric.NewRecord(fabric.EventMemoryMetric, "t", nil))
	h.Append(fabric.NewRecord(fabric.EventDiskMetric, "t", nil))

	recent := h.Recent("", 10)
	require.Len(t, recent, 2)
	assert.Equal(t, fabric.EventDiskMetric, recent[0].EventType)
	assert.Equal(t, fabric.EventMemoryMetric, recent[1].EventType)
}
