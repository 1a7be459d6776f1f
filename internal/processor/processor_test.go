package processor

import (
	"context"
	"testing"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor() (*Processor, *fabric.Bus) {
	bus := fabric.NewBus(fabric.DefaultBufferSize)
	cache := NewProcessCache(100, time.Minute)
	history := NewHistory(100)
	return New(bus, cache, history, 50), bus
}

func TestProcessor_ExtractsCPUMetric(t *testing.T) {
	p, bus := newTestProcessor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = p.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	rec := fabric.NewRecord(fabric.EventCPUMetric, "collector::cpu", fabric.Payload{
		"total_percent":    fabric.Float(42.5),
		"per_core_percent": fabric.Array([]fabric.Value{fabric.Float(10), fabric.Float(20)}),
	})
	require.NoError(t, bus.Publish(rec))

	require.Eventually(t, func() bool {
		_, ok := p.MetricStats("cpu.total")
		return ok
	}, time.Second, 5*time.Millisecond)

	st, ok := p.MetricStats("cpu.total")
	require.True(t, ok)
	assert.Equal(t, 42.5, st.Latest)

	st0, ok := p.MetricStats("cpu.0")
	require.True(t, ok)
	assert.Equal(t, 10.0, st0.Latest)
}

func TestProcessor_UnknownEventTypeExtractsNothing(t *testing.T) {
	p, bus := newTestProcessor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = p.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	rec := fabric.NewRecord(fabric.EventSyscall, "kernel", fabric.Payload{"syscall_nr": fabric.Int(1)})
	require.NoError(t, bus.Publish(rec))

	require.Eventually(t, func() bool {
		return p.Counters().EventsProcessed >= 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, p.ListMetricKeys())
}

func TestProcessor_QueryUnknownKeyReturnsEmpty(t *testing.T) {
	p, _ := newTestProcessor()
	assert.Empty(t, p.QueryMetric("nope", 60))
	_, ok := p.MetricStats("nope")
	assert.False(t, ok)
}

func TestProcessor_HistoryAccumulates(t *testing.T) {
	p, bus := newTestProcessor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = p.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, bus.Publish(fabric.NewRecord(fabric.EventMemoryMetric, "collector::memory", fabric.Payload{
		"virtual_bytes": fabric.Int(1024),
	})))

	require.Eventually(t, func() bool {
		return p.Counters().EventHistorySize >= 1
	}, time.Second, 5*time.Millisecond)
}
