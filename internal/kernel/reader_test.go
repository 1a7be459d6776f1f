package kernel

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRaw assembles a RawRecordSize-byte packed record matching the
// kernel's layout, for use as test fixture input to DecodeRaw/Reader.
func buildRaw(pid, tid, syscallNr uint32, tsEnter, tsExit, latencyNs uint64, ret int64, comm string) []byte {
	buf := make([]byte, RawRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], pid)
	binary.LittleEndian.PutUint32(buf[4:8], tid)
	binary.LittleEndian.PutUint32(buf[8:12], syscallNr)
	binary.LittleEndian.PutUint64(buf[16:24], tsEnter)
	binary.LittleEndian.PutUint64(buf[24:32], tsExit)
	binary.LittleEndian.PutUint64(buf[32:40], latencyNs)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(ret))
	copy(buf[48:64], comm)
	return buf
}

func TestDecodeRaw_WriteSyscall(t *testing.T) {
	raw := buildRaw(1234, 1234, 1, 1_000_000_000, 1_000_005_423, 5423, 0, "python3")

	rec, err := DecodeRaw(raw)
	require.NoError(t, err)

	assert.Equal(t, uint32(1234), rec.PID)
	assert.Equal(t, uint32(1), rec.SyscallNr)
	assert.Equal(t, uint64(5423), rec.LatencyNs)
	assert.Equal(t, "python3", rec.CommString())
	assert.Equal(t, "write", SyscallName(rec.SyscallNr))
}

func TestDecodeRaw_TooShort(t *testing.T) {
	_, err := DecodeRaw(make([]byte, 10))
	require.Error(t, err)
}

func TestSyscallName_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, "syscall_9999", SyscallName(9999))
}

// TestReader_PublishesSyscallEvent exercises the scenario S6 path end to
// end: raw bytes in, fabric.Record out, via a ChannelSource.
func TestReader_PublishesSyscallEvent(t *testing.T) {
	src := NewChannelSource(4)
	src.Push(buildRaw(1234, 1234, 1, 1_000_000_000, 1_000_005_423, 5423, 0, "python3"))

	r := NewReader(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan fabric.Record, 1)
	go func() {
		_ = r.Run(ctx, func(rec fabric.Record) error {
			got <- rec
			return nil
		})
	}()

	select {
	case rec := <-got:
		assert.Equal(t, fabric.EventSyscall, rec.EventType)
		assert.Equal(t, int32(1234), rec.PID)
		assert.Equal(t, "python3", rec.Comm)

		nr, ok := rec.Payload["syscall_nr"].AsInt64()
		require.True(t, ok)
		assert.Equal(t, int64(1), nr)

		name, ok := rec.Payload["syscall_name"].AsString()
		require.True(t, ok)
		assert.Equal(t, "write", name)

		us, ok := rec.Payload["latency_us"].AsFloat64()
		require.True(t, ok)
		assert.InDelta(t, 5.423, us, 1e-6)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published record")
	}

	cancel()
}

func TestReader_FiltersBelowMinLatency(t *testing.T) {
	src := NewChannelSource(4)
	src.Push(buildRaw(1, 1, 0, 0, 100, 50, 0, "noisy"))
	src.Push(buildRaw(2, 2, 1, 0, 200, 999, 0, "loud"))

	r := NewReader(src, WithMinLatencyNs(500))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	got := make(chan fabric.Record, 2)
	_ = r.Run(ctx, func(rec fabric.Record) error {
		got <- rec
		return nil
	})

	close(got)
	var n int
	for rec := range got {
		n++
		assert.Equal(t, "loud", rec.Comm)
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), r.Metrics().FilteredBelow)
}

func TestReader_DecodeErrorDoesNotAbortLoop(t *testing.T) {
	src := NewChannelSource(4)
	src.Push([]byte{0x01, 0x02}) // malformed
	src.Push(buildRaw(5, 5, 2, 0, 10, 10, 0, "ok"))

	r := NewReader(src)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	got := make(chan fabric.Record, 2)
	_ = r.Run(ctx, func(rec fabric.Record) error {
		got <- rec
		return nil
	})
	close(got)

	var n int
	for range got {
		n++
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), r.Metrics().DecodeErrors)
}
