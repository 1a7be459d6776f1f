package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWholeDisk(t *testing.T) {
	assert.True(t, isWholeDisk("sda"))
	assert.False(t, isWholeDisk("sda1"))
	assert.True(t, isWholeDisk("nvme0n1"))
	assert.False(t, isWholeDisk("nvme0n1p1"))
	assert.False(t, isWholeDisk("loop0"))
	assert.True(t, isWholeDisk("dm-0"))
}

func TestParseDiskstatLine(t *testing.T) {
	line := "   8       0 sda 100 5 2000 10 200 5 4000 20 0 30 40"
	name, counters, ok := parseDiskstatLine(line)
	require.True(t, ok)
	assert.Equal(t, "sda", name)
	assert.Equal(t, uint64(2000*sectorSize), counters.readBytes)
	assert.Equal(t, uint64(4000*sectorSize), counters.writeBytes)
}

func TestParseNetDevLine(t *testing.T) {
	line := "  eth0: 1000 10 0 0 0 0 0 0 2000 20 1 0 0 0 0 0"
	name, counters, ok := parseNetDevLine(line)
	require.True(t, ok)
	assert.Equal(t, "eth0", name)
	assert.Equal(t, uint64(1000), counters.rxBytes)
	assert.Equal(t, uint64(2000), counters.txBytes)
	assert.Equal(t, uint64(1), counters.txErrors)
}

func TestCPUCollector_DeltaRequiresPriorSample(t *testing.T) {
	c := NewCPUCollector()
	pct, ok := c.delta("total", cpuTimes{user: 100, idle: 900})
	assert.False(t, ok)
	assert.Zero(t, pct)

	pct, ok = c.delta("total", cpuTimes{user: 150, idle: 950})
	require.True(t, ok)
	assert.InDelta(t, 50.0, pct, 0.001)
}

func TestParseCPULine(t *testing.T) {
	ct := parseCPULine("cpu  100 0 50 900 0 0 0 0")
	assert.Equal(t, uint64(100), ct.user)
	assert.Equal(t, uint64(50), ct.system)
	assert.Equal(t, uint64(900), ct.idle)
}
