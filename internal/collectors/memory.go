package collectors

import (
	"fmt"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

// MemoryCollector reads /proc/meminfo, grounded on xtop's
// collector/memory.go MemTotal/MemAvailable/SwapTotal/SwapFree parsing,
// reduced to the used-bytes/used-percent shape the processor's
// MEMORY_METRIC mapping expects.
type MemoryCollector struct{}

func NewMemoryCollector() *MemoryCollector { return &MemoryCollector{} }

func (m *MemoryCollector) Name() string { return "memory" }

func (m *MemoryCollector) Sample() ([]fabric.Record, error) {
	kv, err := readKeyValueFile("/proc/meminfo")
	if err != nil {
		return nil, fmt.Errorf("read /proc/meminfo: %w", err)
	}

	total := parseKB(kv["MemTotal"])
	avail := parseKB(kv["MemAvailable"])
	used := uint64(0)
	if total > avail {
		used = total - avail
	}
	var usedPct float64
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100.0
	}

	swapTotal := parseKB(kv["SwapTotal"])
	swapFree := parseKB(kv["SwapFree"])
	swapUsed := uint64(0)
	if swapTotal > swapFree {
		swapUsed = swapTotal - swapFree
	}
	var swapPct float64
	if swapTotal > 0 {
		swapPct = float64(swapUsed) / float64(swapTotal) * 100.0
	}

	payload := fabric.Payload{
		"virtual_bytes":   fabric.Int(int64(used)),
		"virtual_percent": fabric.Float(usedPct),
		"swap_bytes":      fabric.Int(int64(swapUsed)),
		"swap_percent":    fabric.Float(swapPct),
	}

	rec := fabric.NewRecord(fabric.EventMemoryMetric, "collector::memory", payload)
	return []fabric.Record{rec}, nil
}
