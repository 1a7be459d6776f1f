package collectors

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

// cpuTimes is the subset of /proc/stat jiffies this sampler needs to
// compute a busy-percentage delta between ticks.
type cpuTimes struct {
	user, nice, system, idle, iowait, irq, softirq, steal uint64
}

func (c cpuTimes) total() uint64 {
	return c.user + c.nice + c.system + c.idle + c.iowait + c.irq + c.softirq + c.steal
}

func (c cpuTimes) busy() uint64 {
	return c.total() - c.idle - c.iowait
}

func parseCPULine(line string) cpuTimes {
	fields := strings.Fields(line)
	var ct cpuTimes
	get := func(i int) uint64 {
		if i < len(fields) {
			return parseUint64(fields[i])
		}
		return 0
	}
	ct.user = get(1)
	ct.nice = get(2)
	ct.system = get(3)
	ct.idle = get(4)
	ct.iowait = get(5)
	ct.irq = get(6)
	ct.softirq = get(7)
	ct.steal = get(8)
	return ct
}

// CPUCollector reads /proc/stat and derives a busy-percent delta per core
// and overall, since a single snapshot of cumulative jiffies is not
// itself a usable metric. Grounded on xtop's collector/cpu.go line
// parsing, extended with the prev/curr delta xtop's TUI renderer performs
// downstream of the collector.
type CPUCollector struct {
	mu   sync.Mutex
	prev map[string]cpuTimes // "total" + "cpu0", "cpu1", ...
}

func NewCPUCollector() *CPUCollector {
	return &CPUCollector{prev: make(map[string]cpuTimes)}
}

func (c *CPUCollector) Name() string { return "cpu" }

func (c *CPUCollector) Sample() ([]fabric.Record, error) {
	lines, err := readLines("/proc/stat")
	if err != nil {
		return nil, fmt.Errorf("read /proc/stat: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	payload := fabric.Payload{}
	var perCore []fabric.Value
	coreIdx := 0

	for _, line := range lines {
		if strings.HasPrefix(line, "cpu ") {
			pct, ok := c.delta("total", parseCPULine(line))
			if ok {
				payload["total_percent"] = fabric.Float(pct)
			}
		} else if strings.HasPrefix(line, "cpu") {
			key := fmt.Sprintf("cpu%d", coreIdx)
			pct, ok := c.delta(key, parseCPULine(line))
			if ok {
				perCore = append(perCore, fabric.Float(pct))
			} else {
				perCore = append(perCore, fabric.Null())
			}
			coreIdx++
		}
	}
	payload["per_core_percent"] = fabric.Array(perCore)

	rec := fabric.NewRecord(fabric.EventCPUMetric, "collector::cpu", payload)
	return []fabric.Record{rec}, nil
}

// delta computes the busy percentage since the previous sample for a
// given key ("total" or "cpuN"), returning ok=false on the first sample
// for that key since there is nothing to diff against yet.
func (c *CPUCollector) delta(key string, cur cpuTimes) (float64, bool) {
	prev, ok := c.prev[key]
	c.prev[key] = cur
	if !ok {
		return 0, false
	}
	totalDelta := cur.total() - prev.total()
	if totalDelta == 0 {
		return 0, true
	}
	busyDelta := cur.busy() - prev.busy()
	pct := float64(busyDelta) / float64(totalDelta) * 100.0
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
