package collectors

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

type procSample struct {
	utime, stime uint64
	rss          uint64
	sampledAt    time.Time
}

// ProcessCollector reads per-PID CPU/RSS from /proc/<pid>/stat and
// /proc/<pid>/status, keeping the top-N processes by CPU delta. Grounded
// on xtop's collector/process.go directory walk and stat-field parsing,
// with a prev/curr delta added (xtop reports raw jiffies; the
// PROCESS_METRIC mapping wants cpu_percent).
type ProcessCollector struct {
	TopN int

	mu   sync.Mutex
	prev map[int]procSample
}

func NewProcessCollector(topN int) *ProcessCollector {
	if topN <= 0 {
		topN = 20
	}
	return &ProcessCollector{TopN: topN, prev: make(map[int]procSample)}
}

func (p *ProcessCollector) Name() string { return "process" }

type processMetric struct {
	pid        int
	cpuPercent float64
	rss        uint64
}

func (p *ProcessCollector) Sample() ([]fabric.Record, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	var metrics []processMetric
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		cur, ok := readProcSample(pid, now)
		if !ok {
			continue
		}
		prev, hadPrev := p.prev[pid]
		p.prev[pid] = cur
		if !hadPrev {
			continue
		}

		elapsed := cur.sampledAt.Sub(prev.sampledAt).Seconds()
		var pct float64
		if elapsed > 0 {
			clockTicks := 100.0 // typical USER_HZ; fine-grained enough for anomaly scoring
			deltaTicks := float64((cur.utime + cur.stime) - (prev.utime + prev.stime))
			pct = (deltaTicks / clockTicks) / elapsed * 100.0
		}
		metrics = append(metrics, processMetric{pid: pid, cpuPercent: pct, rss: cur.rss})
	}

	sort.Slice(metrics, func(i, j int) bool { return metrics[i].cpuPercent > metrics[j].cpuPercent })
	if len(metrics) > p.TopN {
		metrics = metrics[:p.TopN]
	}

	processes := fabric.Payload{}
	for _, m := range metrics {
		processes[strconv.Itoa(m.pid)] = fabric.Map(fabric.Payload{
			"cpu_percent": fabric.Float(m.cpuPercent),
			"rss":         fabric.Int(int64(m.rss)),
		})
	}

	payload := fabric.Payload{"processes": fabric.Map(processes)}
	rec := fabric.NewRecord(fabric.EventProcessMetric, "collector::process", payload)
	return []fabric.Record{rec}, nil
}

func readProcSample(pid int, now time.Time) (procSample, bool) {
	pidDir := fmt.Sprintf("/proc/%d", pid)
	statBytes, err := os.ReadFile(filepath.Join(pidDir, "stat"))
	if err != nil {
		return procSample{}, false
	}
	content := string(statBytes)
	closeIdx := strings.LastIndex(content, ")")
	if closeIdx < 0 {
		return procSample{}, false
	}
	rest := strings.Fields(content[closeIdx+2:])
	if len(rest) < 15 {
		return procSample{}, false
	}

	var s procSample
	s.utime = parseUint64(rest[11])
	s.stime = parseUint64(rest[12])
	s.sampledAt = now

	if kv, err := readKeyValueFile(filepath.Join(pidDir, "status")); err == nil {
		s.rss = parseStatusKB(kv["VmRSS"])
	}
	return s, true
}

func parseStatusKB(s string) uint64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	return parseUint64(fields[0]) * 1024
}
