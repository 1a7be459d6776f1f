package collectors

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

type diskCounters struct {
	readBytes, writeBytes uint64
	readOps, writeOps     uint64
}

// DiskCollector reads /proc/diskstats and emits per-device byte/op deltas
// since the previous poll. Grounded on xtop's collector/disk.go
// parseDiskstatLine and isWholeDisk device filtering, sectors converted
// to bytes (512 bytes/sector, matching the kernel's diskstats contract).
type DiskCollector struct {
	mu   sync.Mutex
	prev map[string]diskCounters
}

func NewDiskCollector() *DiskCollector {
	return &DiskCollector{prev: make(map[string]diskCounters)}
}

func (d *DiskCollector) Name() string { return "disk" }

func (d *DiskCollector) Sample() ([]fabric.Record, error) {
	lines, err := readLines("/proc/diskstats")
	if err != nil {
		return nil, fmt.Errorf("read /proc/diskstats: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	devices := fabric.Payload{}
	for _, line := range lines {
		name, cur, ok := parseDiskstatLine(line)
		if !ok || !isWholeDisk(name) {
			continue
		}
		prev, hadPrev := d.prev[name]
		d.prev[name] = cur
		if !hadPrev {
			continue
		}
		devices[name] = fabric.Map(fabric.Payload{
			"read_bytes_delta":  fabric.Int(int64(cur.readBytes - prev.readBytes)),
			"write_bytes_delta": fabric.Int(int64(cur.writeBytes - prev.writeBytes)),
			"read_ops_delta":    fabric.Int(int64(cur.readOps - prev.readOps)),
			"write_ops_delta":   fabric.Int(int64(cur.writeOps - prev.writeOps)),
		})
	}

	payload := fabric.Payload{"devices": fabric.Map(devices)}
	rec := fabric.NewRecord(fabric.EventDiskMetric, "collector::disk", payload)
	return []fabric.Record{rec}, nil
}

const sectorSize = 512

func parseDiskstatLine(line string) (string, diskCounters, bool) {
	fields := strings.Fields(line)
	if len(fields) < 14 {
		return "", diskCounters{}, false
	}
	name := fields[2]
	return name, diskCounters{
		readBytes:  parseUint64(fields[5]) * sectorSize,
		writeBytes: parseUint64(fields[9]) * sectorSize,
		readOps:    parseUint64(fields[3]),
		writeOps:   parseUint64(fields[7]),
	}, true
}

func isWholeDisk(name string) bool {
	if strings.HasPrefix(name, "loop") {
		return false
	}
	if strings.HasPrefix(name, "nvme") {
		return !strings.Contains(name[4:], "p")
	}
	for _, prefix := range []string{"sd", "vd", "xvd", "hd"} {
		if strings.HasPrefix(name, prefix) {
			suffix := name[len(prefix):]
			return len(suffix) == 1 && suffix[0] >= 'a' && suffix[0] <= 'z'
		}
	}
	return strings.HasPrefix(name, "dm-")
}
