package collectors

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

type netCounters struct {
	rxBytes, txBytes  uint64
	rxErrors, rxDrops uint64
	txErrors, txDrops uint64
}

// NetworkCollector reads /proc/net/dev, emitting per-interface rx/tx byte
// deltas plus cumulative error/drop counters. Grounded on xtop's
// collector/network.go parseNetDevLine field layout, trimmed to the
// counters the NETWORK_METRIC mapping consumes.
type NetworkCollector struct {
	mu   sync.Mutex
	prev map[string]netCounters
}

func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{prev: make(map[string]netCounters)}
}

func (n *NetworkCollector) Name() string { return "network" }

func (n *NetworkCollector) Sample() ([]fabric.Record, error) {
	lines, err := readLines("/proc/net/dev")
	if err != nil {
		return nil, fmt.Errorf("read /proc/net/dev: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ifaces := fabric.Payload{}
	for _, line := range lines {
		if strings.Contains(line, "|") {
			continue
		}
		name, cur, ok := parseNetDevLine(line)
		if !ok || name == "lo" {
			continue
		}
		prev, hadPrev := n.prev[name]
		n.prev[name] = cur
		if !hadPrev {
			continue
		}
		ifaces[name] = fabric.Map(fabric.Payload{
			"rx_bytes_delta": fabric.Int(int64(cur.rxBytes - prev.rxBytes)),
			"tx_bytes_delta": fabric.Int(int64(cur.txBytes - prev.txBytes)),
			"rx_errors":      fabric.Int(int64(cur.rxErrors)),
			"rx_drops":       fabric.Int(int64(cur.rxDrops)),
			"tx_errors":      fabric.Int(int64(cur.txErrors)),
			"tx_drops":       fabric.Int(int64(cur.txDrops)),
		})
	}

	payload := fabric.Payload{"interfaces": fabric.Map(ifaces)}
	rec := fabric.NewRecord(fabric.EventNetworkMetric, "collector::network", payload)
	return []fabric.Record{rec}, nil
}

func parseNetDevLine(line string) (string, netCounters, bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", netCounters{}, false
	}
	name := strings.TrimSpace(parts[0])
	fields := strings.Fields(parts[1])
	if len(fields) < 16 {
		return "", netCounters{}, false
	}
	return name, netCounters{
		rxBytes:  parseUint64(fields[0]),
		rxErrors: parseUint64(fields[2]),
		rxDrops:  parseUint64(fields[3]),
		txBytes:  parseUint64(fields[8]),
		txErrors: parseUint64(fields[10]),
		txDrops:  parseUint64(fields[11]),
	}, true
}
