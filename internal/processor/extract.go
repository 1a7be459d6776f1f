package processor

import (
	"fmt"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

// metricSample is one (metric_key, value, metadata) tuple pulled from a
// record's payload, per the fixed event_type -> metric-key mapping in
// spec.md §4.3. Unknown event types extract nothing.
type metricSample struct {
	Key      string
	Value    float64
	Metadata fabric.Payload
}

func extractMetrics(rec fabric.Record) []metricSample {
	switch rec.EventType {
	case fabric.EventCPUMetric:
		return extractCPU(rec.Payload)
	case fabric.EventMemoryMetric:
		return extractMemory(rec.Payload)
	case fabric.EventDiskMetric:
		return extractDisk(rec.Payload)
	case fabric.EventNetworkMetric:
		return extractNetwork(rec.Payload)
	case fabric.EventProcessMetric:
		return extractProcess(rec.Payload)
	default:
		return nil
	}
}

func extractCPU(p fabric.Payload) []metricSample {
	var out []metricSample
	if v, ok := p["total_percent"].AsFloat64(); ok {
		out = append(out, metricSample{Key: "cpu.total", Value: v})
	}
	if arr, ok := p["per_core_percent"].AsArray(); ok {
		for i, core := range arr {
			if v, ok := core.AsFloat64(); ok {
				out = append(out, metricSample{Key: fmt.Sprintf("cpu.%d", i), Value: v})
			}
		}
	}
	if v, ok := p["freq_mhz"].AsFloat64(); ok {
		out = append(out, metricSample{Key: "cpu.freq_mhz", Value: v})
	}
	return out
}

func extractMemory(p fabric.Payload) []metricSample {
	var out []metricSample
	add := func(key, field string) {
		if v, ok := p[field].AsFloat64(); ok {
			out = append(out, metricSample{Key: key, Value: v})
		}
	}
	add("memory.virtual", "virtual_bytes")
	add("memory.virtual_percent", "virtual_percent")
	add("memory.swap", "swap_bytes")
	add("memory.swap_percent", "swap_percent")
	return out
}

func extractDisk(p fabric.Payload) []metricSample {
	devices, ok := p["devices"].AsMap()
	if !ok {
		return nil
	}
	var out []metricSample
	for device, val := range devices {
		fields, ok := val.AsMap()
		if !ok {
			continue
		}
		for _, field := range []string{"read_bytes_delta", "write_bytes_delta", "read_ops_delta", "write_ops_delta"} {
			if v, ok := fields[field].AsFloat64(); ok {
				out = append(out, metricSample{Key: fmt.Sprintf("disk.%s.%s", device, field), Value: v})
			}
		}
	}
	return out
}

func extractNetwork(p fabric.Payload) []metricSample {
	ifaces, ok := p["interfaces"].AsMap()
	if !ok {
		return nil
	}
	var out []metricSample
	for iface, val := range ifaces {
		fields, ok := val.AsMap()
		if !ok {
			continue
		}
		for _, field := range []string{"rx_bytes_delta", "tx_bytes_delta", "rx_errors", "rx_drops", "tx_errors", "tx_drops"} {
			if v, ok := fields[field].AsFloat64(); ok {
				out = append(out, metricSample{Key: fmt.Sprintf("net.%s.%s", iface, field), Value: v})
			}
		}
	}
	return out
}

func extractProcess(p fabric.Payload) []metricSample {
	processes, ok := p["processes"].AsMap()
	if !ok {
		return nil
	}
	var out []metricSample
	for pid, val := range processes {
		fields, ok := val.AsMap()
		if !ok {
			continue
		}
		if v, ok := fields["cpu_percent"].AsFloat64(); ok {
			out = append(out, metricSample{Key: fmt.Sprintf("proc.%s.cpu_percent", pid), Value: v})
		}
		if v, ok := fields["rss"].AsFloat64(); ok {
			out = append(out, metricSample{Key: fmt.Sprintf("proc.%s.rss", pid), Value: v})
		}
	}
	return out
}
