package fabric

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the record kinds the fabric routes.
type EventType string

const (
	EventSyscall       EventType = "SYSCALL"
	EventCPUMetric     EventType = "CPU_METRIC"
	EventMemoryMetric  EventType = "MEMORY_METRIC"
	EventDiskMetric    EventType = "DISK_METRIC"
	EventNetworkMetric EventType = "NETWORK_METRIC"
	EventProcessMetric EventType = "PROCESS_METRIC"
	EventAnomaly       EventType = "ANOMALY"
	EventTrend         EventType = "TREND"
)

// Record is the universal, immutable unit of the event fabric. Once
// published, a Record's fields are never mutated; consumers receive their
// own copy of the struct (payload maps are shared but treated read-only by
// convention, matching the teacher's pass-by-value Event).
type Record struct {
	EventID   string
	EventType EventType
	Timestamp float64 // seconds since epoch, sub-second precision
	Source    string
	PID       int32 // 0 means absent
	Comm      string
	Payload   Payload
}

// NewRecord builds a Record with a generated EventID and the current wall
// clock timestamp. Callers that need a specific timestamp (e.g. decoded
// kernel records) should set Timestamp directly afterward.
func NewRecord(eventType EventType, source string, payload Payload) Record {
	return Record{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Source:    source,
		Payload:   payload,
	}
}

// Validate enforces the required-fields contract from the publish path:
// a malformed record is rejected before it reaches any subscriber.
func (r Record) Validate() error {
	if r.EventID == "" {
		return fmt.Errorf("%w: missing event_id", ErrRecordDecode)
	}
	if r.EventType == "" {
		return fmt.Errorf("%w: missing event_type", ErrRecordDecode)
	}
	if r.Source == "" {
		return fmt.Errorf("%w: missing source", ErrRecordDecode)
	}
	return nil
}
