package kernel

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

// PublishFunc hands a decoded Event Record to whatever consumes it. In
// production this is Bus.Publish; tests and the reader itself only depend
// on this narrower signature.
type PublishFunc func(fabric.Record) error

// Metrics is a snapshot of the reader's own health, surfaced to the query
// API and logs rather than pushed onto the bus.
type Metrics struct {
	RecordsRead    uint64
	RecordsLost    uint64
	DecodeErrors   uint64
	FilteredBelow  uint64
	PublishErrors  uint64
}

// Reader polls a ring buffer Source on a dedicated execution unit, decodes
// each raw record, resolves its syscall name, and constructs the
// corresponding Event Record per §4.2.
type Reader struct {
	source      Source
	minLatency  uint64
	log         *slog.Logger
	recordsRead   atomic.Uint64
	recordsLost   atomic.Uint64
	decodeErrors  atomic.Uint64
	filtered      atomic.Uint64
	publishErrors atomic.Uint64
}

// Option configures a Reader at construction time.
type Option func(*Reader)

// WithMinLatencyNs enables source-side filtering: records whose latency_ns
// falls below the threshold are dropped before the bus ever sees them.
func WithMinLatencyNs(ns uint64) Option {
	return func(r *Reader) { r.minLatency = ns }
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Reader) { r.log = log }
}

func NewReader(source Source, opts ...Option) *Reader {
	r := &Reader{source: source, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the source until ctx is cancelled or the source is closed,
// publishing a fabric.Record for every decoded, non-filtered raw record.
// A decode error drops that one record and continues; it never aborts the
// loop. Run returns nil on a clean shutdown (ctx cancellation or a closed
// source), and a non-nil error only for unexpected source failures.
func (r *Reader) Run(ctx context.Context, publish PublishFunc) error {
	for {
		raw, lost, err := r.source.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if lost > 0 {
			r.recordsLost.Add(lost)
			r.log.Warn("kernel reader lost records", "count", lost)
		}

		rec, err := DecodeRaw(raw)
		if err != nil {
			r.decodeErrors.Add(1)
			r.log.Warn("kernel reader decode error", "error", err)
			continue
		}
		r.recordsRead.Add(1)

		if r.minLatency > 0 && rec.LatencyNs < r.minLatency {
			r.filtered.Add(1)
			continue
		}

		event := r.toEventRecord(rec)
		if err := publish(event); err != nil {
			r.publishErrors.Add(1)
			r.log.Warn("kernel reader publish error", "error", err)
		}
	}
}

func (r *Reader) toEventRecord(rec RawRecord) fabric.Record {
	name := SyscallName(rec.SyscallNr)
	payload := fabric.Payload{
		"syscall_nr":   fabric.Int(int64(rec.SyscallNr)),
		"syscall_name": fabric.Str(name),
		"latency_ns":   fabric.Int(int64(rec.LatencyNs)),
		"latency_us":   fabric.Float(float64(rec.LatencyNs) / 1000.0),
		"ret":          fabric.Int(rec.Ret),
		"ts_enter_ns":  fabric.Int(int64(rec.TsEnterNs)),
		"ts_exit_ns":   fabric.Int(int64(rec.TsExitNs)),
	}

	event := fabric.NewRecord(fabric.EventSyscall, "kernel", payload)
	event.PID = int32(rec.PID)
	event.Comm = rec.CommString()
	event.Timestamp = float64(rec.TsExitNs) / 1e9
	return event
}

// Stop releases the underlying source. Run will observe the resulting
// error on its next Read and exit cleanly.
func (r *Reader) Stop() error {
	return r.source.Close()
}

func (r *Reader) Metrics() Metrics {
	return Metrics{
		RecordsRead:   r.recordsRead.Load(),
		RecordsLost:   r.recordsLost.Load(),
		DecodeErrors:  r.decodeErrors.Load(),
		FilteredBelow: r.filtered.Load(),
		PublishErrors: r.publishErrors.Load(),
	}
}
