// Package natsbridge forwards ANOMALY and TREND Event Records onto a NATS
// subject so an out-of-process consumer can watch detections without
// querying the fabric's HTTP surface. It is a bus subscriber like any
// other: it never computes anomalies itself, only republishes them,
// grounded on the correlator's NATS subscriber/publisher pair.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/klauspost/compress/zstd"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is where forwarded findings are published.
const DefaultSubject = "fabric.anomalies"

const subscriberID = "natsbridge"

// Bridge subscribes to the bus and republishes matching records to NATS.
type Bridge struct {
	bus      *fabric.Bus
	nc       *nats.Conn
	subject  string
	log      *slog.Logger
	validate *envelopeValidator
	compress bool
	encoder  *zstd.Encoder

	forwarded uint64
	failed    uint64
	rejected  uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

func WithSubject(subject string) Option {
	return func(b *Bridge) {
		if subject != "" {
			b.subject = subject
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithCompression zstd-compresses the forwarded JSON payload, grounded on
// the local agent's zstd-compressed artifact handling. Subjects carrying
// compressed bodies are suffixed with ".zst" so a consumer can tell
// plain-JSON subjects apart from compressed ones without probing content.
func WithCompression(enabled bool) Option {
	return func(b *Bridge) { b.compress = enabled }
}

func New(bus *fabric.Bus, nc *nats.Conn, opts ...Option) *Bridge {
	validator, err := newEnvelopeValidator()
	if err != nil {
		panic(fmt.Sprintf("natsbridge: embedded schema does not compile: %v", err))
	}
	b := &Bridge{
		bus:      bus,
		nc:       nc,
		subject:  DefaultSubject,
		log:      slog.Default(),
		validate: validator,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			b.log.Warn("nats bridge zstd encoder init failed, forwarding uncompressed", "error", err)
			b.compress = false
		} else {
			b.encoder = enc
		}
	}
	return b
}

// Run subscribes to ANOMALY and TREND records and forwards each as JSON
// until ctx is cancelled or the bus shuts down.
func (b *Bridge) Run(ctx context.Context) error {
	handle, err := b.bus.Subscribe(subscriberID, []fabric.EventType{fabric.EventAnomaly, fabric.EventTrend})
	if err != nil {
		return err
	}
	defer b.bus.Unsubscribe(subscriberID)

	b.log.Info("nats bridge subscribed", "subject", b.subject)

	for {
		rec, err := handle.Receive(ctx)
		if err != nil {
			if err == fabric.ErrBusClosed || ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.forward(rec)
	}
}

func (b *Bridge) forward(rec fabric.Record) {
	data, err := json.Marshal(recordToWire(rec))
	if err != nil {
		b.failed++
		b.log.Warn("nats bridge marshal failed", "error", err)
		return
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		b.failed++
		b.log.Warn("nats bridge re-decode for validation failed", "error", err)
		return
	}
	if err := b.validate.validate(doc); err != nil {
		b.rejected++
		b.log.Warn("nats bridge envelope failed schema validation", "event_id", rec.EventID, "error", err)
		return
	}

	subject := b.subject
	if b.compress && b.encoder != nil {
		data = b.encoder.EncodeAll(data, nil)
		subject += ".zst"
	}

	if err := b.nc.Publish(subject, data); err != nil {
		b.failed++
		b.log.Warn("nats bridge publish failed", "subject", subject, "error", err)
		return
	}
	b.forwarded++
}

// wireRecord is the JSON form published to NATS: the Event Record plus its
// decoded payload, not a detect.Finding struct directly, since TREND
// records carry a different payload shape than ANOMALY records.
type wireRecord struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp float64        `json:"timestamp"`
	Source    string         `json:"source"`
	PID       int32          `json:"pid,omitempty"`
	Comm      string         `json:"comm,omitempty"`
	Payload   fabric.Payload `json:"payload"`
}

func recordToWire(rec fabric.Record) wireRecord {
	return wireRecord{
		EventID:   rec.EventID,
		EventType: string(rec.EventType),
		Timestamp: rec.Timestamp,
		Source:    rec.Source,
		PID:       rec.PID,
		Comm:      rec.Comm,
		Payload:   rec.Payload,
	}
}

// Counters reports forwarding bookkeeping for the stats endpoint.
func (b *Bridge) Counters() (forwarded, failed uint64) {
	return b.forwarded, b.failed
}

// Rejected reports how many records failed envelope schema validation
// and were dropped before publish.
func (b *Bridge) Rejected() uint64 {
	return b.rejected
}
