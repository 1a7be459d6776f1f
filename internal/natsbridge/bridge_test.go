package natsbridge

import (
	"encoding/json"
	"testing"

	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToWire_MarshalsPayload(t *testing.T) {
	rec := fabric.NewRecord(fabric.EventAnomaly, "ml::anomaly_detector", fabric.Payload{
		"metric_key": fabric.Str("cpu.total"),
		"confidence": fabric.Float(0.92),
	})
	rec.PID = 123
	rec.Comm = "init"

	wire := recordToWire(rec)
	data, err := json.Marshal(wire)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "ANOMALY", decoded["event_type"])
	assert.Equal(t, "ml::anomaly_detector", decoded["source"])
	assert.EqualValues(t, 123, decoded["pid"])

	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cpu.total", payload["metric_key"])
	assert.InDelta(t, 0.92, payload["confidence"], 1e-9)
}

func TestNew_DefaultsSubject(t *testing.T) {
	bus := fabric.NewBus(16)
	b := New(bus, nil)
	assert.Equal(t, DefaultSubject, b.subject)
}

func TestNew_WithSubjectOverride(t *testing.T) {
	bus := fabric.NewBus(16)
	b := New(bus, nil, WithSubject("custom.subject"))
	assert.Equal(t, "custom.subject", b.subject)
}

func TestEnvelopeValidator_RejectsMissingEventID(t *testing.T) {
	v, err := newEnvelopeValidator()
	require.NoError(t, err)

	err = v.validate(map[string]interface{}{
		"event_type": "ANOMALY",
		"timestamp":  1.0,
		"source":     "ml::anomaly_detector",
	})
	assert.Error(t, err)
}

func TestEnvelopeValidator_AcceptsWellFormedEnvelope(t *testing.T) {
	v, err := newEnvelopeValidator()
	require.NoError(t, err)

	err = v.validate(map[string]interface{}{
		"event_id":   "abc-123",
		"event_type": "ANOMALY",
		"timestamp":  1.0,
		"source":     "ml::anomaly_detector",
		"payload":    map[string]interface{}{"metric_key": "cpu.total"},
	})
	assert.NoError(t, err)
}
