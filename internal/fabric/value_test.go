package fabric

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_RoundTripJSON(t *testing.T) {
	p := Payload{
		"latency_ns": Int(5423),
		"ratio":      Float(0.42),
		"name":       Str("write"),
		"ok":         Bool(true),
		"nested":     Map(Payload{"a": Int(1)}),
		"list":       Array([]Value{Int(1), Int(2)}),
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Payload
	require.NoError(t, json.Unmarshal(data, &back))

	f, ok := back["ratio"].AsFloat64()
	require.True(t, ok)
	assert.InDelta(t, 0.42, f, 1e-9)

	s, ok := back["name"].AsString()
	require.True(t, ok)
	assert.Equal(t, "write", s)

	n, ok := back["latency_ns"].AsFloat64()
	require.True(t, ok)
	assert.Equal(t, float64(5423), n)
}

func TestValueOf(t *testing.T) {
	assert.Equal(t, KindInt64, ValueOf(42).Kind())
	assert.Equal(t, KindFloat64, ValueOf(3.14).Kind())
	assert.Equal(t, KindString, ValueOf("x").Kind())
	assert.Equal(t, KindBool, ValueOf(true).Kind())
}
