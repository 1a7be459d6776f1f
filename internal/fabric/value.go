package fabric

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	// KindNull is the zero value, so a Value read from a missing map key
	// (Go's zero Value for an absent map entry) behaves like an explicit
	// null rather than silently looking like a present int64(0).
	KindNull Kind = iota
	KindInt64
	KindFloat64
	KindString
	KindBool
	KindMap
	KindArray
)

// Value is the tagged-variant payload primitive. Event Record payloads are
// map[string]Value rather than bare interface{}, so every producer and
// consumer of a payload goes through an explicit, exhaustively-switchable
// type instead of free-form type assertions.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	m    Payload
	a    []Value
}

// Payload is the mapping every Event Record carries.
type Payload map[string]Value

func Int(v int64) Value          { return Value{kind: KindInt64, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat64, f: v} }
func Str(v string) Value         { return Value{kind: KindString, s: v} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Map(v Payload) Value        { return Value{kind: KindMap, m: v} }
func Array(v []Value) Value      { return Value{kind: KindArray, a: v} }
func Null() Value                { return Value{kind: KindNull} }

func (v Value) Kind() Kind { return v.kind }

// AsFloat64 coerces numeric kinds to float64. Non-numeric kinds return
// (0, false).
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindFloat64:
		return v.f, true
	case KindInt64:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt64:
		return v.i, true
	case KindFloat64:
		return int64(v.f), true
	default:
		return 0, false
	}
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsMap() (Payload, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.a, true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt64:
		return json.Marshal(v.i)
	case KindFloat64:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		return json.Marshal(v.m)
	case KindArray:
		return json.Marshal(v.a)
	case KindNull:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("fabric: unknown value kind %d", v.kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}

func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case float64:
		return Float(t)
	case string:
		return Str(t)
	case bool:
		return Bool(t)
	case map[string]interface{}:
		p := make(Payload, len(t))
		for k, val := range t {
			p[k] = fromInterface(val)
		}
		return Map(p)
	case []interface{}:
		a := make([]Value, len(t))
		for i, val := range t {
			a[i] = fromInterface(val)
		}
		return Array(a)
	default:
		return Null()
	}
}

// ValueOf wraps a plain Go value (as produced by collectors and the kernel
// decoder) into the tagged Value variant. Unsupported types become Null.
func ValueOf(raw interface{}) Value {
	switch t := raw.(type) {
	case Value:
		return t
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint32:
		return Int(int64(t))
	case uint64:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return Str(t)
	case bool:
		return Bool(t)
	case Payload:
		return Map(t)
	case map[string]Value:
		return Map(Payload(t))
	case []Value:
		return Array(t)
	default:
		return fromInterface(t)
	}
}
