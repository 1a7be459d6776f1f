package natsbridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// wireRecordSchema is the envelope every forwarded record must satisfy,
// grounded on the ingest service's embedded Event.json resource: compiled
// once at construction rather than read from disk, since this bridge has
// no schemas/ directory to ship alongside the binary.
const wireRecordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["event_id", "event_type", "timestamp", "source"],
  "properties": {
    "event_id": {"type": "string", "minLength": 1},
    "event_type": {"type": "string", "minLength": 1},
    "timestamp": {"type": "number"},
    "source": {"type": "string", "minLength": 1},
    "pid": {"type": "integer"},
    "comm": {"type": "string"},
    "payload": {"type": "object"}
  }
}`

// envelopeValidator validates a forwarded wireRecord's envelope shape
// before it is published to NATS, so a malformed record never reaches an
// external consumer silently.
type envelopeValidator struct {
	mu     sync.RWMutex
	schema *jsonschema.Schema
}

func newEnvelopeValidator() (*envelopeValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("wire_record.json", strings.NewReader(wireRecordSchema)); err != nil {
		return nil, fmt.Errorf("natsbridge: add schema resource: %w", err)
	}
	schema, err := compiler.Compile("wire_record.json")
	if err != nil {
		return nil, fmt.Errorf("natsbridge: compile schema: %w", err)
	}
	return &envelopeValidator{schema: schema}, nil
}

func (v *envelopeValidator) validate(doc map[string]interface{}) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.schema.Validate(doc)
}
