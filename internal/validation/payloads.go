// Package validation checks batch payloads against embedded JSON Schemas
// before any resolution or mutation happens. Malformed requests fail here
// with every violation reported at once; per-item semantic failures are the
// orchestrator's job.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// pinRefDefs is shared between the connect and disconnect schemas. A pin
// reference needs at least one identifying field; which combination is
// usable is decided during resolution.
const pinRefDefs = `
    "pin_ref": {
      "type": "object",
      "properties": {
        "pin_id": { "type": "string", "minLength": 1 },
        "ref": { "type": "string", "minLength": 1 },
        "node_id": { "type": "string", "minLength": 1 },
        "pin_name": { "type": "string", "minLength": 1 }
      },
      "anyOf": [
        { "required": ["pin_id"] },
        { "required": ["ref"] },
        { "required": ["node_id"] },
        { "required": ["pin_name"] }
      ],
      "additionalProperties": false
    }`

const connectSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://blueprintd.dev/schemas/connect-batch.json",
  "type": "object",
  "required": ["connections"],
  "properties": {
    "connections": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": { "$ref": "#/$defs/pin_ref" },
          "target": { "$ref": "#/$defs/pin_ref" },
          "allow_conversion_node": { "type": "boolean" },
          "allow_promotion": { "type": "boolean" },
          "break_existing_links": { "type": "boolean" }
        },
        "additionalProperties": false
      }
    },
    "defaults": {
      "type": "object",
      "properties": {
        "allow_conversion_node": { "type": "boolean" },
        "allow_promotion": { "type": "boolean" },
        "break_existing_links": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false,
  "$defs": {` + pinRefDefs + `
  }
}`

const disconnectSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://blueprintd.dev/schemas/disconnect-batch.json",
  "type": "object",
  "required": ["operations"],
  "properties": {
    "operations": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["pin"],
        "properties": {
          "pin": { "$ref": "#/$defs/pin_ref" },
          "target": { "$ref": "#/$defs/pin_ref" },
          "break_all": { "type": "boolean" }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false,
  "$defs": {` + pinRefDefs + `
  }
}`

// PayloadValidator validates connect and disconnect batch payloads against
// JSON Schema Draft 2020-12. Safe for concurrent use; both schemas are
// compiled once at construction.
type PayloadValidator struct {
	connect    *jsonschema.Schema
	disconnect *jsonschema.Schema
}

// NewPayloadValidator compiles the embedded batch schemas.
func NewPayloadValidator() (*PayloadValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	connect, err := addAndCompile(c, "https://blueprintd.dev/schemas/connect-batch.json", connectSchemaJSON)
	if err != nil {
		return nil, err
	}
	disconnect, err := addAndCompile(c, "https://blueprintd.dev/schemas/disconnect-batch.json", disconnectSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &PayloadValidator{connect: connect, disconnect: disconnect}, nil
}

// ValidateConnectBatch checks a connect payload before resolution.
func (v *PayloadValidator) ValidateConnectBatch(payload map[string]any) error {
	return v.validate(v.connect, payload)
}

// ValidateDisconnectBatch checks a disconnect payload before resolution.
func (v *PayloadValidator) ValidateDisconnectBatch(payload map[string]any) error {
	return v.validate(v.disconnect, payload)
}

func (v *PayloadValidator) validate(compiled *jsonschema.Schema, payload map[string]any) error {
	if payload == nil {
		return schema.NewError(schema.ErrCodeValidation, "payload is nil")
	}
	doc, err := toJSONValue(payload)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize payload").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toGraphError(err)
	}
	return nil
}

func addAndCompile(c *jsonschema.Compiler, url, schemaJSON string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
	}
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", url, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return compiled, nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toGraphError converts a jsonschema.ValidationError into a GraphError with
// one message per leaf violation.
func toGraphError(err error) *schema.GraphError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
