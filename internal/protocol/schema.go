package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// rawSchemas holds the JSON Schema for each operation's parameters.
// Shape only; value-level policy (coordinate bounds, path rules) is the
// policy engine's job so violations surface as denials, not protocol errors.
var rawSchemas = map[string]string{
	OpClick: `{
		"type": "object",
		"properties": {
			"x": {"type": "integer"},
			"y": {"type": "integer"},
			"button": {"enum": ["left", "right", "middle"]}
		},
		"required": ["x", "y"],
		"additionalProperties": false
	}`,
	OpSendKeys: `{
		"type": "object",
		"properties": {
			"keys": {"type": "string", "minLength": 1},
			"targetWindow": {"type": "string"}
		},
		"required": ["keys"],
		"additionalProperties": false
	}`,
	OpGetWindows: `{
		"type": "object",
		"additionalProperties": false
	}`,
	OpRegistryRead: `{
		"type": "object",
		"properties": {
			"keyPath": {"type": "string", "minLength": 1},
			"valueName": {"type": "string"}
		},
		"required": ["keyPath", "valueName"],
		"additionalProperties": false
	}`,
	OpRegistryWrite: `{
		"type": "object",
		"properties": {
			"keyPath": {"type": "string", "minLength": 1},
			"valueName": {"type": "string"},
			"value": {}
		},
		"required": ["keyPath", "valueName", "value"],
		"additionalProperties": false
	}`,
	OpProcessStart: `{
		"type": "object",
		"properties": {
			"fileName": {"type": "string", "minLength": 1},
			"arguments": {"type": "string"},
			"workingDirectory": {"type": "string"}
		},
		"required": ["fileName"],
		"additionalProperties": false
	}`,
	OpProcessTerminate: `{
		"type": "object",
		"properties": {
			"processId": {"type": "integer"}
		},
		"required": ["processId"],
		"additionalProperties": false
	}`,
	OpFileRead: `{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "minLength": 1},
			"encoding": {"enum": ["utf-8", "base64"]}
		},
		"required": ["filePath"],
		"additionalProperties": false
	}`,
	OpFileWrite: `{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "minLength": 1},
			"content": {"type": "string"},
			"encoding": {"enum": ["utf-8", "base64"]}
		},
		"required": ["filePath", "content"],
		"additionalProperties": false
	}`,
	OpTakeScreenshot: `{
		"type": "object",
		"additionalProperties": false
	}`,
}

// Validator checks request parameters against each operation's schema.
// The service compiles one at startup; compilation failure keeps the
// service in its not-ready state.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles all operation schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	schemas := make(map[string]*jsonschema.Schema, len(rawSchemas))
	for op, raw := range rawSchemas {
		schema, err := compiler.Compile([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("protocol: compile %s schema: %w", op, err)
		}
		schemas[op] = schema
	}
	return &Validator{schemas: schemas}, nil
}

// Validate checks params against op's schema. Unknown operations and shape
// violations both fail; the caller distinguishes them with errors.Is.
func (v *Validator) Validate(op string, params json.RawMessage) error {
	schema, ok := v.schemas[op]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	result := schema.ValidateJSON(params)
	if !result.IsValid() {
		return fmt.Errorf("%w for %s: %v", ErrBadParameters, op, result.Errors)
	}
	return nil
}
