package validation

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/patternlab/pkg/schema"
)

const topicSchemaURL = "https://patternlab.dev/schemas/topic.json"

// topicSchemaJSON is the JSON Schema for TopicDefinition documents.
const topicSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://patternlab.dev/schemas/topic.json",
  "type": "object",
  "required": ["id", "title", "short_title", "description", "color", "modes"],
  "properties": {
    "id": { "$ref": "#/$defs/slug" },
    "title": { "type": "string", "minLength": 1 },
    "short_title": { "type": "string", "minLength": 1 },
    "description": { "type": "string", "minLength": 1 },
    "color": { "$ref": "#/$defs/color" },
    "order": { "type": "integer", "minimum": 0 },
    "predicates": { "type": "string", "enum": ["expr", "cel"] },
    "summary": { "type": "string" },
    "canvas": {
      "type": "object",
      "properties": {
        "width": { "type": "integer", "minimum": 1 },
        "height": { "type": "integer", "minimum": 1 }
      },
      "additionalProperties": false
    },
    "modes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/mode" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "slug": { "type": "string", "pattern": "^[a-z0-9][a-z0-9-]*$" },
    "color": { "type": "string", "pattern": "^#[0-9a-fA-F]{6}$" },
    "predicate": { "type": "string" },
    "mode": {
      "type": "object",
      "required": ["id", "label", "title", "captions", "nodes"],
      "properties": {
        "id": { "$ref": "#/$defs/slug" },
        "label": { "type": "string", "minLength": 1 },
        "title": { "type": "string", "minLength": 1 },
        "color": { "$ref": "#/$defs/color" },
        "captions": {
          "type": "array",
          "minItems": 1,
          "items": { "type": "string", "minLength": 1 }
        },
        "nodes": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/node" }
        },
        "links": { "type": "array", "items": { "$ref": "#/$defs/link" } },
        "tokens": { "type": "array", "items": { "$ref": "#/$defs/token" } },
        "notes": { "type": "array", "items": { "$ref": "#/$defs/note" } }
      },
      "additionalProperties": false
    },
    "node": {
      "type": "object",
      "required": ["id", "label", "x", "y", "w", "h"],
      "properties": {
        "id": { "$ref": "#/$defs/slug" },
        "label": { "type": "string" },
        "x": { "type": "integer", "minimum": 0 },
        "y": { "type": "integer", "minimum": 0 },
        "w": { "type": "integer", "minimum": 1 },
        "h": { "type": "integer", "minimum": 1 },
        "color": { "$ref": "#/$defs/color" },
        "when": { "$ref": "#/$defs/predicate" },
        "active": { "$ref": "#/$defs/predicate" }
      },
      "additionalProperties": false
    },
    "link": {
      "type": "object",
      "required": ["from", "to"],
      "properties": {
        "from": { "$ref": "#/$defs/slug" },
        "to": { "$ref": "#/$defs/slug" },
        "label": { "type": "string" },
        "dashed": { "type": "boolean" },
        "arrow": { "type": "boolean" },
        "when": { "$ref": "#/$defs/predicate" },
        "active": { "$ref": "#/$defs/predicate" }
      },
      "additionalProperties": false
    },
    "token": {
      "type": "object",
      "required": ["from", "to", "when"],
      "properties": {
        "from": { "$ref": "#/$defs/slug" },
        "to": { "$ref": "#/$defs/slug" },
        "color": { "$ref": "#/$defs/color" },
        "when": { "type": "string", "minLength": 1 },
        "delay": { "type": "number", "minimum": 0, "maximum": 10 }
      },
      "additionalProperties": false
    },
    "note": {
      "type": "object",
      "required": ["text", "x", "y"],
      "properties": {
        "text": { "type": "string", "minLength": 1 },
        "x": { "type": "integer", "minimum": 0 },
        "y": { "type": "integer", "minimum": 0 },
        "color": { "$ref": "#/$defs/color" },
        "when": { "$ref": "#/$defs/predicate" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates raw topic documents against the topic JSON
// Schema (Draft 2020-12). It is safe for concurrent use.
type JSONSchemaValidator struct {
	topicSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the topic schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(topicSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal topic schema: %w", err)
	}
	if err := c.AddResource(topicSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add topic schema resource: %w", err)
	}

	compiled, err := c.Compile(topicSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile topic schema: %w", err)
	}
	return &JSONSchemaValidator{topicSchema: compiled}, nil
}

// ValidateDocument validates a decoded document. Any Go value that encodes
// to JSON is accepted; YAML documents decoded into maps work as-is.
func (v *JSONSchemaValidator) ValidateDocument(doc any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "topic document is empty")
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize topic document").WithCause(err)
	}

	if err := v.topicSchema.Validate(value); err != nil {
		return toPatternError(err)
	}
	return nil
}

// SchemaJSON returns the topic schema source.
func SchemaJSON() string {
	return topicSchemaJSON
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

// toPatternError converts a jsonschema.ValidationError into a PatternError
// listing every leaf violation.
func toPatternError(err error) *schema.PatternError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
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
