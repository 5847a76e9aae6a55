package validation

import (
	"errors"

	"github.com/rendis/patternlab/internal/expressions"
	"github.com/rendis/patternlab/pkg/schema"
)

// TopicValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (unique IDs, node references, predicates)
// 3. Graph (isolated nodes, duplicate links; warnings only)
type TopicValidator struct {
	jsonSchema *JSONSchemaValidator
	engines    *expressions.Set
}

// NewTopicValidator creates a TopicValidator. engines may be nil to skip
// predicate compilation.
func NewTopicValidator(engines *expressions.Set) (*TopicValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &TopicValidator{jsonSchema: jsv, engines: engines}, nil
}

// Validate runs the full pipeline. doc is the raw decoded document used for
// the structural stage; def is the same document decoded into the typed
// definition. Structural errors short-circuit the later stages.
func (tv *TopicValidator) Validate(doc any, def *schema.TopicDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "topic definition is nil")
		return r
	}

	// Stage 1: Structural (JSON Schema).
	result := validateStructural(tv.jsonSchema, doc)
	result.Topic = def.ID
	if !result.Valid() {
		return result
	}

	// Stage 2: Semantic.
	var checker expressions.Checker
	if tv.engines != nil {
		eng, err := tv.engines.Predicates(def.Predicates)
		if err != nil {
			result.AddError("predicates", schema.ErrCodeValidation, messageOf(err))
			return result
		}
		checker, _ = eng.(expressions.Checker)
	}
	result.Merge(validateSemantic(def, checker))

	// Stage 3: Graph (skip if semantic errors; references may be dangling).
	if result.Valid() {
		result.Merge(validateGraph(def))
	}

	return result
}

// ValidateDocument delegates to the underlying JSONSchemaValidator.
func (tv *TopicValidator) ValidateDocument(doc any) error {
	return tv.jsonSchema.ValidateDocument(doc)
}

// validateStructural wraps JSONSchemaValidator.ValidateDocument, converting
// its error output into ValidationResult.
func validateStructural(v *JSONSchemaValidator, doc any) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDocument(doc)
	if err == nil {
		return result
	}

	var pe *schema.PatternError
	if !errors.As(err, &pe) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if pe.Details != nil {
		if violations, ok := pe.Details["violations"].([]string); ok {
			for _, v := range violations {
				result.AddError("/", schema.ErrCodeValidation, v)
			}
			return result
		}
	}
	result.AddError("/", schema.ErrCodeValidation, pe.Message)
	return result
}

var _ Validator = (*TopicValidator)(nil)
