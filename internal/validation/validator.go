package validation

import "github.com/rendis/patternlab/pkg/schema"

// Validator checks topic definitions before they are served.
type Validator interface {
	// ValidateDocument checks a raw decoded document (YAML or JSON) against
	// the topic JSON Schema.
	ValidateDocument(doc any) error
	// Validate runs every stage against a decoded topic.
	Validate(doc any, def *schema.TopicDefinition) *schema.ValidationResult
}
