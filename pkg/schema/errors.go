package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeClosed     = "CLOSED"
	ErrCodeExpression = "EXPRESSION_ERROR"
	ErrCodeRender     = "RENDER_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
)

// PatternError is the structured error type returned across package boundaries.
type PatternError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Topic   string         `json:"topic,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PatternError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("[%s] topic %s: %s", e.Code, e.Topic, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PatternError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PatternError.
func NewError(code, message string) *PatternError {
	return &PatternError{Code: code, Message: message}
}

// NewErrorf creates a new PatternError with a formatted message.
func NewErrorf(code, format string, args ...any) *PatternError {
	return &PatternError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithTopic attaches a topic ID to the error.
func (e *PatternError) WithTopic(topic string) *PatternError {
	e.Topic = topic
	return e
}

// WithCause attaches an underlying cause.
func (e *PatternError) WithCause(err error) *PatternError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PatternError) WithDetails(details map[string]any) *PatternError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first PatternError in err's chain, or "".
func CodeOf(err error) string {
	var pe *PatternError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err's chain contains a PatternError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
