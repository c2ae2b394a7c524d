package token

// errors.go holds the error sink the validator reports into.
//
// Violations are either field-scoped (Field is set) or record-scoped
// (Field is empty). The sink keeps them in the order they were reported so
// callers and tests see a deterministic sequence.

import (
	"fmt"
	"strings"
)

// Reason codes attached to validation errors.
const (
	CodeRequired     = "required"
	CodeDuplicate    = "duplicate"
	CodeUnresolvable = "unresolvable"
	CodeLookupFailed = "lookup_failed"
)

// ValidationError represents a single violation.
type ValidationError struct {
	Field   string `json:"field,omitempty"` // Empty for record-scoped errors
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ErrorSink collects validation failures without short-circuiting.
type ErrorSink interface {
	// RejectValue records a failure against a single field.
	RejectValue(field, code, message string)

	// Reject records a failure against the registration as a whole.
	Reject(code, message string)
}

// Errors is the default ErrorSink. The zero value is ready to use.
// It is not safe for concurrent use; give each validation its own Errors.
type Errors struct {
	errs []ValidationError
}

// NewErrors returns an empty error collection.
func NewErrors() *Errors {
	return &Errors{}
}

func (e *Errors) RejectValue(field, code, message string) {
	e.errs = append(e.errs, ValidationError{Field: field, Code: code, Message: message})
}

func (e *Errors) Reject(code, message string) {
	e.errs = append(e.errs, ValidationError{Code: code, Message: message})
}

// HasErrors reports whether any violation was recorded.
func (e *Errors) HasErrors() bool {
	return len(e.errs) > 0
}

// Len returns the number of recorded violations.
func (e *Errors) Len() int {
	return len(e.errs)
}

// All returns a copy of every recorded violation in report order.
func (e *Errors) All() []ValidationError {
	out := make([]ValidationError, len(e.errs))
	copy(out, e.errs)
	return out
}

// FieldErrors returns the violations recorded against field.
func (e *Errors) FieldErrors(field string) []ValidationError {
	var out []ValidationError
	for _, ve := range e.errs {
		if ve.Field == field {
			out = append(out, ve)
		}
	}
	return out
}

// GlobalErrors returns the record-scoped violations.
func (e *Errors) GlobalErrors() []ValidationError {
	return e.FieldErrors("")
}

// HasFieldError reports whether field has a violation with the given code.
func (e *Errors) HasFieldError(field, code string) bool {
	for _, ve := range e.errs {
		if ve.Field == field && ve.Code == code {
			return true
		}
	}
	return false
}

// Err returns nil when no violation was recorded, otherwise an
// *InvalidError carrying all of them.
func (e *Errors) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return &InvalidError{Errors: e.All()}
}

// InvalidError is returned by operations that refuse to persist a
// registration because it failed validation.
type InvalidError struct {
	Errors []ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid token registration: " + strings.Join(msgs, "; ")
}
