// Package validation checks request bodies, query parameters and config
// structs with go-playground/validator and reports every failed rule.
package validation

import (
	"strings"
)

// FieldError is one failed rule. Message names the field itself.
type FieldError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Message }

// Errors lists every failed rule of one value
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Checker is implemented by values with rules tags cannot express
type Checker interface {
	Validate() error
}
