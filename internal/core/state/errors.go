// Package state defines domain-specific errors
package state

import "errors"

// Domain errors - defined once, used everywhere
var (
	// Schema errors
	ErrInvalidSchemaName = errors.New("invalid schema name")
	ErrInvalidFieldName  = errors.New("invalid field name")
	ErrDuplicateField    = errors.New("duplicate field")
	ErrInvalidKind       = errors.New("invalid field kind")
	ErrReducerMismatch   = errors.New("reducer not supported for field kind")
	ErrUnknownReducer    = errors.New("unknown reducer type")

	// State errors
	ErrUnknownField   = errors.New("unknown state field")
	ErrKindMismatch   = errors.New("value does not match field kind")
	ErrAppendOnly     = errors.New("field is append-only")
	ErrSchemaMismatch = errors.New("state belongs to a different schema")
	ErrInvalidState   = errors.New("invalid state")
)
