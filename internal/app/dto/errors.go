package dto

import "errors"

// Request errors
var (
	ErrMissingGraphName = errors.New("graph name is required")
	ErrInvalidConfig    = errors.New("invalid run configuration")
	ErrInvalidInput     = errors.New("invalid input provided")
)
