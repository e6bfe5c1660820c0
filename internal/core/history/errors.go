// Package history defines run history errors
package history

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Run validation errors
	ErrInvalidRunID   = errors.New("invalid run ID")
	ErrInvalidGraph   = errors.New("invalid graph name")
	ErrInvalidStatus  = errors.New("invalid run status")
	ErrInvalidEndTime = errors.New("run ended before it started")
	ErrRunNotFound    = errors.New("run not found")

	// Filter validation errors
	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: since is after before")
)
