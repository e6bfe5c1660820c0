package dto

import (
	"time"

	"github.com/wandermind/stategraph/pkg/validation"
)

// DefaultMaxSteps bounds a run when the caller gives no limit
const DefaultMaxSteps = 100

// RunConfig contains configuration for one graph run
type RunConfig struct {
	MaxSteps int           `json:"max_steps" validate:"min=0,max=100000"` // Maximum number of node invocations
	Timeout  time.Duration `json:"timeout" validate:"min=0"`              // Whole-run deadline; zero means none
	RunID    string        `json:"run_id,omitempty" validate:"omitempty,uuid4"`
	Tags     []string      `json:"tags,omitempty" validate:"dive,required"`
}

// WithDefaults returns a copy with zero values replaced by defaults
func (c RunConfig) WithDefaults() RunConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// Validate checks the config tags
func (c RunConfig) Validate() error {
	return validation.Tags(c)
}

// RunRequest represents a request to run a registered graph
type RunRequest struct {
	Input    map[string]interface{} `json:"input" validate:"required"`
	MaxSteps int                    `json:"max_steps,omitempty" validate:"min=0,max=100000"`
	Timeout  string                 `json:"timeout,omitempty"`
	Tags     []string               `json:"tags,omitempty" validate:"dive,required"`
}

// Validate checks fields the tags cannot express
func (r *RunRequest) Validate() error {
	if r.Timeout == "" {
		return nil
	}
	if d, err := time.ParseDuration(r.Timeout); err != nil || d < 0 {
		return validation.Errors{{
			Field:   "timeout",
			Value:   r.Timeout,
			Message: "timeout must be a non-negative duration such as 30s",
		}}
	}
	return nil
}

// Config converts the request into a RunConfig
func (r *RunRequest) Config() RunConfig {
	cfg := RunConfig{MaxSteps: r.MaxSteps, Tags: r.Tags}
	if d, err := time.ParseDuration(r.Timeout); err == nil {
		cfg.Timeout = d
	}
	return cfg.WithDefaults()
}

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StepResult is the wire form of one trace record
type StepResult struct {
	Step      int                    `json:"step"`
	NodeID    string                 `json:"node_id"`
	Changes   []ChangeResult         `json:"changes"`
	StartTime time.Time              `json:"start_time"`
	Duration  time.Duration          `json:"duration"`
	State     map[string]interface{} `json:"state,omitempty"`
}

// ChangeResult is the wire form of one field change
type ChangeResult struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// RunResponse represents the response from a graph run
type RunResponse struct {
	RunID     string                 `json:"run_id"`
	GraphName string                 `json:"graph_name"`
	Status    RunStatus              `json:"status"`
	Output    map[string]interface{} `json:"output,omitempty"`
	Steps     []StepResult           `json:"steps"`
	StartTime time.Time              `json:"start_time"`
	Duration  time.Duration          `json:"duration"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	FailedAt  string                 `json:"failed_at,omitempty"`
}
