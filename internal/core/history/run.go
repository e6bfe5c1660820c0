// Package history holds the audit record of finished graph runs. It has no
// resume semantics: a stored Run is never fed back into the executor.
package history

import (
	"fmt"
	"time"

	"github.com/wandermind/stategraph/internal/core/trace"
)

// Status is the terminal outcome of a run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a string to a Status; empty is allowed and returns ""
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if s == "" || st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Step is the stored form of one trace record. The post-node snapshot is
// dropped; Changes is enough to replay the run on top of Input.
type Step struct {
	Number    int            `json:"number"`
	NodeID    string         `json:"node_id"`
	Changes   []trace.Change `json:"changes,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Run is a finished run
// PRINCIPLES:
// - KISS: flat struct, every field serializable
// - SRP: Only describes what happened, never how to continue
type Run struct {
	ID        string         `json:"id"`
	GraphName string         `json:"graph_name"`
	Status    Status         `json:"status"`
	Input     map[string]any `json:"input,omitempty"`
	Final     map[string]any `json:"final,omitempty"`
	Steps     []Step         `json:"steps,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	FailedAt  string         `json:"failed_at,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

// Validate ensures run integrity
func (r *Run) Validate() error {
	if r.ID == "" {
		return ErrInvalidRunID
	}
	if r.GraphName == "" {
		return ErrInvalidGraph
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if !r.EndedAt.IsZero() && r.EndedAt.Before(r.StartedAt) {
		return ErrInvalidEndTime
	}
	return nil
}

// Duration is the wall time between start and end
func (r *Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// NodeIDs lists the visited nodes in order
func (r *Run) NodeIDs() []string {
	ids := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		ids[i] = s.NodeID
	}
	return ids
}

// StepsFromTrace converts trace records into stored steps
func StepsFromTrace(tr trace.Trace) []Step {
	steps := make([]Step, len(tr))
	for i, rec := range tr {
		steps[i] = Step{
			Number:    rec.Step,
			NodeID:    rec.NodeID,
			Changes:   rec.Changes,
			StartedAt: rec.StartedAt,
			Duration:  rec.Duration,
		}
	}
	return steps
}
