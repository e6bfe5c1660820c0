// Package history provides run persistence interfaces
package history

import (
	"context"
	"sort"
	"time"
)

// Saver interface for run persistence (DIP - Dependency Inversion)
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - DIP: Core domain depends on interface, not implementations
// - SRP: Single responsibility - run persistence
type Saver interface {
	// Save persists a run, replacing any run with the same ID
	Save(ctx context.Context, run *Run) error

	// Load retrieves a run by ID
	Load(ctx context.Context, id string) (*Run, error)

	// List returns runs matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]*Run, error)

	// Delete removes a run by ID
	Delete(ctx context.Context, id string) error
}

// Filter for run queries
type Filter struct {
	GraphName string     `json:"graph_name,omitempty"`
	Status    Status     `json:"status,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Status != "" && !f.Status.Valid() {
		return ErrInvalidStatus
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Match reports whether run passes the non-paging conditions. Since is
// inclusive and Before exclusive, both against StartedAt.
func (f *Filter) Match(run *Run) bool {
	if f.GraphName != "" && run.GraphName != f.GraphName {
		return false
	}
	if f.Status != "" && run.Status != f.Status {
		return false
	}
	if f.Since != nil && run.StartedAt.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !run.StartedAt.Before(*f.Before) {
		return false
	}
	return true
}

// Apply filters, sorts newest first, and pages runs. Savers that cannot push
// the filter down to storage use it on what they loaded.
func (f *Filter) Apply(runs []*Run) []*Run {
	matched := make([]*Run, 0, len(runs))
	for _, r := range runs {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}
	SortNewestFirst(matched)

	if f.Offset >= len(matched) {
		return []*Run{}
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched
}

// SortNewestFirst orders by StartedAt descending, then ID ascending
func SortNewestFirst(runs []*Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
