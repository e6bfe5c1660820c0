package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wandermind/stategraph/internal/app/usecases"
)

// ActiveRun is a snapshot of a run that has started but not finished
type ActiveRun struct {
	RunID       string    `json:"run_id"`
	GraphName   string    `json:"graph_name"`
	CurrentNode string    `json:"current_node,omitempty"`
	Step        int       `json:"step"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunTracker follows in-flight runs through executor events
// PRINCIPLES:
// - SRP: Tracks run progress only
// - KISS: Simple in-memory map
// - OCP: Plugs into the executor as a Hook
type RunTracker struct {
	mu   sync.RWMutex
	runs map[string]*ActiveRun
}

var _ usecases.Hook = (*RunTracker)(nil)

// NewRunTracker creates an empty tracker
func NewRunTracker() *RunTracker {
	return &RunTracker{runs: make(map[string]*ActiveRun)}
}

// OnEvent implements usecases.Hook
func (t *RunTracker) OnEvent(_ context.Context, ev usecases.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case usecases.EventRunStarted:
		t.runs[ev.RunID] = &ActiveRun{
			RunID:     ev.RunID,
			GraphName: ev.GraphName,
			StartedAt: ev.Timestamp,
			UpdatedAt: ev.Timestamp,
		}
	case usecases.EventNodeStarted:
		if r, ok := t.runs[ev.RunID]; ok {
			r.CurrentNode = ev.NodeID
			r.Step = ev.Step
			r.UpdatedAt = ev.Timestamp
		}
	case usecases.EventRunCompleted, usecases.EventRunFailed:
		delete(t.runs, ev.RunID)
	}
}

// Get returns a copy of one active run
func (t *RunTracker) Get(runID string) (ActiveRun, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.runs[runID]
	if !ok {
		return ActiveRun{}, false
	}
	return *r, true
}

// Active returns copies of all active runs, oldest first
func (t *RunTracker) Active() []ActiveRun {
	t.mu.RLock()
	out := make([]ActiveRun, 0, len(t.runs))
	for _, r := range t.runs {
		out = append(out, *r)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}

// Count returns the number of active runs
func (t *RunTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}
