package usecases

import (
	"context"
	"time"
)

// EventType names a point in the run lifecycle
type EventType string

const (
	EventRunStarted    EventType = "run.started"
	EventNodeStarted   EventType = "node.started"
	EventNodeCompleted EventType = "node.completed"
	EventNodeFailed    EventType = "node.failed"
	EventRunCompleted  EventType = "run.completed"
	EventRunFailed     EventType = "run.failed"
)

// Event represents a lifecycle event during a run
type Event struct {
	Type      EventType
	RunID     string
	GraphName string
	NodeID    string
	Step      int
	Timestamp time.Time
	// Duration is set on node.completed, node.failed and the run.* end events
	Duration time.Duration
	// Err is set on node.failed and run.failed
	Err error
}

// Hook observes run lifecycle events.
// Hooks are called synchronously, in registration order, on the run's goroutine;
// a slow hook slows the run.
type Hook interface {
	OnEvent(ctx context.Context, event Event)
}

// HookFunc adapts a function to Hook
type HookFunc func(ctx context.Context, event Event)

// OnEvent calls f
func (f HookFunc) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// EventRecorder is a Hook that keeps every event; handy in tests and the CLI.
type EventRecorder struct {
	Events []Event
}

// OnEvent appends event
func (r *EventRecorder) OnEvent(_ context.Context, event Event) {
	r.Events = append(r.Events, event)
}

// Types returns the recorded event types in order
func (r *EventRecorder) Types() []EventType {
	out := make([]EventType, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
