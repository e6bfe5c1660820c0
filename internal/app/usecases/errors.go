package usecases

import (
	"errors"
	"fmt"

	"github.com/wandermind/stategraph/internal/core/state"
	"github.com/wandermind/stategraph/internal/core/trace"
)

// Precondition errors, returned before any node runs
var (
	ErrNilGraph            = errors.New("compiled graph is nil")
	ErrInvalidInitialState = errors.New("initial state does not match the graph schema")
	ErrGraphNotFound       = errors.New("graph not found")
	ErrGraphExists         = errors.New("graph already registered")
)

// Run-time error categories; every run error matches exactly one with errors.Is
var (
	ErrNodeExecution     = errors.New("node execution failed")
	ErrRouting           = errors.New("routing failed")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	ErrCancelled         = errors.New("run cancelled")
	ErrUndeclaredTarget  = errors.New("router returned an undeclared target")
)

// RunError is implemented by every error that stops a run after it started.
// The partial trace holds one record per node that completed.
type RunError interface {
	error
	PartialTrace() trace.Trace
	LastState() state.State
}

// NodeExecutionError reports a node that returned an error or panicked.
// State is the state the failing node received.
type NodeExecutionError struct {
	NodeID string
	Step   int
	Err    error
	Trace  trace.Trace
	State  state.State
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed at step %d: %v", e.NodeID, e.Step, e.Err)
}

func (e *NodeExecutionError) Unwrap() error             { return e.Err }
func (e *NodeExecutionError) Is(target error) bool      { return target == ErrNodeExecution }
func (e *NodeExecutionError) PartialTrace() trace.Trace { return e.Trace }
func (e *NodeExecutionError) LastState() state.State    { return e.State }

// RoutingError reports a conditional edge whose router chose a target outside
// its declared set, or panicked. The routing node's own record is in the trace.
type RoutingError struct {
	NodeID  string
	Step    int
	Target  string
	Targets []string
	Err     error
	Trace   trace.Trace
	State   state.State
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing from node %q at step %d: %v", e.NodeID, e.Step, e.Err)
}

func (e *RoutingError) Unwrap() error             { return e.Err }
func (e *RoutingError) Is(target error) bool      { return target == ErrRouting }
func (e *RoutingError) PartialTrace() trace.Trace { return e.Trace }
func (e *RoutingError) LastState() state.State    { return e.State }

// StepLimitExceededError reports a run that invoked Limit nodes without
// reaching END. NodeID is the node that would have run next.
type StepLimitExceededError struct {
	Limit  int
	NodeID string
	Trace  trace.Trace
	State  state.State
}

func (e *StepLimitExceededError) Error() string {
	return fmt.Sprintf("step limit of %d exceeded before node %q", e.Limit, e.NodeID)
}

func (e *StepLimitExceededError) Is(target error) bool      { return target == ErrStepLimitExceeded }
func (e *StepLimitExceededError) PartialTrace() trace.Trace { return e.Trace }
func (e *StepLimitExceededError) LastState() state.State    { return e.State }

// CancelledError reports a run stopped by its context between two nodes.
// Cause is context.Canceled, context.DeadlineExceeded or a custom cause.
type CancelledError struct {
	NodeID string
	Step   int
	Cause  error
	Trace  trace.Trace
	State  state.State
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled before node %q (step %d): %v", e.NodeID, e.Step, e.Cause)
}

func (e *CancelledError) Unwrap() error             { return e.Cause }
func (e *CancelledError) Is(target error) bool      { return target == ErrCancelled }
func (e *CancelledError) PartialTrace() trace.Trace { return e.Trace }
func (e *CancelledError) LastState() state.State    { return e.State }

// PanicError wraps a value recovered from a node or router.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TraceOf returns the partial trace carried by a run error.
func TraceOf(err error) (trace.Trace, bool) {
	var runErr RunError
	if errors.As(err, &runErr) {
		return runErr.PartialTrace(), true
	}
	return nil, false
}

// LastStateOf returns the last good state carried by a run error.
func LastStateOf(err error) (state.State, bool) {
	var runErr RunError
	if errors.As(err, &runErr) {
		return runErr.LastState(), true
	}
	return state.State{}, false
}

// ErrorKind names the category of a run error for logs, metrics and history.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNodeExecution):
		return "node_execution"
	case errors.Is(err, ErrRouting):
		return "routing"
	case errors.Is(err, ErrStepLimitExceeded):
		return "step_limit"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "other"
	}
}

// FailedNodeOf names the node a run error is attributed to: the failing or
// routing node, or the node that would have run next.
func FailedNodeOf(err error) string {
	var (
		nodeErr   *NodeExecutionError
		routeErr  *RoutingError
		limitErr  *StepLimitExceededError
		cancelErr *CancelledError
	)
	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &routeErr):
		return routeErr.NodeID
	case errors.As(err, &limitErr):
		return limitErr.NodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	}
	return ""
}
