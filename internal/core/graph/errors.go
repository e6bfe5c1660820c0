// Package graph defines domain-specific errors
package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Graph errors
	ErrInvalidGraphName = errors.New("invalid graph name")
	ErrNilSchema        = errors.New("graph has no state schema")
	ErrNoEntryPoint     = errors.New("no entry point specified")

	// Node errors
	ErrInvalidNodeID  = errors.New("invalid node ID")
	ErrReservedNodeID = errors.New("node ID is reserved")
	ErrNilNodeFunc    = errors.New("node function cannot be nil")
	ErrDuplicateNode  = errors.New("duplicate node ID")
	ErrUnknownNode    = errors.New("unknown node")
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")
	ErrMultipleEdges  = errors.New("node has more than one outgoing edge")
	ErrUnreachable    = errors.New("node is unreachable from the entry point")

	// Edge errors
	ErrInvalidSource  = errors.New("invalid source node")
	ErrInvalidTarget  = errors.New("invalid target node")
	ErrDuplicateEdge  = errors.New("duplicate edge")
	ErrSelfLoop       = errors.New("static self-loops are not allowed")
	ErrNilRouter      = errors.New("conditional edge has no router")
	ErrNoRouteTargets = errors.New("conditional edge declares no targets")
)

// DuplicateNodeError is returned by AddNode when the id is already registered.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q already registered", e.NodeID)
}

func (e *DuplicateNodeError) Unwrap() error { return ErrDuplicateNode }

// UnknownNodeError reports a reference to a node that is not registered.
// Ref says where the reference came from, e.g. "entry point" or "edge target".
type UnknownNodeError struct {
	NodeID string
	Ref    string
}

func (e *UnknownNodeError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("unknown node %q", e.NodeID)
	}
	return fmt.Sprintf("%s references unknown node %q", e.Ref, e.NodeID)
}

func (e *UnknownNodeError) Unwrap() error { return ErrUnknownNode }

// Violation is one structural problem found by Compile.
type Violation struct {
	// NodeID is the node the violation is about; empty for graph-level problems
	NodeID string
	Err    error
}

func (v Violation) Error() string {
	if v.NodeID == "" {
		return v.Err.Error()
	}
	return fmt.Sprintf("node %q: %v", v.NodeID, v.Err)
}

func (v Violation) Unwrap() error { return v.Err }

// ValidationError lists every violation found while compiling a graph.
// errors.Is and errors.As see through to each violation.
type ValidationError struct {
	Graph      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("graph %q is invalid (%d violations): %s",
		e.Graph, len(e.Violations), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		errs = append(errs, v)
	}
	return errs
}
