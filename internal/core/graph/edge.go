// Package graph provides edge definitions
package graph

import (
	"github.com/wandermind/stategraph/internal/core/state"
)

// RouterFunc picks the next node from the post-node state.
// The returned id must be one of the targets declared with the edge.
type RouterFunc func(s state.State) string

// EdgeKind tags the Edge variant
type EdgeKind string

const (
	// EdgeStatic always moves to a single fixed target
	EdgeStatic EdgeKind = "static"
	// EdgeConditional moves to the target chosen by a router
	EdgeConditional EdgeKind = "conditional"
	// EdgeTerminal finishes the run
	EdgeTerminal EdgeKind = "terminal"
)

// Edge is the outgoing transition of one node
// PRINCIPLES:
// - KISS: one tagged struct instead of an interface hierarchy
// - SRP: Only responsible for edge data
type Edge struct {
	Source string
	Kind   EdgeKind
	// Target is set for EdgeStatic
	Target string
	// Targets and Router are set for EdgeConditional
	Targets []string
	Router  RouterFunc
}

// Validate checks what can be checked without the node registry
func (e *Edge) Validate() error {
	if e.Source == "" || e.Source == END {
		return ErrInvalidSource
	}
	if e.Kind == EdgeStatic {
		if e.Target == "" {
			return ErrInvalidTarget
		}
		if e.Source == e.Target {
			return ErrSelfLoop
		}
	}
	return nil
}

// IsConditional checks if edge is conditional
func (e *Edge) IsConditional() bool {
	return e.Kind == EdgeConditional
}

// Allows reports whether target is a declared destination of the edge
func (e *Edge) Allows(target string) bool {
	switch e.Kind {
	case EdgeStatic:
		return e.Target == target
	case EdgeTerminal:
		return target == END
	default:
		for _, t := range e.Targets {
			if t == target {
				return true
			}
		}
		return false
	}
}

// Destinations lists every node the edge can lead to, END included
func (e *Edge) Destinations() []string {
	switch e.Kind {
	case EdgeStatic:
		return []string{e.Target}
	case EdgeTerminal:
		return []string{END}
	default:
		return append([]string{}, e.Targets...)
	}
}

func (e Edge) clone() Edge {
	e.Targets = append([]string(nil), e.Targets...)
	return e
}
