// Package graph provides node definitions
package graph

import (
	"context"

	"github.com/wandermind/stategraph/internal/core/state"
)

// END is the terminal marker. An edge to END finishes the run.
const END = "__end__"

// NodeFunc transforms the state. It must return a complete state of the same schema.
type NodeFunc func(ctx context.Context, s state.State) (state.State, error)

// Node is a registered unit of computation
// PRINCIPLES:
// - KISS: Simple node representation
// - SRP: Only responsible for node data
type Node struct {
	ID          string
	Description string
	Fn          NodeFunc
}

// NodeOption configures a node at registration
type NodeOption func(*Node)

// WithDescription attaches a human-readable description shown in topology output
func WithDescription(desc string) NodeOption {
	return func(n *Node) { n.Description = desc }
}

// Validate ensures node integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation, <10 lines
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.ID == END {
		return ErrReservedNodeID
	}
	if n.Fn == nil {
		return ErrNilNodeFunc
	}
	return nil
}
