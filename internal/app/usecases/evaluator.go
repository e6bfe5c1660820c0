package usecases

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
)

// DefaultEdgeEvaluator implements the EdgeEvaluator interface
// PRINCIPLES:
// - SRP: Only responsible for edge evaluation
// - KISS: one switch over the edge variant
type DefaultEdgeEvaluator struct{}

// NewDefaultEdgeEvaluator creates a new edge evaluator
func NewDefaultEdgeEvaluator() *DefaultEdgeEvaluator {
	return &DefaultEdgeEvaluator{}
}

// Next follows edge. Conditional edges run the router on s, the post-node state,
// and reject any target the edge did not declare.
func (e *DefaultEdgeEvaluator) Next(_ context.Context, edge graph.Edge, s state.State) (string, error) {
	switch edge.Kind {
	case graph.EdgeStatic:
		return edge.Target, nil
	case graph.EdgeTerminal:
		return graph.END, nil
	case graph.EdgeConditional:
		target, err := route(edge.Router, s)
		if err != nil {
			return "", err
		}
		if !edge.Allows(target) {
			return target, fmt.Errorf("%w: %q not in %v", ErrUndeclaredTarget, target, edge.Targets)
		}
		return target, nil
	default:
		return "", fmt.Errorf("unknown edge kind %q", edge.Kind)
	}
}

func route(router graph.RouterFunc, s state.State) (target string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return router(s), nil
}
