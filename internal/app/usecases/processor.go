package usecases

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
)

// DefaultNodeProcessor implements the NodeProcessor interface
// PRINCIPLES:
// - SRP: Handles only node invocation
// - LSP: Substitutable for any NodeProcessor implementation
type DefaultNodeProcessor struct{}

// NewDefaultNodeProcessor creates a new node processor
func NewDefaultNodeProcessor() *DefaultNodeProcessor {
	return &DefaultNodeProcessor{}
}

// Process invokes the node function, converting a panic into *PanicError, and
// checks that the output is a valid successor of input.
func (p *DefaultNodeProcessor) Process(ctx context.Context, node graph.Node, input state.State) (out state.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = state.State{}
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	out, err = node.Fn(ctx, input)
	if err != nil {
		return state.State{}, err
	}
	if verr := state.Validate(input, out); verr != nil {
		return state.State{}, fmt.Errorf("invalid output: %w", verr)
	}
	return out, nil
}
