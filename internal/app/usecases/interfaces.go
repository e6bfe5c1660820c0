package usecases

import (
	"context"

	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
)

// GraphRepository defines the interface for compiled graph storage and retrieval
// PRINCIPLES:
// - SRP: Only responsible for graph lookup
// - DIP: Used for dependency injection
type GraphRepository interface {
	Save(ctx context.Context, g *graph.Compiled) error
	Get(ctx context.Context, name string) (*graph.Compiled, error)
	List(ctx context.Context) ([]*graph.Compiled, error)
	Delete(ctx context.Context, name string) error
}

// GraphRunner defines the interface for running compiled graphs
// PRINCIPLES:
// - SRP: Single responsibility for run orchestration
// - DIP: Depends on abstractions, not concretions
type GraphRunner interface {
	// Run walks g from its entry point until END or the first error
	Run(ctx context.Context, g *graph.Compiled, initial state.State, cfg dto.RunConfig) (*Result, error)
}

// NodeProcessor defines the interface for invoking individual nodes
type NodeProcessor interface {
	// Process invokes node on input and returns its validated output
	Process(ctx context.Context, node graph.Node, input state.State) (state.State, error)
}

// EdgeEvaluator defines the interface for following edges
type EdgeEvaluator interface {
	// Next returns the id of the next node, or graph.END.
	// On error the returned id is whatever the router chose, possibly empty.
	Next(ctx context.Context, edge graph.Edge, s state.State) (string, error)
}
