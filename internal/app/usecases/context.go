package usecases

import "context"

type ctxKey int

const (
	runIDKey ctxKey = iota
	graphNameKey
	nodeIDKey
	stepKey
)

// RunIDFrom returns the id of the run executing the current node.
func RunIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// GraphNameFrom returns the name of the graph being run.
func GraphNameFrom(ctx context.Context) string {
	v, _ := ctx.Value(graphNameKey).(string)
	return v
}

// NodeIDFrom returns the id of the node being invoked.
func NodeIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(nodeIDKey).(string)
	return v
}

// StepFrom returns the 1-based step number of the current invocation.
func StepFrom(ctx context.Context) int {
	v, _ := ctx.Value(stepKey).(int)
	return v
}

func withRun(ctx context.Context, runID, graphName string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return context.WithValue(ctx, graphNameKey, graphName)
}

func withNode(ctx context.Context, nodeID string, step int) context.Context {
	ctx = context.WithValue(ctx, nodeIDKey, nodeID)
	return context.WithValue(ctx, stepKey, step)
}
