package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
	"github.com/wandermind/stategraph/internal/core/trace"
	"github.com/wandermind/stategraph/internal/infrastructure/logging"
)

// Result is the outcome of a run that reached END
type Result struct {
	RunID     string
	GraphName string
	Final     state.State
	Trace     trace.Trace
	Steps     int
	StartedAt time.Time
	Duration  time.Duration
}

// Executor walks compiled graphs one node at a time
// PRINCIPLES:
// - KISS: Simple, straightforward execution logic
// - SRP: Focuses only on run orchestration
// - DIP: node invocation and edge evaluation are injected
//
// An Executor holds no per-run state and may run any number of graphs concurrently.
type Executor struct {
	processor NodeProcessor
	evaluator EdgeEvaluator
	hooks     []Hook
	logger    *slog.Logger
	newRunID  func() string
}

// Option configures an Executor
type Option func(*Executor)

// WithHooks appends lifecycle hooks
func WithHooks(hooks ...Hook) Option {
	return func(e *Executor) { e.hooks = append(e.hooks, hooks...) }
}

// WithLogger sets the logger used when the run context carries none
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithNodeProcessor replaces the node processor
func WithNodeProcessor(p NodeProcessor) Option {
	return func(e *Executor) { e.processor = p }
}

// WithEdgeEvaluator replaces the edge evaluator
func WithEdgeEvaluator(ev EdgeEvaluator) Option {
	return func(e *Executor) { e.evaluator = ev }
}

// WithRunIDGenerator replaces uuid-based run ids
func WithRunIDGenerator(fn func() string) Option {
	return func(e *Executor) { e.newRunID = fn }
}

// NewExecutor creates an executor with default processor and evaluator
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		processor: NewDefaultNodeProcessor(),
		evaluator: NewDefaultEdgeEvaluator(),
		logger:    logging.NewNop(),
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runInfo is the immutable identity of one run
type runInfo struct {
	id        string
	graph     string
	startedAt time.Time
	logger    *slog.Logger
}

// Run walks g from its entry point with initial until a terminal edge.
//
// It returns either a Result with the final state and full trace, or an error
// and no Result. Errors raised after the walk started implement RunError and
// carry the partial trace. The context is checked before every node; a node
// that is running is never interrupted by the engine.
func (e *Executor) Run(ctx context.Context, g *graph.Compiled, initial state.State, cfg dto.RunConfig) (*Result, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if initial.IsZero() || initial.Schema() != g.Schema() {
		return nil, fmt.Errorf("%w: graph %q", ErrInvalidInitialState, g.Name())
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInvalidConfig, err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	run := runInfo{id: cfg.RunID, graph: g.Name(), startedAt: time.Now()}
	if run.id == "" {
		run.id = e.newRunID()
	}
	run.logger = e.loggerFor(ctx).With("run_id", run.id, "graph", run.graph)
	ctx = withRun(ctx, run.id, run.graph)
	ctx = logging.WithLogger(ctx, run.logger)

	run.logger.Debug("run started", "entry", g.EntryPoint(), "max_steps", cfg.MaxSteps)
	e.emit(ctx, run, Event{Type: EventRunStarted})

	current := g.EntryPoint()
	st := initial
	tr := make(trace.Trace, 0, len(g.NodeIDs()))

	for step := 1; ; step++ {
		if step > cfg.MaxSteps {
			return e.fail(ctx, run, &StepLimitExceededError{
				Limit: cfg.MaxSteps, NodeID: current, Trace: tr.Clone(), State: st,
			})
		}
		if ctx.Err() != nil {
			return e.fail(ctx, run, &CancelledError{
				NodeID: current, Step: step, Cause: context.Cause(ctx), Trace: tr.Clone(), State: st,
			})
		}

		node, _ := g.Node(current)
		nodeCtx := withNode(ctx, current, step)
		run.logger.Debug("node started", "node", current, "step", step)
		e.emit(nodeCtx, run, Event{Type: EventNodeStarted, NodeID: current, Step: step})

		began := time.Now()
		out, err := e.processor.Process(nodeCtx, node, st)
		elapsed := time.Since(began)
		if err != nil {
			e.emit(nodeCtx, run, Event{Type: EventNodeFailed, NodeID: current, Step: step, Duration: elapsed, Err: err})
			return e.fail(ctx, run, &NodeExecutionError{
				NodeID: current, Step: step, Err: err, Trace: tr.Clone(), State: st,
			})
		}

		tr = append(tr, trace.Record{
			Step:      step,
			NodeID:    current,
			State:     out,
			Changes:   trace.Diff(st, out),
			StartedAt: began,
			Duration:  elapsed,
		})
		st = out
		run.logger.Debug("node completed", "node", current, "step", step, "duration", elapsed)
		e.emit(nodeCtx, run, Event{Type: EventNodeCompleted, NodeID: current, Step: step, Duration: elapsed})

		edge, _ := g.Edge(current)
		next, err := e.evaluator.Next(nodeCtx, edge, st)
		if err != nil {
			return e.fail(ctx, run, &RoutingError{
				NodeID: current, Step: step, Target: next, Targets: edge.Targets,
				Err: err, Trace: tr.Clone(), State: st,
			})
		}
		if next == graph.END {
			return e.complete(ctx, run, st, tr), nil
		}
		current = next
	}
}

func (e *Executor) complete(ctx context.Context, run runInfo, final state.State, tr trace.Trace) *Result {
	res := &Result{
		RunID:     run.id,
		GraphName: run.graph,
		Final:     final,
		Trace:     tr,
		Steps:     len(tr),
		StartedAt: run.startedAt,
		Duration:  time.Since(run.startedAt),
	}
	run.logger.Info("run completed", "steps", res.Steps, "duration", res.Duration)
	e.emit(ctx, run, Event{Type: EventRunCompleted, Step: res.Steps, Duration: res.Duration})
	return res
}

func (e *Executor) fail(ctx context.Context, run runInfo, err RunError) (*Result, error) {
	elapsed := time.Since(run.startedAt)
	steps := len(err.PartialTrace())
	run.logger.Warn("run failed", "kind", ErrorKind(err), "steps", steps, "error", err)
	e.emit(ctx, run, Event{Type: EventRunFailed, Step: steps, Duration: elapsed, Err: err})
	return nil, err
}

func (e *Executor) emit(ctx context.Context, run runInfo, ev Event) {
	if len(e.hooks) == 0 {
		return
	}
	ev.RunID = run.id
	ev.GraphName = run.graph
	ev.Timestamp = time.Now()
	for _, h := range e.hooks {
		h.OnEvent(ctx, ev)
	}
}

// loggerFor prefers a logger carried by ctx over the executor's own
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	if l := logging.FromContext(ctx); l != slog.Default() {
		return l
	}
	return e.logger
}
