package stategraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	graphrepo "github.com/wandermind/stategraph/internal/adapters/repository/graph"
	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/internal/app/services"
	"github.com/wandermind/stategraph/internal/app/usecases"
	"github.com/wandermind/stategraph/internal/infrastructure/logging"
	"github.com/wandermind/stategraph/internal/infrastructure/metrics"
)

var (
	ErrHistoryDisabled = errors.New("run history is not configured")
	ErrInvalidInput    = dto.ErrInvalidInput
)

// Runtime holds registered graphs and runs them. The zero value is not usable;
// construct with NewRuntime. A Runtime is safe for concurrent use.
type Runtime struct {
	repo     usecases.GraphRepository
	executor *usecases.Executor
	history  *services.HistoryService
	tracker  *services.RunTracker
	logger   *slog.Logger
}

type options struct {
	logger   *slog.Logger
	hooks    []usecases.Hook
	saver    Saver
	registry prometheus.Registerer
}

// Option configures a Runtime
type Option func(*options)

// WithLogger sets the runtime and executor logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHooks adds lifecycle hooks to every run
func WithHooks(hooks ...Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// WithHistory records every run that started to saver
func WithHistory(saver Saver) Option {
	return func(o *options) { o.saver = saver }
}

// WithMetrics registers Prometheus collectors with reg and feeds them from runs
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// NewRuntime constructs a runtime with an in-memory graph registry
func NewRuntime(opts ...Option) (*Runtime, error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{
		repo:    graphrepo.NewInMemoryGraphRepository(),
		tracker: services.NewRunTracker(),
		logger:  o.logger,
	}
	hooks := append([]usecases.Hook{rt.tracker}, o.hooks...)
	if o.registry != nil {
		rec, err := metrics.New(o.registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		hooks = append(hooks, rec)
	}
	if o.saver != nil {
		rt.history = services.NewHistoryService(o.saver)
	}
	rt.executor = usecases.NewExecutor(usecases.WithLogger(o.logger), usecases.WithHooks(hooks...))
	return rt, nil
}

// MustNewRuntime panics if NewRuntime fails
func MustNewRuntime(opts ...Option) *Runtime {
	rt, err := NewRuntime(opts...)
	if err != nil {
		panic(err)
	}
	return rt
}

// Register adds a compiled graph under its name
func (rt *Runtime) Register(ctx context.Context, g *Compiled) error {
	if err := rt.repo.Save(ctx, g); err != nil {
		return err
	}
	rt.logger.Debug("graph registered", "graph", g.Name(), "nodes", len(g.NodeIDs()))
	return nil
}

// Graph returns a registered graph
func (rt *Runtime) Graph(ctx context.Context, name string) (*Compiled, error) {
	return rt.repo.Get(ctx, name)
}

// Graphs returns all registered graphs sorted by name
func (rt *Runtime) Graphs(ctx context.Context) ([]*Compiled, error) {
	return rt.repo.List(ctx)
}

// Run executes the named graph from input. The run id is assigned before the
// run starts so failed runs can be recorded under it.
func (rt *Runtime) Run(ctx context.Context, name string, input State, cfg RunConfig) (*Result, error) {
	g, err := rt.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	attempt := services.Attempt{
		RunID:     cfg.RunID,
		GraphName: g.Name(),
		Input:     input,
		Tags:      cfg.Tags,
		StartedAt: time.Now(),
	}
	res, err := rt.executor.Run(ctx, g, input, cfg)
	rt.record(ctx, attempt, res, err)
	return res, err
}

// Invoke decodes a loosely typed input, e.g. a JSON object, against the
// graph's schema and runs it
func (rt *Runtime) Invoke(ctx context.Context, name string, input map[string]any, cfg RunConfig) (*Result, error) {
	g, err := rt.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	initial, err := g.Schema().Decode(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return rt.Run(ctx, name, initial, cfg)
}

// History lists recorded runs, newest first
func (rt *Runtime) History(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if rt.history == nil {
		return nil, ErrHistoryDisabled
	}
	return rt.history.List(ctx, filter)
}

// LoadRun returns one recorded run
func (rt *Runtime) LoadRun(ctx context.Context, id string) (*RunRecord, error) {
	if rt.history == nil {
		return nil, ErrHistoryDisabled
	}
	return rt.history.Get(ctx, id)
}

// Active returns runs in progress, oldest first
func (rt *Runtime) Active() []ActiveRun {
	return rt.tracker.Active()
}

// record saves the outcome of a run that got as far as the executor's walk.
// Precondition failures never started a run and are not recorded. A failed
// save is logged; it never replaces the run's own outcome.
func (rt *Runtime) record(ctx context.Context, a services.Attempt, res *Result, runErr error) {
	if rt.history == nil {
		return
	}
	var rec *RunRecord
	var re RunError
	switch {
	case runErr == nil:
		rec = rt.history.FromResult(a, res)
	case errors.As(runErr, &re):
		rec = rt.history.FromError(a, runErr)
	default:
		return
	}
	if err := rt.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		rt.logger.Error("failed to record run", "run_id", a.RunID, "graph", a.GraphName, "error", err)
	}
}
