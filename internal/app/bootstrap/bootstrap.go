// Package bootstrap assembles the travel planner runtime from configuration.
// It is shared by the CLI and the server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wandermind/stategraph/internal/adapters/llm"
	"github.com/wandermind/stategraph/internal/adapters/llm/openai"
	"github.com/wandermind/stategraph/internal/adapters/lookup"
	"github.com/wandermind/stategraph/internal/adapters/lookup/pgvector"
	"github.com/wandermind/stategraph/internal/adapters/repository/memory"
	"github.com/wandermind/stategraph/internal/adapters/repository/postgres"
	"github.com/wandermind/stategraph/internal/adapters/repository/redis"
	"github.com/wandermind/stategraph/internal/adapters/repository/sqlite"
	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/internal/infrastructure/config"
	"github.com/wandermind/stategraph/internal/infrastructure/logging"
	"github.com/wandermind/stategraph/pkg/prebuilt"
	"github.com/wandermind/stategraph/pkg/prebuilt/travel"
	"github.com/wandermind/stategraph/pkg/serialization"
	"github.com/wandermind/stategraph/pkg/stategraph"
)

// App is an assembled runtime plus the resources it owns
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Runtime  *stategraph.Runtime
	Metrics  *prometheus.Registry
	Prebuilt *prebuilt.Registry

	closers []func() error
}

type options struct {
	generator llm.TextGenerator
	lookup    lookup.Store
	saver     history.Saver
	logOutput io.Writer
}

// Option overrides a configured collaborator
type Option func(*options)

// WithGenerator replaces the configured model client
func WithGenerator(g llm.TextGenerator) Option {
	return func(o *options) { o.generator = g }
}

// WithLookup replaces the configured lookup store
func WithLookup(s lookup.Store) Option {
	return func(o *options) { o.lookup = s }
}

// WithSaver replaces the configured history backend
func WithSaver(s history.Saver) Option {
	return func(o *options) { o.saver = s }
}

// WithLogOutput sends logs to w instead of stderr
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// New builds the runtime and registers the travel planner
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	level, err := logging.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:   cfg,
		Logger:   logging.NewWithWriter(o.logOutput, level, logging.Format(cfg.App.LogFormat)),
		Metrics:  prometheus.NewRegistry(),
		Prebuilt: prebuilt.NewRegistry(),
	}
	app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Prebuilt.MustRegister(travel.NewBuilder())

	if err := app.build(ctx, o); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, o options) error {
	gen := o.generator
	var embedder llm.Embedder
	if gen == nil {
		if err := a.Config.LLM.Validate(); err != nil {
			return err
		}
		client, err := openai.NewClient(openai.Config{
			APIKey:         a.Config.LLM.APIKey,
			BaseURL:        a.Config.LLM.BaseURL,
			Model:          a.Config.LLM.Model,
			EmbeddingModel: a.Config.LLM.EmbeddingModel,
			Temperature:    a.Config.LLM.Temperature,
			MaxTokens:      a.Config.LLM.MaxTokens,
			Timeout:        a.Config.LLM.Timeout,
		})
		if err != nil {
			return err
		}
		gen, embedder = client, client
	}

	store := o.lookup
	if store == nil {
		s, err := a.openLookup(ctx, embedder)
		if err != nil {
			return err
		}
		store = s
	}

	saver := o.saver
	if saver == nil {
		s, err := a.openHistory(ctx)
		if err != nil {
			return err
		}
		saver = s
	}

	prompts, err := travel.LoadPrompts(a.Config.App.PromptsFile)
	if err != nil {
		return err
	}

	rtOpts := []stategraph.Option{stategraph.WithLogger(a.Logger), stategraph.WithMetrics(a.Metrics)}
	if saver != nil {
		rtOpts = append(rtOpts, stategraph.WithHistory(saver))
	}
	if a.Runtime, err = stategraph.NewRuntime(rtOpts...); err != nil {
		return err
	}

	g, err := a.Prebuilt.Build(ctx, travel.Name, travel.Config{
		Generator:   gen,
		Lookup:      store,
		Prompts:     &prompts,
		LookupLimit: a.Config.Lookup.Limit,
	})
	if err != nil {
		return fmt.Errorf("build %s: %w", travel.Name, err)
	}
	return a.Runtime.Register(ctx, g)
}

// openLookup returns nil when no lookup backend is configured
func (a *App) openLookup(ctx context.Context, embedder llm.Embedder) (lookup.Store, error) {
	switch a.Config.Lookup.Backend {
	case config.BackendPgvector:
		if embedder == nil {
			return nil, errors.New("the pgvector lookup needs the configured model client for embeddings")
		}
		s, err := pgvector.Connect(ctx, a.Config.Lookup.PostgresDSN, embedder, pgvector.Config{
			Table:      a.Config.Lookup.Table,
			Dimensions: a.Config.Lookup.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("open lookup store: %w", err)
		}
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		return s, nil
	default:
		return nil, nil
	}
}

// openHistory returns nil when history is disabled
func (a *App) openHistory(ctx context.Context) (history.Saver, error) {
	hc := a.Config.History
	compression, err := serialization.ParseCompression(hc.Compression)
	if err != nil {
		return nil, err
	}
	ser, err := serialization.New(serialization.Config{Compression: compression, EncryptKey: hc.EncryptionKey})
	if err != nil {
		return nil, err
	}

	switch hc.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		s := memory.NewHistorySaver(memory.Config{TTL: hc.TTL, Serializer: ser})
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, hc.SQLitePath, ser)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.Connect(ctx, hc.PostgresDSN, ser)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		return s, nil
	case config.BackendRedis:
		s, err := redis.NewFromURL(hc.RedisURL, redis.WithTTL(hc.TTL), redis.WithSerializer(ser))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", hc.Backend)
	}
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
