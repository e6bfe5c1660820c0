// Package main provides the stategraph HTTP server: the travel planner behind
// a JSON API with Prometheus metrics and pprof.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/wandermind/stategraph/internal/adapters/http"
	"github.com/wandermind/stategraph/internal/app/bootstrap"
	"github.com/wandermind/stategraph/internal/infrastructure/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env-file", ".env", "Optional .env file with STATEGRAPH_* settings")
	addr := flag.String("addr", "", "Listen address (default STATEGRAPH_HTTP_ADDR)")
	pprof := flag.Bool("pprof", false, "Serve /debug/pprof")
	flag.Parse()

	if err := run(*envFile, *addr, *pprof); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(envFile, addr string, pprof bool) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.App.HTTPAddr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	opts := []httpapi.Option{
		httpapi.WithLogger(app.Logger),
		httpapi.WithGatherer(app.Metrics),
		httpapi.WithRunDefaults(cfg.App.MaxSteps, cfg.App.RequestTimeout),
	}
	if pprof {
		opts = append(opts, httpapi.WithProfiler())
	}
	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           httpapi.NewHandler(app.Runtime, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("server listening", "addr", srv.Addr, "history", cfg.History.Backend, "lookup", cfg.Lookup.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		return nil
	}
}
