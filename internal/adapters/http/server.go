// Package http exposes a stategraph runtime over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/internal/infrastructure/logging"
	"github.com/wandermind/stategraph/pkg/stategraph"
	"github.com/wandermind/stategraph/pkg/validation"
)

// Runtime is the part of *stategraph.Runtime the API serves
type Runtime interface {
	Graph(ctx context.Context, name string) (*stategraph.Compiled, error)
	Graphs(ctx context.Context) ([]*stategraph.Compiled, error)
	Invoke(ctx context.Context, name string, input map[string]any, cfg stategraph.RunConfig) (*stategraph.Result, error)
	History(ctx context.Context, filter stategraph.RunFilter) ([]*stategraph.RunRecord, error)
	LoadRun(ctx context.Context, id string) (*stategraph.RunRecord, error)
	Active() []stategraph.ActiveRun
}

var _ Runtime = (*stategraph.Runtime)(nil)

// Server holds handler dependencies
type Server struct {
	runtime   Runtime
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	maxSteps  int
	timeout   time.Duration
	profiler  bool
	validator *validation.Middleware
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer serves g on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRunDefaults applies maxSteps and timeout to requests that leave them unset
func WithRunDefaults(maxSteps int, timeout time.Duration) Option {
	return func(s *Server) {
		s.maxSteps = maxSteps
		s.timeout = timeout
	}
}

// WithProfiler mounts net/http/pprof under /debug
func WithProfiler() Option {
	return func(s *Server) { s.profiler = true }
}

// NewHandler builds the router
func NewHandler(rt Runtime, opts ...Option) http.Handler {
	s := &Server{
		runtime:   rt,
		logger:    logging.NewNop(),
		validator: validation.NewMiddleware(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.profiler {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/graphs", s.listGraphs)
		r.Get("/graphs/{name}", s.getGraph)
		r.With(s.validator.JSON(dto.RunRequest{})).Post("/graphs/{name}/runs", s.startRun)

		r.With(s.validator.Query(map[string]string{
			"graph":  "omitempty,graph_name",
			"status": "omitempty,oneof=completed failed cancelled",
			"limit":  "omitempty,number",
			"offset": "omitempty,number",
		})).Get("/runs", s.listRuns)
		r.Get("/runs/active", s.activeRuns)
		r.Get("/runs/{id}", s.getRun)
	})
	return r
}

// GraphSummary is one entry of GET /v1/graphs
type GraphSummary struct {
	Name       string `json:"name"`
	EntryPoint string `json:"entry_point"`
	Nodes      int    `json:"nodes"`
	Cyclic     bool   `json:"cyclic"`
}

// GraphDetail is the body of GET /v1/graphs/{name}
type GraphDetail struct {
	Topology stategraph.Topology `json:"topology"`
	Mermaid  string              `json:"mermaid"`
}

func (s *Server) listGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := s.runtime.Graphs(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]GraphSummary, 0, len(graphs))
	for _, g := range graphs {
		out = append(out, GraphSummary{
			Name:       g.Name(),
			EntryPoint: g.EntryPoint(),
			Nodes:      len(g.NodeIDs()),
			Cyclic:     g.Cyclic(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.runtime.Graph(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, GraphDetail{Topology: g.Topology(), Mermaid: g.Mermaid(nil)})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	req, ok := validation.Body[dto.RunRequest](r.Context())
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, dto.ErrInvalidInput)
		return
	}

	cfg := req.Config()
	if req.MaxSteps == 0 && s.maxSteps > 0 {
		cfg.MaxSteps = s.maxSteps
	}
	if req.Timeout == "" && s.timeout > 0 {
		cfg.Timeout = s.timeout
	}
	cfg.RunID = uuid.NewString()
	name := chi.URLParam(r, "name")

	res, err := s.runtime.Invoke(r.Context(), name, req.Input, cfg)
	if err == nil {
		writeJSON(w, http.StatusOK, completedResponse(res))
		return
	}
	var re stategraph.RunError
	if errors.As(err, &re) {
		writeJSON(w, http.StatusUnprocessableEntity, failedResponse(cfg.RunID, name, err))
		return
	}
	s.writeError(w, r, statusFor(err), err)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := history.Filter{
		GraphName: q.Get("graph"),
		Status:    history.Status(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	runs, err := s.runtime.History(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) activeRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runtime.Active())
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runtime.LoadRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, stategraph.ErrGraphNotFound), errors.Is(err, stategraph.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, stategraph.ErrInvalidInput), errors.Is(err, dto.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, stategraph.ErrHistoryDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every non-validation error
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
