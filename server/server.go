// Package server exposes the grading pipeline over HTTP: answer parsing and
// evaluation, equivalence checking (numeric, symbolic, and operator
// algebra), LLM answer generation, and LaTeX rendering.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/mathcheck/config"
	"github.com/c360studio/mathcheck/grader"
	"github.com/c360studio/mathcheck/llm"
	"github.com/c360studio/mathcheck/model"
	"github.com/c360studio/mathcheck/render"
	"github.com/c360studio/mathcheck/storage"
)

// Server routes grading requests.
type Server struct {
	grader       *grader.Grader
	client       *llm.Client
	registry     *model.Registry
	renderer     *render.Renderer
	store        storage.Backend
	filePatterns []string
	suffix       *config.PromptSuffix
	logger       *slog.Logger

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLLM enables the answer-generation endpoint.
func WithLLM(client *llm.Client, registry *model.Registry) Option {
	return func(s *Server) {
		s.client = client
		s.registry = registry
	}
}

// WithRenderer enables the render endpoint.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithStore enables the stored-file endpoint.
func WithStore(store storage.Backend) Option {
	return func(s *Server) { s.store = store }
}

// WithFilePatterns restricts served file keys to those matching one of the
// given glob patterns.
func WithFilePatterns(patterns ...string) Option {
	return func(s *Server) { s.filePatterns = patterns }
}

// WithPromptSuffix appends the hot-reloaded suffix to answer prompts.
func WithPromptSuffix(p *config.PromptSuffix) Option {
	return func(s *Server) { s.suffix = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server around a grader.
func New(g *grader.Grader, opts ...Option) *Server {
	s := &Server{
		grader:       g,
		filePatterns: []string{"renders/**"},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /parse", s.instrument("parse", s.handleParse))
	mux.HandleFunc("POST /parse_cmt", s.instrument("parse_cmt", s.handleParse))
	mux.HandleFunc("POST /eval", s.instrument("eval", s.handleEval))
	mux.HandleFunc("POST /eval_cmt", s.instrument("eval_cmt", s.handleEval))
	mux.HandleFunc("POST /eval_cmt_numerics", s.instrument("eval_cmt_numerics", s.handleEvalNumerics))
	if s.client != nil {
		mux.HandleFunc("POST /query", s.instrument("query", s.handleQuery))
		mux.HandleFunc("GET /models", s.handleModels)
	}
	if s.renderer != nil {
		mux.HandleFunc("POST /render", s.instrument("render", s.handleRender))
	}
	if s.store != nil {
		mux.HandleFunc("GET /files/", s.handleFiles)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context, cfg config.ServerConfig) error {
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", cfg.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response already partially written; nothing left to do.
		_ = err
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
