// Package server exposes the pipeline and live document sessions over HTTP.
//
// # Routes
//
//	GET  /healthz                               liveness check
//	GET  /graph-types                           registered graph types
//	POST /graph-types/refresh                   reload graph type folders
//	GET  /graph-types/{id}/fields               form schema of the latest version
//	GET  /graph-types/{id}/v{version}/fields    form schema of a graph type
//	GET  /documents                             paths of the open documents
//	POST /convert                               one-shot conversion
//	GET  /ws?path=<workspace path>              surface protocol socket
//	GET  /metrics                               Prometheus metrics
//
// The socket speaks the JSON messages of package session. Every client of
// a path shares one session.Document, so an edit made in one surface shows
// up in all of them.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/pipeline"
	"github.com/matzehuels/yamlviz/pkg/session"
)

// Options configure a Server. Types, Runner and Sessions are required.
type Options struct {
	Types    *graphtype.Registry
	Runner   *pipeline.Runner
	Sessions *session.Manager

	// GraphTypeDirs are reloaded, together with the builtin graph types, by
	// POST /graph-types/refresh.
	GraphTypeDirs []string

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// CheckOrigin vets socket upgrades. Nil allows same-host origins only.
	CheckOrigin func(r *http.Request) bool

	Logger *log.Logger
}

// Server is the yamlviz HTTP API.
type Server struct {
	opts   Options
	logger *log.Logger
	router chi.Router
}

// New creates a server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/graph-types", s.handleGraphTypes)
	r.Post("/graph-types/refresh", s.handleRefresh)
	r.Get("/graph-types/{id}/fields", s.handleFields)
	r.Get("/graph-types/{id}/v{version}/fields", s.handleFields)
	r.Get("/documents", s.handleDocuments)
	r.Post("/convert", s.handleConvert)
	r.Get("/ws", s.handleSocket)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{
		Code:    string(errors.GetCode(err)),
		Message: errors.UserMessage(err),
	})
}

func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath, errors.ErrCodeInvalidYAML:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeDomainNotFound, errors.ErrCodeNodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeStaleGeneration, errors.ErrCodeGraphTypeConflict:
		return http.StatusConflict
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
