// Package httpserv exposes the pipeline's operational endpoints: liveness,
// the aggregation-readiness gate, and Prometheus metrics.
package httpserv

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// readyCheckTimeout bounds one readiness probe. The pipeline's checker is a
// memory read; the bound guards against future checkers doing I/O.
const readyCheckTimeout = 2 * time.Second

// ReadinessChecker reports whether the service is ready to serve traffic.
// The pipeline satisfies it once a run has produced regional rows.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// statusResponse is the body of every health and readiness reply.
type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Server hosts /healthz, /readyz, and /metrics.
type Server struct {
	inner  *http.Server
	ready  ReadinessChecker
	logger *slog.Logger
}

// NewServer creates the server on addr.
func NewServer(addr string, ready ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{ready: ready, logger: logger}
	s.inner = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.inner.Addr)
	return s.inner.ListenAndServe()
}

// Shutdown drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.inner.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, statusResponse{Status: "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	if err := s.ready.CheckReadiness(ctx); err != nil {
		s.respond(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready", Error: err.Error()})
		return
	}
	s.respond(w, http.StatusOK, statusResponse{Status: "ready"})
}

func (s *Server) respond(w http.ResponseWriter, status int, body statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("status response write failed", "error", err)
	}
}
