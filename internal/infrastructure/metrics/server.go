// Package metrics exposes the pipeline's Prometheus counters and a
// liveness endpoint over one HTTP server per binary.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"optionpricer/internal/core"
	"optionpricer/internal/infrastructure/health"
)

// Server serves /metrics (Prometheus exposition) and, when a health
// registry is attached, /healthz (JSON per-component status).
type Server struct {
	port   int
	logger core.ILogger
	health *health.HealthManager
	srv    *http.Server
}

// NewServer builds a Server listening on port. health may be nil, in
// which case /healthz is not registered.
func NewServer(port int, logger core.ILogger, healthMgr *health.HealthManager) *Server {
	return &Server{
		port:   port,
		logger: logger.WithField("component", "metrics_server"),
		health: healthMgr,
	}
}

// Start begins serving in the background; call Stop to shut it down.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if s.health != nil {
		mux.HandleFunc("/healthz", s.handleHealthz)
	}

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("starting metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
}

// handleHealthz reports every registered dependency check as JSON,
// returning 200 when all pass and 503 otherwise.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.GetStatus()

	w.Header().Set("Content-Type", "application/json")
	if !s.health.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("failed to encode health status", "error", err)
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping metrics server")
	return s.srv.Shutdown(ctx)
}
