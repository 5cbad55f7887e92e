// Package observability provides the metrics and monitoring HTTP server.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ReadyCheck is one named readiness probe. A non-nil error marks the
// service not ready and is reported in the readyz body.
type ReadyCheck struct {
	Name  string
	Check func() error
}

// Server serves Prometheus metrics and health probes on a port separate
// from the API server, so scrapes and probes keep working while long
// WebSocket sessions occupy the API listener.
type Server struct {
	server *http.Server
	addr   string
	checks []ReadyCheck
}

// NewServer creates the observability HTTP server. checks gate the
// readyz endpoint; with none given the server reports ready as soon as
// it is listening.
func NewServer(addr string, checks ...ReadyCheck) *Server {
	s := &Server{
		addr:   addr,
		checks: checks,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// handleHealthz reports process liveness only.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz runs every registered check and fails on the first
// broken one.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.checks {
		if err := check.Check(); err != nil {
			log.Warn().Err(err).Str("check", check.Name).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "not ready: %s: %v", check.Name, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting observability HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Observability HTTP server error")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down observability HTTP server")
	return s.server.Shutdown(ctx)
}
