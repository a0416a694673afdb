// Package server exposes the conversation operations and health probes over
// HTTP, with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/pmteam/internal/assistant"
	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/health"
	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
)

// Server is the HTTP front of an assistant.Service.
type Server struct {
	httpServer      *http.Server
	deps            Deps
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// Config holds listener settings. Zero durations take defaults.
type Config struct {
	// Address is the listen address, e.g. "127.0.0.1:8080"
	Address string

	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	// WriteTimeout must leave room for the slowest intelligence tier
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FromConfig converts the server section of the process config.
func FromConfig(cfg config.ServerConfig) Config {
	return Config{
		Address:         net.JoinHostPort(cfg.Address, fmt.Sprint(cfg.Port)),
		ShutdownTimeout: cfg.ShutdownTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
	}
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Service *assistant.Service
	Probes  *health.ProbeManager
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil serves the default registry
	Gatherer prometheus.Gatherer
}

// New builds a Server. It does not listen until Start or Serve.
func New(deps Deps, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	deps.Logger = log.OrDefault(deps.Logger)
	if deps.Probes == nil {
		deps.Probes = health.NewProbeManager("")
	}

	s := &Server{
		deps:            deps,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address. It blocks and returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.deps.Probes.MarkInitialized()
	s.deps.Logger.Info("server listening", "address", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown fails readiness, stops keep-alives and drains in-flight turns
// for up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.deps.Probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}
