// Package server provides the HTTP API for PAA Explorer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/config"
	"github.com/hyperjump/paaexplorer/internal/jobs"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// Server is the HTTP server for the PAA Explorer API.
type Server struct {
	jobs    *jobs.Orchestrator
	auth    *Authenticator
	metrics http.Handler
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orch *jobs.Orchestrator,
	auth *Authenticator,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		jobs:   orch,
		auth:   auth,
		config: cfg,
		logger: utils.OrNop(logger),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/api/v1/demo", s.handleDemo)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware(s.respondError))
		r.Get("/api/v1/quota", s.handleQuota)
		r.Post("/api/v1/jobs", s.handleSubmit)
		r.Get("/api/v1/jobs", s.handleListJobs)
		r.Get("/api/v1/jobs/{id}", s.handleJobStatus)
		r.Delete("/api/v1/jobs/{id}", s.handleCancel)
		r.Get("/api/v1/jobs/{id}/results", s.handleResults)
		r.Get("/api/v1/jobs/{id}/export", s.handleExport)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
