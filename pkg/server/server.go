// Package server exposes the admin HTTP API consumed by the dashboard
// and the browser extension: session ingest, health-aware reads,
// validation triggers, and service statistics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finbridge/watchsync/pkg/config"
	"github.com/finbridge/watchsync/pkg/health"
	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/sessionerrors"
	"github.com/finbridge/watchsync/pkg/sessionstore"
	"github.com/finbridge/watchsync/pkg/validator"
)

// Server represents the admin HTTP server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	store      *sessionstore.Store
	validator  *validator.Validator
	monitor    *health.Monitor
	errlog     *sessionerrors.Log
	logger     logging.Logger
	httpServer *http.Server
}

// New creates a new server instance
func New(
	cfg *config.Config,
	store *sessionstore.Store,
	val *validator.Validator,
	monitor *health.Monitor,
	errlog *sessionerrors.Log,
	logger logging.Logger,
) *Server {
	s := &Server{
		config:    cfg,
		store:     store,
		validator: val,
		monitor:   monitor,
		errlog:    errlog,
		logger:    logger.WithModule("server"),
	}

	s.setupRouter()
	return s
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleIngest)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleSessionData)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/validate", s.handleValidateAll)
				r.Get("/watchlists", s.handleWatchlists)
				r.Route("/platforms/{platform}", func(r chi.Router) {
					r.Post("/refresh", s.handleRefresh)
					r.Post("/monitor", s.handleStartMonitoring)
					r.Delete("/monitor", s.handleStopMonitoring)
				})
			})
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/sessions", s.handleSessionStats)
			r.Get("/errors", s.handleErrorStats)
			r.Get("/monitoring", s.handleMonitoringStats)
		})

		r.Get("/errors/recent", s.handleRecentErrors)
	})

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.config.Admin.Addr()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("Starting admin server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down admin server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router returns the chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
