package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-crm/kestrel/internal/behavior"
	"github.com/opensource-crm/kestrel/internal/crm"
	"github.com/opensource-crm/kestrel/internal/dispatch"
	"github.com/opensource-crm/kestrel/internal/domain"
	"github.com/opensource-crm/kestrel/internal/journey"
	"github.com/opensource-crm/kestrel/internal/lead"
	"github.com/opensource-crm/kestrel/internal/nba"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, profiles *behavior.ProfileBuilder, aggregator *crm.Aggregator, leads *lead.Scorer, engine *nba.Engine, journeys *journey.Builder, dispatcher *dispatch.Dispatcher, audit domain.AuditLogger, version string) *Server {
	handler := NewHandler(repo, cache, bus, profiles, aggregator, leads, engine, journeys, dispatcher, audit, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Customer ingest and retrieval
		r.Post("/customers", handler.IngestCustomer)
		r.Get("/customers/{id}", handler.GetCustomer)

		// Derived records
		r.Get("/customers/{id}/profile", handler.GetProfile)
		r.Get("/customers/{id}/crm", handler.GetCRMProfile)
		r.Get("/customers/{id}/journey", handler.GetJourney)
		r.Get("/customers/{id}/actions", handler.GetActions)
		r.Get("/customers/{id}/snapshot", handler.GetSnapshot)

		// Lead scoring and population metrics
		r.Post("/leads/score", handler.ScoreLeads)
		r.Get("/metrics/aggregate", handler.GetAggregateMetrics)

		// Action dispatch
		r.Post("/actions/execute", handler.ExecuteAction)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Delete("/rules/{id}", handler.DeleteRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
