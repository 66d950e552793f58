package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuelguard/fuelguard/internal/detect"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/provider"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, detector *detect.Detector, sync *provider.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, detector, sync, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Operational endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)
		r.Use(RateLimitMiddleware(cache, cfg.RateLimitPerMinute))

		// Synchronous batch detection
		r.Post("/detect", handler.Detect)

		// Transaction ingestion and retrieval
		r.Post("/transactions", handler.IngestTransaction)
		r.Get("/transactions/{id}", handler.GetTransaction)

		// Reference data
		r.Put("/vehicles", handler.UpsertVehicles)
		r.Get("/vehicles", handler.ListVehicles)
		r.Put("/projects", handler.UpsertProjects)
		r.Get("/projects", handler.ListProjects)
		r.Put("/workers", handler.UpsertWorkers)
		r.Get("/workers", handler.ListWorkers)

		// Provider sync
		r.Get("/providers", handler.ListProviders)
		r.Post("/providers/{name}/sync", handler.SyncProvider)

		// Anomaly review workflow
		r.Get("/anomalies", handler.ListAnomalies)
		r.Get("/anomalies/{id}", handler.GetAnomaly)
		r.Post("/anomalies/{id}/review", handler.ReviewAnomaly)

		// Reporting
		r.Get("/stats", handler.Stats)
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
