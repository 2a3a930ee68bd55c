// Package api exposes the compliance monitoring surface over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opengov-labs/kestrel/internal/analysis"
	"github.com/opengov-labs/kestrel/internal/catalog"
	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/lifecycle"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(
	cfg domain.ServerConfig,
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	cat *catalog.Catalog,
	pipeline *analysis.Pipeline,
	lc *lifecycle.Service,
	version string,
) *Server {
	handler := NewHandler(repo, cache, bus, cat, pipeline, lc, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Feedback intake and analysis
	router.Route("/feedback", func(r chi.Router) {
		r.Post("/", handler.SubmitFeedback)
		r.Get("/entities", handler.ListEntities)
		r.Get("/{id}", handler.GetFeedback)
		r.Post("/{id}/analyze", handler.AnalyzeFeedback)
	})

	// Reviewer surface
	router.Route("/reviewer", func(r chi.Router) {
		r.Get("/inbox", handler.ReviewerInbox)
		r.Post("/dismiss", handler.DismissFeedback)
	})

	// Compliance cases
	router.Route("/cases", func(r chi.Router) {
		r.Post("/", handler.CreateCase)
		r.Get("/", handler.ListCases)
		r.Get("/{id}", handler.GetCase)
		r.Post("/{id}/evidence", handler.SubmitEvidence)
		r.Post("/{id}/verify", handler.VerifyCase)
	})

	// Rulebook
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{code}", handler.GetRule)

	// Aggregates
	router.Get("/dashboard", handler.Dashboard)

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
