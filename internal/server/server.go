package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"innersight/internal/auth"
	"innersight/internal/config"
	"innersight/internal/core"
	"innersight/internal/insights"
	"innersight/internal/logger"
	"innersight/internal/persistence"
)

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	db          persistence.Database
	insights    *insights.Service
	auth        *auth.Middleware
	config      config.Server
	metrics     http.Handler
	metricsPath string
	log         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h at path outside the authenticated API.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a new HTTP server instance
func New(db persistence.Database, svc *insights.Service, authMW *auth.Middleware, cfg config.Server, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		db:       db,
		insights: svc,
		auth:     authMW,
		config:   cfg,
		log:      logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	// Structured analysis on a reasoning model can take a while.
	s.router.Use(middleware.Timeout(90 * time.Second))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, s.metricsPath, s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Route("/insights", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/reflect", s.handleNarrative(core.TaskReflection))
			r.Post("/title", s.handleNarrative(core.TaskTitle))
			r.Post("/perspective", s.handleNarrative(core.TaskPerspective))
			r.Post("/full", s.handleFullInsights)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Put("/", s.handleSaveEntry)
			r.Get("/{id}", s.handleGetEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
			r.Post("/{id}/analyze", s.handleAnalyzeEntry)
		})

		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handleSaveProfile)

		r.Get("/providers", s.handleListProviders)
		r.Put("/providers/active", s.handleSetActiveProvider)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
		"active_provider", s.insights.Registry().Active().ID,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
