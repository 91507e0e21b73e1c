// Package server exposes the dashboard over HTTP: the HTML page, upload
// endpoint, chart and workbook exports, and the JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/hidash/internal/pipeline"
	"github.com/vinodismyname/hidash/internal/runtime"
	"github.com/vinodismyname/hidash/internal/telemetry"
	"github.com/vinodismyname/hidash/internal/uploads"
)

// Config holds server configuration
type Config struct {
	Addr     string
	Log      zerolog.Logger
	Pipeline *pipeline.Pipeline
	Store    *uploads.Store
	Runtime  *runtime.Controller
	Version  string
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	pipeline *pipeline.Pipeline
	store    *uploads.Store
	limits   runtime.Limits
	guard    *runtime.Middleware
	version  string
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		pipeline: cfg.Pipeline,
		store:    cfg.Store,
		limits:   cfg.Runtime.LimitsSnapshot(),
		guard:    runtime.NewMiddleware(cfg.Runtime),
		version:  cfg.Version,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.limits.PassTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(telemetry.RequestLogger(s.log))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Every route below runs a pass or stores an upload and is bounded by
	// the runtime controller.
	s.router.Group(func(r chi.Router) {
		r.Use(s.guard.Handler)

		r.Get("/", s.handlePage)
		r.Post("/upload", s.handleUpload)
		r.Get("/chart.svg", s.handleChart)
		r.Get("/export.xlsx", s.handleExport)

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/options", s.handleOptions)
			r.Get("/sections/{key}", s.handleSection)
		})
	})
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
