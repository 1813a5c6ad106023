// Package httpserver provides the HTTP REST API over the plugin manager and
// the local paper library.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/library"
	"github.com/helixir/paperhub/internal/plugins"
)

// PluginManager is the subset of *plugins.Manager the API exposes.
type PluginManager interface {
	Info() []plugins.PluginInfo
	ActiveID() string
	SetActive(id string) error
	Enable(id string) error
	Disable(id string) error
	Search(ctx context.Context, q domain.UnifiedQuery) (*domain.SearchResult, error)
	SearchPlugin(ctx context.Context, pluginID string, q domain.UnifiedQuery) (*domain.SearchResult, error)
	FederatedSearch(ctx context.Context, q domain.UnifiedQuery) *plugins.FederatedResult
	Lookup(ctx context.Context, raw string) *plugins.LookupResult
	GetPdfSources(ctx context.Context, paper *domain.Paper) *plugins.PdfSourcesResult
	GetReferences(ctx context.Context, pluginID, id string, opts plugins.ListOptions) ([]*domain.Paper, error)
	GetCitations(ctx context.Context, pluginID, id string, opts plugins.ListOptions) ([]*domain.Paper, error)
	GetBibtex(ctx context.Context, pluginID, id string) (string, error)
}

// Library is the subset of *library.Importer the API exposes.
type Library interface {
	ImportIdentifier(ctx context.Context, raw string) (*library.ImportResult, error)
	List(ctx context.Context, opts library.ListOptions) ([]*library.Entry, int, error)
}

var (
	_ PluginManager = (*plugins.Manager)(nil)
	_ Library       = (*library.Importer)(nil)
)

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	manager        PluginManager
	library        Library
	metricsHandler http.Handler
	metricsPath    string
	logger         zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath mounts MetricsHandler when both are set.
	MetricsPath    string
	MetricsHandler http.Handler
}

// NewServer creates a new HTTP server. lib may be nil, in which case the
// library routes answer 503.
func NewServer(cfg Config, manager PluginManager, lib Library, logger zerolog.Logger) *Server {
	s := &Server{
		manager:        manager,
		library:        lib,
		metricsHandler: cfg.MetricsHandler,
		metricsPath:    cfg.MetricsPath,
		logger:         logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogMiddleware(s.logger))

	if s.metricsHandler != nil && s.metricsPath != "" {
		r.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/healthz", s.healthHandler)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/plugins", s.listPlugins)
			r.Post("/plugins/{pluginID}/activate", s.activatePlugin)
			r.Post("/plugins/{pluginID}/enable", s.enablePlugin)
			r.Post("/plugins/{pluginID}/disable", s.disablePlugin)

			r.Post("/search", s.search)
			r.Post("/search/federated", s.federatedSearch)

			r.Get("/lookup", s.lookup)
			r.Post("/pdf-sources", s.pdfSources)
			r.Get("/bibtex", s.bibtex)
			r.Get("/papers/{pluginID}/references", s.references)
			r.Get("/papers/{pluginID}/citations", s.citations)

			r.Get("/library", s.listLibrary)
			r.Post("/library/import", s.importPaper)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports liveness with a registry summary.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	infos := s.manager.Info()
	enabled := 0
	for _, info := range infos {
		if info.Enabled {
			enabled++
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Active:         s.manager.ActiveID(),
		PluginsTotal:   len(infos),
		PluginsEnabled: enabled,
	})
}
