// Package api serves the latest pipeline run over HTTP: the rendered pages,
// the symbol table, diagnostics and a rebuild trigger.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/refdoc/internal/config"
	"github.com/dgallion1/refdoc/internal/logfields"
	"github.com/dgallion1/refdoc/internal/pipeline"
)

// Builder runs the pipeline. *pipeline.Orchestrator implements it.
type Builder interface {
	Run(ctx context.Context, mode pipeline.Mode) (*pipeline.Result, error)
}

// Server is the preview HTTP server.
type Server struct {
	router  chi.Router
	builder Builder
	metrics http.Handler
	log     *slog.Logger
	cfg     config.Config

	// buildMu serialises runs; mu guards the published result.
	buildMu sync.Mutex
	mu      sync.RWMutex
	latest  *pipeline.Result
	lastErr error
}

// NewServer creates and configures the HTTP server. metrics may be nil.
func NewServer(b Builder, metrics http.Handler, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		builder: b,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", s.handlePage)

	// Authenticated when an API key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/api/run", s.handleRun)
		r.Post("/api/rebuild", s.handleRebuild)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/*", s.handleGetDocument)
		r.Get("/api/symbols", s.handleSymbols)
		r.Get("/api/diagnostics", s.handleDiagnostics)
	})

	s.router = r
}

// Rebuild runs the pipeline in preview mode and publishes the result. A
// failed run keeps the previous result.
func (s *Server) Rebuild(ctx context.Context) (*pipeline.Result, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	res, err := s.builder.Run(ctx, pipeline.ModePreview)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		s.log.Error("rebuild failed", logfields.Error(err))
		return nil, err
	}
	s.latest = res
	return res, nil
}

// Latest returns the published result and the error of the last rebuild.
func (s *Server) Latest() (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.lastErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	res, err := s.Latest()
	status := "ok"
	switch {
	case err != nil:
		status = "degraded"
	case res == nil:
		status = "starting"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
