// Package api serves analysis runs over HTTP.
package api

import (
	"net/http"
	"time"

	"gosobol/app"
	"gosobol/internal"
	"gosobol/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxRequestBytes bounds a POST /runs body.
const MaxRequestBytes = 4 << 20

// Server routes the run API.
type Server struct {
	router      *chi.Mux
	analysis    *app.AnalysisService
	uncertainty *app.UncertaintyService
	runs        ports.RunRepository
	logger      *internal.Logger
}

// NewServer creates the API. runs must be the repository the analysis
// service saves into.
func NewServer(analysis *app.AnalysisService, uncertainty *app.UncertaintyService, runs ports.RunRepository, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	s := &Server{
		router:      chi.NewRouter(),
		analysis:    analysis,
		uncertainty: uncertainty,
		runs:        runs,
		logger:      logger.Named("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/report", s.handleRunReport)
		r.Get("/{id}/export.xlsx", s.handleRunExport)
	})
}

// requestLogger logs one line per request through the application logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("%s %s -> %d in %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
