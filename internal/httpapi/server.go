// Package httpapi exposes the run pipeline over HTTP: a small JSON API for
// triggering and reading runs, health endpoints, a Prometheus metrics
// endpoint, and two embedded read-only web pages (live dashboard and run
// history). All state lives in the run store; the handlers are thin.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/powerage/scramblecast/internal/health"
	"github.com/powerage/scramblecast/internal/observe"
	"github.com/powerage/scramblecast/internal/runner"
	"github.com/powerage/scramblecast/internal/store"
)

// Server wires the HTTP routes to the run service and store.
type Server struct {
	svc     *runner.Service
	gate    *store.Gate
	health  *health.Handler
	metrics *observe.Metrics
	origins []string
}

// Option is a functional option for Server.
type Option func(*Server)

// WithHealth serves /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics enables request instrumentation and the /metrics endpoint.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCORSOrigins restricts cross-origin access to the given origins. Empty
// means wide open, which suits a single-user dashboard on a LAN.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates a Server around the run service and store gate.
func NewServer(svc *runner.Service, gate *store.Gate, opts ...Option) *Server {
	s := &Server{svc: svc, gate: gate}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/run", s.handleTriggerRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/runs/{id}/retry", s.handleRetryRun)
	})

	if s.health != nil {
		r.Get("/healthz", s.health.Healthz)
		r.Get("/readyz", s.health.Readyz)
	}
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/", servePage(dashboardHTML))
	r.Get("/history", servePage(historyHTML))

	return r
}
