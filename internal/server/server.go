package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dsvikstrand/bleu/internal/engine"
	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the bleu HTTP API server.
type Server struct {
	engine   *engine.Engine
	gatherer prometheus.Gatherer
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server. A nil gatherer serves prometheus.DefaultGatherer
// on /metrics.
func New(eng *engine.Engine, gatherer prometheus.Gatherer, version string) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		engine:   eng,
		gatherer: gatherer,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/owners/{channel}/{blueprint}", func(r chi.Router) {
			r.Get("/default", s.handleGetDefault)
			r.Post("/default", s.handleAssignDefault)
			r.Delete("/default", s.handleResetDefault)
			r.Get("/assets", s.handleListAssets)
			r.Post("/assets", s.handleIngestAsset)
			r.Post("/retain", s.handleRetain)
		})

		r.Post("/jobs", s.handleEnqueueJob)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs/claim", s.handleClaimJob)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Post("/jobs/{jobID}/fail", s.handleFailJob)
		r.Post("/jobs/{jobID}/complete", s.handleCompleteJob)

		r.Post("/policy/select", s.handlePolicySelect)
		r.Post("/policy/partition", s.handlePolicyPartition)
		r.Post("/policy/transition", s.handlePolicyTransition)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.engine.DB.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps engine and policy errors onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, policy.ErrInvalidArgument), errors.Is(err, policy.ErrNoCandidates):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrJobNotRunning):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}
