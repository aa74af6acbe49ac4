// Package api wires the run-trigger HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/api/handlers"
	"github.com/dvloznov/bankdata-pipeline/internal/api/middleware"
	"github.com/dvloznov/bankdata-pipeline/internal/jobs"
	"github.com/dvloznov/bankdata-pipeline/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RouterConfig holds the collaborators of the HTTP API.
type RouterConfig struct {
	Publisher jobs.Publisher
	Store     jobs.JobStore
	Strategy  string
	Log       zerolog.Logger
	Now       func() time.Time
}

// NewRouter builds the chi router with the request middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	runs := handlers.NewRunsHandler(cfg.Publisher, cfg.Store)
	categories := handlers.NewCategoriesHandler(cfg.Strategy)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", runs.TriggerRun)
		r.Get("/runs", runs.ListRuns)
		r.Get("/runs/{id}", runs.GetRun)
		r.Get("/categories", categories.ListCategories)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().Format(time.RFC3339),
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}
