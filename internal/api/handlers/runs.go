// Package handlers implements the HTTP endpoints of the run-trigger API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/api/middleware"
	"github.com/dvloznov/bankdata-pipeline/internal/jobs"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/go-chi/chi/v5"
)

// maxListLimit caps GET /api/runs page size.
const maxListLimit = 100

// RunsHandler handles pipeline-run endpoints.
type RunsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(publisher jobs.Publisher, store jobs.JobStore) *RunsHandler {
	return &RunsHandler{
		publisher: publisher,
		store:     store,
	}
}

type triggerRunRequest struct {
	Sources []string `json:"sources"`
}

// TriggerRun handles POST /api/runs. An empty body runs the configured sources.
func (h *RunsHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req triggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sources := make([]string, 0, len(req.Sources))
	for _, s := range req.Sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	job := &jobs.PipelineRunJob{Sources: sources}
	if err := h.publisher.PublishPipelineRun(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue pipeline run")
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Run queue is not accepting jobs")
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue pipeline run")
		return
	}

	log.Info().Str("job_id", job.JobID).Int("sources", len(sources)).Msg("Pipeline run enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
		Limit:  maxListLimit,
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit < maxListLimit {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	runs, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
