package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/jobs"
	"github.com/dvloznov/bankdata-pipeline/internal/jobs/inmemory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPublisher records published jobs.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.PipelineRunJob) error
	Published   []*jobs.PipelineRunJob
}

func (m *MockPublisher) PublishPipelineRun(ctx context.Context, job *jobs.PipelineRunJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	job.Status = jobs.JobStatusPending
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func newTestRouter(pub jobs.Publisher, store jobs.JobStore) http.Handler {
	return NewRouter(RouterConfig{
		Publisher: pub,
		Store:     store,
		Strategy:  "rules",
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestTriggerRun(t *testing.T) {
	pub := &MockPublisher{}
	h := newTestRouter(pub, inmemory.NewStore())

	rec, body := do(t, h, http.MethodPost, "/api/runs", `{"sources":[" pko.json ","", "mbank.json"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-1", body["job_id"])
	require.Len(t, pub.Published, 1)
	assert.Equal(t, []string{"pko.json", "mbank.json"}, pub.Published[0].Sources)
}

func TestTriggerRun_EmptyBodyUsesConfiguredSources(t *testing.T) {
	pub := &MockPublisher{}
	h := newTestRouter(pub, inmemory.NewStore())

	rec, _ := do(t, h, http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.Published, 1)
	assert.Empty(t, pub.Published[0].Sources)
}

func TestTriggerRun_Errors(t *testing.T) {
	rec, _ := do(t, newTestRouter(&MockPublisher{}, inmemory.NewStore()), http.MethodPost, "/api/runs", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	closed := &MockPublisher{PublishFunc: func(ctx context.Context, job *jobs.PipelineRunJob) error {
		return jobs.ErrQueueClosed
	}}
	rec, _ = do(t, newTestRouter(closed, inmemory.NewStore()), http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	broken := &MockPublisher{PublishFunc: func(ctx context.Context, job *jobs.PipelineRunJob) error {
		return errors.New("store down")
	}}
	rec, _ = do(t, newTestRouter(broken, inmemory.NewStore()), http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAndListRuns(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveJob(ctx, &jobs.PipelineRunJob{JobID: "a", Status: jobs.JobStatusCompleted, CreatedAt: base}))
	require.NoError(t, store.SaveJob(ctx, &jobs.PipelineRunJob{JobID: "b", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute), Error: "boom"}))
	h := newTestRouter(&MockPublisher{}, store)

	rec, body := do(t, h, http.MethodGet, "/api/runs/b", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "boom", body["error"])

	rec, _ = do(t, h, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/api/runs?status=completed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = do(t, h, http.MethodGet, "/api/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/runs?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCategories(t *testing.T) {
	rec, body := do(t, newTestRouter(&MockPublisher{}, inmemory.NewStore()), http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(18), body["count"])
	assert.Equal(t, "rules", body["strategy"])

	categories := body["categories"].([]interface{})
	first := categories[0].(map[string]interface{})
	assert.Equal(t, "Other", first["name"])
	last := categories[17].(map[string]interface{})
	assert.Equal(t, "Cash transfer", last["name"])
}

func TestHealthMetricsAndFallbacks(t *testing.T) {
	h := newTestRouter(&MockPublisher{}, inmemory.NewStore())

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2024-03-15T12:00:00Z", body["time"])

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
