package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ranamudassir31/webpulse-ai/internal/api"
	"github.com/ranamudassir31/webpulse-ai/internal/api/mocks"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(svc api.JobService, metrics http.Handler) *gin.Engine {
	r := gin.New()
	api.NewJobsHandler(svc).RegisterRoutes(r, metrics)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestCreateJob_Accepted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().
		Create(gomock.Any(), "example.com", domain.JobRequest{MaxPages: intPtr(20)}).
		Return("job-1", nil)

	w := do(newRouter(svc, nil), http.MethodPost, "/api/v1/jobs", map[string]any{
		"seed_url":  "example.com",
		"max_pages": 20,
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/jobs/job-1", w.Header().Get("Location"))
	var resp api.CreateJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
}

func TestCreateJob_ExplicitCrossDomain(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().
		Create(gomock.Any(), "https://example.com", domain.JobRequest{SameDomainOnly: boolPtr(false), Concurrency: intPtr(2)}).
		Return("job-2", nil)

	w := do(newRouter(svc, nil), http.MethodPost, "/api/v1/jobs", map[string]any{
		"seed_url":         "https://example.com",
		"same_domain_only": false,
		"concurrency":      2,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCreateJob_ExplicitZeroDepth(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().
		Create(gomock.Any(), "https://example.com", domain.JobRequest{MaxDepth: intPtr(0)}).
		Return("job-3", nil)

	w := do(newRouter(svc, nil), http.MethodPost, "/api/v1/jobs", map[string]any{
		"seed_url":  "https://example.com",
		"max_depth": 0,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCreateJob_BadBody(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	r := newRouter(mocks.NewMockJobService(ctrl), nil)

	w := do(r, http.MethodPost, "/api/v1/jobs", map[string]any{"max_pages": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJob_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid seed", job.ErrInvalidSeed, http.StatusBadRequest},
		{"invalid config", job.ErrInvalidConfig, http.StatusBadRequest},
		{"quota", job.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"shutting down", job.ErrShuttingDown, http.StatusServiceUnavailable},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			svc := mocks.NewMockJobService(ctrl)
			svc.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return("", tc.err)

			w := do(newRouter(svc, nil), http.MethodPost, "/api/v1/jobs", map[string]any{"seed_url": "x"})
			assert.Equal(t, tc.want, w.Code)
			assert.NotEmpty(t, errorBody(t, w))
		})
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().Status(gomock.Any(), "job-1").
		Return(&domain.CrawlJob{ID: "job-1", Status: domain.JobStatusCrawling}, nil)
	svc.EXPECT().Status(gomock.Any(), "missing").Return(nil, job.ErrNotFound)

	r := newRouter(svc, nil)

	w := do(r, http.MethodGet, "/api/v1/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.CrawlJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, domain.JobStatusCrawling, got.Status)

	w = do(r, http.MethodGet, "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "job not found", errorBody(t, w))
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().ReportAs(gomock.Any(), "job-1", report.FormatJSON).
		Return(&domain.RenderedDocument{JobID: "job-1", ContentType: "application/json", Body: []byte(`{"ok":true}`)}, nil)
	svc.EXPECT().ReportAs(gomock.Any(), "job-1", report.FormatMarkdown).
		Return(&domain.RenderedDocument{JobID: "job-1", ContentType: "text/markdown; charset=utf-8", Body: []byte("# Report")}, nil)
	svc.EXPECT().ReportAs(gomock.Any(), "running", report.FormatJSON).Return(nil, job.ErrNotFound)

	r := newRouter(svc, nil)

	w := do(r, http.MethodGet, "/api/v1/jobs/job-1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	w = do(r, http.MethodGet, "/api/v1/jobs/job-1/report?format=md", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Report", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="webpulse-job-1.md"`)

	w = do(r, http.MethodGet, "/api/v1/jobs/running/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/jobs/job-1/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().Cancel(gomock.Any(), "job-1").Return(nil)
	svc.EXPECT().Cancel(gomock.Any(), "job-2").Return(job.ErrAlreadyCancelled)
	svc.EXPECT().Cancel(gomock.Any(), "done").Return(job.ErrNotFound)

	r := newRouter(svc, nil)

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/v1/jobs/job-1/cancel", nil).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/jobs/job-2/cancel", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/jobs/done/cancel", nil).Code)
}

func TestDeleteJob(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().Delete(gomock.Any(), "done").Return(nil)
	svc.EXPECT().Delete(gomock.Any(), "running").Return(job.ErrJobActive)
	svc.EXPECT().Delete(gomock.Any(), "missing").Return(job.ErrNotFound)

	r := newRouter(svc, nil)

	w := do(r, http.MethodDelete, "/api/v1/jobs/done", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, http.StatusConflict, do(r, http.MethodDelete, "/api/v1/jobs/running", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/v1/jobs/missing", nil).Code)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().List(gomock.Any(), 50, 0).Return(nil, nil)
	svc.EXPECT().List(gomock.Any(), 500, 10).Return([]*domain.CrawlJob{{ID: "a"}}, nil)

	r := newRouter(svc, nil)

	w := do(r, http.MethodGet, "/api/v1/jobs?limit=-3&offset=nope", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[],"limit":50,"offset":0}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/jobs?limit=9999&offset=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Jobs []domain.CrawlJob `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "a", body.Jobs[0].ID)
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockJobService(ctrl)
	svc.EXPECT().Stats(gomock.Any()).Return(&job.Stats{
		TotalJobs:   3,
		ByStatus:    map[domain.JobStatus]int{domain.JobStatusCompleted: 3},
		TotalIssues: domain.IssueTotals{High: 4, Medium: 2, Low: 7},
	}, nil)

	w := do(newRouter(svc, nil), http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got job.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 3, got.TotalJobs)
	assert.Equal(t, 3, got.ByStatus[domain.JobStatusCompleted])
	assert.Equal(t, domain.IssueTotals{High: 4, Medium: 2, Low: 7}, got.TotalIssues)
	assert.Contains(t, w.Body.String(), `"total_issues":{"high":4,"medium":2,"low":7}`)
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("webpulse_up 1\n"))
	})

	w := do(newRouter(mocks.NewMockJobService(ctrl), metrics), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "webpulse_up 1")

	w = do(newRouter(mocks.NewMockJobService(ctrl), nil), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
