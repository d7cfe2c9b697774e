package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/fetcher"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/metrics"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

const page = `<!DOCTYPE html><html lang="en"><head><title>%s</title>
<meta name="description" content="A page used by the API tests."></head>
<body><h1>%s</h1><p>Words on the page.</p>%s</body></html>`

func twoPageSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write(fmtPage("Home", `<a href="/about">About</a>`))
		case "/about":
			_, _ = w.Write(fmtPage("About", ""))
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fmtPage(title, links string) []byte {
	return []byte(fmt.Sprintf(page, title, title, links))
}

func TestAPI_CrawlLifecycle(t *testing.T) {
	site := twoPageSite(t)

	m := metrics.New(nil)
	manager := job.NewManager(job.Deps{
		Store:     store.NewMemoryStore(),
		Transport: fetcher.NewHTTPTransport(fetcher.Config{}),
		Renderer:  report.JSONRenderer{},
		Format:    report.FormatJSON,
		Metrics:   m,
	}, job.Config{}, fetcher.Config{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	r := newRouter(manager, m.Handler())

	w := do(r, http.MethodPost, "/api/v1/jobs", map[string]any{"seed_url": site.URL, "max_depth": 2})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var created struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	var status domain.CrawlJob
	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/api/v1/jobs/"+created.JobID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)

	require.Equal(t, domain.JobStatusCompleted, status.Status, status.Error)
	assert.Equal(t, 2, status.Counts.Succeeded)
	require.NotNil(t, status.SiteScore)

	w = do(r, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc domain.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, created.JobID, doc.JobID)
	require.NotEmpty(t, doc.Sections)
	assert.Contains(t, doc.Sections[0].Pairs, domain.KeyValue{Key: "Pages crawled", Value: "2"})

	w = do(r, http.MethodGet, "/api/v1/jobs/"+created.JobID+"/report?format=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = do(r, http.MethodPost, "/api/v1/jobs/"+created.JobID+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats job.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalJobs)
	assert.Equal(t, 2, stats.PagesCrawled)

	w = do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "webpulse_jobs_created_total 1")
}
