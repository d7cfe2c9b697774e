package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/fetcher"
	"github.com/ranamudassir31/webpulse-ai/internal/metrics"
)

var _ fetcher.Metrics = (*metrics.Metrics)(nil)

func TestFetchMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.ObserveAttempt(fetcher.OutcomeSuccess, 120*time.Millisecond)
	m.ObserveAttempt(fetcher.OutcomeSuccess, 80*time.Millisecond)
	m.ObserveAttempt(fetcher.OutcomeCircuitOpen, 0)
	m.ObservePage(false)
	m.ObservePage(true)
	m.BreakerTransition("open")
	m.WorkerBusy(1)
	m.WorkerBusy(1)
	m.WorkerBusy(-1)

	assert.InDelta(t, 2, testutil.ToFloat64(m.FetchAttempts.WithLabelValues(fetcher.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchAttempts.WithLabelValues(fetcher.OutcomeCircuitOpen)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchLatency))
	assert.InDelta(t, 1, testutil.ToFloat64(m.PagesProcessed.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("open")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BusyWorkers), 0)
}

func TestJobMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)

	m.JobStarted()
	m.JobStarted()
	m.JobFinished("completed", 3*time.Second)
	m.ObserveSiteScore(78.5)
	m.RetentionSwept(4)

	assert.InDelta(t, 2, testutil.ToFloat64(m.JobsCreated), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveJobs), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsFinished.WithLabelValues("completed")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.RetentionDeleted), 0)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.ObservePage(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `webpulse_pages_processed_total{result="ok"} 1`)
}
