// Package metrics exposes WebPulse Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webpulse"

// Metrics holds all WebPulse Prometheus collectors.
type Metrics struct {
	// Fetch metrics
	FetchAttempts      *prometheus.CounterVec
	FetchLatency       prometheus.Histogram
	PagesProcessed     *prometheus.CounterVec
	BreakerTransitions *prometheus.CounterVec
	BusyWorkers        prometheus.Gauge

	// Job metrics
	JobsCreated      prometheus.Counter
	JobsFinished     *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	ActiveJobs       prometheus.Gauge
	SiteScore        prometheus.Histogram
	RetentionDeleted prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry,
// which keeps tests and multiple instances from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	factory := promauto.With(reg)
	initFetchMetrics(m, factory)
	initJobMetrics(m, factory)
	return m
}

func initFetchMetrics(m *Metrics, f promauto.Factory) {
	m.FetchAttempts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_attempts_total",
		Help:      "Fetch attempts by outcome",
	}, []string{"outcome"})

	m.FetchLatency = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_latency_seconds",
		Help:      "Latency of fetch attempts that reached the network",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	m.PagesProcessed = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_processed_total",
		Help:      "Pages completed by result",
	}, []string{"result"})

	m.BreakerTransitions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_transitions_total",
		Help:      "Per-host circuit breaker transitions by target state",
	}, []string{"state"})

	m.BusyWorkers = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fetch_workers_busy",
		Help:      "Fetch workers currently processing a page",
	})
}

func initJobMetrics(m *Metrics, f promauto.Factory) {
	m.JobsCreated = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_created_total",
		Help:      "Crawl jobs accepted",
	})

	m.JobsFinished = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Crawl jobs that reached a terminal state",
	}, []string{"status"})

	m.JobDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time from job start to terminal state",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})

	m.ActiveJobs = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_active",
		Help:      "Crawl jobs not yet in a terminal state",
	})

	m.SiteScore = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "site_score",
		Help:      "Site scores of completed jobs",
		Buckets:   prometheus.LinearBuckets(10, 10, 9),
	})

	m.RetentionDeleted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_jobs_total",
		Help:      "Job records removed by the retention sweep",
	})
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAttempt records one fetch attempt.
func (m *Metrics) ObserveAttempt(outcome string, latency time.Duration) {
	m.FetchAttempts.WithLabelValues(outcome).Inc()
	if latency > 0 {
		m.FetchLatency.Observe(latency.Seconds())
	}
}

// ObservePage records a completed page.
func (m *Metrics) ObservePage(failed bool) {
	result := "ok"
	if failed {
		result = "failed"
	}
	m.PagesProcessed.WithLabelValues(result).Inc()
}

// BreakerTransition records a breaker moving to state.
func (m *Metrics) BreakerTransition(state string) {
	m.BreakerTransitions.WithLabelValues(state).Inc()
}

// WorkerBusy adjusts the busy worker gauge.
func (m *Metrics) WorkerBusy(delta int) {
	m.BusyWorkers.Add(float64(delta))
}

// JobStarted records an accepted job.
func (m *Metrics) JobStarted() {
	m.JobsCreated.Inc()
	m.ActiveJobs.Inc()
}

// JobFinished records a job reaching a terminal status.
func (m *Metrics) JobFinished(status string, elapsed time.Duration) {
	m.ActiveJobs.Dec()
	m.JobsFinished.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveSiteScore records the score of a completed job.
func (m *Metrics) ObserveSiteScore(score float64) {
	m.SiteScore.Observe(score)
}

// RetentionSwept records jobs removed by the retention sweep.
func (m *Metrics) RetentionSwept(n int) {
	m.RetentionDeleted.Add(float64(n))
}
