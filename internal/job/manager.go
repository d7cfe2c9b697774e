// Package job runs crawl jobs through the crawl, aggregate and render phases
// and answers queries about them.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ranamudassir31/webpulse-ai/internal/aggregator"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/extractor"
	"github.com/ranamudassir31/webpulse-ai/internal/fetcher"
	"github.com/ranamudassir31/webpulse-ai/internal/frontier"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

const (
	// persistTimeout bounds each store write made by a runner.
	persistTimeout = 10 * time.Second
	// statsPageSize is the page size used when scanning the store for Stats.
	statsPageSize = 500
)

// Metrics receives job and fetch instrumentation.
type Metrics interface {
	fetcher.Metrics
	JobStarted()
	JobFinished(status string, elapsed time.Duration)
	ObserveSiteScore(score float64)
	RetentionSwept(n int)
}

// NopMetrics discards all instrumentation.
type NopMetrics struct {
	fetcher.NopMetrics
}

func (NopMetrics) JobStarted()                       {}
func (NopMetrics) JobFinished(string, time.Duration) {}
func (NopMetrics) ObserveSiteScore(float64)          {}
func (NopMetrics) RetentionSwept(int)                {}

// Deps are the collaborators of a Manager. Metrics and Log are optional.
type Deps struct {
	Store     store.ResultStore
	Transport fetcher.Transport
	// Renderer produces the document stored for every completed job.
	Renderer report.Renderer
	// Format names the format Renderer produces.
	Format  report.Format
	Metrics Metrics
	Log     logger.Logger
}

// Stats summarizes all known jobs.
type Stats struct {
	TotalJobs        int                      `json:"total_jobs"`
	ActiveJobs       int                      `json:"active_jobs"`
	ByStatus         map[domain.JobStatus]int `json:"by_status"`
	PagesCrawled     int                      `json:"pages_crawled"`
	AverageSiteScore float64                  `json:"average_site_score"`
	TotalIssues      domain.IssueTotals       `json:"total_issues"`
}

// Manager owns the live job registry. Each job is driven by one runner
// goroutine, the single writer of that job's status.
type Manager struct {
	cfg        Config
	fetcherCfg fetcher.Config
	store      store.ResultStore
	transport  fetcher.Transport
	renderer   report.Renderer
	format     report.Format
	metrics    Metrics
	log        logger.Logger

	mu     sync.RWMutex
	runs   map[string]*run
	closed bool
	wg     sync.WaitGroup

	baseCtx   context.Context
	cancelAll context.CancelFunc

	now   func() time.Time
	newID func() string
}

// NewManager creates a manager. fetcherCfg is the template for each job's
// pool; the job's concurrency and fetch timeout override it.
func NewManager(deps Deps, cfg Config, fetcherCfg fetcher.Config) *Manager {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	format := deps.Format
	if format == "" {
		format = report.DefaultFormat
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg.WithDefaults(),
		fetcherCfg: fetcherCfg,
		store:      deps.Store,
		transport:  deps.Transport,
		renderer:   deps.Renderer,
		format:     format,
		metrics:    metrics,
		log:        log,
		runs:       make(map[string]*run),
		baseCtx:    ctx,
		cancelAll:  cancel,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// NormalizeSeed prefixes https:// when the scheme is missing and normalizes
// the result.
func NormalizeSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}
	normalized, err := frontier.NormalizeURL(seed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return normalized, nil
}

// Create validates the request, persists a queued job and starts its runner.
func (m *Manager) Create(ctx context.Context, seed string, req domain.JobRequest) (string, error) {
	seedURL, err := NormalizeSeed(seed)
	if err != nil {
		return "", err
	}
	jobCfg, err := m.cfg.resolve(req)
	if err != nil {
		return "", err
	}

	now := m.now()
	job := domain.CrawlJob{
		ID:        m.newID(),
		SeedURL:   seedURL,
		Config:    jobCfg,
		Status:    domain.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShuttingDown
	}
	if m.activeLocked() >= m.cfg.MaxActiveJobs {
		m.mu.Unlock()
		return "", ErrQuotaExceeded
	}
	r := newRun(job, m.cfg, m.log.With(logger.JobID(job.ID)))
	crawlCtx, stop := context.WithCancel(m.baseCtx)
	r.stopCrawl = stop
	m.runs[job.ID] = r
	m.wg.Add(1)
	m.mu.Unlock()

	if putErr := m.store.PutJob(ctx, &job); putErr != nil {
		m.mu.Lock()
		delete(m.runs, job.ID)
		m.mu.Unlock()
		stop()
		m.wg.Done()
		return "", fmt.Errorf("failed to persist job: %w", putErr)
	}

	m.metrics.JobStarted()
	r.log.Info("Job created",
		logger.URL(seedURL),
		logger.Int("max_pages", jobCfg.MaxPages),
		logger.Int("max_depth", jobCfg.MaxDepth),
		logger.Int("concurrency", jobCfg.Concurrency),
	)

	go m.execute(crawlCtx, r)
	return job.ID, nil
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, r := range m.runs {
		if !r.status().IsTerminal() {
			n++
		}
	}
	return n
}

func (m *Manager) live(id string) *run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[id]
}

// Status returns the current state of a job, live or archived.
func (m *Manager) Status(ctx context.Context, id string) (*domain.CrawlJob, error) {
	if r := m.live(id); r != nil {
		job := r.snapshot()
		return &job, nil
	}
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Wait blocks until the job is no longer running or ctx is done, then
// returns its status.
func (m *Manager) Wait(ctx context.Context, id string) (*domain.CrawlJob, error) {
	if r := m.live(id); r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Status(ctx, id)
}

// Report returns the stored document of a completed job. Jobs in any other
// state have no report.
func (m *Manager) Report(ctx context.Context, id string) (*domain.RenderedDocument, error) {
	job, err := m.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, ErrNotFound
	}
	doc, err := m.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ReportAs renders a completed job's report in format. The stored document
// is returned for the manager's own format; other formats are rebuilt from
// the stored facts.
func (m *Manager) ReportAs(ctx context.Context, id string, format report.Format) (*domain.RenderedDocument, error) {
	if format == "" || format == m.format {
		return m.Report(ctx, id)
	}

	renderer, err := report.NewRenderer(format)
	if err != nil {
		return nil, err
	}
	job, err := m.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, ErrNotFound
	}

	facts, err := m.store.GetFacts(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 && job.Counts.Attempted > 0 {
		return nil, fmt.Errorf("%w: no page facts stored for job %s", ErrNotFound, id)
	}
	agg := aggregator.Aggregate(job.ID, job.SeedURL, facts, m.cfg.Aggregator)
	return report.Render(ctx, renderer, &agg)
}

// Cancel requests cancellation of a running job. In-flight fetches finish;
// the job becomes cancelled once its workers have returned.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	if r := m.live(id); r != nil {
		switch st := r.status(); {
		case st == domain.JobStatusCancelled:
			return ErrAlreadyCancelled
		case st.IsTerminal():
			return ErrNotFound
		}
		if !r.requestStop(stopCancelled) {
			if r.stopReason.Load() == stopCancelled {
				return ErrAlreadyCancelled
			}
			return ErrNotFound
		}
		r.log.Info("Job cancellation requested")
		return nil
	}

	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	switch {
	case job.Status == domain.JobStatusCancelled:
		return ErrAlreadyCancelled
	case job.Status.IsTerminal():
		return ErrNotFound
	}

	// A stored job that is not terminal and has no runner was orphaned by a
	// previous process.
	now := m.now()
	job.Status = domain.JobStatusCancelled
	job.Summary = "cancelled: job was not running"
	job.UpdatedAt = now
	job.FinishedAt = &now
	return m.store.PutJob(ctx, job)
}

// Delete removes a job together with its facts and report. A job that still
// has a runner must be cancelled first.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if r := m.live(id); r != nil {
		return fmt.Errorf("%w: cancel job %s before deleting it", ErrJobActive, id)
	}
	if err := m.store.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	m.log.Info("Job deleted", logger.String("job_id", id))
	return nil
}

// List returns recent jobs, newest first, with live progress for running ones.
func (m *Manager) List(ctx context.Context, limit, offset int) ([]*domain.CrawlJob, error) {
	jobs, err := m.store.ListJobs(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := range jobs {
		if r := m.live(j.ID); r != nil {
			snap := r.snapshot()
			jobs[i] = &snap
		}
	}
	return jobs, nil
}

// Stats reports totals by state, issue totals by severity and the average
// site score of completed jobs.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[domain.JobStatus]int)}
	var scoreSum float64
	var scored int

	for offset := 0; ; offset += statsPageSize {
		jobs, err := m.List(ctx, statsPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, j := range jobs {
			stats.TotalJobs++
			stats.ByStatus[j.Status]++
			stats.PagesCrawled += j.Counts.Attempted
			stats.TotalIssues = stats.TotalIssues.Add(j.Counts.Issues)
			if !j.Status.IsTerminal() {
				stats.ActiveJobs++
			}
			if j.Status == domain.JobStatusCompleted && j.SiteScore != nil {
				scoreSum += *j.SiteScore
				scored++
			}
		}
		if len(jobs) < statsPageSize {
			break
		}
	}

	if scored > 0 {
		stats.AverageSiteScore = scoreSum / float64(scored)
	}
	return stats, nil
}

// Shutdown stops accepting jobs, cancels the running ones and waits for
// their runners to return or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	live := len(m.runs)
	m.mu.Unlock()

	m.log.Info("Shutting down job manager", logger.Int("live_jobs", live))
	m.cancelAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job manager shutdown: %w", ctx.Err())
	}
}

// execute drives one job to a terminal state, persists it and drops it from
// the live registry once the store holds the terminal record.
func (m *Manager) execute(crawlCtx context.Context, r *run) {
	defer m.wg.Done()
	defer close(r.done)
	defer r.stopCrawl()

	start := m.now()
	m.runPipeline(crawlCtx, r)

	final := r.snapshot()
	persisted := m.persist(crawlCtx, r)

	m.metrics.JobFinished(string(final.Status), m.now().Sub(start))
	if final.Status == domain.JobStatusCompleted && final.SiteScore != nil {
		m.metrics.ObserveSiteScore(*final.SiteScore)
	}
	r.log.Info("Job finished",
		logger.String("status", string(final.Status)),
		logger.String("summary", final.Summary),
		logger.Int("attempted", final.Counts.Attempted),
		logger.Int("failed", final.Counts.Failed),
	)

	if persisted {
		m.mu.Lock()
		delete(m.runs, final.ID)
		m.mu.Unlock()
	}
}

func (m *Manager) runPipeline(crawlCtx context.Context, r *run) {
	job := r.snapshot()
	ctx := context.WithoutCancel(crawlCtx)

	if !m.advance(r, domain.JobStatusCrawling) {
		return
	}
	m.persist(ctx, r)

	front, err := frontier.New(job.SeedURL, frontier.Config{
		MaxPages:       job.Config.MaxPages,
		MaxDepth:       job.Config.MaxDepth,
		SameDomainOnly: job.Config.SameDomainOnly,
		PerHostLimit:   m.cfg.PerHostLimit,
	})
	if err != nil {
		m.terminate(r, domain.JobStatusFailed, "invalid seed url", err.Error())
		return
	}
	r.admitted = func() int { return front.Stats().Admitted }

	fcfg := m.fetcherCfg
	fcfg.WorkerCount = job.Config.Concurrency
	fcfg.RequestTimeout = job.Config.FetchTimeout()
	pool := fetcher.NewPool(fetcher.PoolDeps{
		Frontier:  front,
		Transport: m.transport,
		Extractor: extractor.New(front.IsInternal),
		Recorder:  r,
		Metrics:   m.metrics,
		Log:       r.log,
	}, fcfg)

	pool.Run(crawlCtx)

	r.mu.Lock()
	r.job.Counts.Admitted = front.Stats().Admitted
	r.mu.Unlock()

	facts := r.collectedFacts()
	factsErr := m.storeFacts(ctx, r, facts)

	if m.stopped(r) {
		return
	}
	if factsErr != nil {
		m.terminate(r, domain.JobStatusFailed, "page facts could not be stored", factsErr.Error())
		return
	}
	if !front.IsExhausted() {
		m.terminate(r, domain.JobStatusFailed, "crawl stopped before the frontier was exhausted", "")
		return
	}

	if !m.advance(r, domain.JobStatusAggregating) {
		return
	}
	m.persist(ctx, r)

	agg := aggregator.Aggregate(job.ID, job.SeedURL, facts, m.cfg.Aggregator)
	r.mu.Lock()
	score := agg.SiteScore
	r.job.SiteScore = &score
	r.job.Counts.Issues = domain.NewIssueTotals(agg.IssuesBySeverity)
	r.mu.Unlock()

	if m.stopped(r) {
		return
	}
	if !m.advance(r, domain.JobStatusRendering) {
		return
	}
	m.persist(ctx, r)

	doc, err := report.Render(ctx, m.renderer, &agg)
	if err != nil {
		m.terminate(r, domain.JobStatusFailed, "report build failed", err.Error())
		return
	}
	if err := m.putDocument(ctx, doc); err != nil {
		m.terminate(r, domain.JobStatusFailed, "report could not be stored", err.Error())
		return
	}

	m.terminate(r, domain.JobStatusCompleted,
		fmt.Sprintf("crawled %d pages (%d failed), site score %.2f", agg.PageCount, agg.FailureCount, agg.SiteScore),
		"",
	)
}

// stopped moves the job to its terminal state when a stop was requested or
// the manager is shutting down.
func (m *Manager) stopped(r *run) bool {
	switch r.stopReason.Load() {
	case stopFailureRate:
		m.terminate(r, domain.JobStatusFailed, r.failureSummary(), "failure rate exceeded")
		return true
	case stopCancelled:
		c := r.snapshot().Counts
		m.terminate(r, domain.JobStatusCancelled, fmt.Sprintf("cancelled after %d pages", c.Attempted), "")
		return true
	}
	if m.baseCtx.Err() != nil {
		m.terminate(r, domain.JobStatusCancelled, "cancelled: service shutting down", "")
		return true
	}
	return false
}

func (m *Manager) advance(r *run, to domain.JobStatus) bool {
	if err := r.transition(to, m.now()); err != nil {
		r.log.Error("Job transition rejected", logger.Error(err))
		return false
	}
	r.log.Debug("Job phase", logger.String("status", string(to)))
	return true
}

func (m *Manager) terminate(r *run, to domain.JobStatus, summary, errMsg string) {
	if err := r.finish(to, summary, errMsg, m.now()); err != nil {
		r.log.Error("Job transition rejected", logger.Error(err))
	}
}

func (m *Manager) persist(ctx context.Context, r *run) bool {
	job := r.snapshot()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.store.PutJob(ctx, &job); err != nil {
		r.log.Error("Failed to persist job",
			logger.String("status", string(job.Status)),
			logger.Error(err),
		)
		return false
	}
	return true
}

func (m *Manager) storeFacts(ctx context.Context, r *run, facts []domain.ExtractedFacts) error {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := m.store.AppendFacts(ctx, r.snapshot().ID, facts); err != nil {
		r.log.Error("Failed to persist page facts", logger.Int("pages", len(facts)), logger.Error(err))
		return err
	}
	return nil
}

func (m *Manager) putDocument(ctx context.Context, doc *domain.RenderedDocument) error {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	return m.store.PutDocument(ctx, doc)
}
