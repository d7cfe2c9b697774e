package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
)

// stop reasons for a crawl context.
const (
	stopNone int32 = iota
	stopCancelled
	stopFailureRate
)

// run is the live state of one job. The runner goroutine is the only writer
// of job; readers take snapshots under the read lock.
type run struct {
	mu  sync.RWMutex
	job domain.CrawlJob

	factsMu sync.Mutex
	facts   []domain.ExtractedFacts

	stopReason atomic.Int32
	stopCrawl  context.CancelFunc
	done       chan struct{}

	admitted     func() int
	failureLimit float64
	minAttempts  int
	log          logger.Logger
}

func newRun(job domain.CrawlJob, cfg Config, log logger.Logger) *run {
	return &run{
		job:          job,
		done:         make(chan struct{}),
		failureLimit: cfg.FailureRateThreshold,
		minAttempts:  cfg.FailureRateMinAttempts,
		log:          log,
	}
}

func (r *run) snapshot() domain.CrawlJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job
}

func (r *run) status() domain.JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.Status
}

// transition moves the job to status, validating against the state table.
func (r *run) transition(to domain.JobStatus, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ValidateStateTransition(r.job.Status, to); err != nil {
		return err
	}
	r.job.Status = to
	r.job.UpdatedAt = now
	switch {
	case to == domain.JobStatusCrawling:
		r.job.StartedAt = &now
	case to.IsTerminal():
		r.job.FinishedAt = &now
	}
	return nil
}

func (r *run) finish(to domain.JobStatus, summary, errMsg string, now time.Time) error {
	if err := r.transition(to, now); err != nil {
		return err
	}
	r.mu.Lock()
	r.job.Summary = summary
	r.job.Error = errMsg
	r.mu.Unlock()
	return nil
}

// requestStop cancels the crawl for reason unless a stop is already pending.
func (r *run) requestStop(reason int32) bool {
	if !r.stopReason.CompareAndSwap(stopNone, reason) {
		return false
	}
	if r.stopCrawl != nil {
		r.stopCrawl()
	}
	return true
}

// RecordPage appends facts in completion order, updates counts and checks
// the failure-rate abort.
func (r *run) RecordPage(facts *domain.ExtractedFacts) {
	r.factsMu.Lock()
	r.facts = append(r.facts, *facts)
	r.factsMu.Unlock()

	r.mu.Lock()
	r.job.Counts.Attempted++
	if facts.Failed() {
		r.job.Counts.Failed++
	} else {
		r.job.Counts.Succeeded++
	}
	if r.admitted != nil {
		r.job.Counts.Admitted = r.admitted()
	}
	counts := r.job.Counts
	r.mu.Unlock()

	if counts.Attempted < r.minAttempts {
		return
	}
	rate := float64(counts.Failed) / float64(counts.Attempted)
	if rate > r.failureLimit && r.requestStop(stopFailureRate) {
		r.log.Warn("failure rate exceeded, stopping crawl",
			logger.Int("attempted", counts.Attempted),
			logger.Int("failed", counts.Failed),
			logger.Float64("rate", rate),
		)
	}
}

func (r *run) collectedFacts() []domain.ExtractedFacts {
	r.factsMu.Lock()
	defer r.factsMu.Unlock()
	out := make([]domain.ExtractedFacts, len(r.facts))
	copy(out, r.facts)
	return out
}

func (r *run) failureSummary() string {
	c := r.snapshot().Counts
	return fmt.Sprintf("failure rate exceeded: %d of %d attempted pages failed (threshold %.0f%%)",
		c.Failed, c.Attempted, r.failureLimit*100)
}
