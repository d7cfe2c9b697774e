package fetcher

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ranamudassir31/webpulse-ai/internal/circuitbreaker"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/retry"
)

// Attempt outcomes reported to Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeHTTPError   = "http_error"
	OutcomeTimeout     = "timeout"
	OutcomeConnection  = "connection_failed"
	OutcomeRedirects   = "too_many_redirects"
	OutcomeCircuitOpen = "circuit_open"
)

// Frontier is the subset of the URL frontier the pool drives.
type Frontier interface {
	NextBatch(n int) []domain.FrontierEntry
	Admit(rawURL string, depth int, parent string) bool
	MarkDone(rawURL string) error
	MarkFailed(rawURL string) error
	IsExhausted() bool
	Changed() <-chan struct{}
}

// Extractor turns a fetch result into page facts.
type Extractor interface {
	Extract(result *domain.PageFetchResult) *domain.ExtractedFacts
}

// PageRecorder receives the facts of every completed page, in completion order.
type PageRecorder interface {
	RecordPage(facts *domain.ExtractedFacts)
}

// Metrics receives fetch instrumentation.
type Metrics interface {
	ObserveAttempt(outcome string, latency time.Duration)
	ObservePage(failed bool)
	BreakerTransition(to string)
	WorkerBusy(delta int)
}

// NopMetrics discards all instrumentation.
type NopMetrics struct{}

func (NopMetrics) ObserveAttempt(string, time.Duration) {}
func (NopMetrics) ObservePage(bool)                     {}
func (NopMetrics) BreakerTransition(string)             {}
func (NopMetrics) WorkerBusy(int)                       {}

// Pool drains one job's frontier with a bounded set of workers.
type Pool struct {
	frontier    Frontier
	transport   Transport
	extractor   Extractor
	recorder    PageRecorder
	breakers    *circuitbreaker.Registry
	metrics     Metrics
	log         logger.Logger
	retry       retry.Config
	workerCount int
	timeout     time.Duration
	now         func() time.Time
}

// PoolDeps are the collaborators of a Pool. Metrics and Log are optional.
type PoolDeps struct {
	Frontier  Frontier
	Transport Transport
	Extractor Extractor
	Recorder  PageRecorder
	Metrics   Metrics
	Log       logger.Logger
}

// NewPool creates a pool. Breakers are scoped to the pool, so one pool per job
// gives each job its own breaker state.
func NewPool(deps PoolDeps, cfg Config) *Pool {
	cfg = cfg.WithDefaults()

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}

	p := &Pool{
		frontier:    deps.Frontier,
		transport:   deps.Transport,
		extractor:   deps.Extractor,
		recorder:    deps.Recorder,
		metrics:     metrics,
		log:         log,
		workerCount: cfg.WorkerCount,
		timeout:     cfg.RequestTimeout,
		now:         time.Now,
	}

	p.retry = cfg.Retry
	p.retry.IsRetryable = isTransient

	p.breakers = circuitbreaker.NewRegistry(cfg.Breaker, func(host string, from, to circuitbreaker.State) {
		metrics.BreakerTransition(to.String())
		log.Warn("host circuit breaker transition",
			logger.String("host", host),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return p
}

// Breakers exposes the per-host breaker registry.
func (p *Pool) Breakers() *circuitbreaker.Registry {
	return p.breakers
}

// Run starts the workers and blocks until the frontier is exhausted or ctx is
// cancelled and every worker has returned. Cancellation is observed before
// each dequeue; in-flight fetches run to completion.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("starting worker pool", logger.Int("worker_count", p.workerCount))

	var wg sync.WaitGroup

	for i := range p.workerCount {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	p.log.Info("worker pool stopped")
}

// worker is a single worker goroutine loop.
func (p *Pool) worker(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			p.log.Debug("worker stopping", logger.Int("worker_id", workerID))
			return
		}

		changed := p.frontier.Changed()
		batch := p.frontier.NextBatch(1)

		if len(batch) == 0 {
			if p.frontier.IsExhausted() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			continue
		}

		p.ProcessEntry(ctx, batch[0])
	}
}

// ProcessEntry fetches and extracts one in-flight entry, admits its links,
// marks it done or failed and records its facts.
func (p *Pool) ProcessEntry(ctx context.Context, entry domain.FrontierEntry) {
	p.metrics.WorkerBusy(1)
	defer p.metrics.WorkerBusy(-1)

	result := p.Fetch(ctx, entry)
	facts := p.extractor.Extract(result)

	if !facts.Failed() {
		for _, link := range facts.Links {
			p.frontier.Admit(link.URL, entry.Depth+1, entry.URL)
		}
	}

	var markErr error
	if facts.Failed() {
		markErr = p.frontier.MarkFailed(entry.URL)
	} else {
		markErr = p.frontier.MarkDone(entry.URL)
	}
	if markErr != nil {
		p.log.Error("mark frontier entry failed", logger.URL(entry.URL), logger.Error(markErr))
	}

	p.metrics.ObservePage(facts.Failed())
	if p.recorder != nil {
		p.recorder.RecordPage(facts)
	}
}

// Fetch performs up to the configured number of attempts against entry's URL.
// It always returns a result; fetch failures are carried in Err and ErrKind.
func (p *Pool) Fetch(ctx context.Context, entry domain.FrontierEntry) *domain.PageFetchResult {
	breaker := p.breakers.Get(entry.Host)
	attemptCtx := context.WithoutCancel(ctx)
	started := p.now()

	var (
		last    *Response
		lastErr *FetchError
	)

	attempts, err := retry.Retry(ctx, p.retry, func(int) error {
		last, lastErr = nil, nil

		if allowErr := breaker.Allow(); allowErr != nil {
			lastErr = circuitOpenError(entry.URL, allowErr)
			p.metrics.ObserveAttempt(OutcomeCircuitOpen, 0)
			return lastErr
		}

		attemptStart := p.now()
		resp, fetchErr := p.transport.Fetch(attemptCtx, entry.URL, p.timeout)
		latency := p.now().Sub(attemptStart)

		if fetchErr != nil {
			lastErr = classifyTransportError(entry.URL, fetchErr)
			if lastErr.Transient() {
				breaker.RecordFailure()
			} else {
				breaker.RecordSuccess()
			}
			p.metrics.ObserveAttempt(outcomeFor(lastErr.Kind), latency)
			return lastErr
		}

		last = resp
		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			breaker.RecordFailure()
			lastErr = statusError(entry.URL, resp, p.now())
		case resp.StatusCode == http.StatusTooManyRequests:
			breaker.RecordNeutral()
			lastErr = statusError(entry.URL, resp, p.now())
		case resp.StatusCode >= http.StatusBadRequest:
			breaker.RecordSuccess()
			lastErr = statusError(entry.URL, resp, p.now())
		default:
			breaker.RecordSuccess()
		}

		if lastErr != nil {
			p.metrics.ObserveAttempt(OutcomeHTTPError, latency)
			return lastErr
		}
		p.metrics.ObserveAttempt(OutcomeSuccess, latency)
		return nil
	})

	result := &domain.PageFetchResult{
		URL:       entry.URL,
		FinalURL:  entry.URL,
		Depth:     entry.Depth,
		Latency:   p.now().Sub(started),
		Attempts:  attempts,
		FetchedAt: p.now(),
	}

	if last != nil {
		result.FinalURL = last.FinalURL
		result.StatusCode = last.StatusCode
		result.ContentType = last.ContentType()
		result.Header = last.Header
		result.Body = last.Body
	}

	if err == nil {
		return result
	}

	if lastErr == nil {
		lastErr = &FetchError{Kind: domain.FetchErrorConnectionFailed, URL: entry.URL, Err: err}
	}
	result.Err = lastErr
	result.ErrKind = lastErr.Kind
	p.log.Debug("fetch failed",
		logger.URL(entry.URL),
		logger.Int("attempts", attempts),
		logger.Error(err),
	)

	return result
}

func outcomeFor(kind domain.FetchErrorKind) string {
	switch kind {
	case domain.FetchErrorTimeout:
		return OutcomeTimeout
	case domain.FetchErrorTooManyRedirects:
		return OutcomeRedirects
	case domain.FetchErrorHTTPStatus:
		return OutcomeHTTPError
	default:
		return OutcomeConnection
	}
}
