package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/fetcher"
	"github.com/ranamudassir31/webpulse-ai/internal/frontier"
	"github.com/ranamudassir31/webpulse-ai/internal/retry"
)

const seedURL = "http://a.test/"

// stubExtractor emits links from a fixed map keyed by page URL.
type stubExtractor struct {
	links map[string][]string
}

func (s *stubExtractor) Extract(r *domain.PageFetchResult) *domain.ExtractedFacts {
	f := &domain.ExtractedFacts{
		URL:        r.URL,
		Depth:      r.Depth,
		StatusCode: r.StatusCode,
		FetchError: r.ErrKind,
	}
	for _, l := range s.links[r.URL] {
		f.Links = append(f.Links, domain.Link{URL: l})
	}
	return f
}

type recorder struct {
	mu    sync.Mutex
	pages map[string]*domain.ExtractedFacts
	order []string
}

func newRecorder() *recorder {
	return &recorder{pages: make(map[string]*domain.ExtractedFacts)}
}

func (r *recorder) RecordPage(f *domain.ExtractedFacts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[f.URL] = f
	r.order = append(r.order, f.URL)
}

func (r *recorder) get(u string) *domain.ExtractedFacts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages[u]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// fakeTransport answers fetches in-process and tracks concurrency.
type fakeTransport struct {
	mu           sync.Mutex
	delay        time.Duration
	respond      func(rawURL string, call int) (*fetcher.Response, error)
	calls        map[string]int
	inFlight     int
	maxInFlight  int
	hostInFlight map[string]int
	hostMax      map[string]int
}

func newFakeTransport(respond func(string, int) (*fetcher.Response, error)) *fakeTransport {
	return &fakeTransport{
		respond:      respond,
		calls:        make(map[string]int),
		hostInFlight: make(map[string]int),
		hostMax:      make(map[string]int),
	}
}

func (f *fakeTransport) Fetch(_ context.Context, rawURL string, _ time.Duration) (*fetcher.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[rawURL]++
	call := f.calls[rawURL]
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.hostInFlight[u.Host]++
	f.hostMax[u.Host] = max(f.hostMax[u.Host], f.hostInFlight[u.Host])
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.inFlight--
	f.hostInFlight[u.Host]--
	f.mu.Unlock()

	return f.respond(rawURL, call)
}

func (f *fakeTransport) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func status(code int) *fetcher.Response {
	return &fetcher.Response{StatusCode: code, Header: http.Header{"Content-Type": {"text/html"}}}
}

func fastRetry(delays *[]time.Duration, mu *sync.Mutex) retry.Config {
	return retry.Config{
		InitialDelay: time.Millisecond,
		Jitter:       func() float64 { return 0 },
		Sleep: func(ctx context.Context, d time.Duration) error {
			if delays != nil {
				mu.Lock()
				*delays = append(*delays, d)
				mu.Unlock()
			}
			return ctx.Err()
		},
	}
}

type poolFixture struct {
	frontier  *frontier.Frontier
	transport *fakeTransport
	recorder  *recorder
	pool      *fetcher.Pool
}

func newPoolFixture(
	t *testing.T,
	fcfg frontier.Config,
	cfg fetcher.Config,
	links map[string][]string,
	respond func(string, int) (*fetcher.Response, error),
) *poolFixture {
	t.Helper()

	fr, err := frontier.New(seedURL, fcfg)
	require.NoError(t, err)

	tr := newFakeTransport(respond)
	rec := newRecorder()
	pool := fetcher.NewPool(fetcher.PoolDeps{
		Frontier:  fr,
		Transport: tr,
		Extractor: &stubExtractor{links: links},
		Recorder:  rec,
	}, cfg)

	return &poolFixture{frontier: fr, transport: tr, recorder: rec, pool: pool}
}

func TestPool_TransientFailureRetriedThreeTimes(t *testing.T) {
	t.Parallel()

	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 5, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 1, Retry: fastRetry(nil, nil)},
		nil,
		func(string, int) (*fetcher.Response, error) { return status(http.StatusServiceUnavailable), nil },
	)

	fx.pool.Run(context.Background())

	assert.Equal(t, 3, fx.transport.totalCalls())
	facts := fx.recorder.get(seedURL)
	require.NotNil(t, facts)
	assert.True(t, facts.Failed())
	assert.Equal(t, domain.FetchErrorHTTPStatus, facts.FetchError)
	assert.True(t, fx.frontier.IsExhausted())
	assert.Equal(t, 1, fx.frontier.Stats().Failed)
}

func TestPool_NotFoundNeverRetried(t *testing.T) {
	t.Parallel()

	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 5, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 2, Retry: fastRetry(nil, nil)},
		nil,
		func(string, int) (*fetcher.Response, error) { return status(http.StatusNotFound), nil },
	)

	fx.pool.Run(context.Background())

	assert.Equal(t, 1, fx.transport.totalCalls())
	facts := fx.recorder.get(seedURL)
	require.NotNil(t, facts)
	assert.Equal(t, http.StatusNotFound, facts.StatusCode)
	assert.True(t, facts.Failed())
}

func TestPool_SucceedsAfterTransientAndAdmitsLinks(t *testing.T) {
	t.Parallel()

	links := map[string][]string{
		seedURL: {"/one", "http://a.test/two#frag", "http://other.test/"},
	}
	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 10, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 2, Retry: fastRetry(nil, nil)},
		resolveLinks(links),
		func(u string, call int) (*fetcher.Response, error) {
			if u == seedURL && call == 1 {
				return nil, fmt.Errorf("dial tcp: connection refused")
			}
			return status(http.StatusOK), nil
		},
	)

	fx.pool.Run(context.Background())

	assert.Equal(t, 3, fx.recorder.count())
	assert.NotNil(t, fx.recorder.get("http://a.test/one"))
	assert.NotNil(t, fx.recorder.get("http://a.test/two"))
	assert.Nil(t, fx.recorder.get("http://other.test/"))
	assert.Equal(t, 3, fx.frontier.Stats().Done)
}

func TestPool_TooManyRequestsHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 5, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 1, Retry: fastRetry(&delays, &mu)},
		nil,
		func(_ string, call int) (*fetcher.Response, error) {
			if call == 1 {
				resp := status(http.StatusTooManyRequests)
				resp.Header.Set("Retry-After", "7")
				return resp, nil
			}
			if call == 2 {
				resp := status(http.StatusTooManyRequests)
				resp.Header.Set("Retry-After", "3600")
				return resp, nil
			}
			return status(http.StatusOK), nil
		},
	)

	fx.pool.Run(context.Background())

	assert.Equal(t, 3, fx.transport.totalCalls(), "429 counts as an attempt")
	assert.False(t, fx.recorder.get(seedURL).Failed())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{7 * time.Second, retry.DefaultMaxRetryAfter}, delays)
}

func TestPool_BreakerShortCircuitsSixthRequest(t *testing.T) {
	t.Parallel()

	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 10, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 1, Retry: retry.Config{MaxAttempts: 1}},
		nil,
		func(string, int) (*fetcher.Response, error) { return status(http.StatusBadGateway), nil },
	)
	for i := 1; i <= 5; i++ {
		require.True(t, fx.frontier.Admit(fmt.Sprintf("http://a.test/p%d", i), 1, seedURL))
	}

	fx.pool.Run(context.Background())

	assert.Equal(t, 5, fx.transport.totalCalls(), "sixth request must not reach the network")

	last := fx.recorder.get("http://a.test/p5")
	require.NotNil(t, last)
	assert.Equal(t, domain.FetchErrorConnectionFailed, last.FetchError)
	assert.True(t, last.Failed())
	assert.Equal(t, 6, fx.frontier.Stats().Failed)
}

func TestPool_RespectsGlobalAndPerHostConcurrency(t *testing.T) {
	t.Parallel()

	var children []string
	for _, host := range []string{"a.test", "b.test", "c.test"} {
		for i := range 6 {
			children = append(children, fmt.Sprintf("http://%s/page%d", host, i))
		}
	}

	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 100, MaxDepth: 1, SameDomainOnly: false},
		fetcher.Config{WorkerCount: 4, Retry: fastRetry(nil, nil)},
		map[string][]string{seedURL: children},
		func(string, int) (*fetcher.Response, error) { return status(http.StatusOK), nil },
	)
	fx.transport.delay = 10 * time.Millisecond

	fx.pool.Run(context.Background())

	assert.Equal(t, 19, fx.recorder.count())
	fx.transport.mu.Lock()
	defer fx.transport.mu.Unlock()
	assert.LessOrEqual(t, fx.transport.maxInFlight, 4)
	for host, peak := range fx.transport.hostMax {
		assert.LessOrEqual(t, peak, frontier.DefaultPerHostLimit, host)
	}
}

func TestPool_CancelledBeforeStartFetchesNothing(t *testing.T) {
	t.Parallel()

	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 5, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 2},
		nil,
		func(string, int) (*fetcher.Response, error) { return status(http.StatusOK), nil },
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx.pool.Run(ctx)

	assert.Zero(t, fx.transport.totalCalls())
	assert.Zero(t, fx.recorder.count())
}

func TestPool_CancelLetsInFlightFinish(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var children []string
	for i := range 10 {
		children = append(children, fmt.Sprintf("http://a.test/c%d", i))
	}

	fx := newPoolFixture(t,
		frontier.Config{MaxPages: 50, MaxDepth: 1, SameDomainOnly: true},
		fetcher.Config{WorkerCount: 2, Retry: fastRetry(nil, nil)},
		map[string][]string{seedURL: children},
		func(u string, _ int) (*fetcher.Response, error) {
			if u != seedURL {
				cancel()
			}
			return status(http.StatusOK), nil
		},
	)

	fx.pool.Run(ctx)

	// The seed plus at most one in-flight page per worker.
	assert.LessOrEqual(t, fx.recorder.count(), 3)
	assert.Equal(t, fx.transport.totalCalls(), fx.recorder.count(), "every fetch produces facts")
	assert.False(t, fx.frontier.IsExhausted())
	assert.Zero(t, fx.frontier.Stats().InFlight)
}

func resolveLinks(links map[string][]string) map[string][]string {
	out := make(map[string][]string, len(links))
	for page, refs := range links {
		base, _ := url.Parse(page)
		for _, ref := range refs {
			r, _ := url.Parse(ref)
			out[page] = append(out[page], base.ResolveReference(r).String())
		}
	}
	return out
}
