package circuitbreaker_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/circuitbreaker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(t *testing.T) (*circuitbreaker.Breaker, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := circuitbreaker.DefaultConfig()
	cfg.Now = clock.Now
	return circuitbreaker.New(cfg), clock
}

func failN(t *testing.T, b *circuitbreaker.Breaker, n int) {
	t.Helper()

	for range n {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker(t)

	failN(t, b, 4)
	assert.Equal(t, circuitbreaker.StateClosed, b.State())

	failN(t, b, 1)
	assert.Equal(t, circuitbreaker.StateOpen, b.State())
	require.ErrorIs(t, b.Allow(), circuitbreaker.ErrCircuitOpen)
}

func TestBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker(t)

	failN(t, b, 4)
	require.NoError(t, b.Allow())
	b.RecordSuccess()
	failN(t, b, 4)

	assert.Equal(t, circuitbreaker.StateClosed, b.State())
	assert.Equal(t, 4, b.GetStats().FailureCount)
}

func TestBreaker_HalfOpenSingleTrial(t *testing.T) {
	t.Parallel()

	b, clock := newBreaker(t)
	failN(t, b, 5)

	clock.Advance(29 * time.Second)
	require.ErrorIs(t, b.Allow(), circuitbreaker.ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, b.Allow(), "trial request allowed after cool-down")
	assert.Equal(t, circuitbreaker.StateHalfOpen, b.State())
	require.ErrorIs(t, b.Allow(), circuitbreaker.ErrTrialInFlight)

	b.RecordSuccess()
	assert.Equal(t, circuitbreaker.StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	t.Parallel()

	b, clock := newBreaker(t)
	failN(t, b, 5)

	clock.Advance(circuitbreaker.DefaultCoolDown)
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, circuitbreaker.StateOpen, b.State())
	require.ErrorIs(t, b.Allow(), circuitbreaker.ErrCircuitOpen)
}

func TestBreaker_NeutralReleasesTrial(t *testing.T) {
	t.Parallel()

	b, clock := newBreaker(t)
	failN(t, b, 5)
	clock.Advance(circuitbreaker.DefaultCoolDown)

	require.NoError(t, b.Allow())
	b.RecordNeutral()
	require.NoError(t, b.Allow(), "a released trial slot can be reused")
}

func TestRegistry_PerKeyIsolationAndCallback(t *testing.T) {
	t.Parallel()

	type transition struct {
		key      string
		from, to circuitbreaker.State
	}
	var (
		mu   sync.Mutex
		seen []transition
	)

	reg := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), func(key string, from, to circuitbreaker.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, transition{key, from, to})
	})

	bad := reg.Get("bad.test")
	assert.Same(t, bad, reg.Get("bad.test"))
	failN(t, bad, 5)

	require.NoError(t, reg.Get("good.test").Allow())

	snap := reg.Snapshot()
	assert.Equal(t, circuitbreaker.StateOpen, snap["bad.test"])
	assert.Equal(t, circuitbreaker.StateClosed, snap["good.test"])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []transition{{"bad.test", circuitbreaker.StateClosed, circuitbreaker.StateOpen}}, seen)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", circuitbreaker.StateClosed.String())
	assert.Equal(t, "open", circuitbreaker.StateOpen.String())
	assert.Equal(t, "half-open", circuitbreaker.StateHalfOpen.String())
	assert.Equal(t, "unknown", circuitbreaker.State(9).String())
}
