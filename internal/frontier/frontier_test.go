package frontier_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/frontier"
)

const testSeed = "http://example.test/"

func newFrontier(t *testing.T, cfg frontier.Config) *frontier.Frontier {
	t.Helper()

	f, err := frontier.New(testSeed, cfg)
	require.NoError(t, err)
	return f
}

func TestNew_AdmitsSeed(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 10, MaxDepth: 2, SameDomainOnly: true})

	assert.Equal(t, testSeed, f.Seed())
	assert.Equal(t, "example.test", f.SeedDomain())
	assert.Equal(t, 1, f.Stats().Admitted)
	assert.False(t, f.IsExhausted())

	entry, ok := f.Entry(testSeed)
	require.True(t, ok)
	assert.Equal(t, 0, entry.Depth)
	assert.Equal(t, domain.VisitPending, entry.State)
}

func TestNew_InvalidSeed(t *testing.T) {
	t.Parallel()

	_, err := frontier.New("ftp://example.test", frontier.Config{})
	require.Error(t, err)
}

func TestAdmit_Dedupe(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 10, MaxDepth: 3, SameDomainOnly: true})

	assert.True(t, f.Admit("http://example.test/a", 1, testSeed))
	assert.False(t, f.Admit("http://EXAMPLE.test:80/a#x", 1, testSeed))
	assert.False(t, f.Admit("http://example.test/b/../a", 2, testSeed))
	assert.False(t, f.Admit(testSeed, 1, testSeed))
	assert.Equal(t, 2, f.Stats().Admitted)
}

func TestAdmit_Limits(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 3, MaxDepth: 1, SameDomainOnly: true})

	assert.False(t, f.Admit("http://example.test/deep", 2, testSeed), "depth beyond max")
	assert.False(t, f.Admit("http://other.test/", 1, testSeed), "off-site")
	assert.False(t, f.Admit("mailto:x@example.test", 1, testSeed), "non-http")
	assert.True(t, f.Admit("http://www.example.test/a", 1, testSeed), "subdomain of the seed's registrable domain")
	assert.True(t, f.Admit("http://example.test/b", 1, testSeed))
	assert.False(t, f.Admit("http://example.test/c", 1, testSeed), "max pages")
	assert.Equal(t, 3, f.Stats().Admitted)
}

func TestAdmit_CrossDomainAllowed(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 10, MaxDepth: 1, SameDomainOnly: false})

	assert.True(t, f.Admit("http://other.test/", 1, testSeed))
	assert.False(t, f.IsInternal("http://other.test/"))
	assert.True(t, f.IsInternal("http://blog.example.test/x"))
}

func TestNextBatch_BreadthFirst(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 10, MaxDepth: 3, SameDomainOnly: false, PerHostLimit: 10})

	require.True(t, f.Admit("http://a.test/2", 2, ""))
	require.True(t, f.Admit("http://b.test/1", 1, ""))
	require.True(t, f.Admit("http://c.test/2b", 2, ""))
	require.True(t, f.Admit("http://d.test/1b", 1, ""))

	batch := f.NextBatch(10)
	urls := make([]string, 0, len(batch))
	for _, e := range batch {
		urls = append(urls, e.URL)
		assert.Equal(t, domain.VisitInFlight, e.State)
	}

	assert.Equal(t, []string{
		testSeed,
		"http://b.test/1",
		"http://d.test/1b",
		"http://a.test/2",
		"http://c.test/2b",
	}, urls)
}

func TestNextBatch_PerHostCap(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 10, MaxDepth: 2, SameDomainOnly: false})
	for i := range 3 {
		require.True(t, f.Admit(fmt.Sprintf("http://example.test/p%d", i), 1, testSeed))
	}
	require.True(t, f.Admit("http://other.test/", 1, testSeed))

	batch := f.NextBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, testSeed, batch[0].URL)
	assert.Equal(t, "http://example.test/p0", batch[1].URL)
	assert.Equal(t, "http://other.test/", batch[2].URL, "capped host entries are skipped")

	assert.Empty(t, f.NextBatch(10), "example.test is at its cap")

	require.NoError(t, f.MarkDone(testSeed))
	next := f.NextBatch(10)
	require.Len(t, next, 1)
	assert.Equal(t, "http://example.test/p1", next[0].URL, "skipped entries keep their position")
}

func TestMark_TransitionsAndExhaustion(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 10, MaxDepth: 1, SameDomainOnly: true})
	require.True(t, f.Admit("http://example.test/a", 1, testSeed))

	require.ErrorIs(t, f.MarkDone(testSeed), frontier.ErrNotInFlight, "pending entries cannot be marked")

	changed := f.Changed()
	batch := f.NextBatch(2)
	require.Len(t, batch, 2)
	require.NoError(t, f.MarkDone(batch[0].URL))

	select {
	case <-changed:
	default:
		t.Fatal("expected change notification")
	}

	assert.False(t, f.IsExhausted())
	require.NoError(t, f.MarkFailed(batch[1].URL))
	require.ErrorIs(t, f.MarkFailed(batch[1].URL), frontier.ErrNotInFlight)
	assert.True(t, f.IsExhausted())

	stats := f.Stats()
	assert.Equal(t, frontier.Stats{Admitted: 2, Done: 1, Failed: 1, MaxDepth: 1}, stats)
}

func TestAdmit_NeverExceedsBudgetUnderConcurrency(t *testing.T) {
	t.Parallel()

	f := newFrontier(t, frontier.Config{MaxPages: 25, MaxDepth: 3, SameDomainOnly: true})

	done := make(chan struct{})
	for w := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range 50 {
				f.Admit(fmt.Sprintf("http://example.test/%d", i%30), 1+w%3, testSeed)
			}
		}()
	}
	for range 8 {
		<-done
	}

	assert.Equal(t, 25, f.Stats().Admitted)

	seen := map[string]bool{}
	for {
		batch := f.NextBatch(5)
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			assert.False(t, seen[e.URL], "duplicate %s", e.URL)
			assert.LessOrEqual(t, e.Depth, 3)
			seen[e.URL] = true
			require.NoError(t, f.MarkDone(e.URL))
		}
	}
	assert.Len(t, seen, 25)
	assert.True(t, f.IsExhausted())
}
