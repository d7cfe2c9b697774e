package aggregator_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/aggregator"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

const (
	testJobID = "job-1"
	testSeed  = "http://example.test/"
)

func page(url string, depth, words int, hash string, links ...domain.Link) domain.ExtractedFacts {
	return domain.ExtractedFacts{
		URL:         url,
		Depth:       depth,
		StatusCode:  200,
		ContentType: "text/html",
		WordCount:   words,
		ContentHash: hash,
		Links:       links,
	}
}

func internal(url string) domain.Link { return domain.Link{URL: url, Internal: true} }

func sampleFacts() []domain.ExtractedFacts {
	home := page(testSeed, 0, 400, "h-home",
		internal("http://example.test/a"),
		internal("http://example.test/b"),
		internal("http://example.test/gone"),
		internal("http://example.test/down"),
		domain.Link{URL: "http://other.test/"},
	)
	home.Issues = []domain.Issue{{Category: "SEO", Severity: domain.SeverityHigh, Title: "Missing meta description"}}

	a := page("http://example.test/a", 1, 200, "h-dup", internal("http://example.test/gone"))
	a.Issues = []domain.Issue{
		{Category: "SEO", Severity: domain.SeverityHigh, Title: "Missing meta description"},
		{Category: "SEO", Severity: domain.SeverityLow, Title: "Missing canonical tag"},
	}
	b := page("http://example.test/b", 1, 200, "h-dup")

	gone := domain.ExtractedFacts{URL: "http://example.test/gone", Depth: 1, StatusCode: 404, FetchError: domain.FetchErrorHTTPStatus}
	down := domain.ExtractedFacts{URL: "http://example.test/down", Depth: 1, StatusCode: 503, FetchError: domain.FetchErrorHTTPStatus}
	pdf := domain.ExtractedFacts{URL: "http://example.test/doc.pdf", Depth: 2, StatusCode: 200, ContentType: "application/pdf", ExtractionError: domain.ExtractionErrorUnsupportedContentType}

	return []domain.ExtractedFacts{home, a, b, gone, down, pdf}
}

func TestAggregate_Metrics(t *testing.T) {
	t.Parallel()

	r := aggregator.Aggregate(testJobID, testSeed, sampleFacts(), aggregator.Config{})

	assert.Equal(t, testJobID, r.JobID)
	assert.Equal(t, testSeed, r.SeedURL)
	assert.Equal(t, 6, r.PageCount)
	assert.Equal(t, 2, r.FailureCount, "404 and 503 fail; unsupported content does not")
	assert.Equal(t, 2, r.MaxDepth)
	assert.InDelta(t, 800.0/3, r.AverageWordCount, 1e-9)

	assert.Equal(t, 2, r.BrokenLinkCount, "503 is transient, not broken")
	assert.Equal(t, []domain.BrokenLink{
		{Source: testSeed, Target: "http://example.test/gone", StatusCode: 404, Reason: "http 404"},
		{Source: "http://example.test/a", Target: "http://example.test/gone", StatusCode: 404, Reason: "http 404"},
	}, r.BrokenLinks)

	assert.Equal(t, []domain.DuplicateCluster{
		{ContentHash: "h-dup", URLs: []string{"http://example.test/a", "http://example.test/b"}},
	}, r.Duplicates)

	assert.InDelta(t, 800.0/900, r.SubScores.ContentVolume, 1e-9)
	assert.InDelta(t, 0.6, r.SubScores.LinkHealth, 1e-9)
	assert.InDelta(t, 5.0/6, r.SubScores.Duplication, 1e-9)
	assert.InDelta(t, 0.85, r.SubScores.SEO, 1e-9)
	assert.InDelta(t, 78.14, r.SiteScore, 1e-9)
	assert.Equal(t, domain.CategoryScores{SEO: 85, Accessibility: 100, Performance: 100, Bugs: 100}, r.CategoryScores)

	assert.Equal(t, map[domain.Severity]int{domain.SeverityHigh: 2, domain.SeverityLow: 1}, r.IssuesBySeverity)
	assert.Equal(t, []domain.IssueCount{
		{Title: "Missing meta description", Category: "SEO", Severity: domain.SeverityHigh, Pages: 2},
		{Title: "Missing canonical tag", Category: "SEO", Severity: domain.SeverityLow, Pages: 1},
	}, r.Issues)
}

func TestAggregate_CategoryScores(t *testing.T) {
	t.Parallel()

	slow := page("http://example.test/slow", 0, 300, "h-slow")
	slow.Issues = []domain.Issue{
		{Category: domain.CategoryPerformance, Severity: domain.SeverityHigh, Title: "Site not served over HTTPS"},
		{Category: domain.CategoryPerformance, Severity: domain.SeverityHigh, Title: "Slow server response time"},
		{Category: domain.CategoryAccessibility, Severity: domain.SeverityHigh, Title: "Form inputs without labels"},
		{Category: domain.CategoryBugs, Severity: domain.SeverityLow, Title: "Excessive inline styles"},
	}
	fine := page("http://example.test/fine", 1, 300, "h-fine")
	fine.Issues = []domain.Issue{
		{Category: domain.CategoryPerformance, Severity: domain.SeverityMedium, Title: "Many external stylesheets"},
	}

	r := aggregator.Aggregate(testJobID, testSeed, []domain.ExtractedFacts{slow, fine}, aggregator.Config{})

	assert.Equal(t, domain.CategoryScores{SEO: 100, Accessibility: 90, Performance: 75, Bugs: 97.5}, r.CategoryScores)
	assert.Equal(t, map[domain.Severity]int{
		domain.SeverityHigh: 3, domain.SeverityMedium: 1, domain.SeverityLow: 1,
	}, r.IssuesBySeverity)
	assert.InDelta(t, 0.625, r.SubScores.SEO, 1e-9, "site SEO sub-score counts every category")
}

func TestAggregate_DeterministicAcrossOrder(t *testing.T) {
	t.Parallel()

	facts := sampleFacts()
	want := aggregator.Aggregate(testJobID, testSeed, facts, aggregator.Config{})

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]domain.ExtractedFacts(nil), facts...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := aggregator.Aggregate(testJobID, testSeed, shuffled, aggregator.Config{})
		require.Equal(t, want, got)
	}

	assert.Equal(t, want, aggregator.Aggregate(testJobID, testSeed, facts, aggregator.Config{}), "re-run is identical")
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	facts := sampleFacts()
	firstURL := facts[0].URL
	aggregator.Aggregate(testJobID, testSeed, facts, aggregator.Config{})
	assert.Equal(t, firstURL, facts[0].URL)
}

func TestAggregate_RepeatedURLCountedOnce(t *testing.T) {
	t.Parallel()

	facts := []domain.ExtractedFacts{page(testSeed, 0, 100, "x"), page(testSeed, 0, 100, "x")}
	r := aggregator.Aggregate(testJobID, testSeed, facts, aggregator.Config{})

	assert.Equal(t, 1, r.PageCount)
	assert.Empty(t, r.Duplicates)
}

func TestAggregate_NoPages(t *testing.T) {
	t.Parallel()

	r := aggregator.Aggregate(testJobID, testSeed, nil, aggregator.Config{})

	assert.Zero(t, r.PageCount)
	assert.Zero(t, r.SiteScore)
	assert.Empty(t, r.BrokenLinks)
	assert.Empty(t, r.Duplicates)
}

func TestAggregate_AllFailed(t *testing.T) {
	t.Parallel()

	facts := []domain.ExtractedFacts{
		{URL: testSeed, StatusCode: 500, FetchError: domain.FetchErrorHTTPStatus},
	}
	r := aggregator.Aggregate(testJobID, testSeed, facts, aggregator.Config{})

	assert.Equal(t, 1, r.FailureCount)
	assert.Equal(t, domain.SubScores{}, r.SubScores)
	assert.Zero(t, r.SiteScore)
}

func TestAggregate_CustomWeights(t *testing.T) {
	t.Parallel()

	cfg := aggregator.Config{Weights: aggregator.Weights{SEO: 2}}
	r := aggregator.Aggregate(testJobID, testSeed, sampleFacts(), cfg)

	assert.InDelta(t, 85.0, r.SiteScore, 1e-9, "weights are normalized by their sum")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, aggregator.Config{Weights: aggregator.DefaultWeights()}.Validate())
	require.Error(t, aggregator.Config{}.Validate())
	require.Error(t, aggregator.Config{Weights: aggregator.Weights{SEO: -1, LinkHealth: 2}}.Validate())
}

func TestPageSEOScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, aggregator.PageSEOScore(nil))
	assert.Equal(t, 65, aggregator.PageSEOScore([]domain.Issue{
		{Severity: domain.SeverityHigh},
		{Severity: domain.SeverityMedium},
		{Severity: domain.SeverityLow},
	}))

	many := make([]domain.Issue, 10)
	for i := range many {
		many[i].Severity = domain.SeverityHigh
	}
	assert.Zero(t, aggregator.PageSEOScore(many))
}
