// Package aggregator reduces a job's page facts to site-level metrics.
// Aggregate is a pure function: the same facts, in any order, produce an
// identical report.
package aggregator

import (
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// DefaultTargetWords is the average word count that earns a full content score.
const DefaultTargetWords = 300

// Weights are the relative weights of the sub-scores in the site score.
// They are normalized by their sum.
type Weights struct {
	ContentVolume float64 `mapstructure:"content_volume" yaml:"content_volume"`
	LinkHealth    float64 `mapstructure:"link_health"    yaml:"link_health"`
	Duplication   float64 `mapstructure:"duplication"    yaml:"duplication"`
	SEO           float64 `mapstructure:"seo"            yaml:"seo"`
}

// DefaultWeights returns the default sub-score weights.
func DefaultWeights() Weights {
	return Weights{
		ContentVolume: 0.25,
		LinkHealth:    0.30,
		Duplication:   0.20,
		SEO:           0.25,
	}
}

func (w Weights) sum() float64 {
	return w.ContentVolume + w.LinkHealth + w.Duplication + w.SEO
}

// Config configures scoring.
type Config struct {
	Weights     Weights `mapstructure:"weights"      yaml:"weights"`
	TargetWords int     `mapstructure:"target_words" yaml:"target_words"`
}

// WithDefaults returns a copy of the config with default values applied.
func (c Config) WithDefaults() Config {
	if c.TargetWords <= 0 {
		c.TargetWords = DefaultTargetWords
	}
	w := c.Weights
	if w.ContentVolume < 0 || w.LinkHealth < 0 || w.Duplication < 0 || w.SEO < 0 || w.sum() <= 0 {
		c.Weights = DefaultWeights()
	}
	return c
}

// Validate checks that weights are usable.
func (c Config) Validate() error {
	w := c.Weights
	if w.ContentVolume < 0 || w.LinkHealth < 0 || w.Duplication < 0 || w.SEO < 0 {
		return fmt.Errorf("aggregator weights must be non-negative: %+v", w)
	}
	if w.sum() <= 0 {
		return fmt.Errorf("aggregator weights must not all be zero")
	}
	return nil
}

// severityDeductions are subtracted from a page's 100-point SEO score per issue.
var severityDeductions = map[domain.Severity]int{
	domain.SeverityHigh:   20,
	domain.SeverityMedium: 10,
	domain.SeverityLow:    5,
}

var severityRank = map[domain.Severity]int{
	domain.SeverityHigh:   0,
	domain.SeverityMedium: 1,
	domain.SeverityLow:    2,
}

// PageSEOScore returns a page's SEO score in [0, 100].
func PageSEOScore(issues []domain.Issue) int {
	score := 100
	for _, issue := range issues {
		d, ok := severityDeductions[issue.Severity]
		if !ok {
			d = severityDeductions[domain.SeverityLow]
		}
		score -= d
	}
	return max(0, min(100, score))
}

// pageCategoryScores scores a page per issue category. Each category starts
// at 100 and loses the severity deduction of every issue filed under it.
func pageCategoryScores(issues []domain.Issue) domain.CategoryScores {
	byCategory := map[string][]domain.Issue{}
	for _, issue := range issues {
		byCategory[issue.Category] = append(byCategory[issue.Category], issue)
	}
	return domain.CategoryScores{
		SEO:           float64(PageSEOScore(byCategory[domain.CategorySEO])),
		Accessibility: float64(PageSEOScore(byCategory[domain.CategoryAccessibility])),
		Performance:   float64(PageSEOScore(byCategory[domain.CategoryPerformance])),
		Bugs:          float64(PageSEOScore(byCategory[domain.CategoryBugs])),
	}
}

// Aggregate computes the site report for one job's facts. Facts are expected
// to be unique per URL; when a URL repeats, the first in URL order is kept.
func Aggregate(jobID, seedURL string, facts []domain.ExtractedFacts, cfg Config) domain.AggregateReport {
	cfg = cfg.WithDefaults()
	pages := canonicalOrder(facts)

	report := domain.AggregateReport{
		JobID:            jobID,
		SeedURL:          seedURL,
		PageCount:        len(pages),
		IssuesBySeverity: map[domain.Severity]int{},
	}

	byURL := make(map[string]*domain.ExtractedFacts, len(pages))
	for i := range pages {
		byURL[pages[i].URL] = &pages[i]
	}

	var (
		htmlPages     int
		totalWords    int
		seoTotal      int
		categoryTotal domain.CategoryScores
		internalLinks int
		brokenIntern  int
		byHash        = map[string][]string{}
		issues        = map[string]*domain.IssueCount{}
	)

	for i := range pages {
		p := &pages[i]
		report.MaxDepth = max(report.MaxDepth, p.Depth)

		if p.Failed() {
			report.FailureCount++
			continue
		}
		if !p.IsHTML() {
			continue
		}

		htmlPages++
		totalWords += p.WordCount
		seoTotal += PageSEOScore(p.Issues)
		pc := pageCategoryScores(p.Issues)
		categoryTotal.SEO += pc.SEO
		categoryTotal.Accessibility += pc.Accessibility
		categoryTotal.Performance += pc.Performance
		categoryTotal.Bugs += pc.Bugs

		if p.ContentHash != "" {
			byHash[p.ContentHash] = append(byHash[p.ContentHash], p.URL)
		}

		for _, issue := range p.Issues {
			report.IssuesBySeverity[issue.Severity]++
			ic, ok := issues[issue.Title]
			if !ok {
				ic = &domain.IssueCount{Title: issue.Title, Category: issue.Category, Severity: issue.Severity}
				issues[issue.Title] = ic
			}
			ic.Pages++
		}

		for _, link := range p.Links {
			if link.Internal {
				internalLinks++
			}
			target, fetched := byURL[link.URL]
			if !fetched {
				continue
			}
			reason, broken := brokenReason(target)
			if !broken {
				continue
			}
			if link.Internal {
				brokenIntern++
			}
			report.BrokenLinks = append(report.BrokenLinks, domain.BrokenLink{
				Source:     p.URL,
				Target:     link.URL,
				StatusCode: target.StatusCode,
				Reason:     reason,
			})
		}
	}

	sort.Slice(report.BrokenLinks, func(i, j int) bool {
		a, b := report.BrokenLinks[i], report.BrokenLinks[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
	report.BrokenLinks = dedupeBroken(report.BrokenLinks)
	report.BrokenLinkCount = len(report.BrokenLinks)

	report.Duplicates, report.Issues = clusters(byHash), sortedIssues(issues)

	duplicatedPages := 0
	for _, c := range report.Duplicates {
		duplicatedPages += len(c.URLs) - 1
	}

	if htmlPages > 0 {
		report.AverageWordCount = float64(totalWords) / float64(htmlPages)
		report.SubScores = domain.SubScores{
			ContentVolume: math.Min(report.AverageWordCount/float64(cfg.TargetWords), 1),
			LinkHealth:    ratioScore(brokenIntern, internalLinks),
			Duplication:   ratioScore(duplicatedPages, report.PageCount),
			SEO:           float64(seoTotal) / float64(htmlPages) / 100,
		}
		n := float64(htmlPages)
		report.CategoryScores = domain.CategoryScores{
			SEO:           round2(categoryTotal.SEO / n),
			Accessibility: round2(categoryTotal.Accessibility / n),
			Performance:   round2(categoryTotal.Performance / n),
			Bugs:          round2(categoryTotal.Bugs / n),
		}
	}

	report.SiteScore = siteScore(report.SubScores, cfg.Weights)

	return report
}

// canonicalOrder copies facts sorted by URL with repeated URLs removed.
func canonicalOrder(facts []domain.ExtractedFacts) []domain.ExtractedFacts {
	pages := make([]domain.ExtractedFacts, len(facts))
	copy(pages, facts)

	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.StatusCode != b.StatusCode {
			return a.StatusCode < b.StatusCode
		}
		return a.ContentHash < b.ContentHash
	})

	out := pages[:0]
	for i := range pages {
		if i > 0 && pages[i].URL == pages[i-1].URL {
			continue
		}
		out = append(out, pages[i])
	}
	return out
}

// brokenReason reports whether a fetched target failed permanently: a 4xx
// other than 429, or a redirect loop.
func brokenReason(target *domain.ExtractedFacts) (string, bool) {
	switch {
	case target.FetchError == domain.FetchErrorTooManyRedirects:
		return string(domain.FetchErrorTooManyRedirects), true
	case target.StatusCode >= http.StatusBadRequest &&
		target.StatusCode < http.StatusInternalServerError &&
		target.StatusCode != http.StatusTooManyRequests:
		return fmt.Sprintf("http %d", target.StatusCode), true
	default:
		return "", false
	}
}

func dedupeBroken(links []domain.BrokenLink) []domain.BrokenLink {
	out := links[:0]
	for i := range links {
		if i > 0 && links[i].Source == links[i-1].Source && links[i].Target == links[i-1].Target {
			continue
		}
		out = append(out, links[i])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clusters(byHash map[string][]string) []domain.DuplicateCluster {
	var out []domain.DuplicateCluster
	for hash, urls := range byHash {
		if len(urls) < 2 {
			continue
		}
		sorted := append([]string(nil), urls...)
		sort.Strings(sorted)
		out = append(out, domain.DuplicateCluster{ContentHash: hash, URLs: sorted})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentHash < out[j].ContentHash })
	return out
}

func sortedIssues(issues map[string]*domain.IssueCount) []domain.IssueCount {
	if len(issues) == 0 {
		return nil
	}
	out := make([]domain.IssueCount, 0, len(issues))
	for _, ic := range issues {
		out = append(out, *ic)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		if a.Pages != b.Pages {
			return a.Pages > b.Pages
		}
		return a.Title < b.Title
	})
	return out
}

// ratioScore returns 1 - bad/total clamped to [0, 1]; an empty total scores 1.
func ratioScore(bad, total int) float64 {
	if total <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, 1-float64(bad)/float64(total)))
}

// siteScore is the weighted mean of the sub-scores scaled to [0, 100] and
// rounded to two decimals.
func siteScore(s domain.SubScores, w Weights) float64 {
	total := w.ContentVolume*s.ContentVolume +
		w.LinkHealth*s.LinkHealth +
		w.Duplication*s.Duplication +
		w.SEO*s.SEO
	score := 100 * total / w.sum()
	return math.Max(0, math.Min(100, round2(score)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
