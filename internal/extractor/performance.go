package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// Performance thresholds.
const (
	slowResponseMS        = 3000
	highResponseMS        = 1500
	veryLargeHTMLBytes    = 500 * 1024
	largeHTMLBytes        = 150 * 1024
	maxBlockingScriptsLow = 3
	maxStylesheets        = 6
	maxExternalScripts    = 10
	minImagesForLazy      = 3
	unminifiedCSSChars    = 2000
	unminifiedCSSLines    = 50
)

// Performance issue titles.
const (
	IssueNotHTTPS            = "Site not served over HTTPS"
	IssueSlowResponse        = "Slow server response time"
	IssueHighResponse        = "High server response time"
	IssueVeryLargeHTML       = "HTML document is very large"
	IssueLargeHTML           = "HTML document is large"
	IssueRenderBlocking      = "Render-blocking scripts in <head>"
	IssueManyStylesheets     = "Many external stylesheets"
	IssueManyScripts         = "High number of external scripts"
	IssueNoLazyImages        = "No images use lazy loading"
	IssueUnminifiedInlineCSS = "Inline CSS appears unminified"
	IssueMissingFavicon      = "No favicon found"
)

// CheckPerformance estimates load performance from the fetch timing, the
// document size and the markup.
func CheckPerformance(doc *goquery.Document, facts *domain.ExtractedFacts) []domain.Issue {
	var issues []domain.Issue
	add := func(severity domain.Severity, title, detail string) {
		issues = append(issues, domain.Issue{Category: CategoryPerformance, Severity: severity, Title: title, Detail: detail})
	}

	pageURL := facts.FinalURL
	if pageURL == "" {
		pageURL = facts.URL
	}
	if u, err := url.Parse(pageURL); err == nil && strings.EqualFold(u.Scheme, "http") {
		add(domain.SeverityHigh, IssueNotHTTPS, "The page is served over plain HTTP.")
	}

	switch ms := facts.LatencyMS; {
	case ms > slowResponseMS:
		add(domain.SeverityHigh, IssueSlowResponse, fmt.Sprintf("The server took %dms to respond. Target under 600ms.", ms))
	case ms > highResponseMS:
		add(domain.SeverityMedium, IssueHighResponse, fmt.Sprintf("The server took %dms to respond.", ms))
	}

	switch kb := float64(facts.Size) / 1024; {
	case facts.Size > veryLargeHTMLBytes:
		add(domain.SeverityHigh, IssueVeryLargeHTML, fmt.Sprintf("The HTML is %.1f KB.", kb))
	case facts.Size > largeHTMLBytes:
		add(domain.SeverityMedium, IssueLargeHTML, fmt.Sprintf("The HTML is %.1f KB.", kb))
	}

	blocking := doc.Find("head script[src]").Not("[async], [defer]").Length()
	if blocking > 0 {
		severity := domain.SeverityMedium
		if blocking > maxBlockingScriptsLow {
			severity = domain.SeverityHigh
		}
		add(severity, IssueRenderBlocking, fmt.Sprintf("%d script(s) in <head> without async or defer.", blocking))
	}

	stylesheets := doc.Find("link").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return relContains(s, "stylesheet")
	}).Length()
	if stylesheets > maxStylesheets {
		add(domain.SeverityMedium, IssueManyStylesheets, fmt.Sprintf("%d stylesheets are linked.", stylesheets))
	}

	if scripts := doc.Find("script[src]").Length(); scripts > maxExternalScripts {
		add(domain.SeverityMedium, IssueManyScripts, fmt.Sprintf("%d external scripts are loaded.", scripts))
	}

	if facts.ImageCount > minImagesForLazy {
		lazy := doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
			loading, _ := s.Attr("loading")
			return strings.EqualFold(strings.TrimSpace(loading), "lazy")
		}).Length()
		if lazy == 0 {
			add(domain.SeverityMedium, IssueNoLazyImages, fmt.Sprintf("None of %d images use loading=\"lazy\".", facts.ImageCount))
		}
	}

	doc.Find("style").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		css := s.Text()
		if len(css) > unminifiedCSSChars && strings.Count(css, "\n") > unminifiedCSSLines {
			add(domain.SeverityLow, IssueUnminifiedInlineCSS, "A large inline <style> block is not minified.")
			return false
		}
		return true
	})

	favicon := doc.Find("link").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return relContains(s, "icon")
	}).Length()
	if favicon == 0 {
		add(domain.SeverityLow, IssueMissingFavicon, "No <link rel=\"icon\"> found.")
	}

	return issues
}

// relContains reports whether any rel token of s contains want.
func relContains(s *goquery.Selection, want string) bool {
	rel, _ := s.Attr("rel")
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if strings.Contains(token, want) {
			return true
		}
	}
	return false
}
