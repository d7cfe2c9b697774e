package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// Issue categories.
const (
	CategorySEO           = domain.CategorySEO
	CategoryAccessibility = domain.CategoryAccessibility
	CategoryPerformance   = domain.CategoryPerformance
	CategoryBugs          = domain.CategoryBugs
)

// Title and description length bounds, in characters.
const (
	minTitleLen       = 10
	maxTitleLen       = 70
	minDescriptionLen = 50
	maxDescriptionLen = 165
)

// Issue titles. Titles are stable so issues aggregate across pages.
const (
	IssueMissingTitle       = "Missing page title"
	IssueShortTitle         = "Page title too short"
	IssueLongTitle          = "Page title too long"
	IssueMissingDescription = "Missing meta description"
	IssueShortDescription   = "Meta description too short"
	IssueLongDescription    = "Meta description too long"
	IssueMissingH1          = "Missing H1 tag"
	IssueMultipleH1         = "Multiple H1 tags"
	IssueHeadingSkip        = "Heading hierarchy skips a level"
	IssueMissingCanonical   = "Missing canonical tag"
	IssueNoindex            = "Page set to noindex"
	IssueMissingLang        = "Missing lang attribute on <html>"
	IssueMissingViewport    = "Missing viewport meta tag"
	IssueImagesMissingAlt   = "Images missing alt text"
)

// CheckSEO runs on-page SEO and accessibility checks.
func CheckSEO(doc *goquery.Document, facts *domain.ExtractedFacts) []domain.Issue {
	var issues []domain.Issue
	add := func(category string, severity domain.Severity, title, detail string) {
		issues = append(issues, domain.Issue{Category: category, Severity: severity, Title: title, Detail: detail})
	}

	switch n := len([]rune(facts.Title)); {
	case n == 0:
		add(CategorySEO, domain.SeverityHigh, IssueMissingTitle, "No <title> tag found in the <head> section.")
	case n < minTitleLen:
		add(CategorySEO, domain.SeverityMedium, IssueShortTitle, fmt.Sprintf("Title is only %d characters. Aim for 50-60.", n))
	case n > maxTitleLen:
		add(CategorySEO, domain.SeverityLow, IssueLongTitle, fmt.Sprintf("Title is %d characters. Keep it under %d.", n, maxTitleLen))
	}

	switch n := len([]rune(facts.MetaDescription)); {
	case n == 0:
		add(CategorySEO, domain.SeverityHigh, IssueMissingDescription, "No meta description found.")
	case n < minDescriptionLen:
		add(CategorySEO, domain.SeverityMedium, IssueShortDescription, fmt.Sprintf("Meta description is only %d characters. Aim for 120-160.", n))
	case n > maxDescriptionLen:
		add(CategorySEO, domain.SeverityLow, IssueLongDescription, fmt.Sprintf("Meta description is %d characters. Keep it under %d.", n, maxDescriptionLen))
	}

	switch h1 := doc.Find("h1").Length(); {
	case h1 == 0:
		add(CategorySEO, domain.SeverityHigh, IssueMissingH1, "No H1 heading found.")
	case h1 > 1:
		add(CategorySEO, domain.SeverityMedium, IssueMultipleH1, fmt.Sprintf("Found %d H1 tags. Use exactly one.", h1))
	}

	if from, to, skipped := headingSkip(doc); skipped {
		add(CategorySEO, domain.SeverityLow, IssueHeadingSkip, fmt.Sprintf("Heading levels jump from H%d to H%d.", from, to))
	}

	if doc.Find("link[rel='canonical']").Length() == 0 {
		add(CategorySEO, domain.SeverityLow, IssueMissingCanonical, "No <link rel=\"canonical\"> found.")
	}

	if robots, ok := metaContent(doc, "robots"); ok && strings.Contains(strings.ToLower(robots), "noindex") {
		add(CategorySEO, domain.SeverityHigh, IssueNoindex, "The robots meta tag prevents indexing.")
	}

	if lang, _ := doc.Find("html").First().Attr("lang"); strings.TrimSpace(lang) == "" {
		add(CategoryAccessibility, domain.SeverityMedium, IssueMissingLang, "The <html> tag has no lang attribute.")
	}

	if _, ok := metaContent(doc, "viewport"); !ok {
		add(CategoryAccessibility, domain.SeverityHigh, IssueMissingViewport, "No <meta name=\"viewport\"> found.")
	}

	if facts.ImagesMissingAlt > 0 {
		add(CategoryAccessibility, domain.SeverityHigh, IssueImagesMissingAlt,
			fmt.Sprintf("%d of %d images have no alt attribute.", facts.ImagesMissingAlt, facts.ImageCount))
	}

	return issues
}

// headingSkip finds the first gap between heading levels present on the page.
func headingSkip(doc *goquery.Document) (from, to int, skipped bool) {
	prev := 0
	for level := 1; level <= 6; level++ {
		if doc.Find(fmt.Sprintf("h%d", level)).Length() == 0 {
			continue
		}
		if prev > 0 && level-prev > 1 {
			return prev, level, true
		}
		prev = level
	}
	return 0, 0, false
}
