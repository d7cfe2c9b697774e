package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// maxInlineStyles is the number of style attributes tolerated on a page.
const maxInlineStyles = 20

// Bug and accessibility issue titles.
const (
	IssueMissingCharset    = "Missing charset declaration"
	IssueEmptyLinks        = "Links with no destination"
	IssueLinksWithoutText  = "Links with no visible text or image"
	IssueUnlabeledInputs   = "Form inputs without labels"
	IssueEmptyButtons      = "Buttons with no accessible label"
	IssueDeprecatedTags    = "Deprecated HTML tags"
	IssueExcessInlineStyle = "Excessive inline styles"
)

var deprecatedTags = []string{"center", "font", "marquee", "blink", "frame", "frameset"}

// placeholderHrefs are href values that lead nowhere.
var placeholderHrefs = map[string]struct{}{
	"":                    {},
	"#":                   {},
	"javascript:void(0)":  {},
	"javascript:void(0);": {},
	"javascript:;":        {},
}

// nonLabelledInputs are input types that need no label.
var nonLabelledInputs = map[string]struct{}{
	"hidden": {}, "submit": {}, "button": {}, "reset": {}, "image": {},
}

// CheckBugs finds markup defects and accessibility problems in links,
// forms and buttons.
func CheckBugs(doc *goquery.Document) []domain.Issue {
	var issues []domain.Issue
	add := func(category string, severity domain.Severity, title, detail string) {
		issues = append(issues, domain.Issue{Category: category, Severity: severity, Title: title, Detail: detail})
	}

	if !hasCharsetDeclaration(doc) {
		add(CategoryBugs, domain.SeverityMedium, IssueMissingCharset, "No <meta charset> or Content-Type meta tag found.")
	}

	var emptyLinks, textless int
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if _, placeholder := placeholderHrefs[strings.ToLower(strings.TrimSpace(href))]; !ok || placeholder {
			emptyLinks++
		}
		if strings.TrimSpace(s.Text()) == "" && s.Find("img").Length() == 0 {
			textless++
		}
	})
	if emptyLinks > 0 {
		add(CategoryBugs, domain.SeverityMedium, IssueEmptyLinks,
			fmt.Sprintf("%d link(s) point to '#', javascript:void(0) or nothing.", emptyLinks))
	}
	if textless > 0 {
		add(CategoryAccessibility, domain.SeverityMedium, IssueLinksWithoutText,
			fmt.Sprintf("%d link(s) have neither text nor an image.", textless))
	}

	if n := unlabeledInputs(doc); n > 0 {
		add(CategoryAccessibility, domain.SeverityHigh, IssueUnlabeledInputs,
			fmt.Sprintf("%d input(s) have no <label>, aria-label or placeholder.", n))
	}

	emptyButtons := doc.Find("button").FilterFunction(func(_ int, s *goquery.Selection) bool {
		label, _ := s.Attr("aria-label")
		return strings.TrimSpace(s.Text()) == "" && s.Find("img").Length() == 0 && strings.TrimSpace(label) == ""
	}).Length()
	if emptyButtons > 0 {
		add(CategoryAccessibility, domain.SeverityMedium, IssueEmptyButtons,
			fmt.Sprintf("%d button(s) have no text or aria-label.", emptyButtons))
	}

	var found []string
	for _, tag := range deprecatedTags {
		if doc.Find(tag).Length() > 0 {
			found = append(found, "<"+tag+">")
		}
	}
	if len(found) > 0 {
		add(CategoryBugs, domain.SeverityMedium, IssueDeprecatedTags, "Found "+strings.Join(found, ", ")+".")
	}

	if n := doc.Find("[style]").Length(); n > maxInlineStyles {
		add(CategoryBugs, domain.SeverityLow, IssueExcessInlineStyle, fmt.Sprintf("%d elements carry a style attribute.", n))
	}

	return issues
}

func hasCharsetDeclaration(doc *goquery.Document) bool {
	if doc.Find("meta[charset]").Length() > 0 {
		return true
	}
	return doc.Find("meta[http-equiv]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("http-equiv")
		return strings.EqualFold(strings.TrimSpace(v), "content-type")
	}).Length() > 0
}

// unlabeledInputs counts inputs with no label (by id or by nesting), no
// aria-label and no placeholder.
func unlabeledInputs(doc *goquery.Document) int {
	labelled := map[string]struct{}{}
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		if id, _ := s.Attr("for"); id != "" {
			labelled[id] = struct{}{}
		}
	})

	count := 0
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if _, skip := nonLabelledInputs[strings.ToLower(strings.TrimSpace(typ))]; skip {
			return
		}
		if id, _ := s.Attr("id"); id != "" {
			if _, ok := labelled[id]; ok {
				return
			}
		}
		if s.ParentsFiltered("label").Length() > 0 {
			return
		}
		if aria, _ := s.Attr("aria-label"); strings.TrimSpace(aria) != "" {
			return
		}
		if ph, _ := s.Attr("placeholder"); strings.TrimSpace(ph) != "" {
			return
		}
		count++
	})
	return count
}
