// Package extractor turns fetched pages into structured page facts.
package extractor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/frontier"
)

// nonVisibleSelectors lists elements whose text is not rendered.
const nonVisibleSelectors = "script, style, noscript, template"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skippedSchemes are link schemes never followed or recorded.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Extractor extracts page facts. It is safe for concurrent use.
type Extractor struct {
	isInternal func(rawURL string) bool
}

// New creates an extractor. isInternal classifies outbound links; it is
// normally the job frontier's same-site check.
func New(isInternal func(rawURL string) bool) *Extractor {
	if isInternal == nil {
		isInternal = func(string) bool { return false }
	}
	return &Extractor{isInternal: isInternal}
}

// Extract builds facts for one fetch result. Failed fetches yield facts that
// carry only the failure; non-HTML content yields size and type only.
// Malformed HTML is extracted best-effort and flagged.
func (e *Extractor) Extract(res *domain.PageFetchResult) *domain.ExtractedFacts {
	facts := &domain.ExtractedFacts{
		URL:         res.URL,
		FinalURL:    res.FinalURL,
		Depth:       res.Depth,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Size:        len(res.Body),
		LatencyMS:   res.Latency.Milliseconds(),
		FetchError:  res.ErrKind,
	}
	if res.Err != nil {
		facts.FetchErrorDetail = res.Err.Error()
		if facts.FetchError == domain.FetchErrorNone {
			facts.FetchError = domain.FetchErrorConnectionFailed
		}
	}

	if facts.Failed() {
		return facts
	}

	if !isHTML(res.ContentType, res.Body) {
		facts.ExtractionError = domain.ExtractionErrorUnsupportedContentType
		return facts
	}

	text, malformed := decode(res.Body, res.ContentType)
	if malformed || looksMalformed(text) {
		facts.ExtractionError = domain.ExtractionErrorMalformedContent
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		facts.ExtractionError = domain.ExtractionErrorMalformedContent
		return facts
	}

	baseURL := res.FinalURL
	if baseURL == "" {
		baseURL = res.URL
	}

	facts.Title = extractPageTitle(doc)
	facts.MetaDescription = extractMetaDescription(doc)
	facts.Headings = extractHeadings(doc)
	facts.ImageCount, facts.ImagesMissingAlt = countImages(doc)
	facts.Links = e.extractLinks(doc, baseURL)

	visible := visibleText(doc)
	facts.WordCount = len(strings.Fields(visible))
	facts.ContentHash = computeHash(visible)
	facts.Issues = CheckSEO(doc, facts)
	facts.Issues = append(facts.Issues, CheckBugs(doc)...)
	facts.Issues = append(facts.Issues, CheckPerformance(doc, facts)...)

	return facts
}

// isHTML reports whether the content type (or, when absent, the sniffed body)
// is in the HTML family.
func isHTML(contentType string, body []byte) bool {
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(body)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decode converts body to UTF-8 using the declared or sniffed charset. The
// second result is true when a UTF-8 body holds invalid byte sequences or
// the declared charset cannot decode it.
func decode(body []byte, contentType string) (string, bool) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		body = bytes.TrimPrefix(body, utf8BOM)
		if !utf8.Valid(body) {
			return strings.ToValidUTF8(string(body), "\uFFFD"), true
		}
		return string(body), false
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), "\uFFFD"), true
	}
	return string(decoded), false
}

// extractPageTitle extracts the page title, preferring <title> then og:title fallback.
func extractPageTitle(doc *goquery.Document) string {
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return collapse(ogTitle)
	}

	return ""
}

// extractMetaDescription extracts the description from meta tags.
func extractMetaDescription(doc *goquery.Document) string {
	desc, _ := metaContent(doc, "description")
	return collapse(desc)
}

// metaContent returns the content of the first <meta name=...> whose name
// matches case-insensitively.
func metaContent(doc *goquery.Document, name string) (string, bool) {
	var (
		content string
		found   bool
	)
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n, _ := s.Attr("name"); strings.EqualFold(strings.TrimSpace(n), name) {
			content, _ = s.Attr("content")
			found = true
			return false
		}
		return true
	})
	return content, found
}

func extractHeadings(doc *goquery.Document) []string {
	var headings []string
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})
	return headings
}

// countImages returns the number of images and those without an alt
// attribute. An empty alt marks a decorative image and is not counted.
func countImages(doc *goquery.Document) (total, missingAlt int) {
	imgs := doc.Find("img")
	imgs.Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("alt"); !ok {
			missingAlt++
		}
	})
	return imgs.Length(), missingAlt
}

// extractLinks resolves anchors against the page (or its <base href>) and
// returns each distinct normalized http(s) target once, in document order.
func (e *Extractor) extractLinks(doc *goquery.Document, pageURL string) []domain.Link {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, bErr := base.Parse(strings.TrimSpace(href)); bErr == nil {
			base = b
		}
	}

	seen := make(map[string]struct{})
	var links []domain.Link

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}

		resolved, resErr := base.Parse(href)
		if resErr != nil {
			return
		}

		normalized, normErr := frontier.NormalizeURL(resolved.String())
		if normErr != nil {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}

		links = append(links, domain.Link{URL: normalized, Internal: e.isInternal(normalized)})
	})

	return links
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// visibleText returns the body text with non-rendered elements removed.
func visibleText(doc *goquery.Document) string {
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	clone := root.Clone()
	clone.Find(nonVisibleSelectors).Remove()

	return clone.Text()
}

// computeHash returns the hex-encoded SHA-256 digest of the lowercased,
// whitespace-collapsed text. Pages without visible text have no hash.
func computeHash(text string) string {
	normalized := strings.ToLower(collapse(text))
	if normalized == "" {
		return ""
	}

	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
