package domain

import (
	"net/http"
	"time"
)

// FetchErrorKind classifies why a fetch did not produce a usable response.
type FetchErrorKind string

// Fetch error kinds.
const (
	FetchErrorNone             FetchErrorKind = ""
	FetchErrorTimeout          FetchErrorKind = "timeout"
	FetchErrorConnectionFailed FetchErrorKind = "connection_failed"
	FetchErrorHTTPStatus       FetchErrorKind = "http_status"
	FetchErrorTooManyRedirects FetchErrorKind = "too_many_redirects"
)

// ExtractionErrorKind classifies extraction problems on a fetched page.
type ExtractionErrorKind string

// Extraction error kinds.
const (
	ExtractionErrorNone                   ExtractionErrorKind = ""
	ExtractionErrorMalformedContent       ExtractionErrorKind = "malformed_content"
	ExtractionErrorUnsupportedContentType ExtractionErrorKind = "unsupported_content_type"
)

// PageFetchResult is the outcome of fetching one frontier entry.
type PageFetchResult struct {
	URL         string
	FinalURL    string
	Depth       int
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	Latency     time.Duration
	Attempts    int
	Err         error
	ErrKind     FetchErrorKind
	FetchedAt   time.Time
}

// Failed reports whether the page counts as a failed page.
func (r *PageFetchResult) Failed() bool {
	return r.Err != nil || r.StatusCode >= http.StatusBadRequest
}

// Link is an outbound link discovered on a page.
type Link struct {
	URL      string `json:"url"`
	Internal bool   `json:"internal"`
}

// Severity ranks an SEO issue.
type Severity string

// Issue severities.
const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Issue categories.
const (
	CategorySEO           = "SEO"
	CategoryAccessibility = "Accessibility"
	CategoryPerformance   = "Performance"
	CategoryBugs          = "Bugs"
)

// Issue is a single quality finding on a page.
type Issue struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail,omitempty"`
}

// ExtractedFacts are the structured facts derived from one fetched page.
type ExtractedFacts struct {
	URL              string              `json:"url"`
	FinalURL         string              `json:"final_url,omitempty"`
	Depth            int                 `json:"depth"`
	StatusCode       int                 `json:"status_code"`
	ContentType      string              `json:"content_type,omitempty"`
	Size             int                 `json:"size"`
	LatencyMS        int64               `json:"latency_ms"`
	Title            string              `json:"title,omitempty"`
	MetaDescription  string              `json:"meta_description,omitempty"`
	Headings         []string            `json:"headings,omitempty"`
	WordCount        int                 `json:"word_count"`
	Links            []Link              `json:"links,omitempty"`
	ImageCount       int                 `json:"image_count"`
	ImagesMissingAlt int                 `json:"images_missing_alt"`
	ContentHash      string              `json:"content_hash,omitempty"`
	Issues           []Issue             `json:"issues,omitempty"`
	FetchError       FetchErrorKind      `json:"fetch_error,omitempty"`
	FetchErrorDetail string              `json:"fetch_error_detail,omitempty"`
	ExtractionError  ExtractionErrorKind `json:"extraction_error,omitempty"`
}

// Failed reports whether the page's fetch failed. Unsupported content types and
// malformed markup are recorded but do not make a page failed.
func (f *ExtractedFacts) Failed() bool {
	return f.FetchError != FetchErrorNone || f.StatusCode >= http.StatusBadRequest
}

// IsHTML reports whether full extraction ran on the page.
func (f *ExtractedFacts) IsHTML() bool {
	return !f.Failed() && f.ExtractionError != ExtractionErrorUnsupportedContentType
}
