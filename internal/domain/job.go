// Package domain provides domain models used across WebPulse.
package domain

import (
	"time"
)

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

// Job lifecycle states.
const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusCrawling    JobStatus = "crawling"
	JobStatusAggregating JobStatus = "aggregating"
	JobStatusRendering   JobStatus = "rendering"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job configuration defaults.
const (
	DefaultMaxPages       = 100
	DefaultMaxDepth       = 3
	DefaultConcurrency    = 4
	DefaultFetchTimeoutMS = 10000
)

// JobConfig holds the per-job crawl limits.
type JobConfig struct {
	MaxPages       int  `json:"max_pages"        mapstructure:"max_pages"`
	MaxDepth       int  `json:"max_depth"        mapstructure:"max_depth"`
	Concurrency    int  `json:"concurrency"      mapstructure:"concurrency"`
	SameDomainOnly bool `json:"same_domain_only" mapstructure:"same_domain_only"`
	FetchTimeoutMS int  `json:"fetch_timeout_ms" mapstructure:"fetch_timeout_ms"`
}

// DefaultJobConfig returns the configuration applied when a caller specifies nothing.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		MaxPages:       DefaultMaxPages,
		MaxDepth:       DefaultMaxDepth,
		Concurrency:    DefaultConcurrency,
		SameDomainOnly: true,
		FetchTimeoutMS: DefaultFetchTimeoutMS,
	}
}

// JobRequest is a caller's requested job configuration. Nil fields take the
// configured defaults, so an explicit zero (such as max_depth 0) is kept.
type JobRequest struct {
	MaxPages       *int  `json:"max_pages,omitempty"`
	MaxDepth       *int  `json:"max_depth,omitempty"`
	Concurrency    *int  `json:"concurrency,omitempty"`
	SameDomainOnly *bool `json:"same_domain_only,omitempty"`
	FetchTimeoutMS *int  `json:"fetch_timeout_ms,omitempty"`
}

// FetchTimeout returns the per-attempt fetch timeout.
func (c JobConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// JobCounts are the live progress counters of a job.
type JobCounts struct {
	Admitted  int `json:"admitted"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Issues totals the issues raised on the job's pages. It is filled in
	// once the job has been aggregated.
	Issues IssueTotals `json:"issues"`
}

// IssueTotals counts issues by severity.
type IssueTotals struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// NewIssueTotals folds a per-severity map into totals.
func NewIssueTotals(bySeverity map[Severity]int) IssueTotals {
	return IssueTotals{
		High:   bySeverity[SeverityHigh],
		Medium: bySeverity[SeverityMedium],
		Low:    bySeverity[SeverityLow],
	}
}

// Add returns the element-wise sum of t and o.
func (t IssueTotals) Add(o IssueTotals) IssueTotals {
	return IssueTotals{High: t.High + o.High, Medium: t.Medium + o.Medium, Low: t.Low + o.Low}
}

// CrawlJob represents one crawl of one site.
type CrawlJob struct {
	ID         string     `json:"id"`
	SeedURL    string     `json:"seed_url"`
	Config     JobConfig  `json:"config"`
	Status     JobStatus  `json:"status"`
	Counts     JobCounts  `json:"counts"`
	Summary    string     `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
	SiteScore  *float64   `json:"site_score,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
