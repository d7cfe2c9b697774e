package domain

// DuplicateCluster groups pages sharing identical content.
type DuplicateCluster struct {
	ContentHash string   `json:"content_hash"`
	URLs        []string `json:"urls"`
}

// BrokenLink is an outbound link whose target failed permanently.
type BrokenLink struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	StatusCode int    `json:"status_code,omitempty"`
	Reason     string `json:"reason"`
}

// SubScores are the normalized components of the site score, each in [0, 1].
type SubScores struct {
	ContentVolume float64 `json:"content_volume"`
	LinkHealth    float64 `json:"link_health"`
	Duplication   float64 `json:"duplication"`
	SEO           float64 `json:"seo"`
}

// CategoryScores are per-category page quality scores in [0, 100], averaged
// over the HTML pages of a job.
type CategoryScores struct {
	SEO           float64 `json:"seo"`
	Accessibility float64 `json:"accessibility"`
	Performance   float64 `json:"performance"`
	Bugs          float64 `json:"bugs"`
}

// IssueCount tallies one issue title across the site.
type IssueCount struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Pages    int      `json:"pages"`
}

// AggregateReport is the site-level summary of one job.
type AggregateReport struct {
	JobID            string             `json:"job_id"`
	SeedURL          string             `json:"seed_url"`
	PageCount        int                `json:"page_count"`
	FailureCount     int                `json:"failure_count"`
	AverageWordCount float64            `json:"average_word_count"`
	BrokenLinkCount  int                `json:"broken_link_count"`
	BrokenLinks      []BrokenLink       `json:"broken_links,omitempty"`
	Duplicates       []DuplicateCluster `json:"duplicates,omitempty"`
	MaxDepth         int                `json:"max_depth"`
	SubScores        SubScores          `json:"sub_scores"`
	SiteScore        float64            `json:"site_score"`
	CategoryScores   CategoryScores     `json:"category_scores"`
	IssuesBySeverity map[Severity]int   `json:"issues_by_severity"`
	Issues           []IssueCount       `json:"issues,omitempty"`
}

// KeyValue is one row of a key/value section.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Table is a tabular section body.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Section is a titled part of a report document. Exactly one of Pairs or Table is set.
type Section struct {
	Title string     `json:"title"`
	Pairs []KeyValue `json:"pairs,omitempty"`
	Table *Table     `json:"table,omitempty"`
}

// Document is a renderer-agnostic report model.
type Document struct {
	Title    string    `json:"title"`
	JobID    string    `json:"job_id"`
	Sections []Section `json:"sections"`
}

// RenderedDocument is a document encoded by a renderer.
type RenderedDocument struct {
	JobID       string `json:"job_id"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
}
