// Package report turns aggregate reports into renderer-agnostic documents
// and encodes them in several output formats.
package report

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// Section titles, in document order.
const (
	SectionSummary    = "Summary"
	SectionScores     = "Scores"
	SectionDuplicates = "Duplicate Content"
	SectionBroken     = "Broken Links"
	SectionIssues     = "Issues"
)

var errMissingJobID = errors.New("aggregate has no job id")

// Assemble maps an aggregate report to a document. It makes no formatting
// decisions beyond turning values into strings.
func Assemble(agg *domain.AggregateReport) (*domain.Document, error) {
	if agg == nil {
		return nil, &RenderError{Stage: "assemble", Err: errors.New("nil aggregate")}
	}
	if agg.JobID == "" {
		return nil, &RenderError{Stage: "assemble", Err: errMissingJobID}
	}

	doc := &domain.Document{
		Title: "Site report for " + agg.SeedURL,
		JobID: agg.JobID,
	}

	doc.Sections = append(doc.Sections,
		domain.Section{Title: SectionSummary, Pairs: []domain.KeyValue{
			{Key: "Job ID", Value: agg.JobID},
			{Key: "Seed URL", Value: agg.SeedURL},
			{Key: "Pages crawled", Value: strconv.Itoa(agg.PageCount)},
			{Key: "Failed pages", Value: strconv.Itoa(agg.FailureCount)},
			{Key: "Average word count", Value: fmt.Sprintf("%.1f", agg.AverageWordCount)},
			{Key: "Broken links", Value: strconv.Itoa(agg.BrokenLinkCount)},
			{Key: "Duplicate clusters", Value: strconv.Itoa(len(agg.Duplicates))},
			{Key: "Max depth reached", Value: strconv.Itoa(agg.MaxDepth)},
			{Key: "High severity issues", Value: strconv.Itoa(agg.IssuesBySeverity[domain.SeverityHigh])},
			{Key: "Medium severity issues", Value: strconv.Itoa(agg.IssuesBySeverity[domain.SeverityMedium])},
			{Key: "Low severity issues", Value: strconv.Itoa(agg.IssuesBySeverity[domain.SeverityLow])},
			{Key: "Site score", Value: fmt.Sprintf("%.2f", agg.SiteScore)},
		}},
		domain.Section{Title: SectionScores, Pairs: []domain.KeyValue{
			{Key: "Content volume", Value: score(agg.SubScores.ContentVolume)},
			{Key: "Link health", Value: score(agg.SubScores.LinkHealth)},
			{Key: "Duplication", Value: score(agg.SubScores.Duplication)},
			{Key: "SEO", Value: score(agg.SubScores.SEO)},
			{Key: "SEO category", Value: categoryScore(agg.CategoryScores.SEO)},
			{Key: "Accessibility category", Value: categoryScore(agg.CategoryScores.Accessibility)},
			{Key: "Performance category", Value: categoryScore(agg.CategoryScores.Performance)},
			{Key: "Bugs category", Value: categoryScore(agg.CategoryScores.Bugs)},
		}},
		duplicateSection(agg.Duplicates),
		brokenSection(agg.BrokenLinks),
		issueSection(agg.Issues),
	)

	return doc, nil
}

func score(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func categoryScore(v float64) string {
	return fmt.Sprintf("%.1f / 100", v)
}

func duplicateSection(clusters []domain.DuplicateCluster) domain.Section {
	table := &domain.Table{Columns: []string{"Cluster", "Content hash", "URL"}}
	for i, c := range clusters {
		for _, u := range c.URLs {
			table.Rows = append(table.Rows, []string{strconv.Itoa(i + 1), shortHash(c.ContentHash), u})
		}
	}
	return domain.Section{Title: SectionDuplicates, Table: table}
}

func brokenSection(links []domain.BrokenLink) domain.Section {
	table := &domain.Table{Columns: []string{"Source", "Target", "Status", "Reason"}}
	for _, l := range links {
		status := ""
		if l.StatusCode > 0 {
			status = strconv.Itoa(l.StatusCode)
		}
		table.Rows = append(table.Rows, []string{l.Source, l.Target, status, l.Reason})
	}
	return domain.Section{Title: SectionBroken, Table: table}
}

func issueSection(issues []domain.IssueCount) domain.Section {
	table := &domain.Table{Columns: []string{"Severity", "Category", "Issue", "Pages"}}
	for _, ic := range issues {
		table.Rows = append(table.Rows, []string{string(ic.Severity), ic.Category, ic.Title, strconv.Itoa(ic.Pages)})
	}
	return domain.Section{Title: SectionIssues, Table: table}
}

func shortHash(h string) string {
	const n = 12
	if len(h) > n {
		return h[:n]
	}
	return h
}
