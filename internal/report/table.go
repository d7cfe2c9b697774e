package report

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// TableRenderer encodes documents as text, Markdown or HTML tables.
type TableRenderer struct {
	Format Format
}

// Render implements Renderer.
func (r TableRenderer) Render(ctx context.Context, doc *domain.Document) ([]byte, string, error) {
	var b strings.Builder

	switch r.Format {
	case FormatText:
		fmt.Fprintf(&b, "%s\n\n", doc.Title)
	case FormatMarkdown:
		fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	case FormatHTML:
		fmt.Fprintf(&b, "<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<h1>%s</h1>\n",
			html.EscapeString(doc.Title), html.EscapeString(doc.Title))
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, r.Format)
	}

	for _, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		t := sectionTable(section)

		switch r.Format {
		case FormatText:
			t.SetStyle(table.StyleLight)
			fmt.Fprintf(&b, "%s\n%s\n\n", section.Title, t.Render())
		case FormatMarkdown:
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", section.Title, t.RenderMarkdown())
		case FormatHTML:
			fmt.Fprintf(&b, "<h2>%s</h2>\n%s\n", html.EscapeString(section.Title), t.RenderHTML())
		}
	}

	if r.Format == FormatHTML {
		b.WriteString("</body>\n</html>\n")
	}

	return []byte(b.String()), contentTypeFor(r.Format), nil
}

func contentTypeFor(f Format) string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// sectionTable builds a go-pretty table for a key/value or tabular section.
func sectionTable(section domain.Section) table.Writer {
	t := table.NewWriter()

	if section.Table != nil {
		t.AppendHeader(toRow(section.Table.Columns))
		for _, row := range section.Table.Rows {
			t.AppendRow(toRow(row))
		}
		if len(section.Table.Rows) == 0 {
			t.AppendFooter(table.Row{"none"})
		}
		return t
	}

	t.AppendHeader(table.Row{"Metric", "Value"})
	for _, kv := range section.Pairs {
		t.AppendRow(table.Row{kv.Key, kv.Value})
	}
	return t
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
