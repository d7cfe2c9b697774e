package report

//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatXLSX     Format = "xlsx"
)

// DefaultFormat is used when no format is requested.
const DefaultFormat = FormatJSON

// Renderer encodes a document. Implementations must be pure.
type Renderer interface {
	Render(ctx context.Context, doc *domain.Document) ([]byte, string, error)
}

// ParseFormat validates a format name. An empty name selects DefaultFormat.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case "":
		return DefaultFormat, nil
	case "md":
		return FormatMarkdown, nil
	case "txt":
		return FormatText, nil
	case FormatJSON, FormatText, FormatMarkdown, FormatHTML, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension for documents in this format.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatMarkdown:
		return "md"
	case "":
		return string(DefaultFormat)
	default:
		return string(f)
	}
}

// NewRenderer returns the renderer for a format.
func NewRenderer(f Format) (Renderer, error) {
	switch f {
	case FormatJSON, "":
		return JSONRenderer{}, nil
	case FormatText, FormatMarkdown, FormatHTML:
		return TableRenderer{Format: f}, nil
	case FormatXLSX:
		return XLSXRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Formats lists the supported formats.
func Formats() []string {
	out := []string{
		string(FormatJSON), string(FormatText), string(FormatMarkdown),
		string(FormatHTML), string(FormatXLSX),
	}
	sort.Strings(out)
	return out
}

// Render assembles and encodes agg with r, wrapping failures as RenderError.
func Render(ctx context.Context, r Renderer, agg *domain.AggregateReport) (*domain.RenderedDocument, error) {
	doc, err := Assemble(agg)
	if err != nil {
		return nil, err
	}

	body, contentType, err := r.Render(ctx, doc)
	if err != nil {
		return nil, &RenderError{Stage: "render", Err: err}
	}

	return &domain.RenderedDocument{JobID: agg.JobID, ContentType: contentType, Body: body}, nil
}
