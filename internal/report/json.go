package report

import (
	"context"
	"encoding/json"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// JSONRenderer encodes documents as indented JSON.
type JSONRenderer struct{}

// Render implements Renderer.
func (JSONRenderer) Render(_ context.Context, doc *domain.Document) ([]byte, string, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}
