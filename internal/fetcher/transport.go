package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is the raw outcome of one HTTP attempt.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// ContentType returns the response's Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Transport performs a single network fetch. Retry, backoff and circuit
// breaking are the pool's job.
type Transport interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error)
}

// HTTPTransport is a Transport backed by net/http.
type HTTPTransport struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPTransport creates a transport that follows at most cfg.MaxRedirects
// redirects and reads at most cfg.MaxBodyBytes of each body.
func NewHTTPTransport(cfg Config) *HTTPTransport {
	cfg = cfg.WithDefaults()

	return &HTTPTransport{
		client: &http.Client{
			CheckRedirect: RedirectPolicy(cfg.MaxRedirects),
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch performs a GET with a per-attempt timeout.
func (t *HTTPTransport) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, doErr := t.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("http fetch: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}
