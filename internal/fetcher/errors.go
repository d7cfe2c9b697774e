package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/retry"
)

// ErrCircuitOpen marks attempts short-circuited by an open host breaker.
var ErrCircuitOpen = errors.New("host circuit open")

// FetchError describes why a fetch did not produce a usable response.
type FetchError struct {
	Kind       domain.FetchErrorKind
	URL        string
	StatusCode int
	Err        error

	retryAfter    time.Duration
	hasRetryAfter bool
	shortCircuit  bool
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case domain.FetchErrorHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case domain.FetchErrorTimeout, domain.FetchErrorConnectionFailed, domain.FetchErrorTooManyRedirects:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry. Timeouts,
// connection failures, 5xx and 429 are transient; short-circuited attempts
// are not retried.
func (e *FetchError) Transient() bool {
	if e.shortCircuit {
		return false
	}

	switch e.Kind {
	case domain.FetchErrorTimeout, domain.FetchErrorConnectionFailed:
		return true
	case domain.FetchErrorHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// RetryAfter returns the server-requested delay for 429 responses.
func (e *FetchError) RetryAfter() (time.Duration, bool) {
	return e.retryAfter, e.hasRetryAfter
}

// ShortCircuited reports whether the attempt was rejected by an open breaker.
func (e *FetchError) ShortCircuited() bool {
	return e.shortCircuit
}

func isTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient()
}

// classifyTransportError maps a transport-level error to a FetchError.
func classifyTransportError(rawURL string, err error) *FetchError {
	kind := domain.FetchErrorConnectionFailed

	var netErr net.Error
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		kind = domain.FetchErrorTooManyRedirects
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.FetchErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.FetchErrorTimeout
	}

	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}

func statusError(rawURL string, resp *Response, now time.Time) *FetchError {
	fe := &FetchError{Kind: domain.FetchErrorHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		fe.retryAfter, fe.hasRetryAfter = retry.ParseRetryAfter(resp.Header.Get("Retry-After"), now)
	}
	return fe
}

func circuitOpenError(rawURL string, err error) *FetchError {
	return &FetchError{
		Kind:         domain.FetchErrorConnectionFailed,
		URL:          rawURL,
		Err:          fmt.Errorf("%w: %w", ErrCircuitOpen, err),
		shortCircuit: true,
	}
}
