// Package frontier manages the per-job set of URLs to visit: normalization,
// deduplication, breadth-first ordering and per-host politeness.
package frontier

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams lists query parameters that are stripped during normalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
	"mc_cid":       {},
	"mc_eid":       {},
}

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("normalize url: unsupported scheme")

	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
)

// NormalizeURL rewrites a raw URL so that equivalent forms compare equal.
// It lowercases scheme and host, removes default ports, resolves dot-segments
// and duplicate slashes, drops the fragment, strips tracking parameters and
// sorts the remaining query keys. The scheme is never changed and an empty
// path becomes "/". NormalizeURL is idempotent.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}

	return normalizeParsed(parsed), nil
}

// ExtractHost returns the normalized host (with any non-default port) of a URL.
func ExtractHost(rawURL string) (string, error) {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}

	return normalizeHost(parsed), nil
}

// RegistrableDomain returns the eTLD+1 of host using the public suffix list.
// IP literals, single-label hosts and hosts that are themselves public suffixes
// are returned unchanged.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}

	return etld1
}

// URLRegistrableDomain is RegistrableDomain applied to the host of rawURL.
func URLRegistrableDomain(rawURL string) (string, error) {
	host, err := ExtractHost(rawURL)
	if err != nil {
		return "", err
	}

	return RegistrableDomain(host), nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("normalize url: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		if scheme == "" {
			return nil, errMissingSchemeOrHost
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	if parsed.Host == "" || parsed.Hostname() == "" {
		return nil, errMissingSchemeOrHost
	}

	parsed.Scheme = scheme

	return parsed, nil
}

func normalizeParsed(u *url.URL) string {
	u.Host = normalizeHost(u)
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = buildCleanQuery(u.Query())
	u.ForceQuery = false
	u.Path = normalizePath(u.Path)
	u.RawPath = ""

	return u.String()
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL) string {
	hostname := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	port := u.Port()

	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}

	if port == "" || defaultPorts[u.Scheme] == port {
		return hostname
	}

	return hostname + ":" + port
}

// buildCleanQuery strips tracking parameters, sorts the remaining keys
// alphabetically, and returns the encoded query string.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))

	for key := range values {
		if _, isTracking := trackingParams[strings.ToLower(key)]; !isTracking {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		for j, val := range values[key] {
			if j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath resolves dot-segments and duplicate slashes. A trailing slash
// is kept since servers commonly treat "/docs" and "/docs/" differently.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean("/" + p)
	if cleaned != "/" && strings.HasSuffix(p, "/") {
		cleaned += "/"
	}

	return cleaned
}
