package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ParseURL parses rawURL after trimming it. A missing scheme defaults to
// https so bare hosts such as "www.example.com/x" are accepted.
func ParseURL(rawURL string) (*url.URL, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return nil, errors.New("parse url: empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, errors.New("parse url: missing host")
	}
	return u, nil
}

// Hostname returns the lower-cased host of rawURL, or "" when unparseable.
func Hostname(rawURL string) string {
	u, err := ParseURL(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// HostIn reports whether host equals domain or is a subdomain of it.
func HostIn(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// TrimQuerySeparators strips trailing '?' and '&' characters.
func TrimQuerySeparators(s string) string {
	return strings.TrimRight(s, "?&")
}

// WithQuery returns endpoint with key=value added to its query string.
func WithQuery(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// JoinPath appends path segments to base, escaping each segment.
func JoinPath(base string, segments ...string) (string, error) {
	out, err := url.JoinPath(base, segments...)
	if err != nil {
		return "", fmt.Errorf("join endpoint: %w", err)
	}
	return out, nil
}

// StripQuery removes the query string and fragment from rawURL.
func StripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
