package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by an adapter matches exactly one of
// these with errors.Is.
var (
	// ErrNotConfigured reports a missing credential or endpoint.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrInvalidURL reports a URL the adapter does not accept.
	ErrInvalidURL = errors.New("invalid listing url")
	// ErrNoData reports a well-formed but empty upstream response.
	ErrNoData = errors.New("no data returned")
	// ErrTransport reports a network failure or unexpected HTTP status.
	ErrTransport = errors.New("transport failure")
	// ErrUpstream reports a malformed upstream response or a failed job.
	ErrUpstream = errors.New("upstream failure")
)

// Error carries the provider, the failing operation and the kind of
// failure. StatusCode and Status are set when the upstream reported them.
type Error struct {
	Provider   string
	Op         string
	Kind       error
	StatusCode int
	Status     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Status != "" {
		fmt.Fprintf(&b, " (status %s)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an *Error of the given kind.
func NewError(provider, op string, kind, cause error) *Error {
	return &Error{Provider: provider, Op: op, Kind: kind, Err: cause}
}

// KindOf returns the sentinel kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotConfigured, ErrInvalidURL, ErrNoData, ErrTransport, ErrUpstream} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
