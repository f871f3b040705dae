package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/JakeFAU/listing-scraper/internal/metrics"
)

const maxResponseBytes = 64 << 20

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client whose dials give up after connectTimeout.
// Overall call deadlines are applied per request through the context.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return &http.Client{Transport: transport}
}

// Call describes one JSON request to a back-end.
type Call struct {
	Provider string
	// Endpoint labels the call in metrics and errors.
	Endpoint string
	Method   string
	URL      string
	Header   http.Header
	// Body is encoded as JSON when non-nil.
	Body    any
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do performs call with its own deadline and reads the whole body. Failing
// to reach the server or to read the body is reported as ErrTransport; the
// status code is left for the caller to judge.
func Do(ctx context.Context, client HTTPDoer, call Call) (*Response, error) {
	start := time.Now()
	resp, err := do(ctx, client, call)
	metrics.ObserveUpstream(call.Provider, call.Endpoint, err, time.Since(start))
	return resp, err
}

func do(ctx context.Context, client HTTPDoer, call Call) (*Response, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	var body io.Reader
	if call.Body != nil {
		raw, err := json.Marshal(call.Body)
		if err != nil {
			return nil, NewError(call.Provider, call.Endpoint, ErrTransport, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return nil, NewError(call.Provider, call.Endpoint, ErrTransport, fmt.Errorf("build request: %w", redact(err)))
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewError(call.Provider, call.Endpoint, ErrTransport, redact(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewError(call.Provider, call.Endpoint, ErrTransport, fmt.Errorf("read response: %w", err))
	}
	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError builds an error of kind for an unexpected status code,
// keeping a short excerpt of the body for diagnostics.
func (r *Response) StatusError(provider, op string, kind error) *Error {
	e := NewError(provider, op, kind, nil)
	e.StatusCode = r.StatusCode
	if excerpt := bodyExcerpt(r.Body); excerpt != "" {
		e.Err = errors.New(excerpt)
	}
	return e
}

// Decode unmarshals the body into v. Malformed JSON is ErrUpstream.
func (r *Response) Decode(provider, op string, v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return NewError(provider, op, ErrUpstream, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func bodyExcerpt(body []byte) string {
	const limit = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// redact drops query strings, which carry API tokens, from URL errors.
func redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	clean := *uerr
	clean.URL = StripQuery(uerr.URL)
	return &clean
}
