// Package ranking talks to the external engine that scores canonical
// listings against comparable sales. No scoring happens here.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

// ErrNotConfigured reports that no ranking engine is available.
var ErrNotConfigured = errors.New("ranking engine not configured")

// DefaultTimeout bounds one match request.
const DefaultTimeout = 60 * time.Second

const endpointName = "ranking"

// Sale is the listing submitted for matching.
type Sale struct {
	listing.Listing
	Platform string `json:"platform,omitempty"`
}

// Match is one opaque result produced by the engine.
type Match map[string]any

// Matcher finds listings comparable to a sale.
type Matcher interface {
	Match(ctx context.Context, sale Sale, topK int) ([]Match, error)
}

// HTTPMatcher calls a ranking engine over HTTP.
type HTTPMatcher struct {
	baseURL string
	timeout time.Duration
	client  provider.HTTPDoer
	logger  *zap.Logger
}

var _ Matcher = (*HTTPMatcher)(nil)

// NewHTTPMatcher creates an HTTPMatcher for the engine at baseURL.
func NewHTTPMatcher(baseURL string, timeout time.Duration, client provider.HTTPDoer, logger *zap.Logger) (*HTTPMatcher, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPMatcher{baseURL: baseURL, timeout: timeout, client: client, logger: logger}, nil
}

// Match posts the sale and returns at most topK matches.
func (m *HTTPMatcher) Match(ctx context.Context, sale Sale, topK int) ([]Match, error) {
	endpoint, err := provider.JoinPath(m.baseURL, "match")
	if err != nil {
		return nil, fmt.Errorf("build ranking url: %w", err)
	}
	resp, err := provider.Do(ctx, m.client, provider.Call{
		Provider: endpointName,
		Endpoint: "match",
		Method:   http.MethodPost,
		URL:      endpoint,
		Body:     map[string]any{"sale_listing": sale, "top_k": topK},
		Timeout:  m.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("call ranking engine: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("call ranking engine: %w", resp.StatusError(endpointName, "match", provider.ErrUpstream))
	}

	var body any
	if err := resp.Decode(endpointName, "match", &body); err != nil {
		return nil, fmt.Errorf("decode ranking response: %w", err)
	}
	v := listing.ValueOf(body)
	if v.Kind() == listing.KindMapping {
		v = v.Get("matches")
	}
	if v.Kind() != listing.KindSequence && v.Kind() != listing.KindNull {
		return nil, fmt.Errorf("decode ranking response: %w", provider.NewError(endpointName, "match", provider.ErrUpstream, nil))
	}

	matches := make([]Match, 0, v.Len())
	for _, item := range v.Items() {
		if raw, ok := item.Raw().(map[string]any); ok {
			matches = append(matches, Match(raw))
		}
	}
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	m.logger.Debug("ranking engine responded", zap.Int("matches", len(matches)))
	return matches, nil
}
