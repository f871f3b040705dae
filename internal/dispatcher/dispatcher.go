// Package dispatcher selects the provider responsible for a listing URL,
// runs it and canonicalizes what it returns.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/metrics"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

var (
	// ErrUnsupportedProvider reports that no registered provider accepts the
	// URL. It also matches provider.ErrInvalidURL.
	ErrUnsupportedProvider = fmt.Errorf("unsupported provider: %w", provider.ErrInvalidURL)
	// ErrEmptyResult reports a provider that returned no usable listing. It
	// also matches provider.ErrNoData.
	ErrEmptyResult = fmt.Errorf("empty result: %w", provider.ErrNoData)
)

// Result is the outcome of a successful dispatch.
type Result struct {
	Provider  string
	Raw       []listing.Payload
	Canonical []listing.Listing
}

// Limiter throttles scrapes per provider name.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Dispatcher holds providers in registration order.
type Dispatcher struct {
	providers []provider.Provider
	limiter   Limiter
	logger    *zap.Logger
}

// New creates a Dispatcher. Nil providers are skipped; earlier providers
// win when several accept the same URL.
func New(logger *zap.Logger, providers ...provider.Provider) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{logger: logger}
	for _, p := range providers {
		if p != nil {
			d.providers = append(d.providers, p)
		}
	}
	return d
}

// WithLimiter makes every scrape wait on l first.
func (d *Dispatcher) WithLimiter(l Limiter) *Dispatcher {
	d.limiter = l
	return d
}

// Providers lists the registered provider names in order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, len(d.providers))
	for i, p := range d.providers {
		names[i] = p.Name()
	}
	return names
}

// Configured reports whether at least one provider is registered.
func (d *Dispatcher) Configured() bool {
	return len(d.providers) > 0
}

// Match returns the first provider that accepts rawURL.
func (d *Dispatcher) Match(rawURL string) (provider.Provider, bool) {
	for _, p := range d.providers {
		if p.Validate(rawURL) {
			return p, true
		}
	}
	return nil, false
}

// Dispatch scrapes rawURL with the matching provider and canonicalizes
// every returned item.
func (d *Dispatcher) Dispatch(ctx context.Context, rawURL string) (Result, error) {
	start := time.Now()
	res, err := d.dispatch(ctx, rawURL)
	metrics.ObserveDispatch(res.Provider, outcome(err), time.Since(start))
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, rawURL string) (Result, error) {
	if !d.Configured() {
		return Result{}, fmt.Errorf("dispatch: %w", provider.ErrNotConfigured)
	}
	p, ok := d.Match(rawURL)
	if !ok {
		d.logger.Warn("no provider accepts url", zap.String("url", rawURL))
		return Result{}, ErrUnsupportedProvider
	}

	name := p.Name()
	logger := d.logger.With(zap.String("provider", name), zap.String("url", rawURL))
	logger.Info("dispatching scrape")

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, name); err != nil {
			logger.Warn("rate limit wait aborted", zap.Error(err))
			return Result{Provider: name}, fmt.Errorf("scrape %s: %w", name, err)
		}
	}

	items, err := p.Scrape(ctx, rawURL)
	if err != nil {
		logger.Error("scrape failed", zap.Error(err))
		return Result{Provider: name}, fmt.Errorf("scrape %s: %w", name, err)
	}
	if len(items) == 0 || !items[0].HasData() {
		logger.Warn("scrape returned no data")
		return Result{Provider: name}, ErrEmptyResult
	}

	canonical := make([]listing.Listing, len(items))
	for i, item := range items {
		canonical[i] = listing.Canonicalize(name, item)
	}
	logger.Info("scrape completed", zap.Int("items", len(items)))
	return Result{Provider: name, Raw: items, Canonical: canonical}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported"
	case errors.Is(err, provider.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, provider.ErrNoData):
		return "empty"
	default:
		return metrics.OutcomeError
	}
}
