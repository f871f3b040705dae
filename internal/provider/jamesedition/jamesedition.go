// Package jamesedition scrapes JamesEdition luxury listings through an
// asynchronous Apify actor: a run is submitted, polled until it reaches a
// terminal state and its dataset is then fetched.
package jamesedition

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/clock/system"
	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/metrics"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

// Name identifies the provider.
const Name = "james_edition"

// Defaults applied by New when the Config leaves a field zero.
const (
	DefaultActorURL       = "https://api.apify.com/v2/acts/parseforge~james-edition-real-estate-scraper/runs"
	DefaultBaseURL        = "https://api.apify.com/v2"
	DefaultPollInterval   = 5 * time.Second
	DefaultMaxItems       = 1
	DefaultRequestTimeout = 60 * time.Second
	DefaultStatusTimeout  = 30 * time.Second
)

// Run states reported by the actor platform.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimedOut  = "TIMED-OUT"
	StatusAborted   = "ABORTED"
)

var terminalFailures = map[string]struct{}{
	StatusFailed:   {},
	StatusTimedOut: {},
	StatusAborted:  {},
}

// Config configures the adapter.
type Config struct {
	APIKey string
	// ActorURL is the endpoint runs are submitted to.
	ActorURL string
	// BaseURL hosts the actor-runs and datasets resources.
	BaseURL        string
	PollInterval   time.Duration
	MaxItems       int
	RequestTimeout time.Duration
	StatusTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.ActorURL == "" {
		c.ActorURL = DefaultActorURL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultMaxItems
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = DefaultStatusTimeout
	}
}

// Adapter implements provider.Provider for JamesEdition.
type Adapter struct {
	cfg    Config
	client provider.HTTPDoer
	clock  provider.Clock
	logger *zap.Logger
}

var _ provider.Provider = (*Adapter)(nil)

// New creates an Adapter. Nil dependencies get real implementations.
func New(cfg Config, client provider.HTTPDoer, clock provider.Clock, logger *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(Name, "configure", provider.ErrNotConfigured, nil)
	}
	cfg.applyDefaults()
	if client == nil {
		client = &http.Client{}
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, client: client, clock: clock, logger: logger}, nil
}

// Name implements provider.Provider.
func (a *Adapter) Name() string {
	return Name
}

// Validate accepts absolute jamesedition.com property URLs.
func (a *Adapter) Validate(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if !provider.HostIn(u.Hostname(), "jamesedition.com") {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.HasPrefix(path, "/real_estate/") || strings.HasPrefix(path, "/real-estate/")
}

// Scrape submits a run, waits for it and returns its dataset items. It
// returns an empty slice, not an error, when the run produced no items.
func (a *Adapter) Scrape(ctx context.Context, rawURL string) ([]listing.Payload, error) {
	runID, err := a.Submit(ctx, rawURL, a.cfg.MaxItems)
	if err != nil {
		return nil, err
	}
	datasetID, err := a.Poll(ctx, runID)
	if err != nil {
		return nil, err
	}
	return a.Fetch(ctx, datasetID)
}

// Submit starts an actor run for rawURL and returns its id. The URL is
// validated before any network call.
func (a *Adapter) Submit(ctx context.Context, rawURL string, maxItems int) (string, error) {
	const op = "submit"
	target := strings.TrimSpace(rawURL)
	if !a.Validate(target) {
		return "", provider.NewError(Name, op, provider.ErrInvalidURL, nil)
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	endpoint, err := provider.WithQuery(a.cfg.ActorURL, "token", a.cfg.APIKey)
	if err != nil {
		return "", provider.NewError(Name, op, provider.ErrNotConfigured, err)
	}

	resp, err := provider.Do(ctx, a.client, provider.Call{
		Provider: Name,
		Endpoint: op,
		Method:   http.MethodPost,
		URL:      endpoint,
		Body:     map[string]any{"startUrl": target, "maxItems": maxItems},
		Timeout:  a.cfg.RequestTimeout,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		a.logger.Error("failed to start jamesedition run", zap.Int("status", resp.StatusCode))
		return "", resp.StatusError(Name, op, provider.ErrTransport)
	}

	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := resp.Decode(Name, op, &body); err != nil {
		return "", err
	}
	if body.Data.ID == "" {
		return "", provider.NewError(Name, op, provider.ErrUpstream, errors.New("missing run id"))
	}
	a.logger.Info("jamesedition run started", zap.String("run_id", body.Data.ID), zap.String("url", target))
	return body.Data.ID, nil
}

// Poll checks the run at a fixed interval until it succeeds, returning the
// dataset id, or reaches a failure state. It only stops early when ctx is
// done.
func (a *Adapter) Poll(ctx context.Context, runID string) (string, error) {
	const op = "poll"
	endpoint, err := provider.JoinPath(a.cfg.BaseURL, "actor-runs", runID)
	if err == nil {
		endpoint, err = provider.WithQuery(endpoint, "token", a.cfg.APIKey)
	}
	if err != nil {
		return "", provider.NewError(Name, op, provider.ErrNotConfigured, err)
	}

	for {
		resp, err := provider.Do(ctx, a.client, provider.Call{
			Provider: Name,
			Endpoint: op,
			Method:   http.MethodGet,
			URL:      endpoint,
			Timeout:  a.cfg.StatusTimeout,
		})
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			return "", resp.StatusError(Name, op, provider.ErrTransport)
		}

		var body struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		if err := resp.Decode(Name, op, &body); err != nil {
			return "", err
		}
		status := body.Data.Status
		metrics.ObservePoll(Name, status)

		if status == StatusSucceeded && body.Data.DefaultDatasetID != "" {
			return body.Data.DefaultDatasetID, nil
		}
		if _, failed := terminalFailures[status]; failed {
			a.logger.Error("jamesedition run ended unsuccessfully",
				zap.String("run_id", runID),
				zap.String("status", status),
			)
			e := provider.NewError(Name, op, provider.ErrUpstream, nil)
			e.Status = status
			return "", e
		}

		a.logger.Debug("waiting for jamesedition run", zap.String("run_id", runID), zap.String("status", status))
		if err := a.clock.Sleep(ctx, a.cfg.PollInterval); err != nil {
			return "", provider.NewError(Name, op, provider.ErrTransport, err)
		}
	}
}

// Fetch downloads the items of a finished run's dataset.
func (a *Adapter) Fetch(ctx context.Context, datasetID string) ([]listing.Payload, error) {
	const op = "fetch"
	endpoint, err := provider.JoinPath(a.cfg.BaseURL, "datasets", datasetID, "items")
	if err == nil {
		endpoint, err = provider.WithQuery(endpoint, "token", a.cfg.APIKey)
	}
	if err != nil {
		return nil, provider.NewError(Name, op, provider.ErrNotConfigured, err)
	}

	resp, err := provider.Do(ctx, a.client, provider.Call{
		Provider: Name,
		Endpoint: op,
		Method:   http.MethodGet,
		URL:      endpoint,
		Timeout:  a.cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusError(Name, op, provider.ErrUpstream)
	}

	var items []any
	if err := resp.Decode(Name, op, &items); err != nil {
		return nil, err
	}
	out := make([]listing.Payload, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, listing.Payload(m))
	}
	a.logger.Info("jamesedition dataset fetched", zap.String("dataset_id", datasetID), zap.Int("items", len(out)))
	return out, nil
}
