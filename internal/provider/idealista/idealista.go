// Package idealista scrapes Idealista listings (Spain, Portugal, Italy)
// through an Apify actor reachable two ways: a low-latency standby endpoint
// and, when that fails, one synchronous run-and-collect call.
package idealista

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/metrics"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

// Name identifies the provider.
const Name = "idealista"

// Defaults applied by New when the Config leaves a field zero.
const (
	DefaultStandbyURL     = "https://dz-omar--idealista-scraper-api.apify.actor/"
	DefaultRunSyncURL     = "https://api.apify.com/v2/acts/dz_omar~idealista-scraper-api/run-sync-get-dataset-items"
	DefaultRunSyncTimeout = 300 * time.Second
	DefaultMaxRetries     = 2
	DefaultTimeoutSeconds = 30

	// standbySlack is added to the actor-side timeout for the HTTP deadline.
	standbySlack = 5 * time.Second
)

var domains = []string{"idealista.com", "idealista.pt", "idealista.it"}

// Config configures the adapter.
type Config struct {
	APIKey             string
	StandbyURL         string
	RunSyncURL         string
	RunSyncTimeout     time.Duration
	MaxRetries         int
	TimeoutSeconds     int
	SaveMapImages      bool
	IncludeGallery     bool
	ExtractContactInfo bool
	ProxyGroups        []string
}

// DefaultConfig returns the stock configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:             apiKey,
		StandbyURL:         DefaultStandbyURL,
		RunSyncURL:         DefaultRunSyncURL,
		RunSyncTimeout:     DefaultRunSyncTimeout,
		MaxRetries:         DefaultMaxRetries,
		TimeoutSeconds:     DefaultTimeoutSeconds,
		SaveMapImages:      true,
		IncludeGallery:     true,
		ExtractContactInfo: true,
		ProxyGroups:        []string{"RESIDENTIAL"},
	}
}

func (c *Config) applyDefaults() {
	if c.StandbyURL == "" {
		c.StandbyURL = DefaultStandbyURL
	}
	if c.RunSyncURL == "" {
		c.RunSyncURL = DefaultRunSyncURL
	}
	if c.RunSyncTimeout <= 0 {
		c.RunSyncTimeout = DefaultRunSyncTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.ProxyGroups == nil {
		c.ProxyGroups = []string{"RESIDENTIAL"}
	}
}

// Adapter implements provider.Provider for Idealista.
type Adapter struct {
	cfg    Config
	client provider.HTTPDoer
	logger *zap.Logger
}

var _ provider.Provider = (*Adapter)(nil)

// New creates an Adapter.
func New(cfg Config, client provider.HTTPDoer, logger *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(Name, "configure", provider.ErrNotConfigured, nil)
	}
	cfg.applyDefaults()
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, client: client, logger: logger}, nil
}

// Name implements provider.Provider.
func (a *Adapter) Name() string {
	return Name
}

// Validate accepts the Spanish, Portuguese and Italian Idealista sites.
func (a *Adapter) Validate(rawURL string) bool {
	normalized, ok := Normalize(rawURL)
	if !ok {
		return false
	}
	host := provider.Hostname(normalized)
	for _, d := range domains {
		if provider.HostIn(host, d) {
			return true
		}
	}
	return false
}

// Normalize canonicalizes rawURL: https is assumed, the host is lower-cased
// with repeated "www." prefixes collapsed, English paths are used for
// idealista.com listings and trailing query separators are stripped.
func Normalize(rawURL string) (string, bool) {
	candidate := strings.TrimSpace(rawURL)
	if candidate == "" {
		return "", false
	}
	if !strings.Contains(candidate, "//") {
		candidate = "https://" + strings.TrimLeft(candidate, "/")
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Host)
	if strings.HasPrefix(host, "www.www.") {
		for strings.HasPrefix(host, "www.www.") {
			host = strings.TrimPrefix(host, "www.")
		}
	}
	if host == "" && u.Path != "" {
		host, u.Path = u.Path, ""
	}
	u.Host = host
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if strings.HasSuffix(host, "idealista.com") {
		lower := strings.ToLower(u.Path)
		if strings.HasPrefix(lower, "/inmueble/") {
			u.Path = "/en" + u.Path
			u.RawPath = ""
		}
	}
	return provider.TrimQuerySeparators(u.String()), true
}

func (a *Adapter) payload(target string) map[string]any {
	return map[string]any{
		"Url": target,
		"proxyConfig": map[string]any{
			"useApifyProxy":    true,
			"apifyProxyGroups": a.cfg.ProxyGroups,
		},
		"maxRetries":         a.cfg.MaxRetries,
		"timeout":            a.cfg.TimeoutSeconds,
		"saveMapImages":      a.cfg.SaveMapImages,
		"includeGallery":     a.cfg.IncludeGallery,
		"extractContactInfo": a.cfg.ExtractContactInfo,
	}
}

// Scrape calls the standby endpoint and, on any failure there, the run-sync
// endpoint exactly once. The run-sync error is the one reported.
func (a *Adapter) Scrape(ctx context.Context, rawURL string) ([]listing.Payload, error) {
	target, ok := Normalize(rawURL)
	if !ok || !a.Validate(target) {
		return nil, provider.NewError(Name, "validate", provider.ErrInvalidURL, nil)
	}
	payload := a.payload(target)

	a.logger.Info("calling idealista standby endpoint", zap.String("url", target))
	item, err := a.callStandby(ctx, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, provider.NewError(Name, "standby", provider.ErrTransport, ctxErr)
		}
		a.logger.Warn("standby endpoint failed, falling back to run-sync",
			zap.String("url", target),
			zap.Error(err),
		)
		metrics.ObserveFallback(Name)
		item, err = a.callRunSync(ctx, payload)
		if err != nil {
			a.logger.Error("idealista run-sync failed", zap.String("url", target), zap.Error(err))
			return nil, err
		}
	}

	if len(item) == 0 {
		return nil, provider.NewError(Name, "scrape", provider.ErrNoData, nil)
	}
	processed := Process(item)
	if listing.ValueOf(processed["listingUrl"]).IsEmpty() {
		processed["listingUrl"] = target
	}
	return []listing.Payload{processed}, nil
}

func (a *Adapter) callStandby(ctx context.Context, payload map[string]any) (listing.Payload, error) {
	const op = "standby"
	resp, err := provider.Do(ctx, a.client, provider.Call{
		Provider: Name,
		Endpoint: op,
		Method:   http.MethodPost,
		URL:      a.cfg.StandbyURL,
		Header:   http.Header{"Authorization": []string{"Bearer " + a.cfg.APIKey}},
		Body:     payload,
		Timeout:  time.Duration(a.cfg.TimeoutSeconds)*time.Second + standbySlack,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.StatusError(Name, op, provider.ErrTransport)
	}

	var body any
	if err := resp.Decode(Name, op, &body); err != nil {
		return nil, err
	}
	v := listing.ValueOf(body)
	if status, _ := v.Get("status").Text(); status == "failed" {
		e := provider.NewError(Name, op, provider.ErrUpstream, nil)
		e.Status = status
		if msg, ok := v.Get("error").Text(); ok && msg != "" {
			e.Status = msg
		}
		return nil, e
	}
	if v.Kind() == listing.KindSequence {
		v = v.Index(0)
	}
	m, ok := v.Raw().(map[string]any)
	if !ok {
		return nil, provider.NewError(Name, op, provider.ErrUpstream, nil)
	}
	return listing.Payload(m), nil
}

func (a *Adapter) callRunSync(ctx context.Context, payload map[string]any) (listing.Payload, error) {
	const op = "run-sync"
	endpoint, err := provider.WithQuery(a.cfg.RunSyncURL, "token", a.cfg.APIKey)
	if err != nil {
		return nil, provider.NewError(Name, op, provider.ErrNotConfigured, err)
	}
	resp, err := provider.Do(ctx, a.client, provider.Call{
		Provider: Name,
		Endpoint: op,
		Method:   http.MethodPost,
		URL:      endpoint,
		Body:     payload,
		Timeout:  a.cfg.RunSyncTimeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.StatusError(Name, op, provider.ErrTransport)
	}

	var body any
	if err := resp.Decode(Name, op, &body); err != nil {
		return nil, err
	}
	v := listing.ValueOf(body)
	if v.Kind() == listing.KindMapping {
		v = v.Get("items")
	}
	if m, ok := v.Index(0).Raw().(map[string]any); ok {
		return listing.Payload(m), nil
	}
	return nil, provider.NewError(Name, op, provider.ErrUpstream, nil)
}
