// Package immobiliare scrapes single Immobiliare.it listings through an
// Apify actor invoked with one synchronous run-and-collect call.
package immobiliare

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

// Name identifies the provider.
const Name = "immobiliare"

// Defaults applied by New when the Config leaves a field zero.
const (
	DefaultBaseURL           = "https://api.apify.com/v2"
	DefaultActorID           = "p9QZzUdBCGXMDuKad"
	DefaultTimeout           = 600 * time.Second
	DefaultConnectTimeout    = 30 * time.Second
	DefaultMaxConcurrency    = 10
	DefaultMinConcurrency    = 1
	DefaultMaxRequestRetries = 100
)

// Config configures the adapter.
type Config struct {
	APIKey            string
	BaseURL           string
	ActorID           string
	Timeout           time.Duration
	ConnectTimeout    time.Duration
	MaxConcurrency    int
	MinConcurrency    int
	MaxRequestRetries int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ActorID == "" {
		c.ActorID = DefaultActorID
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MinConcurrency <= 0 {
		c.MinConcurrency = DefaultMinConcurrency
	}
	if c.MaxRequestRetries <= 0 {
		c.MaxRequestRetries = DefaultMaxRequestRetries
	}
}

// Adapter implements provider.Provider for Immobiliare.it.
type Adapter struct {
	cfg    Config
	client provider.HTTPDoer
	logger *zap.Logger
}

var _ provider.Provider = (*Adapter)(nil)

// New creates an Adapter. A nil client gets one honouring the connect
// timeout.
func New(cfg Config, client provider.HTTPDoer, logger *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(Name, "configure", provider.ErrNotConfigured, nil)
	}
	cfg.applyDefaults()
	if client == nil {
		client = provider.NewHTTPClient(cfg.ConnectTimeout)
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

// Validate accepts immobiliare.it hosts and their subdomains.
func (a *Adapter) Validate(rawURL string) bool {
	return provider.HostIn(provider.Hostname(Normalize(rawURL)), "immobiliare.it")
}

// Normalize trims rawURL, drops the English locale prefix and strips
// trailing query separators.
func Normalize(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)
	cleaned = strings.ReplaceAll(cleaned, "immobiliare.it/en/", "immobiliare.it/")
	return provider.TrimQuerySeparators(cleaned)
}

func (a *Adapter) payload(target string) map[string]any {
	return map[string]any{
		"startUrls":         []string{target},
		"maxConcurrency":    a.cfg.MaxConcurrency,
		"minConcurrency":    a.cfg.MinConcurrency,
		"maxRequestRetries": a.cfg.MaxRequestRetries,
		"proxyConfiguration": map[string]any{
			"useApifyProxy": true,
		},
	}
}

// Scrape runs the actor synchronously and returns the processed first
// dataset item.
func (a *Adapter) Scrape(ctx context.Context, rawURL string) ([]listing.Payload, error) {
	target := Normalize(rawURL)
	if !a.Validate(target) {
		return nil, provider.NewError(Name, "validate", provider.ErrInvalidURL, nil)
	}

	endpoint, err := provider.JoinPath(a.cfg.BaseURL, "acts", a.cfg.ActorID, "run-sync-get-dataset-items")
	if err != nil {
		return nil, provider.NewError(Name, "run", provider.ErrNotConfigured, err)
	}
	endpoint, err = provider.WithQuery(endpoint, "token", a.cfg.APIKey)
	if err != nil {
		return nil, provider.NewError(Name, "run", provider.ErrNotConfigured, err)
	}

	a.logger.Info("calling immobiliare actor",
		zap.String("url", target),
		zap.String("actor", a.cfg.ActorID),
	)
	resp, err := provider.Do(ctx, a.client, provider.Call{
		Provider: Name,
		Endpoint: "run",
		Method:   http.MethodPost,
		URL:      endpoint,
		Body:     a.payload(target),
		Timeout:  a.cfg.Timeout,
	})
	if err != nil {
		a.logger.Error("immobiliare request failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.StatusError(Name, "run", provider.ErrTransport)
	}

	var body any
	if err := resp.Decode(Name, "run", &body); err != nil {
		return nil, err
	}
	item, err := firstItem(body)
	if err != nil {
		a.logger.Warn("immobiliare returned no listing", zap.String("url", target), zap.Error(err))
		return nil, err
	}
	return []listing.Payload{Process(item)}, nil
}

func firstItem(body any) (listing.Payload, error) {
	v := listing.ValueOf(body)
	if v.Kind() == listing.KindSequence {
		if v.Len() == 0 {
			return nil, provider.NewError(Name, "run", provider.ErrNoData, nil)
		}
		v = v.Index(0)
	}
	switch v.Kind() {
	case listing.KindMapping:
		m, _ := v.Raw().(map[string]any)
		if len(m) == 0 {
			return nil, provider.NewError(Name, "run", provider.ErrNoData, nil)
		}
		return listing.Payload(m), nil
	case listing.KindNull:
		return nil, provider.NewError(Name, "run", provider.ErrNoData, nil)
	default:
		return nil, provider.NewError(Name, "run", provider.ErrUpstream, nil)
	}
}
