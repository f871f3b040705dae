// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. LISTINGS_SERVER_PORT.
const EnvPrefix = "LISTINGS"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Apify     ApifyConfig     `mapstructure:"apify"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CORSConfig lists the browser origin allowed besides local dev servers.
type CORSConfig struct {
	FrontendURL string `mapstructure:"frontend_url"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ApifyConfig holds the credential shared by every provider.
type ApifyConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// RequestsPerSecond caps scrapes per provider; zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ProvidersConfig groups per-provider settings.
type ProvidersConfig struct {
	Immobiliare  ImmobiliareConfig  `mapstructure:"immobiliare"`
	Idealista    IdealistaConfig    `mapstructure:"idealista"`
	JamesEdition JamesEditionConfig `mapstructure:"jamesedition"`
}

// ImmobiliareConfig configures the synchronous actor call.
type ImmobiliareConfig struct {
	ActorID           string        `mapstructure:"actor_id"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	MinConcurrency    int           `mapstructure:"min_concurrency"`
	MaxRequestRetries int           `mapstructure:"max_request_retries"`
}

// IdealistaConfig configures the standby and run-sync endpoints.
type IdealistaConfig struct {
	StandbyURL         string        `mapstructure:"standby_url"`
	RunSyncURL         string        `mapstructure:"run_sync_url"`
	RunSyncTimeout     time.Duration `mapstructure:"run_sync_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	TimeoutSeconds     int           `mapstructure:"timeout_seconds"`
	SaveMapImages      bool          `mapstructure:"save_map_images"`
	IncludeGallery     bool          `mapstructure:"include_gallery"`
	ExtractContactInfo bool          `mapstructure:"extract_contact_info"`
	ProxyGroups        []string      `mapstructure:"proxy_groups"`
}

// JamesEditionConfig configures the asynchronous actor job.
type JamesEditionConfig struct {
	ActorURL       string        `mapstructure:"actor_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxItems       int           `mapstructure:"max_items"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StatusTimeout  time.Duration `mapstructure:"status_timeout"`
}

// RankingConfig points at the external ranking engine. An empty URL
// disables the match endpoints.
type RankingConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MatchTopK       int           `mapstructure:"match_top_k"`
	ScrapeMatchTopK int           `mapstructure:"scrape_match_top_k"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.scrape_timeout", 10*time.Minute)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.requests_per_second", 0.0)
	v.SetDefault("apify.burst", 1)

	v.SetDefault("providers.immobiliare.actor_id", "p9QZzUdBCGXMDuKad")
	v.SetDefault("providers.immobiliare.timeout", 600*time.Second)
	v.SetDefault("providers.immobiliare.connect_timeout", 30*time.Second)
	v.SetDefault("providers.immobiliare.max_concurrency", 10)
	v.SetDefault("providers.immobiliare.min_concurrency", 1)
	v.SetDefault("providers.immobiliare.max_request_retries", 100)

	v.SetDefault("providers.idealista.standby_url", "https://dz-omar--idealista-scraper-api.apify.actor/")
	v.SetDefault("providers.idealista.run_sync_url", "https://api.apify.com/v2/acts/dz_omar~idealista-scraper-api/run-sync-get-dataset-items")
	v.SetDefault("providers.idealista.run_sync_timeout", 300*time.Second)
	v.SetDefault("providers.idealista.max_retries", 2)
	v.SetDefault("providers.idealista.timeout_seconds", 30)
	v.SetDefault("providers.idealista.save_map_images", true)
	v.SetDefault("providers.idealista.include_gallery", true)
	v.SetDefault("providers.idealista.extract_contact_info", true)
	v.SetDefault("providers.idealista.proxy_groups", []string{"RESIDENTIAL"})

	v.SetDefault("providers.jamesedition.actor_url", "https://api.apify.com/v2/acts/parseforge~james-edition-real-estate-scraper/runs")
	v.SetDefault("providers.jamesedition.poll_interval", 5*time.Second)
	v.SetDefault("providers.jamesedition.max_items", 1)
	v.SetDefault("providers.jamesedition.request_timeout", 60*time.Second)
	v.SetDefault("providers.jamesedition.status_timeout", 30*time.Second)

	v.SetDefault("ranking.timeout", 60*time.Second)
	v.SetDefault("ranking.match_top_k", 5)
	v.SetDefault("ranking.scrape_match_top_k", 10)
}

// bindLegacyEnv keeps the unprefixed variable names deployments already use.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"apify.api_key":                  "APIFY_API_KEY",
		"providers.immobiliare.actor_id": "IMMOBILIARE_ACTOR_ID",
		"cors.frontend_url":              "FRONTEND_URL",
		"server.port":                    "PORT",
		"ranking.url":                    "RANKING_URL",
	}
	for key, env := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Server.ScrapeTimeout <= 0 {
		return errors.New("server.scrape_timeout must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Apify.RequestsPerSecond < 0 {
		return errors.New("apify.requests_per_second must be >= 0")
	}
	if c.Providers.JamesEdition.PollInterval <= 0 {
		return errors.New("providers.jamesedition.poll_interval must be > 0")
	}
	if c.Providers.JamesEdition.MaxItems <= 0 {
		return errors.New("providers.jamesedition.max_items must be > 0")
	}
	if c.Providers.Idealista.TimeoutSeconds <= 0 {
		return errors.New("providers.idealista.timeout_seconds must be > 0")
	}
	if c.Ranking.MatchTopK <= 0 || c.Ranking.ScrapeMatchTopK <= 0 {
		return errors.New("ranking top_k values must be > 0")
	}
	return nil
}

// ProvidersConfigured reports whether the shared scraping credential is set.
func (c Config) ProvidersConfigured() bool {
	return strings.TrimSpace(c.Apify.APIKey) != ""
}
