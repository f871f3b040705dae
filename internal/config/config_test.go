package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, 10*time.Minute, cfg.Server.ScrapeTimeout)
	require.Equal(t, "p9QZzUdBCGXMDuKad", cfg.Providers.Immobiliare.ActorID)
	require.Equal(t, 600*time.Second, cfg.Providers.Immobiliare.Timeout)
	require.Equal(t, 300*time.Second, cfg.Providers.Idealista.RunSyncTimeout)
	require.Equal(t, []string{"RESIDENTIAL"}, cfg.Providers.Idealista.ProxyGroups)
	require.True(t, cfg.Providers.Idealista.IncludeGallery)
	require.Equal(t, 5*time.Second, cfg.Providers.JamesEdition.PollInterval)
	require.Equal(t, 1, cfg.Providers.JamesEdition.MaxItems)
	require.Equal(t, 5, cfg.Ranking.MatchTopK)
	require.Equal(t, 10, cfg.Ranking.ScrapeMatchTopK)
	require.Zero(t, cfg.Apify.RequestsPerSecond)
	require.Equal(t, 1, cfg.Apify.Burst)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  scrape_timeout: 2m
auth:
  enabled: true
  api_key: secret
logging:
  development: true
apify:
  api_key: apify-token
providers:
  immobiliare:
    actor_id: custom-actor
    max_concurrency: 4
  idealista:
    proxy_groups: ["DATACENTER"]
    timeout_seconds: 45
  jamesedition:
    poll_interval: 2s
    max_items: 3
ranking:
  url: http://ranking:9000
  match_top_k: 7
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 2*time.Minute, cfg.Server.ScrapeTimeout)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.True(t, cfg.Logging.Development)
	require.True(t, cfg.ProvidersConfigured())
	require.Equal(t, "custom-actor", cfg.Providers.Immobiliare.ActorID)
	require.Equal(t, 4, cfg.Providers.Immobiliare.MaxConcurrency)
	require.Equal(t, []string{"DATACENTER"}, cfg.Providers.Idealista.ProxyGroups)
	require.Equal(t, 45, cfg.Providers.Idealista.TimeoutSeconds)
	require.Equal(t, 2*time.Second, cfg.Providers.JamesEdition.PollInterval)
	require.Equal(t, 3, cfg.Providers.JamesEdition.MaxItems)
	require.Equal(t, "http://ranking:9000", cfg.Ranking.URL)
	require.Equal(t, 7, cfg.Ranking.MatchTopK)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("APIFY_API_KEY", "from-env")
	t.Setenv("IMMOBILIARE_ACTOR_ID", "env-actor")
	t.Setenv("FRONTEND_URL", "app.example.com")
	t.Setenv("PORT", "7000")
	t.Setenv("LISTINGS_RANKING_MATCH_TOP_K", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Apify.APIKey)
	require.Equal(t, "env-actor", cfg.Providers.Immobiliare.ActorID)
	require.Equal(t, "app.example.com", cfg.CORS.FrontendURL)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 3, cfg.Ranking.MatchTopK)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8000, ScrapeTimeout: time.Minute},
		Providers: ProvidersConfig{
			Idealista:    IdealistaConfig{TimeoutSeconds: 30},
			JamesEdition: JamesEditionConfig{PollInterval: time.Second, MaxItems: 1},
		},
		Ranking: RankingConfig{MatchTopK: 5, ScrapeMatchTopK: 10},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid scrape timeout", func(c *Config) { c.Server.ScrapeTimeout = 0 }, "server.scrape_timeout"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"invalid poll interval", func(c *Config) { c.Providers.JamesEdition.PollInterval = 0 }, "poll_interval"},
		{"invalid max items", func(c *Config) { c.Providers.JamesEdition.MaxItems = 0 }, "max_items"},
		{"invalid idealista timeout", func(c *Config) { c.Providers.Idealista.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"negative rate", func(c *Config) { c.Apify.RequestsPerSecond = -1 }, "requests_per_second"},
		{"invalid top k", func(c *Config) { c.Ranking.ScrapeMatchTopK = 0 }, "top_k"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
