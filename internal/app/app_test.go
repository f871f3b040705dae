package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/config"
)

func baseConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 0, ScrapeTimeout: time.Minute},
		Apify:   config.ApifyConfig{BaseURL: "https://api.apify.com/v2"},
		Ranking: config.RankingConfig{MatchTopK: 5, ScrapeMatchTopK: 10},
	}
}

func TestNewWithoutAPIKey(t *testing.T) {
	t.Parallel()

	a, err := New(baseConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, a.Dispatcher().Configured())
	assert.Empty(t, a.Dispatcher().Providers())
	assert.Nil(t, a.matcher)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["scrapers_configured"])
}

func TestNewRegistersProvidersInOrder(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Apify.APIKey = "apify_api_test"
	cfg.Ranking.URL = "http://ranking.internal:8001"

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, a.Dispatcher().Configured())
	assert.Equal(t, []string{"idealista", "immobiliare", "james_edition"}, a.Dispatcher().Providers())
	assert.NotNil(t, a.matcher)

	p, ok := a.Dispatcher().Match("https://www.jamesedition.com/real_estate/x-123")
	require.True(t, ok)
	assert.Equal(t, "james_edition", p.Name())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	a, err := New(baseConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	a.Close()
}
