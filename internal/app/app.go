// Package app builds the long-lived services and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/api"
	"github.com/JakeFAU/listing-scraper/internal/clock/system"
	"github.com/JakeFAU/listing-scraper/internal/config"
	"github.com/JakeFAU/listing-scraper/internal/dispatcher"
	"github.com/JakeFAU/listing-scraper/internal/id/uuid"
	"github.com/JakeFAU/listing-scraper/internal/logging"
	"github.com/JakeFAU/listing-scraper/internal/metrics"
	"github.com/JakeFAU/listing-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/listing-scraper/internal/provider"
	"github.com/JakeFAU/listing-scraper/internal/provider/idealista"
	"github.com/JakeFAU/listing-scraper/internal/provider/immobiliare"
	"github.com/JakeFAU/listing-scraper/internal/provider/jamesedition"
	"github.com/JakeFAU/listing-scraper/internal/ranking"
)

const (
	defaultConnectTimeout = 30 * time.Second
	shutdownTimeout       = 10 * time.Second
)

// App holds the services shared by every request.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	dispatcher *dispatcher.Dispatcher
	matcher    ranking.Matcher
	server     *api.Server
}

// New initializes adapters, the dispatcher, the ranking client and the API.
// Adapters are only built when an Apify key is present; without one the
// service still starts and reports scrapers_configured=false.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, err
	}
	dispatch := dispatcher.New(logger.Named("dispatcher"), providers...).
		WithLimiter(ratelimit.New(ratelimit.Config{
			RPS:   cfg.Apify.RequestsPerSecond,
			Burst: cfg.Apify.Burst,
		}))

	var matcher ranking.Matcher
	if cfg.Ranking.URL != "" {
		m, err := ranking.NewHTTPMatcher(
			cfg.Ranking.URL,
			cfg.Ranking.Timeout,
			provider.NewHTTPClient(defaultConnectTimeout),
			logger.Named("ranking"),
		)
		if err != nil {
			return nil, fmt.Errorf("init ranking client: %w", err)
		}
		matcher = m
		logger.Info("ranking engine configured", zap.String("url", cfg.Ranking.URL))
	} else {
		logger.Warn("ranking.url not set; matching endpoints disabled")
	}

	server := api.NewServer(dispatch, matcher, uuid.New(), cfg, logger.Named("api"))

	return &App{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatch,
		matcher:    matcher,
		server:     server,
	}, nil
}

func buildProviders(cfg config.Config, logger *zap.Logger) ([]provider.Provider, error) {
	key := cfg.Apify.APIKey
	if key == "" {
		logger.Warn("apify.api_key not set; scrapers are disabled")
		return nil, nil
	}
	logger.Info("initializing scrapers", zap.String("apify_key", logging.Redact(key)))

	imm := cfg.Providers.Immobiliare
	immAdapter, err := immobiliare.New(immobiliare.Config{
		APIKey:            key,
		BaseURL:           cfg.Apify.BaseURL,
		ActorID:           imm.ActorID,
		Timeout:           imm.Timeout,
		ConnectTimeout:    imm.ConnectTimeout,
		MaxConcurrency:    imm.MaxConcurrency,
		MinConcurrency:    imm.MinConcurrency,
		MaxRequestRetries: imm.MaxRequestRetries,
	}, provider.NewHTTPClient(connectTimeout(imm.ConnectTimeout)), logger.Named(immobiliare.Name))
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", immobiliare.Name, err)
	}

	ide := cfg.Providers.Idealista
	ideCfg := idealista.DefaultConfig(key)
	ideCfg.StandbyURL = ide.StandbyURL
	ideCfg.RunSyncURL = ide.RunSyncURL
	ideCfg.RunSyncTimeout = ide.RunSyncTimeout
	ideCfg.MaxRetries = ide.MaxRetries
	ideCfg.TimeoutSeconds = ide.TimeoutSeconds
	ideCfg.SaveMapImages = ide.SaveMapImages
	ideCfg.IncludeGallery = ide.IncludeGallery
	ideCfg.ExtractContactInfo = ide.ExtractContactInfo
	if len(ide.ProxyGroups) > 0 {
		ideCfg.ProxyGroups = ide.ProxyGroups
	}
	ideAdapter, err := idealista.New(ideCfg, provider.NewHTTPClient(defaultConnectTimeout), logger.Named(idealista.Name))
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", idealista.Name, err)
	}

	je := cfg.Providers.JamesEdition
	jeAdapter, err := jamesedition.New(jamesedition.Config{
		APIKey:         key,
		ActorURL:       je.ActorURL,
		BaseURL:        cfg.Apify.BaseURL,
		PollInterval:   je.PollInterval,
		MaxItems:       je.MaxItems,
		RequestTimeout: je.RequestTimeout,
		StatusTimeout:  je.StatusTimeout,
	}, provider.NewHTTPClient(defaultConnectTimeout), system.New(), logger.Named(jamesedition.Name))
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", jamesedition.Name, err)
	}

	return []provider.Provider{ideAdapter, immAdapter, jeAdapter}, nil
}

func connectTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultConnectTimeout
	}
	return d
}

// Handler exposes the API router.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Dispatcher returns the provider registry.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

// Run serves HTTP until ctx is canceled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started",
			zap.Int("port", a.cfg.Server.Port),
			zap.Strings("providers", a.dispatcher.Providers()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

// Close flushes the logger.
func (a *App) Close() {
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}
