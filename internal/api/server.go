package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/config"
	"github.com/JakeFAU/listing-scraper/internal/dispatcher"
	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/metrics"
	"github.com/JakeFAU/listing-scraper/internal/ranking"
)

const (
	maxBodyBytes = 1 << 20

	// ProvidedPlatform labels listings supplied by the caller.
	ProvidedPlatform = "Provided Listing"
	providedSource   = "provided"
)

// Dispatcher scrapes and canonicalizes listings.
type Dispatcher interface {
	Dispatch(ctx context.Context, rawURL string) (dispatcher.Result, error)
	Providers() []string
	Configured() bool
}

// IDGenerator produces request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Server wires HTTP handlers to the dispatcher and the ranking engine.
type Server struct {
	router     chi.Router
	dispatcher Dispatcher
	matcher    ranking.Matcher
	idGen      IDGenerator
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A nil matcher
// disables matching; those routes answer 503.
func NewServer(
	dispatch Dispatcher,
	matcher ranking.Matcher,
	idGen IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatcher: dispatch,
		matcher:    matcher,
		idGen:      idGen,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(idGen))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(cfg.CORS.FrontendURL))

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/providers", s.providers)
		r.Post("/scrape", s.scrape)
		r.Post("/match", s.match)
		r.Post("/scrape_and_match", s.scrapeAndMatch)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type scrapeRequest struct {
	PostURL string `json:"post_url"`
}

type matchRequest struct {
	SaleURL     *string         `json:"sale_url"`
	SaleListing listing.Payload `json:"sale_listing"`
}

type scrapeResponse struct {
	Status     string            `json:"status"`
	Provider   string            `json:"provider"`
	Data       []listing.Payload `json:"data"`
	Normalized []listing.Listing `json:"normalized"`
}

type scrapeAndMatchResponse struct {
	scrapeResponse
	SaleListing ranking.Sale    `json:"sale_listing"`
	Matches     []ranking.Match `json:"matches"`
}

type matchResponse struct {
	SaleListing ranking.Sale    `json:"sale_listing"`
	Matches     []ranking.Match `json:"matches"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"message":             "listing scraper is running",
		"scrapers_configured": s.dispatcher.Configured(),
		"providers":           s.dispatcher.Providers(),
	})
}

func (s *Server) providers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.dispatcher.Providers()})
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	postURL, ok := s.decodeScrapeRequest(w, r)
	if !ok {
		return
	}
	res, err := s.runDispatch(r.Context(), postURL)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScrapeResponse(res))
}

func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	hasURL := req.SaleURL != nil && strings.TrimSpace(*req.SaleURL) != ""
	if !hasURL && req.SaleListing == nil {
		writeError(w, http.StatusBadRequest, "provide either 'sale_url' or 'sale_listing' in the request body")
		return
	}
	if req.SaleListing == nil {
		writeError(w, http.StatusBadRequest,
			"this endpoint requires 'sale_listing' data; to scrape a URL use the /scrape_and_match endpoint")
		return
	}
	if s.matcher == nil {
		writeError(w, http.StatusServiceUnavailable, ranking.ErrNotConfigured.Error())
		return
	}

	platform := ProvidedPlatform
	if p, ok := req.SaleListing.Get("platform").Text(); ok && p != "" {
		platform = p
	}
	sale := ranking.Sale{
		Listing:  listing.Canonicalize(providedSource, req.SaleListing),
		Platform: platform,
	}

	matches, err := s.matcher.Match(r.Context(), sale, s.cfg.Ranking.MatchTopK)
	if err != nil {
		s.logger.Error("matching failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "matching engine error: "+err.Error())
		return
	}
	s.logger.Info("matched provided listing", zap.String("title", sale.Title), zap.Int("matches", len(matches)))
	writeJSON(w, http.StatusOK, matchResponse{SaleListing: sale, Matches: matches})
}

func (s *Server) scrapeAndMatch(w http.ResponseWriter, r *http.Request) {
	postURL, ok := s.decodeScrapeRequest(w, r)
	if !ok {
		return
	}
	if s.matcher == nil {
		writeError(w, http.StatusServiceUnavailable, ranking.ErrNotConfigured.Error())
		return
	}

	res, err := s.runDispatch(r.Context(), postURL)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	if len(res.Canonical) == 0 {
		writeError(w, http.StatusInternalServerError, "scraper returned no normalized listings to match")
		return
	}

	sale := ranking.Sale{Listing: res.Canonical[0]}
	matches, err := s.matcher.Match(r.Context(), sale, s.cfg.Ranking.ScrapeMatchTopK)
	if err != nil {
		s.logger.Error("matching failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "matching engine error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scrapeAndMatchResponse{
		scrapeResponse: newScrapeResponse(res),
		SaleListing:    sale,
		Matches:        matches,
	})
}

func (s *Server) decodeScrapeRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req scrapeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return "", false
	}
	postURL := strings.TrimSpace(req.PostURL)
	if postURL == "" {
		writeError(w, http.StatusBadRequest, "post_url is required")
		return "", false
	}
	return postURL, true
}

// runDispatch bounds one scrape with the configured deadline. Adapters poll
// without a limit of their own.
func (s *Server) runDispatch(ctx context.Context, postURL string) (dispatcher.Result, error) {
	timeout := s.cfg.Server.ScrapeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.dispatcher.Dispatch(ctx, postURL)
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logger.Warn("scrape request failed",
		zap.String("request_id", requestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, err.Error())
}

func newScrapeResponse(res dispatcher.Result) scrapeResponse {
	return scrapeResponse{
		Status:     "success",
		Provider:   res.Provider,
		Data:       res.Raw,
		Normalized: res.Canonical,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
