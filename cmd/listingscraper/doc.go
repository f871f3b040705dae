// Package main hosts the listing scraper service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes /health, /metrics, /providers, /scrape, /match and
//     /scrape_and_match. Each scrape runs under server.scrape_timeout.
//   - Dispatcher: internal/dispatcher routes a listing URL to the first provider whose Validate accepts it,
//     runs the scrape and canonicalizes every returned item into a listing.Listing.
//   - Providers: immobiliare (synchronous actor run), idealista (standby endpoint with a single run-sync
//     fallback) and jamesedition (submit, poll, fetch dataset). All talk to Apify over JSON.
//   - Ranking: when ranking.url is set, matches are fetched from the external ranking engine.
//   - Plumbing: Viper loads config from file and LISTINGS_* env (plus legacy names such as APIFY_API_KEY),
//     godotenv preloads a local .env, zap logs, Prometheus metrics are served on /metrics.
//
// Quick checklist:
//   - Configure APIFY_API_KEY, optionally RANKING_URL, FRONTEND_URL and PORT.
//   - Run locally: go run ./cmd/listingscraper -config config.yaml
//   - The process drains in-flight requests on SIGTERM.
package main
