// Package api hosts the HTTP server, middleware and JSON handlers that front
// the listing dispatcher and the ranking engine. Routes:
//   - GET /health reports whether scraping back-ends are configured.
//   - GET /metrics for Prometheus scraping.
//   - GET /providers lists the registered providers in match order.
//   - POST /scrape, /match and /scrape_and_match for listing acquisition
//     and comparable matching.
package api
