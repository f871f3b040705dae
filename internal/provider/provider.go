// Package provider defines the contract shared by listing adapters and the
// plumbing they have in common: the error taxonomy, JSON-over-HTTP calls
// with per-call deadlines and URL helpers.
package provider

import (
	"context"
	"time"

	"github.com/JakeFAU/listing-scraper/internal/listing"
)

// Provider acquires listing payloads from one external back-end.
type Provider interface {
	// Name identifies the provider in logs, metrics and canonical ids.
	Name() string
	// Validate reports whether the adapter accepts rawURL. It performs no I/O.
	Validate(rawURL string) bool
	// Scrape fetches the listing(s) behind rawURL.
	Scrape(ctx context.Context, rawURL string) ([]listing.Payload, error)
}

// Clock abstracts time for adapters that wait between calls.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}
