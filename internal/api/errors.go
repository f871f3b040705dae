package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/JakeFAU/listing-scraper/internal/provider"
)

// statusFor maps a dispatch error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, provider.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrTransport), errors.Is(err, provider.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
