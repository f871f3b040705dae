// Package metrics exposes Prometheus collectors for the listing service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by upstream and dispatch observations.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	upstreamRequestsTotal      *prometheus.CounterVec
	upstreamDurationSeconds    *prometheus.HistogramVec
	fallbacksTotal             *prometheus.CounterVec
	jobPollsTotal              *prometheus.CounterVec
	dispatchTotal              *prometheus.CounterVec
	dispatchDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_upstream_requests_total",
				Help: "Total number of calls to scraping back-ends, labeled by provider, endpoint and outcome.",
			},
			[]string{"provider", "endpoint", "outcome"},
		)

		upstreamDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listings_upstream_request_duration_seconds",
				Help:    "Histogram of scraping back-end call latencies, labeled by provider and endpoint.",
				Buckets: []float64{0.25, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"provider", "endpoint"},
		)

		fallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_transport_fallbacks_total",
				Help: "Total number of primary transport failures that switched to the fallback endpoint.",
			},
			[]string{"provider"},
		)

		jobPollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_job_polls_total",
				Help: "Total number of asynchronous job status checks, labeled by provider and reported status.",
			},
			[]string{"provider", "status"},
		)

		dispatchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_dispatch_total",
				Help: "Total number of dispatched scrapes, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		dispatchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listings_dispatch_duration_seconds",
				Help:    "Histogram of end-to-end scrape durations, labeled by provider.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"provider"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listings_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting for a provider rate limit token.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"provider"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120, 600},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to a success/error label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveUpstream records one call to a scraping back-end.
func ObserveUpstream(provider, endpoint string, err error, duration time.Duration) {
	Init()
	upstreamRequestsTotal.WithLabelValues(provider, endpoint, Outcome(err)).Inc()
	upstreamDurationSeconds.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}

// ObserveFallback increments the fallback counter for provider.
func ObserveFallback(provider string) {
	Init()
	fallbacksTotal.WithLabelValues(provider).Inc()
}

// ObservePoll records one job status check.
func ObservePoll(provider, status string) {
	Init()
	if status == "" {
		status = "unknown"
	}
	jobPollsTotal.WithLabelValues(provider, status).Inc()
}

// ObserveDispatch records a completed dispatch.
func ObserveDispatch(provider, outcome string, duration time.Duration) {
	Init()
	if provider == "" {
		provider = "none"
	}
	dispatchTotal.WithLabelValues(provider, outcome).Inc()
	dispatchDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent waiting on a provider throttle.
func ObserveRateLimitDelay(provider string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(provider).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
