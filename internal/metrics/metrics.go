// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeMalformed = "malformed"
	OutcomeTransport = "transport"
)

var (
	harvesterItemsTotal             *prometheus.CounterVec
	harvesterItemDurationSeconds    *prometheus.HistogramVec
	harvesterActiveWorkers          prometheus.Gauge
	harvesterListingSize            prometheus.Gauge
	harvesterTLSFailuresTotal       prometheus.Counter
	harvesterWorkerTerminationTotal *prometheus.CounterVec
	httpRequestsTotal               *prometheus.CounterVec
	httpRequestDurationSeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_total",
				Help: "Total number of item fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterItemDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_item_duration_seconds",
				Help:    "Histogram of item fetch and parse latencies, labeled by outcome.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		)

		harvesterActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Number of workers that have not reached a terminal state.",
			},
		)

		harvesterListingSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_listing_size",
				Help: "Number of identifiers returned by the most recent listing fetch.",
			},
		)

		harvesterTLSFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_tls_failures_total",
				Help: "Total TLS handshake or certificate verification failures.",
			},
		)

		harvesterWorkerTerminationTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_worker_terminations_total",
				Help: "Total worker terminations, labeled by terminal state.",
			},
			[]string{"state"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// The observers below call Init so collectors exist even when a caller
// (usually a test) never initialized the package explicitly.

// ObserveItem records one item fetch by outcome.
func ObserveItem(outcome string, duration time.Duration) {
	Init()
	harvesterItemsTotal.WithLabelValues(outcome).Inc()
	harvesterItemDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveWorkerTermination counts a worker reaching a terminal state.
func ObserveWorkerTermination(state string) {
	Init()
	harvesterWorkerTerminationTotal.WithLabelValues(state).Inc()
}

// SetListingSize records how many identifiers the listing returned.
func SetListingSize(n int) {
	Init()
	harvesterListingSize.Set(float64(n))
}

// ObserveTLSFailure increments the TLS failure counter.
func ObserveTLSFailure() {
	Init()
	harvesterTLSFailuresTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	harvesterActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	harvesterActiveWorkers.Dec()
}
