// Package telemetry exposes Prometheus collectors for the scraper service.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_requests_total",
			Help: "Total outbound HTTP requests, labeled by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_listings_total",
			Help: "Listing scrape attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	phonesResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_phones_resolved_total",
			Help: "Listings for which a seller phone number was resolved.",
		},
	)

	carsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cars_saved_total",
			Help: "Car records successfully upserted into the database.",
		},
	)

	runDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall-clock duration of full scrape runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// CountFetch records one outbound request. Outcome is the HTTP status
// code as a string, or "error" for transport failures and timeouts.
func CountFetch(method, outcome string) {
	fetchRequestsTotal.WithLabelValues(method, outcome).Inc()
}

// CountListing records one listing scrape attempt by outcome
// ("scraped", "fetch_failed", "parse_failed").
func CountListing(outcome string) {
	listingsTotal.WithLabelValues(outcome).Inc()
}

// CountPhoneResolved records a successful phone resolution.
func CountPhoneResolved() {
	phonesResolvedTotal.Inc()
}

// CountSaved records rows upserted by a persistence batch.
func CountSaved(n int) {
	carsSavedTotal.Add(float64(n))
}

// ObserveRunDuration records a full run's wall-clock duration.
func ObserveRunDuration(d time.Duration) {
	runDurationSeconds.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
