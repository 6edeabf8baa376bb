package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_pages_fetched_total",
		Help: "Pages fetched, labeled by whether the headless renderer was used.",
	}, []string{"rendered"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_fetch_failures_total",
		Help: "Per-URL fetch failures by classification.",
	}, []string{"kind"})

	productsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_products_extracted_total",
		Help: "Products that passed extraction and the simple-product filter.",
	})

	productsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_products_filtered_total",
		Help: "Extracted records dropped for having variants or no name.",
	})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_session_duration_seconds",
		Help:    "Wall time of complete scrape sessions by detected platform.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"platform"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_sessions_active",
		Help: "Scrape sessions currently running.",
	})
)
