// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks listing-page fetch attempts.
	TotalFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_fetches_total",
		Help: "The total number of listing page fetch attempts.",
	})
	// TotalFetchRetries tracks retried fetch attempts.
	TotalFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_fetch_retries_total",
		Help: "The total number of fetch retries after transient failures.",
	})
	// TotalFetchErrors tracks fetches that exhausted all attempts.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_fetch_errors_total",
		Help: "The total number of fetches that failed after all retries.",
	})
	// GeocodeLookups tracks external geocoder queries.
	GeocodeLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_geocode_lookups_total",
		Help: "The total number of external geocoder lookups issued.",
	})
	// GeocodeHits tracks validated geocoder results.
	GeocodeHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_geocode_hits_total",
		Help: "The total number of geocoder results that passed validation.",
	})
	// RateRefreshes tracks exchange-rate snapshot refreshes.
	RateRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rate_refreshes_total",
		Help: "The total number of exchange rate snapshot refreshes.",
	})
	// Outcomes tracks reconciliation outcomes by kind.
	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_outcomes_total",
		Help: "Reconciliation outcomes by kind.",
	}, []string{"kind"})
)
