package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docgate",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docgate",
			Name:      "store_retries_total",
			Help:      "Retried backing-store calls",
		},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docgate",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per target (0=closed, 1=open, 2=half_open)",
		},
		[]string{"target"},
	)

	searchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docgate",
			Name:      "search_duration_seconds",
			Help:      "Relevance search duration by mode",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	migratedDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docgate",
			Name:      "migrated_documents_total",
			Help:      "Documents processed by the partition migration by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups)
	prometheus.MustRegister(retriesTotal)
	prometheus.MustRegister(breakerState)
	prometheus.MustRegister(searchDuration)
	prometheus.MustRegister(migratedDocuments)
}

// CacheLookups counts per-tier cache hits and misses.
func CacheLookups() *prometheus.CounterVec { return cacheLookups }

// Retries counts backing-store calls that were reattempted.
func Retries() prometheus.Counter { return retriesTotal }

// BreakerState exposes the current state of each circuit breaker.
func BreakerState() *prometheus.GaugeVec { return breakerState }

// SearchDuration times relevance searches by query mode.
func SearchDuration() *prometheus.HistogramVec { return searchDuration }

// MigratedDocuments counts migration outcomes (migrated, skipped, failed).
func MigratedDocuments() *prometheus.CounterVec { return migratedDocuments }
