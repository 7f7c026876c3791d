package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the cache manager's operational counters
type Metrics struct {
	FetchAttempts     *prometheus.CounterVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	IntegrityFailures *prometheus.CounterVec
}

// NewMetrics creates the manager metrics, registered on reg. A nil reg
// creates unregistered metrics, which tests use for isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadata_fetch_attempts_total",
			Help: "Total number of network fetch attempts per source",
		}, []string{"source"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadata_cache_hits_total",
			Help: "Total number of requests served from the local cache",
		}, []string{"source"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadata_cache_misses_total",
			Help: "Total number of requests that required a fetch",
		}, []string{"source"}),
		IntegrityFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadata_integrity_failures_total",
			Help: "Total number of downloads rejected by checksum verification",
		}, []string{"source"}),
	}
}
