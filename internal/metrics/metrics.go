// Package metrics exposes the service's Prometheus instrumentation. Collectors
// are package-level and registered once; components increment them directly.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits / CacheMisses count metadata cache outcomes per logical
	// resource ("categories", "channels", "guide").
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamfront_cache_hits_total",
		Help: "Metadata cache hits by resource.",
	}, []string{"resource"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamfront_cache_misses_total",
		Help: "Metadata cache misses (loader invocations) by resource.",
	}, []string{"resource"})

	// UpstreamRequests counts provider calls by action and outcome
	// ("ok", "error").
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamfront_upstream_requests_total",
		Help: "Provider API/playlist/segment requests by action and outcome.",
	}, []string{"action", "outcome"})

	// RelayBytes counts bytes streamed to clients through the segment relay.
	RelayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamfront_relay_bytes_total",
		Help: "Bytes relayed to clients (segments and keys).",
	})

	// Rejected counts guard rejections by reason ("unconfigured", "unauthorized").
	Rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamfront_guard_rejected_total",
		Help: "Requests rejected by the access guard, by reason.",
	}, []string{"reason"})
)

// ResourceFromKey maps a cache key like "channels:7" to its resource label.
func ResourceFromKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
