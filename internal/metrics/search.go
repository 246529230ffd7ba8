package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search backend and state store Prometheus metrics.
var (
	IndexRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Name:      "index_requests_total",
			Help:      "Total number of search backend requests",
		},
		[]string{"index", "status"}, // "ok" or an error kind
	)

	IndexRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mlsearch",
			Name:      "index_request_duration_seconds",
			Help:      "Search backend request duration in seconds, retries included",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"index"},
	)

	IndexRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Name:      "index_retries_total",
			Help:      "Total number of retried search backend requests",
		},
		[]string{"index", "kind"},
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Name:      "response_cache_total",
			Help:      "Search response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	StaleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Name:      "stale_responses_total",
			Help:      "Search responses discarded because a newer state superseded them",
		},
		[]string{"entity"},
	)

	CappedPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Name:      "capped_pages_total",
			Help:      "Page requests clamped to the last page inside the result window",
		},
		[]string{"entity"},
	)

	MountedSurfaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mlsearch",
			Name:      "mounted_surfaces",
			Help:      "Number of currently mounted search surfaces",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexRequestsTotal)
	prometheus.MustRegister(IndexRequestDuration)
	prometheus.MustRegister(IndexRetriesTotal)
	prometheus.MustRegister(ResponseCacheTotal)
	prometheus.MustRegister(StaleResponsesTotal)
	prometheus.MustRegister(CappedPagesTotal)
	prometheus.MustRegister(MountedSurfaces)
	searchMetricsRegistered = true
}
