package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchkit",
			Name:      "search_requests_total",
			Help:      "Total number of search requests sent to a backend",
		},
		[]string{"status"}, // "ok" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "searchkit",
			Name:      "search_duration_seconds",
			Help:      "Backend search round trip in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SearchHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "searchkit",
			Name:      "search_hits_total",
			Help:      "Total number of hits returned by backends",
		},
	)

	ObjectLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchkit",
			Name:      "object_lookups_total",
			Help:      "Domain object lookups by hit id",
		},
		[]string{"result"}, // "found" / "missing"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchHitsTotal)
	prometheus.MustRegister(ObjectLookupsTotal)
	searchMetricsRegistered = true
}
