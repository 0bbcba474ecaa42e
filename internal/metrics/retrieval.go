package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and indexing Prometheus metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "retrieval_requests_total",
			Help:      "Total number of retrieval calls",
		},
		[]string{"status"}, // "ok" / "empty" / "error"
	)

	RetrievalSelectedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Name:      "retrieval_selected_chunks",
			Help:      "Number of chunks selected per retrieval call",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)

	WebFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "web_fallback_total",
			Help:      "Web-search fallback invocations",
		},
		[]string{"status"}, // "ok" / "error"
	)

	IndexChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Name:      "index_chunks",
			Help:      "Chunks currently in the index",
		},
	)

	IndexRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "index_rebuilds_total",
			Help:      "Index rebuild and incremental update runs",
		},
		[]string{"mode", "status"}, // mode: "full" / "incremental"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalSelectedChunks)
	prometheus.MustRegister(WebFallbackTotal)
	prometheus.MustRegister(IndexChunks)
	prometheus.MustRegister(IndexRebuildsTotal)
	retrievalMetricsRegistered = true
}
