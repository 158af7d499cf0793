package alerts

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alert queue subsystem.
type Metrics struct {
	TransitionsTotal    *prometheus.CounterVec
	BulkItemsTotal      *prometheus.CounterVec
	SimilarLookupsTotal prometheus.Counter
	SimilarMatches      prometheus.Histogram
}

// NewMetrics registers and returns queue metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseq_transitions_total",
			Help: "Total status transitions by target status.",
		}, []string{"status"}),
		BulkItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseq_bulk_items_total",
			Help: "Per-item outcomes of bulk transitions.",
		}, []string{"outcome"}),
		SimilarLookupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caseq_similar_lookups_total",
			Help: "Total similar-case lookups.",
		}),
		SimilarMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseq_similar_matches",
			Help:    "Similar cases returned per lookup.",
			Buckets: prometheus.LinearBuckets(0, 1, 6), // 0 .. 5
		}),
	}

	reg.MustRegister(
		m.TransitionsTotal,
		m.BulkItemsTotal,
		m.SimilarLookupsTotal,
		m.SimilarMatches,
	)

	return m
}
