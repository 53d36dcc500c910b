// Package observability provides index metrics and search statistics for
// monitoring and optimizer scheduling decisions.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for one index runtime. Collectors
// are registered on an injected Registerer so embedding hosts keep control of
// their metric namespace; no global registry side effects.
type Metrics struct {
	Upserts            *prometheus.CounterVec
	Deletes            *prometheus.CounterVec
	MappingFailures    *prometheus.CounterVec
	Searches           *prometheus.CounterVec
	PartitionsScanned  *prometheus.CounterVec
	PartitionsPruned   *prometheus.CounterVec
	HotSwaps           *prometheus.CounterVec
	RebuildRejections  *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	PartitionsLive     *prometheus.GaugeVec
	OptimizerRuns      *prometheus.CounterVec
}

// NewMetrics builds and registers the index collectors. A nil registerer
// yields collectors that record but are never exported, which keeps tests
// and embedded usage free of registration conflicts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_upserts_total",
			Help: "Documents written to the index.",
		}, []string{"index"}),
		Deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_deletes_total",
			Help: "Documents removed from the index.",
		}, []string{"index"}),
		MappingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_mapping_failures_total",
			Help: "Mapping errors during writes, split by outcome (aborted or skipped).",
		}, []string{"index", "outcome"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_searches_total",
			Help: "Search operations, split by result (ok, timeout, partial, error).",
		}, []string{"index", "result"}),
		PartitionsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_partitions_scanned_total",
			Help: "Index partitions scanned by searches.",
		}, []string{"index"}),
		PartitionsPruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_partitions_pruned_total",
			Help: "Index partitions skipped thanks to key-based pruning.",
		}, []string{"index"}),
		HotSwaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_hot_swaps_total",
			Help: "Configuration updates applied in place without a rebuild.",
		}, []string{"index"}),
		RebuildRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_rebuild_rejections_total",
			Help: "Configuration updates rejected because they require a rebuild.",
		}, []string{"index"}),
		SearchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridtext_search_duration_seconds",
			Help:    "Search latency across all scanned partitions.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"index"}),
		PartitionsLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridtext_partitions_live",
			Help: "Open partition engines per index.",
		}, []string{"index"}),
		OptimizerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridtext_optimizer_runs_total",
			Help: "Background optimizer passes, split by result (ok, error).",
		}, []string{"index", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Upserts, m.Deletes, m.MappingFailures, m.Searches,
			m.PartitionsScanned, m.PartitionsPruned, m.HotSwaps,
			m.RebuildRejections, m.SearchLatency, m.PartitionsLive,
			m.OptimizerRuns,
		)
	}
	return m
}
