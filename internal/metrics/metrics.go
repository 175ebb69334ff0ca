// Package metrics defines the prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObservationBatches counts ingested observation batches by view source and outcome
	ObservationBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmetrics_observation_batches_total",
			Help: "Total number of observation batches ingested",
		},
		[]string{"view_source", "status"},
	)

	// MetricsUpserted counts individual token metric rows written
	MetricsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmetrics_rows_upserted_total",
			Help: "Total number of token metric rows upserted",
		},
		[]string{"chain", "view_source"},
	)

	// BatchSize tracks the size of ingested observation batches
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokenmetrics_batch_size",
			Help:    "Number of observations per ingested batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	// RankingRefreshes counts market-cap ranking refresh cycles by outcome
	RankingRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmetrics_ranking_refreshes_total",
			Help: "Total number of market-cap ranking refresh cycles",
		},
		[]string{"status"},
	)

	// SnapshotReads counts latest-snapshot lookups by outcome
	SnapshotReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmetrics_snapshot_reads_total",
			Help: "Total number of latest-snapshot lookups",
		},
		[]string{"status"},
	)
)
