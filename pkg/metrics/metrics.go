package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpsertCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemosyne_upserts_total",
			Help: "Total number of create/upsert calls by outcome",
		},
		[]string{"outcome"},
	)

	PartialSyncCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemosyne_partial_sync_total",
			Help: "Create/upsert calls where the vector write succeeded but the warehouse write failed",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "mnemosyne_search_duration_seconds",
			Help: "Search latency in seconds, embedding included",
		},
	)

	UpsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "mnemosyne_upsert_duration_seconds",
			Help: "Create/upsert latency in seconds, embedding included",
		},
	)

	SyncPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemosyne_sync_exported_total",
			Help: "Records pushed to the warehouse by export passes",
		},
	)

	SyncPulled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemosyne_sync_imported_total",
			Help: "Records applied to the vector index by import passes",
		},
	)

	SyncConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemosyne_sync_conflicts_total",
			Help: "Import records where the vector copy won conflict resolution",
		},
	)

	SyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemosyne_sync_failures_total",
			Help: "Failed sync passes by direction",
		},
		[]string{"direction"},
	)
)
