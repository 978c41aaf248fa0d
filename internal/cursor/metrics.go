package cursor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minadb",
		Subsystem: "cursor",
		Name:      "rows_fetched_total",
		Help:      "total number of rows fetched by readers",
	})

	fetchCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minadb",
		Subsystem: "cursor",
		Name:      "fetch_canceled_total",
		Help:      "number of reader operations aborted through their context",
	})

	catalogQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minadb",
		Subsystem: "cursor",
		Name:      "catalog_queries_total",
		Help:      "number of auxiliary catalog queries issued during schema synthesis",
	})

	schemaSynthesisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "minadb",
		Subsystem: "cursor",
		Name:      "schema_synthesis_duration_seconds",
		Help:      "time spent synthesizing schema tables",
		Buckets:   prometheus.DefBuckets,
	})
)
