// Package metrics defines the Prometheus collectors shared by the context
// builder and the hosted server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContextCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveybot_context_cache_requests_total",
			Help: "Table context lookups by cache result (hit or miss)",
		},
		[]string{"result"},
	)

	ContextBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveybot_context_builds_total",
			Help: "Table context builds that reached the warehouse, by status",
		},
		[]string{"status"},
	)

	WarehouseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveybot_warehouse_queries_total",
			Help: "Warehouse round-trips by status",
		},
		[]string{"status"},
	)

	WarehouseQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surveybot_warehouse_query_duration_seconds",
			Help:    "Duration of warehouse round-trips",
			Buckets: prometheus.DefBuckets,
		},
	)
)
