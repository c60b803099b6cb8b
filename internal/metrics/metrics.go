// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediastore"

var (
	// CacheLookups counts object cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Object cache lookups by result",
		},
		[]string{"result"},
	)

	// CachePopulations counts background cache writes by result (ok, stale, error, dropped).
	CachePopulations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "populations_total",
			Help:      "Background cache populations by result",
		},
		[]string{"result"},
	)

	// ReplicatedWrites counts logical uploads and deletes by outcome
	// (ok, partial, failed). Partial means one backend committed.
	ReplicatedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "writes_total",
			Help:      "Replicated writes by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Duration of object store calls",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"backend", "op"},
	)

	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Access decisions by reason",
		},
		[]string{"reason"},
	)

	// AccessDegraded counts collaborator failures that were treated as "no".
	AccessDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "degraded_total",
			Help:      "Access collaborator calls that failed and defaulted to no",
		},
		[]string{"step"},
	)

	MigratedObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "objects_total",
			Help:      "Objects processed by migration jobs",
		},
		[]string{"job", "backend", "result"},
	)
)
