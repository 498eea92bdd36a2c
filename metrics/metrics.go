package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sacctcollapse/collapse"
	"sacctcollapse/units"
)

const namespace = "sacctcollapse"

var (
	PartitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_total",
			Help:      "Partitions processed, by variant and outcome (ok/failed).",
		},
		[]string{"variant", "status"},
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows read (in) and jobs written (out).",
		},
		[]string{"variant", "direction"},
	)

	LenientParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lenient_parses_total",
			Help:      "Malformed tokens replaced by a neutral value, by token category.",
		},
		[]string{"category"},
	)

	PartitionSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Wall time to read, collapse, and write one partition.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"variant"},
	)

	BusyWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Partition workers currently processing.",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)
)

// ObservePartition records one partition.  `diag` is nil if the partition failed before it was
// collapsed.
func ObservePartition(variant string, diag *collapse.Diagnostics, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	PartitionsTotal.WithLabelValues(variant, status).Inc()
	PartitionSeconds.WithLabelValues(variant).Observe(elapsed.Seconds())
	if diag == nil {
		return
	}
	RowsTotal.WithLabelValues(variant, "in").Add(float64(diag.InputRows))
	if err == nil {
		RowsTotal.WithLabelValues(variant, "out").Add(float64(diag.Rows))
	}
	for _, c := range units.Categories() {
		if n := diag.Leniency.Count(c); n > 0 {
			LenientParsesTotal.WithLabelValues(c.String()).Add(float64(n))
		}
	}
}
