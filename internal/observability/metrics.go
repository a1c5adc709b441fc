package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var latencyBuckets = prometheus.ExponentialBuckets(0.001, 4, 12)

var (
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vtbench_query_duration_seconds",
			Help:    "Count query latency from statement preparation to the last row pulled.",
			Buckets: latencyBuckets,
		},
		[]string{"shape", "strategy"},
	)
	queryResultCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vtbench_query_result_count",
			Help: "Count returned by the most recent query of each shape and strategy.",
		},
		[]string{"shape", "strategy"},
	)
	materializeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vtbench_materialize_duration_seconds",
			Help:    "Time to copy a streaming relation into session storage.",
			Buckets: latencyBuckets,
		},
		[]string{"relation"},
	)
	materializedRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vtbench_materialized_rows",
			Help: "Row count of each materialized relation.",
		},
		[]string{"relation"},
	)
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtbench_runs_total",
			Help: "Total number of harness runs by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		queryDurationSeconds,
		queryResultCount,
		materializeDurationSeconds,
		materializedRows,
		runsTotal,
	)
}

func ObserveQuery(shape, strategy string, count int64, elapsed time.Duration) {
	queryDurationSeconds.WithLabelValues(shape, strategy).Observe(elapsed.Seconds())
	queryResultCount.WithLabelValues(shape, strategy).Set(float64(count))
}

func ObserveMaterialize(relation string, rows int64, elapsed time.Duration) {
	materializeDurationSeconds.WithLabelValues(relation).Observe(elapsed.Seconds())
	materializedRows.WithLabelValues(relation).Set(float64(rows))
}

func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// WriteMetrics dumps every registered collector to path in the Prometheus text
// format, for node_exporter's textfile collector.
func WriteMetrics(path string) error {
	if path == "" {
		return fmt.Errorf("metrics path is required")
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
