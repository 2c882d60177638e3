package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "store",
		Name:      "records_written_total",
		Help:      "Total CDR records written to the store.",
	})

	writeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "store",
		Name:      "write_errors_total",
		Help:      "Total failed write operations, by operation.",
	}, []string{"op"})

	flushDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cdrintel",
		Subsystem: "store",
		Name:      "flush_duration_seconds",
		Help:      "Write batch flush duration to DuckDB in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	dbSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cdrintel",
		Subsystem: "store",
		Name:      "db_size_bytes",
		Help:      "DuckDB database file size in bytes.",
	})
)
