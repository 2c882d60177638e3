package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "ingest",
		Name:      "files_total",
		Help:      "Total input files processed, by format and status.",
	}, []string{"format", "status"})

	ingestRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Total data rows processed, by outcome.",
	}, []string{"outcome"})

	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cdrintel",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Time spent ingesting one file in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	ingestVendorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "ingest",
		Name:      "vendor_total",
		Help:      "Total files ingested, by detected vendor.",
	}, []string{"vendor"})
)
