package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "api",
		Name:      "ingest_requests_total",
		Help:      "Total upload ingest requests, by status.",
	}, []string{"status"})

	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cdrintel",
		Subsystem: "api",
		Name:      "ingest_duration_seconds",
		Help:      "Upload ingest request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	analyticsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "api",
		Name:      "analytics_requests_total",
		Help:      "Served analytics views, by view.",
	}, []string{"view"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cdrintel",
		Subsystem: "api",
		Name:      "ws_connections_active",
		Help:      "Number of active geofence alert WebSocket connections.",
	})

	wsAlertsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "api",
		Name:      "ws_alerts_sent_total",
		Help:      "Geofence alerts written to WebSocket clients.",
	})
)
