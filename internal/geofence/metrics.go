package geofence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "geofence",
		Name:      "alerts_total",
		Help:      "Total geofence alerts raised, by geofence name.",
	}, []string{"geofence"})

	alertsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "geofence",
		Name:      "alerts_dropped_total",
		Help:      "Total alerts dropped for slow subscribers.",
	})

	subscribersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cdrintel",
		Subsystem: "geofence",
		Name:      "subscribers_active",
		Help:      "Number of active alert subscriptions.",
	})
)
