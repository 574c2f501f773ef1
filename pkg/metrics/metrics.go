// Package metrics holds the Prometheus collectors for the monitor loop and the
// notifier. They register on the default registry exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "position_monitor"

// CyclesTotal counts monitor cycles by outcome (success, skipped, partial, failed).
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "cycles_total",
		Help:      "Total number of monitor cycles by result",
	},
	[]string{"result"},
)

var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one monitor cycle",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
)

var ActivePositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "active_positions",
		Help:      "Active positions loaded by the last cycle",
	},
)

var PositionsClosedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "positions_closed_total",
		Help:      "Positions closed by reason (tp, sl, manual)",
	},
	[]string{"reason"},
)

var QuoteFetchFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quotes",
		Name:      "fetch_failures_total",
		Help:      "Quote fetches that failed or returned no price",
	},
	[]string{"kind"},
)

var StoreWriteFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "write_failures_total",
		Help:      "Failed position close writes",
	},
)

var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "notifications_total",
		Help:      "Close event deliveries by sender and result",
	},
	[]string{"sender", "result"},
)

var NotificationsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "dropped_total",
		Help:      "Close events dropped because the queue stayed full",
	},
)
