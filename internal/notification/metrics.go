package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Total number of per-recipient notification rows persisted.",
	}, []string{"type"})

	DispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dispatch_failures_total",
		Help: "Total number of dispatch batches that failed to commit.",
	})

	AnnouncementsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_announcements_total",
		Help: "Total number of push announcements handed off, by transport.",
	}, []string{"transport"})

	ListLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notifications_list_latency_seconds",
		Help:    "Latency of notification list queries.",
		Buckets: prometheus.DefBuckets,
	})

	ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notifications_ws_sessions",
		Help: "Current number of connected WebSocket sessions.",
	})
)

func StartListTimer() *prometheus.Timer {
	return prometheus.NewTimer(ListLatency)
}
