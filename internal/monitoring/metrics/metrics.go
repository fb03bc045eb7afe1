package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

var (
	// PollsTotal counts polls per node and outcome (ok / error kind)
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewatch_polls_total",
			Help: "Total number of node status polls",
		},
		[]string{"node", "result"},
	)

	// PollLatency tracks how long a status poll took
	PollLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodewatch_poll_latency_seconds",
			Help:    "Node status poll latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	// NodeHeight is the last height reported by the node
	NodeHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodewatch_node_height",
			Help: "Latest block height reported by the node",
		},
		[]string{"node"},
	)

	// NodeStatus is 1 for the node's current status and 0 for the others
	NodeStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodewatch_node_status",
			Help: "Current health status of the node (1 = active)",
		},
		[]string{"node", "status"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewatch_transitions_total",
			Help: "Total number of node status transitions",
		},
		[]string{"node", "from", "to"},
	)

	// NotificationsTotal counts delivery outcomes (sent, failed, dropped)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewatch_notifications_total",
			Help: "Total number of alert notifications by result",
		},
		[]string{"result"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewatch_alerts_suppressed_total",
			Help: "Alerts withheld by dedup or cool-down",
		},
		[]string{"node", "status"},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodewatch_dispatch_queue_depth",
			Help: "Notifications waiting for a dispatcher worker",
		},
	)

	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodewatch_db_connection_pool_usage_percent",
			Help: "Percentage of database connections in use",
		},
	)
)

// SetNodeStatus flips the status gauge of a node to current.
func SetNodeStatus(node domain.NodeID, current domain.Status) {
	for _, s := range domain.NodeStatuses {
		v := 0.0
		if s == current {
			v = 1
		}
		NodeStatus.WithLabelValues(string(node), string(s)).Set(v)
	}
}
