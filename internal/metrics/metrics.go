// Package metrics provides Prometheus instrumentation for the signaling
// server: gauges for connection, queue and room counts, counters for relay
// throughput, and a histogram for match wait times.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// QueueSize tracks the current number of users waiting to be paired.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_match_queue_size",
		Help: "Current number of users in the waiting queue",
	})

	// ActiveRooms tracks the current number of active two-party rooms.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_active_rooms",
		Help: "Current number of active signaling rooms",
	})

	// RelayedMessages counts messages forwarded between peers, labeled by
	// message type (offer, answer, add-ice-candidate, user-info, chat-message).
	RelayedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_relayed_messages_total",
		Help: "Total number of messages relayed between room peers",
	}, []string{"type"})

	// DroppedMessages counts messages discarded without delivery, labeled by
	// reason (unknown_room, not_in_room, no_room, rate_limited, invalid).
	DroppedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_dropped_messages_total",
		Help: "Total number of inbound messages dropped without delivery",
	}, []string{"reason"})

	// MatchWaitDuration records how long users waited in the queue before
	// being paired.
	MatchWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_match_wait_seconds",
		Help:    "Time from queue join to successful pairing",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 15, 30, 60},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		QueueSize,
		ActiveRooms,
		RelayedMessages,
		DroppedMessages,
		MatchWaitDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
