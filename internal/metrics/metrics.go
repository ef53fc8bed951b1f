package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatverse_active_connections",
			Help: "Currently open websocket connections",
		},
	)

	LivenessEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatverse_liveness_evictions_total",
			Help: "Connections terminated by heartbeat timeout",
		},
	)

	// Routing metrics
	MessagesRouted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatverse_messages_routed_total",
			Help: "Messages persisted and fanned out to recipients",
		},
	)

	MessagesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatverse_messages_discarded_total",
			Help: "Inbound messages discarded before delivery",
		},
		[]string{"reason"}, // "malformed", "invalid", "anonymous", "stage_failed", "persist_failed"
	)

	// Presence metrics
	RosterBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatverse_roster_broadcasts_total",
			Help: "Roster pushes published to all connections",
		},
	)

	// Attachment metrics
	AttachmentsStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatverse_attachments_staged_total",
			Help: "File attachments decoded and written to the upload store",
		},
	)
)
