package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadqueue_mutations_total",
			Help: "Total optimistic mutations applied to the lead queue",
		},
		[]string{"action", "outcome"},
	)

	QueueRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadqueue_rollbacks_total",
			Help: "Total optimistic mutations rolled back after a failed call",
		},
		[]string{"action"},
	)

	QueueRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadqueue_refreshes_total",
			Help: "Total queue page fetches, by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	QueueStaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadqueue_stale_responses_total",
			Help: "Fetch responses discarded by the request-id guard",
		},
	)

	QueueLeadsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadqueue_leads_cached",
			Help: "Leads currently held in the queue cache",
		},
	)

	HubEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_received_total",
			Help: "Realtime events received, by hub and event name",
		},
		[]string{"hub", "event"},
	)

	HubEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_dropped_total",
			Help: "Realtime events dropped before dispatch, by hub and reason",
		},
		[]string{"hub", "reason"},
	)

	HubReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_reconnects_total",
			Help: "Hub reconnect attempts",
		},
		[]string{"hub"},
	)

	HubConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_connected",
			Help: "1 while the hub subscription is live, 0 otherwise",
		},
		[]string{"hub"},
	)

	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_messages_sent_total",
			Help: "Outbound SMS sends, by outcome",
		},
		[]string{"outcome"},
	)

	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Operator alert deliveries, by outcome",
		},
		[]string{"outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "api_request_duration_seconds",
			Help: "Duration of backend REST calls",
		},
		[]string{"operation"},
	)
)
