// Package metrics holds the Prometheus collectors shared by the hub and the client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HubSubscribers tracks open /events streams
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "satlink_hub_subscribers",
			Help: "Number of open discovery event streams",
		},
	)

	// HubAnnouncementsTotal counts announcements written to subscribers
	HubAnnouncementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satlink_hub_announcements_total",
			Help: "Total number of announcements queued to subscribers",
		},
	)

	// HubRegistrationsTotal counts registration attempts by outcome
	HubRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_hub_registrations_total",
			Help: "Total number of source registrations by outcome",
		},
		[]string{"transport", "outcome"},
	)

	// HubEvictionsTotal counts subscribers disconnected for exceeding their backlog
	HubEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satlink_hub_evictions_total",
			Help: "Total number of subscribers disconnected for falling behind",
		},
	)

	// Entities tracks live entities per transport
	Entities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satlink_entities",
			Help: "Number of live telemetry entities",
		},
		[]string{"transport"},
	)

	// UpdatesAppliedTotal counts updates delivered to entities
	UpdatesAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_updates_applied_total",
			Help: "Total number of telemetry updates applied to entities",
		},
		[]string{"transport", "kind"},
	)

	// SupersededTotal counts polling requests cancelled by a newer tick
	SupersededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_pull_superseded_total",
			Help: "Total number of polling requests superseded before completion",
		},
		[]string{"kind"},
	)

	// ChannelErrorsTotal counts transport failures per channel
	ChannelErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_channel_errors_total",
			Help: "Total number of transport channel failures",
		},
		[]string{"transport", "kind"},
	)

	// RequestDuration tracks completed polling request latency in seconds
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satlink_pull_request_duration_seconds",
			Help:    "Duration of completed polling requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 1, 5},
		},
		[]string{"kind"},
	)
)

// RecordRegistration records one registration attempt. Transports other than
// http and ws share the "invalid" label.
func RecordRegistration(transport string, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	switch transport {
	case "http", "ws":
	default:
		transport = "invalid"
	}
	HubRegistrationsTotal.WithLabelValues(transport, outcome).Inc()
}

// RecordEntityAdded increments the live entity gauge.
func RecordEntityAdded(transport string) {
	Entities.WithLabelValues(transport).Inc()
}

// RecordEntityRemoved decrements the live entity gauge.
func RecordEntityRemoved(transport string) {
	Entities.WithLabelValues(transport).Dec()
}

// RecordUpdate records an update applied to an entity.
func RecordUpdate(transport, kind string) {
	UpdatesAppliedTotal.WithLabelValues(transport, kind).Inc()
}

// RecordSuperseded records a polling request cancelled by its successor.
func RecordSuperseded(kind string) {
	SupersededTotal.WithLabelValues(kind).Inc()
}

// RecordChannelError records a transport failure on one channel.
func RecordChannelError(transport, kind string) {
	ChannelErrorsTotal.WithLabelValues(transport, kind).Inc()
}

// RecordRequestDuration records the latency of a completed polling request.
func RecordRequestDuration(kind string, seconds float64) {
	RequestDuration.WithLabelValues(kind).Observe(seconds)
}
