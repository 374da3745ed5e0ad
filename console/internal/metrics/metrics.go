package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store connectivity
	StoreUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarm_console_store_up",
			Help: "Whether the document store answered the last health check",
		},
	)

	// Alarm list synchronizer
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_polls_total",
			Help: "Alarm list fetches by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alarm_console_fetch_duration_seconds",
			Help:    "Duration of alarm list fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_deletes_total",
			Help: "Alarm delete cascades by outcome",
		},
		[]string{"outcome"},
	)

	// Alarm detail
	DetailLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_detail_loads_total",
			Help: "Alarm detail loads by outcome",
		},
		[]string{"outcome"},
	)

	EventCountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_event_counts_total",
			Help: "Per-rule event counts by where the value came from",
		},
		[]string{"source"},
	)

	AlarmUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_alarm_updates_total",
			Help: "Alarm status and tag changes by field and outcome",
		},
		[]string{"field", "outcome"},
	)

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_notifications_total",
			Help: "Alarm change notifications by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)

	// HTTP API
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_console_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alarm_console_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeStale   = "stale"
)

// Event count sources.
const (
	SourceOccurrence = "occurrence"
	SourceStore      = "store"
	SourceCache      = "cache"
)

// SetStoreUp records the latest health check result.
func SetStoreUp(up bool) {
	if up {
		StoreUp.Set(1)
		return
	}
	StoreUp.Set(0)
}
