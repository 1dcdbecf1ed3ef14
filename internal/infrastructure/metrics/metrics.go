package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WhatsApp-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Session lifecycle counters
	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "sessions_started_total",
			Help:      "Total session start operations that built a new connection",
		},
	)

	SessionsConnectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "sessions_connected_total",
			Help:      "Total successful session connections",
		},
	)

	SessionTeardownsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "session_teardowns_total",
			Help:      "Total terminal session teardowns",
		},
		[]string{"reason"},
	)

	ReconnectsScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "reconnects_scheduled_total",
			Help:      "Total reconnection attempts scheduled after transient closes",
		},
	)

	// Webhook delivery counter
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook delivery attempts",
		},
		[]string{"event", "status"},
	)

	// Webhook delivery duration
	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "webhook_duration_seconds",
			Help:      "Webhook delivery duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"event"},
	)

	// Outbound message counter
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "messages_sent_total",
			Help:      "Total outbound messages by content type and status",
		},
		[]string{"type", "status"},
	)

	// DB query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wahub",
			Subsystem: "whatsapp_api",
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"query_type"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordSessionStarted records a session start that built a new connection
func RecordSessionStarted() {
	SessionsStartedTotal.Inc()
}

// RecordSessionConnected records a successful connection
func RecordSessionConnected() {
	SessionsConnectedTotal.Inc()
}

// RecordSessionTeardown records a terminal teardown
func RecordSessionTeardown(reason string) {
	SessionTeardownsTotal.WithLabelValues(reason).Inc()
}

// RecordReconnectScheduled records a scheduled reconnection attempt
func RecordReconnectScheduled() {
	ReconnectsScheduledTotal.Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt
func RecordWebhookDelivery(event, status string, durationSec float64) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
	WebhookDuration.WithLabelValues(event).Observe(durationSec)
}

// RecordMessageSent records an outbound message attempt
func RecordMessageSent(contentType, status string) {
	MessagesSentTotal.WithLabelValues(contentType, status).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(queryType string, durationSec float64) {
	DBQueryDuration.WithLabelValues(queryType).Observe(durationSec)
}
