// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebhookCallDuration tracks outbound webhook call duration.
	WebhookCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_call_duration_seconds",
			Help:    "Outbound webhook call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	// WebhookCallsTotal tracks outbound webhook calls by outcome.
	WebhookCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_calls_total",
			Help: "Total outbound webhook calls",
		},
		[]string{"outcome"},
	)

	// CallbacksReceivedTotal tracks inbound callbacks accepted.
	CallbacksReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callbacks_received_total",
			Help: "Total callbacks received from the automation service",
		},
	)

	// CallbackWaitsTotal tracks callback waits by outcome.
	CallbackWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callback_waits_total",
			Help: "Total callback waits",
		},
		[]string{"outcome"},
	)

	// WaitersActive tracks requests currently waiting for a callback.
	WaitersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "callback_waiters_active",
			Help: "Number of requests currently waiting for a callback",
		},
	)

	// DuplicatesSkippedTotal tracks messages skipped by deduplication.
	DuplicatesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicates_skipped_total",
			Help: "Total duplicate messages skipped without an outbound call",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordWebhookCall records metrics for an outbound webhook call.
func RecordWebhookCall(outcome string, duration float64) {
	WebhookCallDuration.WithLabelValues(outcome).Observe(duration)
	WebhookCallsTotal.WithLabelValues(outcome).Inc()
}

// RecordWait records the outcome of a callback wait.
func RecordWait(outcome string) {
	CallbackWaitsTotal.WithLabelValues(outcome).Inc()
}

// IncrementWaiters increments the active waiter count.
func IncrementWaiters() {
	WaitersActive.Inc()
}

// DecrementWaiters decrements the active waiter count.
func DecrementWaiters() {
	WaitersActive.Dec()
}
