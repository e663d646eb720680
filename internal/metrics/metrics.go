package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of portal API requests (by route, method, and status).",
		},
		[]string{"route", "method", "status"},
	)

	// LoginsTotal counts login and MFA attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login and MFA attempts by step and outcome.",
		},
		[]string{"step", "outcome"},
	)

	// SessionsEnded counts sessions returning to anonymous.
	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_sessions_ended_total",
			Help: "Sessions ended, by reason (logout, timeout, mfa_failed).",
		},
		[]string{"reason"},
	)

	// ActiveSessions tracks bound session tokens.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_active_sessions",
			Help: "Number of session tokens currently bound to a context.",
		},
	)

	// InstructionTransitions counts accepted instruction status changes.
	InstructionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_instruction_transitions_total",
			Help: "Instruction status transitions by source and target status.",
		},
		[]string{"from", "to"},
	)

	// ServiceDuration measures service call latency including simulated delay.
	ServiceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_service_duration_seconds",
			Help:    "Duration of portal service operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms → ~2s
		},
		[]string{"service", "op"},
	)

	// EventsPublished counts events forwarded to external sinks.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_events_published_total",
			Help: "Events forwarded to external sinks (by sink, event type, and result).",
		},
		[]string{"sink", "type", "result"},
	)

	// PushConnections tracks open websocket connections.
	PushConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_push_connections",
			Help: "Number of open websocket push connections.",
		},
	)
)

// IncHTTPRequest increments the API request counter.
func IncHTTPRequest(route, method, status string) {
	HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
}

// IncLogin records a login or MFA attempt.
func IncLogin(step, outcome string) {
	LoginsTotal.WithLabelValues(step, outcome).Inc()
}

// IncSessionEnded records a session end.
func IncSessionEnded(reason string) {
	SessionsEnded.WithLabelValues(reason).Inc()
}

// IncTransition records an instruction status change.
func IncTransition(from, to string) {
	InstructionTransitions.WithLabelValues(from, to).Inc()
}

// IncEventPublished records an event forwarded to sink.
func IncEventPublished(sink, eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(sink, eventType, result).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}
