package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	allocations *prometheus.CounterVec
	messages    *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. A nil registerer disables metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffchat_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffchat_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffchat_http_errors_total",
			Help: "HTTP error responses by domain code.",
		}, []string{"route", "method", "code"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffchat_employee_id_allocations_total",
			Help: "Employee ID allocation attempts by role and outcome.",
		}, []string{"role", "outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffchat_messages_appended_total",
			Help: "Messages appended by room kind.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffchat_broadcast_delivered_total",
			Help: "Envelopes handed to subscribers.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffchat_broadcast_dropped_total",
			Help: "Envelopes dropped for slow subscribers.",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.requests, m.latency, m.errors, m.allocations, m.messages, m.delivered, m.dropped)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordAllocation counts one allocation attempt. outcome is "ok", "retry" or "error".
func (m *Metrics) RecordAllocation(role, outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(role, outcome).Inc()
}

// RecordMessage counts an appended message.
func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

// ObserveBroadcast records one publish. Keys are collapsed to their prefix to bound
// label cardinality.
func (m *Metrics) ObserveBroadcast(key string, delivered, dropped int) {
	if m == nil {
		return
	}
	topic := topicLabel(key)
	if delivered > 0 {
		m.delivered.WithLabelValues(topic).Add(float64(delivered))
	}
	if dropped > 0 {
		m.dropped.WithLabelValues(topic).Add(float64(dropped))
	}
}

func topicLabel(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	if key == "" {
		return "unknown"
	}
	return key
}
