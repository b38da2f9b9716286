// Package telemetry holds the host's Prometheus metrics and OpenTelemetry
// tracing setup.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of host metrics. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	decisions       *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
}

// NewMetrics registers the host metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolhost",
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by backend, method and outcome.",
		}, []string{"backend", "method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "toolhost",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent handling a request in its backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolhost",
			Name:      "pricing_decisions_total",
			Help:      "Pricing rule decisions, by rule and action.",
		}, []string{"rule", "action"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolhost",
			Name:      "publish_failures_total",
			Help:      "Broadcast messages that could not be published, by topic.",
		}, []string{"topic"}),
	}
	reg.MustRegister(
		m.requests,
		m.latency,
		m.decisions,
		m.publishFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(backend, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(backend, method, outcome).Inc()
	m.latency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// RecordDecision counts a pricing rule decision.
func (m *Metrics) RecordDecision(rule, action string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(rule, action).Inc()
}

// RecordPublishFailure counts a failed broadcast publish.
func (m *Metrics) RecordPublishFailure(topic string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(topic).Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
