// Package observability exposes Prometheus metrics for the dispatch
// pipeline: per-tool call outcomes, upstream attempts and latency, retries
// and throttle waits.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors. It implements the retry engine's
// Observer interface and the catalog's call hook.
type Metrics struct {
	CallsTotal       *prometheus.CounterVec
	AttemptsTotal    *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	ThrottleWaits    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdata",
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdata",
			Name:      "upstream_attempts_total",
			Help:      "Upstream request attempts by source and HTTP status.",
		}, []string{"source", "status"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdata",
			Name:      "upstream_retries_total",
			Help:      "Retries by source and failure kind.",
		}, []string{"source", "kind"}),
		ThrottleWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdata",
			Name:      "throttle_waits_total",
			Help:      "Calls held back by shared rate-limit state.",
		}, []string{"source"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "usdata",
			Name:      "upstream_request_seconds",
			Help:      "Upstream request latency by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

// ObserveCall records one completed tool call.
func (m *Metrics) ObserveCall(tool string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.CallsTotal.WithLabelValues(tool, outcome).Inc()
}

// ObserveAttempt records one upstream exchange.
func (m *Metrics) ObserveAttempt(source string, status int, d time.Duration) {
	m.AttemptsTotal.WithLabelValues(source, strconv.Itoa(status)).Inc()
	m.UpstreamDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRetry records one retry decision.
func (m *Metrics) ObserveRetry(source string, kind string) {
	m.RetriesTotal.WithLabelValues(source, kind).Inc()
}

// ObserveThrottleWait records one rate-limit hold.
func (m *Metrics) ObserveThrottleWait(source string, _ time.Duration) {
	m.ThrottleWaits.WithLabelValues(source).Inc()
}
