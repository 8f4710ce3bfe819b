// Package metrics exposes Prometheus collectors shared by the bot runtime and
// the HTTP endpoint that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "reviewbot"

var (
	HandlerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "handler_calls_total", Help: "Handled updates by handler and outcome."},
		[]string{"handler", "outcome"},
	)
	HandlerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "handler_duration_seconds",
			Help:    "Update handling duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "messages_sent_total", Help: "Messages sent or edited in reply to updates."},
	)
	SendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "send_failures_total", Help: "Asynchronous sends that failed after retries."},
		[]string{"action", "kind"},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limited_total", Help: "Updates dropped by the rate limiter."},
	)
	ReviewsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "reviews_submitted_total", Help: "Reviews queued for moderation."},
	)
	ModerationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "moderation_decisions_total", Help: "Moderator actions by decision and result."},
		[]string{"decision", "result"},
	)
	Searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "searches_total", Help: "Employer searches by result."},
		[]string{"result"}, // result: hit|miss|empty
	)
	SessionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "session_ops_total", Help: "Session store operations by backend and op."},
		[]string{"backend", "op"}, // op: hit|miss|set|del
	)
)

// NewRegistry returns a registry holding every collector of this package plus
// the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HandlerCalls, HandlerLatency, MessagesSent, SendFailures, RateLimited,
		ReviewsSubmitted, ModerationDecisions, Searches, SessionOps,
	)
	return reg
}

// ObserveHandler records one handled update.
func ObserveHandler(handler, outcome string, d time.Duration) {
	HandlerCalls.WithLabelValues(handler, outcome).Inc()
	HandlerLatency.WithLabelValues(handler).Observe(d.Seconds())
}

// ObserveSendFailure records a dispatcher job that gave up.
func ObserveSendFailure(action, kind string) {
	SendFailures.WithLabelValues(action, kind).Inc()
}

// ObserveModeration records a moderator decision (approve|reject) and its result.
func ObserveModeration(decision, result string) {
	ModerationDecisions.WithLabelValues(decision, result).Inc()
}

// ObserveSearch records a search outcome: hit, miss or empty.
func ObserveSearch(result string) {
	Searches.WithLabelValues(result).Inc()
}

// ObserveSession records a session store operation.
func ObserveSession(backend, op string) {
	SessionOps.WithLabelValues(backend, op).Inc()
}
