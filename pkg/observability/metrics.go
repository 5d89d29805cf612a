// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the causeway gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// BackendBuckets defines histogram buckets suited for statistical backend
// executions, ranging from 50ms to 10 minutes.
var BackendBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 15, 60, 180, 600}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and path.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causeway_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "path"},
	)

	// RequestDuration records HTTP request duration in seconds by method and path.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "causeway_request_duration_seconds",
			Help:    "Request duration",
			Buckets: BackendBuckets,
		},
		[]string{"method", "path"},
	)

	// RoutingDecisionsTotal counts routing decisions by capability and
	// selection method (explicit, llm, rule).
	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causeway_routing_decisions_total",
			Help: "Routing decisions",
		},
		[]string{"capability", "method"},
	)

	// RoutingRejectedTotal counts requests rejected before dispatch by
	// taxonomy kind (routing_ambiguous, validation_failed, not_found).
	RoutingRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causeway_routing_rejected_total",
			Help: "Routing rejections",
		},
		[]string{"kind"},
	)

	// LLMClassificationsTotal counts LLM classifier calls by outcome
	// (chosen, undecided, unavailable, malformed).
	LLMClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causeway_llm_classifications_total",
			Help: "LLM classifier calls",
		},
		[]string{"outcome"},
	)

	// DispatchesTotal counts backend executions by capability and result
	// class.
	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causeway_dispatches_total",
			Help: "Backend dispatches",
		},
		[]string{"capability", "class"},
	)

	// DispatchDuration records backend execution duration in seconds.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "causeway_dispatch_duration_seconds",
			Help:    "Backend execution duration",
			Buckets: BackendBuckets,
		},
		[]string{"capability"},
	)

	// ActiveDispatches tracks the number of backend processes in flight.
	ActiveDispatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "causeway_dispatches_active",
			Help: "Backend executions in flight",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causeway_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RoutingDecisionsTotal,
		RoutingRejectedTotal,
		LLMClassificationsTotal,
		DispatchesTotal,
		DispatchDuration,
		ActiveDispatches,
		RateLimitRejectedTotal,
	)
}
