// Package observability exposes Prometheus metrics and health endpoints
// for a running Host.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RPC metrics
	rpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axon_rpc_requests_total",
			Help: "Total number of Host RPC requests",
		},
		[]string{"method", "status"},
	)

	rpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "axon_rpc_request_duration_seconds",
			Help:    "Host RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Actor execution metrics
	actorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axon_actor_calls_total",
			Help: "Total number of actor method executions",
		},
		[]string{"class", "status"},
	)

	actorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "axon_actor_call_duration_seconds",
			Help:    "Actor method execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class"},
	)

	// Promise pipelining metrics
	placeholderResolutionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axon_placeholder_resolutions_total",
			Help: "Total number of placeholder arguments resolved against origin Hosts",
		},
	)

	// Host state metrics
	liveActors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "axon_live_actors",
			Help: "Number of live actor instances",
		},
	)

	queuedUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "axon_queued_units",
			Help: "Number of units of work waiting in the worker queue",
		},
	)

	pendingCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "axon_pending_calls",
			Help: "Number of retained pending-call records",
		},
	)

	overloadRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axon_overload_rejections_total",
			Help: "Total number of calls rejected because the worker queue was full",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the Prometheus metrics. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			rpcRequestsTotal,
			rpcRequestDuration,
			actorCallsTotal,
			actorCallDuration,
			placeholderResolutionsTotal,
			liveActors,
			queuedUnits,
			pendingCalls,
			overloadRejectionsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordRPCRequest records Host RPC request metrics.
func RecordRPCRequest(method, status string, duration time.Duration) {
	rpcRequestsTotal.WithLabelValues(method, status).Inc()
	rpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordActorCall records an actor method execution.
func RecordActorCall(class, status string, duration time.Duration) {
	actorCallsTotal.WithLabelValues(class, status).Inc()
	actorCallDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordPlaceholderResolution counts one placeholder argument resolved
// against its origin Host.
func RecordPlaceholderResolution() {
	placeholderResolutionsTotal.Inc()
}

// RecordOverloadRejection counts one call rejected due to queue saturation.
func RecordOverloadRejection() {
	overloadRejectionsTotal.Inc()
}

// SetLiveActors sets the live actors gauge.
func SetLiveActors(count int) {
	liveActors.Set(float64(count))
}

// SetQueuedUnits sets the queued units gauge.
func SetQueuedUnits(count int) {
	queuedUnits.Set(float64(count))
}

// SetPendingCalls sets the retained pending-call gauge.
func SetPendingCalls(count int) {
	pendingCalls.Set(float64(count))
}
