package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	completionEvaluations *prometheus.CounterVec
	completionTransitions *prometheus.CounterVec
	progressConflicts     prometheus.Counter
	loginLimiterOutcomes  *prometheus.CounterVec
	pointsAwardedTotal    *prometheus.CounterVec
	cacheLookupsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "izumi_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		completionEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_completion_evaluations_total",
			Help: "Completion evaluations by trigger and resulting status.",
		}, []string{"trigger", "status"})

		completionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_completion_transitions_total",
			Help: "Enrollment completion status changes.",
		}, []string{"from", "to"})

		progressConflicts = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "izumi_progress_conflicts_total",
			Help: "Progress writes that lost an optimistic concurrency check.",
		})

		loginLimiterOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_login_limiter_outcomes_total",
			Help: "Login limiter decisions and store failures.",
		}, []string{"outcome"})

		pointsAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_points_awarded_total",
			Help: "Gamification points awarded by reason.",
		}, []string{"reason"})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "izumi_cache_lookups_total",
			Help: "Redis cache lookups by cache and result.",
		}, []string{"cache", "result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			completionEvaluations,
			completionTransitions,
			progressConflicts,
			loginLimiterOutcomes,
			pointsAwardedTotal,
			cacheLookupsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// CompletionEvaluations counts evaluations by trigger (progress, listing) and status.
func CompletionEvaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return completionEvaluations
}

// CompletionTransitions counts status flips between in-progress and completed.
func CompletionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return completionTransitions
}

// ProgressConflicts counts lost optimistic writes.
func ProgressConflicts() prometheus.Counter {
	RegisterMetrics()
	return progressConflicts
}

// LoginLimiterOutcomes counts limiter decisions.
func LoginLimiterOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return loginLimiterOutcomes
}

// PointsAwarded counts gamification points by reason.
func PointsAwarded() *prometheus.CounterVec {
	RegisterMetrics()
	return pointsAwardedTotal
}

// CacheLookups counts cache hits and misses.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}
