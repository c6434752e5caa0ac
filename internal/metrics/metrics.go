// Package metrics exposes Prometheus instrumentation for digest delivery and feedback.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DigestsTotal counts orchestrator runs by outcome (delivered, skipped, failed).
	DigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Total number of digest runs by outcome",
		},
		[]string{"status"},
	)

	// DigestStepFailures counts failed runs by the pipeline step that failed.
	DigestStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_step_failures_total",
			Help: "Total number of failed digest runs by pipeline step",
		},
		[]string{"step"},
	)

	DigestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "Duration of a single user's digest run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Duration of a scheduler tick across all due users",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
	)

	SchedulerDueUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_due_users",
			Help: "Number of users found due on the most recent tick",
		},
	)

	// FeedbackTotal counts feedback submissions by rating and result
	// (recorded, already_submitted, expired, not_found).
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Total number of feedback submissions by rating and result",
		},
		[]string{"rating", "result"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through a circuit breaker by result",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
