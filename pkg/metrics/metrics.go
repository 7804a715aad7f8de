// Package metrics provides Prometheus instrumentation for smoothrate components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for smoothrate components.
type Registry struct {
	// Rate Limiting Metrics
	RateLimitRequests      *prometheus.CounterVec
	RateLimitAllowed       *prometheus.CounterVec
	RateLimitDenied        *prometheus.CounterVec
	RateLimitWaitTime      *prometheus.HistogramVec
	RateLimitStoredPermits *prometheus.GaugeVec
	RateLimitRate          *prometheus.GaugeVec
	RateLimitRateChanges   *prometheus.CounterVec

	// Rate Plan Metrics
	PlanStepsApplied *prometheus.CounterVec
	PlanStepsFailed  *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by smoothrate components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of permits requested",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitAllowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "allowed_total",
				Help:      "Total number of permits granted",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "denied_total",
				Help:      "Total number of permits denied",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "wait_duration_seconds",
				Help:      "Time spent waiting for permits",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitStoredPermits: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "stored_permits",
				Help:      "Number of permits currently banked",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "configured_rate",
				Help:      "Configured steady rate in permits per second",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitRateChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smoothrate",
				Subsystem: "ratelimit",
				Name:      "rate_changes_total",
				Help:      "Total number of successful rate changes",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		PlanStepsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smoothrate",
				Subsystem: "rateplan",
				Name:      "steps_applied_total",
				Help:      "Total number of scheduled rate changes applied",
			},
			[]string{"plan_name", "step_id"},
		),

		PlanStepsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smoothrate",
				Subsystem: "rateplan",
				Name:      "steps_failed_total",
				Help:      "Total number of scheduled rate changes that failed",
			},
			[]string{"plan_name", "step_id"},
		),
	}
}
