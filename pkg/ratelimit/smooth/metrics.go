package smooth

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/smoothrate/pkg/metrics"
)

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter     Limiter
	limiterType string
	name        string
	registry    *metrics.Registry
	enabled     bool
}

// NewWithMetrics creates a bursty limiter with metrics on a fresh registry.
func NewWithMetrics(permitsPerSecond float64, name string) (Limiter, error) {
	registry := prometheus.NewRegistry()
	return NewWithConfigAndMetrics(Config{Rate: permitsPerSecond}, name, metrics.Config{
		Enabled:  true,
		Registry: registry,
	})
}

// NewWithConfigAndMetrics creates a new limiter with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
	baseLimiter, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if !metricsConfig.Enabled {
		return baseLimiter, nil
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	limiterType := "bursty"
	if config.Policy == Warmup {
		limiterType = "warmup"
	}

	return &MetricsLimiter{
		limiter:     baseLimiter,
		limiterType: limiterType,
		name:        name,
		registry:    registry,
		enabled:     true,
	}, nil
}

// Allow reports whether one permit may be consumed now.
func (ml *MetricsLimiter) Allow() bool {
	return ml.AllowN(1)
}

// AllowN reports whether n permits may be consumed now.
func (ml *MetricsLimiter) AllowN(n int) bool {
	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
	}

	allowed := ml.limiter.AllowN(n)

	if ml.enabled {
		if allowed {
			ml.registry.RateLimitAllowed.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
		} else {
			ml.registry.RateLimitDenied.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
		}
		ml.registry.RateLimitStoredPermits.WithLabelValues(ml.limiterType, ml.name).Set(ml.limiter.StoredPermits())
	}

	return allowed
}

// AllowWithin reports whether n permits can be consumed after waiting at
// most timeout.
func (ml *MetricsLimiter) AllowWithin(n int, timeout time.Duration) bool {
	start := time.Now()

	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
	}

	allowed := ml.limiter.AllowWithin(n, timeout)

	if ml.enabled {
		ml.registry.RateLimitWaitTime.WithLabelValues(ml.limiterType, ml.name).Observe(time.Since(start).Seconds())

		if allowed {
			ml.registry.RateLimitAllowed.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
		} else {
			ml.registry.RateLimitDenied.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
		}
		ml.registry.RateLimitStoredPermits.WithLabelValues(ml.limiterType, ml.name).Set(ml.limiter.StoredPermits())
	}

	return allowed
}

// Wait blocks until one permit can be consumed.
func (ml *MetricsLimiter) Wait(ctx context.Context) error {
	return ml.WaitN(ctx, 1)
}

// WaitN blocks until n permits can be consumed.
func (ml *MetricsLimiter) WaitN(ctx context.Context, n int) error {
	start := time.Now()

	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
	}

	err := ml.limiter.WaitN(ctx, n)

	if ml.enabled {
		duration := time.Since(start)
		ml.registry.RateLimitWaitTime.WithLabelValues(ml.limiterType, ml.name).Observe(duration.Seconds())

		if err == nil {
			ml.registry.RateLimitAllowed.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
		} else {
			ml.registry.RateLimitDenied.WithLabelValues(ml.limiterType, ml.name).Add(float64(n))
		}
		ml.registry.RateLimitStoredPermits.WithLabelValues(ml.limiterType, ml.name).Set(ml.limiter.StoredPermits())
	}

	return err
}

// SetRate changes the steady rate.
func (ml *MetricsLimiter) SetRate(permitsPerSecond float64) error {
	err := ml.limiter.SetRate(permitsPerSecond)

	if ml.enabled && err == nil {
		ml.registry.RateLimitRateChanges.WithLabelValues(ml.limiterType, ml.name).Inc()
		ml.registry.RateLimitRate.WithLabelValues(ml.limiterType, ml.name).Set(permitsPerSecond)
	}

	return err
}

// Rate returns the configured steady rate in permits per second.
func (ml *MetricsLimiter) Rate() float64 {
	return ml.limiter.Rate()
}

// StoredPermits returns the currently banked permit count.
func (ml *MetricsLimiter) StoredPermits() float64 {
	stored := ml.limiter.StoredPermits()

	if ml.enabled {
		ml.registry.RateLimitStoredPermits.WithLabelValues(ml.limiterType, ml.name).Set(stored)
	}

	return stored
}

// EnableMetrics enables metrics collection.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	ml.enabled = config.Enabled

	if config.Registry != nil {
		ml.registry = metrics.NewRegistry(config.Registry)
	}

	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled
}
