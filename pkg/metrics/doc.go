// Package metrics provides Prometheus instrumentation for smoothrate components.
//
// # Overview
//
// The metrics package provides automatic instrumentation for:
//   - Rate limiting operations (requests, allows, denies, wait times,
//     stored permits, configured rate, rate changes)
//   - Rate plans (scheduled rate changes applied and failed)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	limiter, err := smooth.NewWithMetrics(100, "api_requests")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
//	limiter, err := smooth.NewWithConfigAndMetrics(
//		smooth.Config{Rate: 100},
//		"api_requests",
//		config,
//	)
//
// # Available Metrics
//
// Rate limiting metrics, labeled by limiter_type ("bursty" or "warmup") and
// limiter_name:
//
//   - smoothrate_ratelimit_requests_total: Total number of permits requested
//   - smoothrate_ratelimit_allowed_total: Total number of permits granted
//   - smoothrate_ratelimit_denied_total: Total number of permits denied
//   - smoothrate_ratelimit_wait_duration_seconds: Time spent waiting for permits
//   - smoothrate_ratelimit_stored_permits: Number of permits currently banked
//   - smoothrate_ratelimit_configured_rate: Configured steady rate
//   - smoothrate_ratelimit_rate_changes_total: Successful rate changes
//
// Rate plan metrics, labeled by plan_name and step_id:
//
//   - smoothrate_rateplan_steps_applied_total: Scheduled rate changes applied
//   - smoothrate_rateplan_steps_failed_total: Scheduled rate changes that failed
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	ml.DisableMetrics()            // Stop collecting metrics
//	ml.EnableMetrics(config)       // Re-enable with new config
//	enabled := ml.MetricsEnabled() // Check current state
//
// Metrics are updated only when operations occur; there are no background
// goroutines or timers.
package metrics
