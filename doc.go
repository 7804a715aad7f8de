/*
Package smoothrate provides smooth, continuously-adjustable rate limiting
for Go applications.

Rate Limiting (pkg/ratelimit/smooth):
  - Bursty limiter: token bucket with banked burst capacity
  - Warm-up limiter: ramps from a cold rate to the stable rate after idle periods
  - Microsecond-precision permit accounting with dynamic rate changes

Scheduling (pkg/scheduling/rateplan):
  - Cron-driven rate plans (e.g. lower limits during business hours)

Metrics (pkg/metrics):
  - Prometheus instrumentation for all limiter operations

Example usage:

	import (
		"github.com/vnykmshr/smoothrate/pkg/ratelimit/smooth"
	)

	limiter, _ := smooth.NewBursty(100) // 100 permits/sec, 1s of burst
	if limiter.Allow() {
		// process request
	}
*/
package smoothrate
