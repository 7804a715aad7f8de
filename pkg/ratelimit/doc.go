/*
Package ratelimit provides smooth rate limiting primitives for Go applications.

The smooth subpackage implements a continuously-adjustable limiter with two
pacing policies:

  - Bursty: token bucket pacing that banks unused capacity for bursts
  - Warmup: ramps the effective rate from a cold interval to the stable
    interval, easing traffic onto caches and pools that degrade when hit
    cold

Bursty pacing suits interactive workloads where short spikes are fine:

	limiter, _ := smooth.NewBursty(10) // 10 permits/sec, 1s of burst
	if limiter.Allow() {
		// process request (may ride the banked burst)
	}

Warm-up pacing suits clients of cold-sensitive backends:

	limiter, _ := smooth.NewWarmup(10, 4*time.Second)
	if err := limiter.Wait(ctx); err == nil {
		// first requests after idle are paced at up to 3x the stable interval
	}

Both policies support context-aware blocking (Wait/WaitN), non-blocking
checks (Allow/AllowN), and dynamic rate changes (SetRate) that preserve
banked capacity proportionally. All limiters are safe for concurrent use.
*/
package ratelimit
