/*
Package smooth implements a smooth, continuously-adjustable rate limiter.

The limiter decides, for each request of N permits, how long the caller must
wait before consuming them, while a bounded bank of unused capacity absorbs
bursts. Accounting is done in microseconds on a monotonic timeline, stays
allocation-free per request, and remains correct under dynamic rate changes.

Two pacing policies are available at construction:

  - Bursty (the default): banked permits are spent with zero throttling
    cost; only freshly generated permits take time.
  - Warmup: the per-permit cost rises linearly once the bank fills past a
    threshold, so a limiter that has been idle ramps back up to the stable
    rate over a configured warm-up period instead of slamming a cold
    backend at full speed.

A reservation charges the cost of generating fresh permits to the NEXT
request rather than the current one; this is what allows a request to ride
an accumulated burst without paying for it up front.
*/
package smooth
