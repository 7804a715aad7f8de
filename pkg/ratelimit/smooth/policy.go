package smooth

import (
	"math"
)

// pacingPolicy translates stored permits into throttling time. Both
// implementations are pure: the engine owns storedPermits and maxPermits and
// passes them in explicitly; a policy only keeps constants it derives from
// the stable interval on each rate change.
type pacingPolicy interface {
	// applyRate recomputes derived constants for a new stable interval and
	// returns the new permit ceiling together with the rescaled bank.
	// oldMaxPermits is +Inf when no rate has been configured yet.
	applyRate(stableIntervalMicros, oldMaxPermits, storedPermits float64) (maxPermits, newStored float64)

	// costOfStoredPermits returns the throttling cost, in microseconds, of
	// spending permitsToTake permits out of a bank of storedPermits.
	// Callers guarantee 0 <= permitsToTake <= storedPermits.
	costOfStoredPermits(storedPermits, permitsToTake float64) int64

	// cooldownIntervalMicros returns the current average time to generate
	// one permit, used by resync to turn elapsed time into earned permits.
	cooldownIntervalMicros() float64
}

// burstyPolicy is a plain token bucket: banked permits are spent with zero
// throttling cost, and the bank holds up to maxBurstSeconds worth of the
// configured rate.
type burstyPolicy struct {
	maxBurstSeconds      float64
	stableIntervalMicros float64
}

func (p *burstyPolicy) applyRate(stableIntervalMicros, oldMaxPermits, storedPermits float64) (float64, float64) {
	p.stableIntervalMicros = stableIntervalMicros
	maxPermits := p.maxBurstSeconds * (microsPerSecond / stableIntervalMicros)
	switch {
	case math.IsInf(oldMaxPermits, 1):
		// First rate ever set: start full so an unconfigured limiter
		// never throttles its first request.
		storedPermits = maxPermits
	case oldMaxPermits == 0:
		storedPermits = 0
	default:
		storedPermits = storedPermits * maxPermits / oldMaxPermits
	}
	return maxPermits, storedPermits
}

func (p *burstyPolicy) costOfStoredPermits(storedPermits, permitsToTake float64) int64 {
	return 0
}

func (p *burstyPolicy) cooldownIntervalMicros() float64 {
	return p.stableIntervalMicros
}

// warmupPolicy models throttling as a trapezoid over the stored-permit axis:
// below thresholdPermits one permit costs the stable interval; above it the
// cost climbs linearly, reaching coldFactor times the stable interval at a
// full bank. Draining the bank therefore gets cheaper as traffic warms the
// limiter up, and an idle limiter refills toward the expensive region.
//
//	          ^ cost per permit
//	     cold +                  /
//	 interval |                 /
//	          |                /   <- warmupPeriod is the area of this
//	          |               /       trapezoid between thresholdPermits
//	   stable +--------------/        and maxPermits
//	 interval |
//	        0 +-------------+-------+----> storedPermits
//	          0     thresholdPermits maxPermits
type warmupPolicy struct {
	warmupPeriodMicros float64
	coldFactor         float64

	stableIntervalMicros float64
	thresholdPermits     float64
	maxPermits           float64
	slope                float64
}

func (p *warmupPolicy) applyRate(stableIntervalMicros, oldMaxPermits, storedPermits float64) (float64, float64) {
	p.stableIntervalMicros = stableIntervalMicros
	coldIntervalMicros := stableIntervalMicros * p.coldFactor

	// The stable region's area is warmupPeriod/2, which pins the threshold;
	// the trapezoid's area is warmupPeriod itself, which pins the ceiling.
	p.thresholdPermits = 0.5 * p.warmupPeriodMicros / stableIntervalMicros
	p.maxPermits = p.thresholdPermits +
		2.0*p.warmupPeriodMicros/(stableIntervalMicros+coldIntervalMicros)
	p.slope = (coldIntervalMicros - stableIntervalMicros) / (p.maxPermits - p.thresholdPermits)

	switch {
	case math.IsInf(oldMaxPermits, 1):
		// A freshly configured warm-up limiter starts with an empty bank,
		// forcing the first burst of traffic through the full ramp.
		storedPermits = 0
	case oldMaxPermits == 0:
		storedPermits = 0
	default:
		storedPermits = storedPermits * p.maxPermits / oldMaxPermits
	}
	return p.maxPermits, storedPermits
}

func (p *warmupPolicy) costOfStoredPermits(storedPermits, permitsToTake float64) int64 {
	availableAboveThreshold := storedPermits - p.thresholdPermits
	var micros int64
	if availableAboveThreshold > 0 {
		aboveToTake := math.Min(availableAboveThreshold, permitsToTake)
		// Trapezoid rule: mean of the endpoint heights times the width.
		length := p.permitsToTime(availableAboveThreshold) +
			p.permitsToTime(availableAboveThreshold-aboveToTake)
		micros = int64(aboveToTake * length / 2.0)
		permitsToTake -= aboveToTake
	}
	micros += int64(p.stableIntervalMicros * permitsToTake)
	return micros
}

// permitsToTime is the per-permit cost at permits above the threshold.
func (p *warmupPolicy) permitsToTime(permits float64) float64 {
	return p.stableIntervalMicros + permits*p.slope
}

func (p *warmupPolicy) cooldownIntervalMicros() float64 {
	// The average over the whole ramp, not the marginal rate: total
	// warm-up time divided by total capacity. Keeps replenishment in
	// resync consistent with the area-under-the-curve derivation above.
	return p.warmupPeriodMicros / p.maxPermits
}
