package smooth

import (
	"math"
)

// microsPerSecond converts between permits-per-second rates and the
// microsecond intervals the accounting below is carried out in.
const microsPerSecond = 1e6

// engine is the permit-accounting core shared by both pacing policies.
// It owns all mutable limiter state; the policies are stateless beyond
// constants derived on each rate change. The engine is not internally
// synchronized: the public wrapper serializes every call and supplies
// nowMicros, read once per operation from a monotonic clock.
type engine struct {
	policy pacingPolicy

	// storedPermits is the bank of unspent permits accrued from unused
	// capacity. Holds 0 <= storedPermits <= maxPermits after every
	// operation.
	storedPermits float64

	// maxPermits is the ceiling on storedPermits. +Inf until the first
	// setRate; the constructor always calls setRate once, so callers
	// never observe the unconfigured state.
	maxPermits float64

	// stableIntervalMicros is the time to generate one permit at the
	// configured steady rate.
	stableIntervalMicros float64

	// nextFreeTicketMicros is the timestamp at or after which a request
	// incurs no wait. It lags nowMicros while capacity accrues and leads
	// it while a backlog of committed waits exists.
	nextFreeTicketMicros int64
}

func newEngine(policy pacingPolicy) *engine {
	return &engine{
		policy:     policy,
		maxPermits: math.Inf(1),
	}
}

// setRate installs a new steady rate. Resync runs first so permits earned
// under the old rate are banked before the intervals change; the policy then
// recomputes its derived constants and rescales the bank to the new ceiling.
// permitsPerSecond must be positive and finite; the public wrapper validates.
func (e *engine) setRate(permitsPerSecond float64, nowMicros int64) {
	e.resync(nowMicros)
	e.stableIntervalMicros = microsPerSecond / permitsPerSecond
	e.maxPermits, e.storedPermits = e.policy.applyRate(e.stableIntervalMicros, e.maxPermits, e.storedPermits)
}

// rate returns the configured steady rate in permits per second.
func (e *engine) rate() float64 {
	return microsPerSecond / e.stableIntervalMicros
}

// queryEarliestAvailable returns the time at which a request would incur no
// wait. It never mutates state, so non-blocking callers can fail fast
// without committing a reservation.
func (e *engine) queryEarliestAvailable(nowMicros int64) int64 {
	return e.nextFreeTicketMicros
}

// reserveEarliestAvailable books requiredPermits and returns the timestamp
// the caller must wait until. The returned value is captured before the
// booking advances nextFreeTicketMicros: the cost of generating fresh
// permits for this request is charged to the next caller, which is what
// lets a request ride an accumulated burst without paying for it up front.
func (e *engine) reserveEarliestAvailable(requiredPermits int, nowMicros int64) int64 {
	e.resync(nowMicros)
	returnValue := e.nextFreeTicketMicros

	storedToSpend := math.Min(float64(requiredPermits), e.storedPermits)
	freshPermits := float64(requiredPermits) - storedToSpend
	waitMicros := saturatingAdd(
		e.policy.costOfStoredPermits(e.storedPermits, storedToSpend),
		microsFromFloat(freshPermits*e.stableIntervalMicros),
	)

	e.nextFreeTicketMicros = saturatingAdd(e.nextFreeTicketMicros, waitMicros)
	e.storedPermits -= storedToSpend
	return returnValue
}

// resync banks the permits generated since nextFreeTicketMicros, clamped at
// maxPermits, and pulls nextFreeTicketMicros up to now. When a backlog of
// committed waits still exists (nextFreeTicketMicros ahead of now) nothing
// has been earned and the state is left untouched, so calling resync twice
// with the same now is a no-op the second time.
func (e *engine) resync(nowMicros int64) {
	if nowMicros > e.nextFreeTicketMicros {
		newPermits := float64(nowMicros-e.nextFreeTicketMicros) / e.policy.cooldownIntervalMicros()
		e.storedPermits = math.Min(e.maxPermits, e.storedPermits+newPermits)
		e.nextFreeTicketMicros = nowMicros
	}
}

// microsFromFloat truncates a nonnegative microsecond quantity to int64,
// clamping at the horizon. The conversion alone would not: an out-of-range
// float64 to int64 conversion is implementation-dependent in Go, and on
// amd64 it wraps to MinInt64.
func microsFromFloat(v float64) int64 {
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// saturatingAdd clamps instead of wrapping on int64 overflow. Repeated huge
// reservations push nextFreeTicketMicros toward the horizon; wrapping there
// would corrupt every later wait computation.
func saturatingAdd(a, b int64) int64 {
	sum := a + b
	if (a >= 0) == (b >= 0) && (sum >= 0) != (a >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}
