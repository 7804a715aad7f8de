package smooth

import (
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/smoothrate/pkg/common/errors"
	"github.com/vnykmshr/smoothrate/pkg/common/validation"
)

// Policy selects how banked permits translate into throttling time.
type Policy int

const (
	// Bursty banks unused capacity and spends it with zero throttling
	// cost, allowing short bursts above the steady rate.
	Bursty Policy = iota

	// Warmup ramps the effective rate from a cold interval down to the
	// stable interval, smoothing traffic onto cold downstream resources.
	Warmup
)

// Limiter controls how frequently events are allowed to happen, pacing them
// smoothly at a configured rate. Unlike a plain token bucket it supports a
// warm-up ramp and microsecond-precision accounting under dynamic rate
// changes. All methods are safe for concurrent use.
type Limiter interface {
	// Allow reports whether one permit may be consumed now. It does not block.
	Allow() bool

	// AllowN reports whether n permits may be consumed now. It does not block.
	AllowN(n int) bool

	// AllowWithin reports whether n permits can be consumed after waiting at
	// most timeout. If the current backlog already exceeds timeout it returns
	// false immediately without reserving; otherwise it reserves the permits
	// and sleeps out the delay.
	AllowWithin(n int, timeout time.Duration) bool

	// Wait blocks until one permit can be consumed or ctx is done.
	Wait(ctx context.Context) error

	// WaitN blocks until n permits can be consumed or ctx is done. If ctx
	// carries a deadline that cannot possibly be met, WaitN fails fast with
	// ErrRateLimited before committing anything. Once a reservation is
	// committed, cancellation returns ctx.Err() but the permits stay
	// spent; there is no rollback.
	WaitN(ctx context.Context, n int) error

	// SetRate changes the steady rate, preserving banked capacity
	// proportionally. The rate must be positive and finite.
	SetRate(permitsPerSecond float64) error

	// Rate returns the configured steady rate in permits per second.
	Rate() float64

	// StoredPermits returns the currently banked permit count.
	StoredPermits() float64
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Rate is the steady-state number of permits issued per second.
	Rate float64

	// Policy selects Bursty or Warmup pacing. Defaults to Bursty.
	Policy Policy

	// MaxBurstSeconds is how many seconds of unused capacity a Bursty
	// limiter may bank. If zero, defaults to 1.
	MaxBurstSeconds float64

	// WarmupPeriod is how long a Warmup limiter takes to reach the stable
	// rate from a cold start. Required when Policy is Warmup.
	WarmupPeriod time.Duration

	// ColdFactor is the ratio of the cold interval to the stable interval
	// for a Warmup limiter. If zero, defaults to 3.
	ColdFactor float64

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock
}

// smoothLimiter wraps the accounting engine with the one lock per limiter
// instance the engine requires, and converts between wall-clock time and
// the engine's microsecond timeline.
type smoothLimiter struct {
	mu    sync.Mutex
	eng   *engine
	clock Clock
	start time.Time
}

// NewBursty creates a limiter that issues permits at the given rate and
// banks up to one second of unused capacity for bursts.
func NewBursty(permitsPerSecond float64) (Limiter, error) {
	return NewWithConfig(Config{Rate: permitsPerSecond})
}

// NewWarmup creates a limiter whose effective rate ramps up to
// permitsPerSecond over warmupPeriod after cold starts and idle stretches,
// with the default cold factor of 3.
func NewWarmup(permitsPerSecond float64, warmupPeriod time.Duration) (Limiter, error) {
	return NewWithConfig(Config{
		Rate:         permitsPerSecond,
		Policy:       Warmup,
		WarmupPeriod: warmupPeriod,
	})
}

// NewWithConfig creates a new limiter with the specified configuration.
func NewWithConfig(config Config) (Limiter, error) {
	if err := validation.ValidatePositiveFloat("smooth", "rate", config.Rate); err != nil {
		return nil, err
	}
	if err := validation.ValidateFinite("smooth", "rate", config.Rate); err != nil {
		return nil, err
	}

	var policy pacingPolicy
	switch config.Policy {
	case Bursty:
		if config.MaxBurstSeconds < 0 {
			return nil, errors.NewValidationError("smooth", "maxBurstSeconds", config.MaxBurstSeconds, "cannot be negative").
				WithHint("use 0 for the default of one second of burst")
		}
		maxBurstSeconds := config.MaxBurstSeconds
		if maxBurstSeconds == 0 {
			maxBurstSeconds = 1
		}
		policy = &burstyPolicy{maxBurstSeconds: maxBurstSeconds}
	case Warmup:
		if config.WarmupPeriod <= 0 {
			return nil, errors.NewValidationError("smooth", "warmupPeriod", config.WarmupPeriod, "must be positive").
				WithHint("warmup period sets how long the ramp to the stable rate takes")
		}
		coldFactor := config.ColdFactor
		if coldFactor == 0 {
			coldFactor = 3
		}
		if coldFactor < 1 {
			return nil, errors.NewValidationError("smooth", "coldFactor", config.ColdFactor, "must be at least 1").
				WithHint("the cold interval cannot be shorter than the stable interval")
		}
		policy = &warmupPolicy{
			warmupPeriodMicros: float64(config.WarmupPeriod.Microseconds()),
			coldFactor:         coldFactor,
		}
	default:
		return nil, errors.NewValidationError("smooth", "policy", config.Policy, "unknown policy").
			WithHint("use smooth.Bursty or smooth.Warmup")
	}

	clock := config.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	l := &smoothLimiter{
		eng:   newEngine(policy),
		clock: clock,
		start: clock.Now(),
	}
	l.eng.setRate(config.Rate, 0)
	return l, nil
}

// Allow reports whether one permit may be consumed now.
func (l *smoothLimiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN reports whether n permits may be consumed now.
func (l *smoothLimiter) AllowN(n int) bool {
	if n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	nowMicros := l.nowMicros()
	if l.eng.queryEarliestAvailable(nowMicros) > nowMicros {
		return false
	}
	l.eng.reserveEarliestAvailable(n, nowMicros)
	return true
}

// AllowWithin reports whether n permits can be consumed after waiting at
// most timeout.
func (l *smoothLimiter) AllowWithin(n int, timeout time.Duration) bool {
	if n <= 0 {
		return true
	}
	if timeout < 0 {
		timeout = 0
	}

	l.mu.Lock()
	nowMicros := l.nowMicros()
	if l.eng.queryEarliestAvailable(nowMicros)-timeout.Microseconds() > nowMicros {
		l.mu.Unlock()
		return false
	}
	at := l.eng.reserveEarliestAvailable(n, nowMicros)
	l.mu.Unlock()

	if delay := time.Duration(at-nowMicros) * time.Microsecond; delay > 0 {
		time.Sleep(delay)
	}
	return true
}

// Wait blocks until one permit can be consumed.
func (l *smoothLimiter) Wait(ctx context.Context) error {
	return l.WaitN(ctx, 1)
}

// WaitN blocks until n permits can be consumed.
func (l *smoothLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	l.mu.Lock()
	now := l.clock.Now()
	nowMicros := now.Sub(l.start).Microseconds()

	if deadline, ok := ctx.Deadline(); ok {
		timeoutMicros := deadline.Sub(now).Microseconds()
		if timeoutMicros < 0 {
			timeoutMicros = 0
		}
		if l.eng.queryEarliestAvailable(nowMicros)-timeoutMicros > nowMicros {
			// The backlog already exceeds the deadline: fail before
			// committing a reservation we could never honor.
			l.mu.Unlock()
			return errors.ErrRateLimited
		}
	}

	at := l.eng.reserveEarliestAvailable(n, nowMicros)
	l.mu.Unlock()

	delay := time.Duration(at-nowMicros) * time.Microsecond
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		// The reservation stays committed; see the interface comment.
		return ctx.Err()
	}
}

// SetRate changes the steady rate.
func (l *smoothLimiter) SetRate(permitsPerSecond float64) error {
	if err := validation.ValidatePositiveFloat("smooth", "rate", permitsPerSecond); err != nil {
		return err
	}
	if err := validation.ValidateFinite("smooth", "rate", permitsPerSecond); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.eng.setRate(permitsPerSecond, l.nowMicros())
	return nil
}

// Rate returns the configured steady rate in permits per second.
func (l *smoothLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eng.rate()
}

// StoredPermits returns the currently banked permit count.
func (l *smoothLimiter) StoredPermits() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.eng.resync(l.nowMicros())
	return l.eng.storedPermits
}

// nowMicros reads the clock once and places it on the engine's timeline.
// time.Time carries a monotonic reading, so the subtraction is immune to
// wall-clock adjustments.
func (l *smoothLimiter) nowMicros() int64 {
	return l.clock.Now().Sub(l.start).Microseconds()
}

// Every converts a minimum interval between permits to a rate in permits
// per second. The interval must be positive; a non-positive interval yields
// 0, which the constructors and SetRate reject.
func Every(interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(time.Second) / float64(interval)
}
