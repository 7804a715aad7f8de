package rateplan

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	gferrors "github.com/vnykmshr/smoothrate/pkg/common/errors"
	"github.com/vnykmshr/smoothrate/pkg/common/validation"
	"github.com/vnykmshr/smoothrate/pkg/metrics"
	"github.com/vnykmshr/smoothrate/pkg/ratelimit/smooth"
)

// Step is one entry of a rate plan: when Expr fires, Rate is applied to the
// limiter. Expressions use standard cron format with optional seconds field
// and descriptors:
//
//	"0 9 * * 1-5"     - 9:00 AM on weekdays
//	"0 0 9 * * 1-5"   - same, with explicit seconds
//	"@hourly"         - every hour
//	"@every 90s"      - fixed interval
type Step struct {
	// ID identifies the step in callbacks and metrics.
	ID string

	// Expr is the cron expression that schedules the step.
	Expr string

	// Rate is the permits-per-second to apply when the step fires.
	Rate float64
}

// Config holds configuration options for creating a new Plan.
type Config struct {
	// Name identifies the plan in metrics. If empty, defaults to "default".
	Name string

	// Location is the timezone for cron expression evaluation.
	// If nil, the local timezone is used.
	Location *time.Location

	// OnApply is called after a step's rate has been applied.
	OnApply func(Step)

	// OnError is called when applying a step's rate fails.
	OnError func(Step, error)

	// Metrics configures Prometheus instrumentation for the plan.
	Metrics metrics.Config
}

// Plan applies scheduled rate changes to a limiter, e.g. lowering the limit
// during business hours and raising it off-peak. Steps fire on cron
// schedules; each firing calls SetRate on the wrapped limiter.
type Plan struct {
	name     string
	limiter  smooth.Limiter
	runner   *cron.Cron
	location *time.Location

	mu        sync.Mutex
	steps     []Step
	schedules map[string]cron.Schedule
	running   bool

	onApply  func(Step)
	onError  func(Step, error)
	registry *metrics.Registry
	recorded bool
}

// parser accepts standard 5-field expressions, 6-field expressions with
// seconds, and @descriptors.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks a cron expression without scheduling it.
func Validate(expr string) error {
	if err := validation.ValidateNotEmpty("rateplan", "expr", expr); err != nil {
		return err
	}
	if _, err := parser.Parse(expr); err != nil {
		return gferrors.NewValidationError("rateplan", "expr", expr, err.Error()).
			WithHint("use standard cron format, optionally with a seconds field, or a descriptor like @hourly")
	}
	return nil
}

// New creates a plan that applies the given steps to the limiter.
// The plan does not fire until Start is called.
func New(limiter smooth.Limiter, steps []Step, config Config) (*Plan, error) {
	if err := validation.ValidateNotNil("rateplan", "limiter", limiter); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, gferrors.NewValidationError("rateplan", "steps", steps, "cannot be empty").
			WithHint("provide at least one schedule step")
	}

	name := config.Name
	if name == "" {
		name = "default"
	}
	location := config.Location
	if location == nil {
		location = time.Local
	}

	p := &Plan{
		name:      name,
		limiter:   limiter,
		location:  location,
		schedules: make(map[string]cron.Schedule, len(steps)),
		onApply:   config.OnApply,
		onError:   config.OnError,
	}

	if config.Metrics.Enabled {
		p.recorded = true
		p.registry = metrics.DefaultRegistry
		if config.Metrics.Registry != nil {
			p.registry = metrics.NewRegistry(config.Metrics.Registry)
		}
	}

	p.runner = cron.New(cron.WithParser(parser), cron.WithLocation(location))
	for _, step := range steps {
		if err := p.addStep(step); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Plan) addStep(step Step) error {
	if err := validation.ValidateNotEmpty("rateplan", "step.ID", step.ID); err != nil {
		return err
	}
	if _, exists := p.schedules[step.ID]; exists {
		return gferrors.NewValidationError("rateplan", "step.ID", step.ID, "duplicate step ID").
			WithHint("step IDs must be unique within a plan")
	}
	if err := validation.ValidatePositiveFloat("rateplan", "step.Rate", step.Rate); err != nil {
		return err
	}
	if err := validation.ValidateFinite("rateplan", "step.Rate", step.Rate); err != nil {
		return err
	}

	schedule, err := parser.Parse(step.Expr)
	if err != nil {
		return gferrors.NewValidationError("rateplan", "step.Expr", step.Expr, err.Error()).
			WithHint("use standard cron format, optionally with a seconds field, or a descriptor like @hourly")
	}

	p.schedules[step.ID] = schedule
	p.steps = append(p.steps, step)
	p.runner.Schedule(schedule, cron.FuncJob(func() { p.Apply(step.ID) }))
	return nil
}

// Apply fires a step immediately, outside its schedule. Returns the error
// from the limiter's SetRate, or a validation error for unknown IDs.
func (p *Plan) Apply(id string) error {
	p.mu.Lock()
	var step *Step
	for i := range p.steps {
		if p.steps[i].ID == id {
			step = &p.steps[i]
			break
		}
	}
	p.mu.Unlock()

	if step == nil {
		return gferrors.NewValidationError("rateplan", "id", id, "unknown step")
	}

	if err := p.limiter.SetRate(step.Rate); err != nil {
		if p.recorded {
			p.registry.PlanStepsFailed.WithLabelValues(p.name, step.ID).Inc()
		}
		if p.onError != nil {
			p.onError(*step, err)
		}
		return gferrors.NewOperationError("rateplan", "SetRate", err).
			WithContext("step " + step.ID)
	}

	if p.recorded {
		p.registry.PlanStepsApplied.WithLabelValues(p.name, step.ID).Inc()
	}
	if p.onApply != nil {
		p.onApply(*step)
	}
	return nil
}

// Start begins firing steps on their schedules. Safe to call once; calling
// Start on a running plan is a no-op.
func (p *Plan) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.runner.Start()
}

// Stop halts the schedule. The returned context is done once any in-flight
// step has finished applying.
func (p *Plan) Stop() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	return p.runner.Stop()
}

// Next returns the next time the given step will fire.
func (p *Plan) Next(id string) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	schedule, ok := p.schedules[id]
	if !ok {
		return time.Time{}, gferrors.NewValidationError("rateplan", "id", id, "unknown step")
	}
	return schedule.Next(time.Now().In(p.location)), nil
}

// Steps returns the plan's steps in the order they were registered.
func (p *Plan) Steps() []Step {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}
