package rateplan

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/smoothrate/internal/testutil"
	gferrors "github.com/vnykmshr/smoothrate/pkg/common/errors"
	"github.com/vnykmshr/smoothrate/pkg/metrics"
	"github.com/vnykmshr/smoothrate/pkg/ratelimit/smooth"
)

func newTestLimiter(t *testing.T) smooth.Limiter {
	t.Helper()
	limiter, err := smooth.NewBursty(100)
	testutil.AssertNoError(t, err)
	return limiter
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"standard five fields", "0 9 * * 1-5", false},
		{"six fields with seconds", "30 0 9 * * *", false},
		{"hourly descriptor", "@hourly", false},
		{"every descriptor", "@every 90s", false},
		{"empty", "", true},
		{"garbage", "not a cron expr", true},
		{"minute out of range", "61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	limiter := newTestLimiter(t)
	valid := Step{ID: "peak", Expr: "@hourly", Rate: 50}

	tests := []struct {
		name  string
		steps []Step
	}{
		{"no steps", nil},
		{"empty step ID", []Step{{Expr: "@hourly", Rate: 50}}},
		{"duplicate step IDs", []Step{valid, valid}},
		{"zero rate", []Step{{ID: "peak", Expr: "@hourly", Rate: 0}}},
		{"negative rate", []Step{{ID: "peak", Expr: "@hourly", Rate: -5}}},
		{"bad expression", []Step{{ID: "peak", Expr: "nope", Rate: 50}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := New(limiter, tt.steps, Config{})
			testutil.AssertError(t, err)
			if plan != nil {
				t.Error("expected nil plan on error")
			}
		})
	}

	t.Run("nil limiter", func(t *testing.T) {
		_, err := New(nil, []Step{valid}, Config{})
		testutil.AssertError(t, err)
	})

	t.Run("valid plan", func(t *testing.T) {
		plan, err := New(limiter, []Step{valid}, Config{})
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, len(plan.Steps()), 1)
	})
}

func TestApply(t *testing.T) {
	limiter := newTestLimiter(t)

	var applied []string
	plan, err := New(limiter, []Step{
		{ID: "business-hours", Expr: "0 9 * * 1-5", Rate: 20},
		{ID: "off-peak", Expr: "0 18 * * 1-5", Rate: 80},
	}, Config{
		OnApply: func(s Step) { applied = append(applied, s.ID) },
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, plan.Apply("business-hours"))
	testutil.AssertInDelta(t, limiter.Rate(), 20.0, 1e-9)

	testutil.AssertNoError(t, plan.Apply("off-peak"))
	testutil.AssertInDelta(t, limiter.Rate(), 80.0, 1e-9)

	testutil.AssertEqual(t, len(applied), 2)
	testutil.AssertEqual(t, applied[0], "business-hours")
	testutil.AssertEqual(t, applied[1], "off-peak")
}

func TestApplyUnknownStep(t *testing.T) {
	plan, err := New(newTestLimiter(t), []Step{{ID: "peak", Expr: "@hourly", Rate: 50}}, Config{})
	testutil.AssertNoError(t, err)
	testutil.AssertError(t, plan.Apply("nope"))
}

// rejectingLimiter fails every SetRate, for exercising the error path.
type rejectingLimiter struct {
	smooth.Limiter
}

func (rejectingLimiter) SetRate(float64) error {
	return gferrors.ErrInvalidConfiguration
}

func TestApplyReportsSetRateFailure(t *testing.T) {
	var failed []Step
	plan, err := New(rejectingLimiter{newTestLimiter(t)}, []Step{
		{ID: "peak", Expr: "@hourly", Rate: 50},
	}, Config{
		OnError: func(s Step, err error) { failed = append(failed, s) },
	})
	testutil.AssertNoError(t, err)

	testutil.AssertError(t, plan.Apply("peak"))
	testutil.AssertEqual(t, len(failed), 1)
	testutil.AssertEqual(t, failed[0].ID, "peak")
}

func TestNext(t *testing.T) {
	plan, err := New(newTestLimiter(t), []Step{
		{ID: "hourly", Expr: "@every 1h", Rate: 50},
	}, Config{})
	testutil.AssertNoError(t, err)

	next, err := plan.Next("hourly")
	testutil.AssertNoError(t, err)

	until := time.Until(next)
	if until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("next firing in %v, want about an hour", until)
	}

	_, err = plan.Next("unknown")
	testutil.AssertError(t, err)
}

func TestStepsReturnsCopy(t *testing.T) {
	plan, err := New(newTestLimiter(t), []Step{
		{ID: "a", Expr: "@hourly", Rate: 10},
		{ID: "b", Expr: "@daily", Rate: 20},
	}, Config{})
	testutil.AssertNoError(t, err)

	steps := plan.Steps()
	testutil.AssertEqual(t, len(steps), 2)
	steps[0].Rate = 999

	testutil.AssertInDelta(t, plan.Steps()[0].Rate, 10.0, 1e-9)
}

func TestStartFiresSteps(t *testing.T) {
	limiter := newTestLimiter(t)
	plan, err := New(limiter, []Step{
		{ID: "fast", Expr: "@every 100ms", Rate: 42},
	}, Config{})
	testutil.AssertNoError(t, err)

	plan.Start()
	defer plan.Stop()

	testutil.Eventually(t, func() bool {
		return limiter.Rate() == 42
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStopWaitsForInFlightSteps(t *testing.T) {
	plan, err := New(newTestLimiter(t), []Step{
		{ID: "fast", Expr: "@every 100ms", Rate: 42},
	}, Config{})
	testutil.AssertNoError(t, err)

	plan.Start()
	ctx := plan.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not drain within a second")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	plan, err := New(newTestLimiter(t), []Step{
		{ID: "peak", Expr: "@hourly", Rate: 50},
	}, Config{})
	testutil.AssertNoError(t, err)

	plan.Start()
	plan.Start()
	plan.Stop()
}

func TestPlanMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	plan, err := New(newTestLimiter(t), []Step{
		{ID: "peak", Expr: "@hourly", Rate: 50},
	}, Config{
		Name:    "api",
		Metrics: metrics.Config{Enabled: true, Registry: reg},
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, plan.Apply("peak"))

	families, err := reg.Gather()
	testutil.AssertNoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "smoothrate_rateplan_steps_applied_total" {
			found = true
			testutil.AssertEqual(t, mf.GetMetric()[0].GetCounter().GetValue(), 1.0)
		}
	}
	if !found {
		t.Fatal("steps_applied_total not gathered")
	}
}

func TestStartStopRespectContext(t *testing.T) {
	// Stop on a never-started plan still yields a done context.
	plan, err := New(newTestLimiter(t), []Step{
		{ID: "peak", Expr: "@hourly", Rate: 50},
	}, Config{})
	testutil.AssertNoError(t, err)

	ctx := plan.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop on an idle plan should complete immediately")
	}
}
