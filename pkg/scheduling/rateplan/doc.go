/*
Package rateplan applies scheduled rate changes to a smooth.Limiter.

Production limiters rarely run one rate around the clock: API quotas drop
during business hours, batch windows open at night, and maintenance windows
need throttling. A Plan holds cron-scheduled steps and calls SetRate on the
wrapped limiter whenever a step fires:

	limiter, _ := smooth.NewBursty(500)

	plan, _ := rateplan.New(limiter, []rateplan.Step{
		{ID: "business-hours", Expr: "0 9 * * 1-5", Rate: 200},
		{ID: "off-peak", Expr: "0 18 * * 1-5", Rate: 500},
	}, rateplan.Config{})

	plan.Start()
	defer plan.Stop()

Because smooth limiters rescale banked permits proportionally on every rate
change, steps never discard or fabricate accumulated capacity.
*/
package rateplan
