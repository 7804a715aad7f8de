// Package scheduling contains time-driven helpers for smoothrate limiters.
//
//   - rateplan: cron-driven rate schedules applied to a limiter
package scheduling
