// Package cron runs periodic maintenance jobs for the broker, such as
// refreshing the pending request gauges.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Names are unique per scheduler.
	Name() string

	// Schedule is a 5-field cron expression or a descriptor such as
	// "@every 30s".
	Schedule() string

	Run(ctx context.Context) error
}
