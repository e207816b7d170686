package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/hlbroker/internal/approval"
)

// PendingCounter reports unresolved request counts. Every approval.Store
// implements it.
type PendingCounter interface {
	CountPending(ctx context.Context) (approval.Pending, error)
}

// PendingGauge receives the counts.
type PendingGauge interface {
	SetPending(approval.Pending)
}

// DefaultPendingSchedule refreshes the gauges every thirty seconds.
const DefaultPendingSchedule = "@every 30s"

// PendingRequestsJob copies the number of unresolved function calls and
// human contacts into the pending gauges.
type PendingRequestsJob struct {
	Store        PendingCounter
	Gauge        PendingGauge
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultPendingSchedule
}

var _ Job = (*PendingRequestsJob)(nil)

func (j *PendingRequestsJob) Name() string { return "pending_requests" }

func (j *PendingRequestsJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultPendingSchedule
}

func (j *PendingRequestsJob) Run(ctx context.Context) error {
	p, err := j.Store.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("cron: count pending requests: %w", err)
	}
	j.Gauge.SetPending(p)
	if j.Logger != nil {
		j.Logger.Debug("cron: pending requests",
			"function_calls", p.FunctionCalls,
			"human_contacts", p.HumanContacts,
		)
	}
	return nil
}
