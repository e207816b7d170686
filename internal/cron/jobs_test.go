package cron_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/cron"
	"github.com/flemzord/hlbroker/internal/cron/crontest"
)

type failingCounter struct{}

func (failingCounter) CountPending(context.Context) (approval.Pending, error) {
	return approval.Pending{}, errors.New("disk gone")
}

func TestPendingRequestsJob(t *testing.T) {
	t.Parallel()

	store := approval.NewMemStore()
	ctx := t.Context()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		fc := &approval.FunctionCall{RunID: "r", CallID: id, Spec: approval.FunctionCallSpec{Fn: "f"},
			Status: &approval.FunctionCallStatus{RequestedAt: now}}
		if err := store.CreateFunctionCall(ctx, fc); err != nil {
			t.Fatal(err)
		}
	}
	hc := &approval.HumanContact{RunID: "r", CallID: "h", Spec: approval.HumanContactSpec{Msg: "?"},
		Status: &approval.HumanContactStatus{RequestedAt: now}}
	if err := store.CreateHumanContact(ctx, hc); err != nil {
		t.Fatal(err)
	}
	if err := store.RespondFunctionCall(ctx, "a", approval.FunctionCallResponse{
		RespondedAt: approval.Some(now), Approved: approval.Some(true),
	}); err != nil {
		t.Fatal(err)
	}

	gauge := &crontest.Gauge{}
	job := &cron.PendingRequestsJob{Store: store, Gauge: gauge}
	if err := job.Run(ctx); err != nil {
		t.Fatal(err)
	}

	got, sets := gauge.Last()
	if sets != 1 || got.FunctionCalls != 1 || got.HumanContacts != 1 {
		t.Errorf("gauge = %+v after %d sets, want 1/1 after 1", got, sets)
	}
}

func TestPendingRequestsJobError(t *testing.T) {
	t.Parallel()

	gauge := &crontest.Gauge{}
	job := &cron.PendingRequestsJob{Store: failingCounter{}, Gauge: gauge}
	if err := job.Run(t.Context()); err == nil {
		t.Fatal("expected error")
	}
	if _, sets := gauge.Last(); sets != 0 {
		t.Errorf("gauge set %d times on error", sets)
	}
}

func TestPendingRequestsJobSchedule(t *testing.T) {
	t.Parallel()

	j := &cron.PendingRequestsJob{}
	if j.Name() != "pending_requests" || j.Schedule() != cron.DefaultPendingSchedule {
		t.Errorf("name/schedule = %q/%q", j.Name(), j.Schedule())
	}
	j.ScheduleExpr = "*/5 * * * *"
	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("schedule override = %q", j.Schedule())
	}
}

func TestSchedulerRunsPendingJob(t *testing.T) {
	t.Parallel()

	gauge := &crontest.Gauge{}
	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(&cron.PendingRequestsJob{Store: approval.NewMemStore(), Gauge: gauge}); err != nil {
		t.Fatal(err)
	}
	ran, err := s.RunNow("pending_requests")
	if err != nil || !ran {
		t.Fatalf("RunNow = %v, %v", ran, err)
	}
	if _, sets := gauge.Last(); sets != 1 {
		t.Errorf("sets = %d, want 1", sets)
	}
}
