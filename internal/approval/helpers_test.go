package approval

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeNotifier records every call and returns canned results.
type fakeNotifier struct {
	mu        sync.Mutex
	ts        string
	err       error
	block     bool
	approvals []string
	contacts  []string
	updates   []*FunctionCall
	escalated []EscalationTarget
}

func (f *fakeNotifier) SendApprovalRequest(ctx context.Context, fc *FunctionCall) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, fc.CallID)
	return f.ts, f.err
}

func (f *fakeNotifier) SendHumanContactRequest(_ context.Context, hc *HumanContact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, hc.CallID)
	return f.ts, f.err
}

func (f *fakeNotifier) UpdateApprovalMessage(_ context.Context, fc *FunctionCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fc)
	return nil
}

func (f *fakeNotifier) SendEscalation(_ context.Context, target EscalationTarget, _ Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalated = append(f.escalated, target)
	return f.err
}

// recorder collects observed events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store    *MemStore
	notifier *fakeNotifier
	events   *recorder
	bg       *Background
	calls    *FunctionCallService
	contacts *HumanContactService
}

func newFixture(t *testing.T, mode NotifyMode) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewMemStore(),
		notifier: &fakeNotifier{ts: "1700000000.000100"},
		events:   &recorder{},
		bg:       NewBackground(nil),
	}
	opts := Options{
		Store:      f.store,
		Notifier:   f.notifier,
		Observer:   f.events,
		Background: f.bg,
		Mode:       mode,
		Timeout:    time.Second,
		Now:        func() time.Time { return fixedNow },
	}
	f.calls = NewFunctionCallService(opts)
	f.contacts = NewHumanContactService(opts)
	t.Cleanup(f.bg.Wait)
	return f
}

func sampleCall(id string, channel *ContactChannel) FunctionCall {
	return FunctionCall{
		RunID:  "r1",
		CallID: id,
		Spec: FunctionCallSpec{
			Fn:      "send_email",
			Kwargs:  json.RawMessage(`{"to":"a@b.com"}`),
			Channel: channel,
			RejectOptions: []ResponseOption{
				{Name: "too_risky", Title: "Too risky"},
			},
		},
	}
}

func sampleContact(id string, channel *ContactChannel) HumanContact {
	return HumanContact{
		RunID:  "r1",
		CallID: id,
		Spec: HumanContactSpec{
			Msg:     "Ship it?",
			Subject: "Deploy",
			Channel: channel,
			ResponseOptions: []ResponseOption{
				{Name: "yes", Title: "Yes please"},
				{Name: "no"},
			},
		},
	}
}

func slackChannel() *ContactChannel {
	return &ContactChannel{Slack: &SlackChannel{ChannelOrUserID: "C123"}}
}

func mustNotErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
