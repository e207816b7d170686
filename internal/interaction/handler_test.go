package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
)

var clickTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *approval.FunctionCallService, *approval.HumanContactService) {
	t.Helper()
	opts := approval.Options{Store: approval.NewMemStore()}
	calls := approval.NewFunctionCallService(opts)
	contacts := approval.NewHumanContactService(opts)
	h := NewHandler(calls, contacts, "Slack")
	h.now = func() time.Time { return clickTime }

	ctx := context.Background()
	_, err := calls.Create(ctx, approval.FunctionCall{
		RunID:  "r1",
		CallID: "c1",
		Spec:   approval.FunctionCallSpec{Fn: "send_email", Kwargs: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = contacts.Create(ctx, approval.HumanContact{
		RunID:  "r1",
		CallID: "c2",
		Spec: approval.HumanContactSpec{
			Msg: "Ship it?",
			ResponseOptions: []approval.ResponseOption{
				{Name: "yes", Title: "Ship it"},
				{Name: "no"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return h, calls, contacts
}

var ana = Actor{ID: "U1", Username: "ana"}

func TestHandle_Approve(t *testing.T) {
	t.Parallel()
	h, calls, _ := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, Approve("c1"), ana); err != nil {
		t.Fatal(err)
	}
	fc, _ := calls.Get(ctx, "c1")
	if fc.Status.Approved == nil || !*fc.Status.Approved {
		t.Errorf("approved = %v", fc.Status.Approved)
	}
	if fc.Status.Comment != "Approved by @ana via Slack" {
		t.Errorf("comment = %q", fc.Status.Comment)
	}
	if fc.Status.RespondedAt == nil || !fc.Status.RespondedAt.Equal(clickTime) {
		t.Errorf("responded_at = %v", fc.Status.RespondedAt)
	}

	// A second click is absorbed as a conflict.
	err := h.Handle(ctx, Deny("c1"), ana)
	if !errors.Is(err, approval.ErrAlreadyDecided) {
		t.Errorf("second click error = %v, want ErrAlreadyDecided", err)
	}
}

func TestHandle_Deny(t *testing.T) {
	t.Parallel()
	h, calls, _ := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, Deny("c1"), Actor{ID: "U9"}); err != nil {
		t.Fatal(err)
	}
	fc, _ := calls.Get(ctx, "c1")
	if fc.Status.Approved == nil || *fc.Status.Approved {
		t.Errorf("approved = %v, want false", fc.Status.Approved)
	}
	if fc.Status.Comment != "Denied by @U9 via Slack" {
		t.Errorf("comment = %q", fc.Status.Comment)
	}
}

func TestHandle_Reject(t *testing.T) {
	t.Parallel()
	h, calls, _ := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, Reject("c1", "too_risky"), ana); err != nil {
		t.Fatal(err)
	}
	fc, _ := calls.Get(ctx, "c1")
	if fc.Status.RejectOptionName != "too_risky" {
		t.Errorf("reject_option_name = %q", fc.Status.RejectOptionName)
	}
	if fc.Status.Comment != "Rejected (too_risky) by @ana via Slack" {
		t.Errorf("comment = %q", fc.Status.Comment)
	}
}

func TestHandle_RespondResolvesTitle(t *testing.T) {
	t.Parallel()
	h, _, contacts := newTestHandler(t)
	ctx := context.Background()

	cmd, err := Decode("respond:c2:yes")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(ctx, cmd, ana); err != nil {
		t.Fatal(err)
	}
	hc, _ := contacts.Get(ctx, "c2")
	if hc.Status.ResponseOptionName != "yes" {
		t.Errorf("response_option_name = %q", hc.Status.ResponseOptionName)
	}
	if hc.Status.Response != "Ship it (by @ana)" {
		t.Errorf("response = %q", hc.Status.Response)
	}
}

func TestHandle_RespondUnknownOptionFallsBack(t *testing.T) {
	t.Parallel()
	h, _, contacts := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, Respond("c2", "later"), ana); err != nil {
		t.Fatal(err)
	}
	hc, _ := contacts.Get(ctx, "c2")
	if hc.Status.Response != "later (by @ana)" {
		t.Errorf("response = %q", hc.Status.Response)
	}
}

func TestHandle_NotFound(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	if err := h.Handle(ctx, Approve("nope"), ana); !errors.Is(err, approval.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if err := h.Handle(ctx, Respond("nope", "yes"), ana); !errors.Is(err, approval.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHandle_UnknownKind(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	err := h.Handle(context.Background(), Command{Kind: "launch", CallID: "c1"}, ana)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestHandle_EmptyOption(t *testing.T) {
	t.Parallel()
	h, calls, contacts := newTestHandler(t)
	ctx := context.Background()

	for _, value := range []string{"reject:c1", "respond:c2"} {
		cmd, err := Decode(value)
		if err != nil {
			t.Fatalf("Decode(%q): %v", value, err)
		}
		if err := h.Handle(ctx, cmd, ana); err != nil {
			t.Fatalf("Handle(%q): %v", value, err)
		}
	}

	fc, _ := calls.Get(ctx, "c1")
	if fc.Status.Approved == nil || *fc.Status.Approved {
		t.Errorf("approved = %v, want false", fc.Status.Approved)
	}
	if fc.Status.RejectOptionName != "" {
		t.Errorf("reject_option_name = %q, want empty", fc.Status.RejectOptionName)
	}
	if fc.Status.Comment != "Rejected by @ana via Slack" {
		t.Errorf("comment = %q", fc.Status.Comment)
	}

	hc, _ := contacts.Get(ctx, "c2")
	if hc.Status.RespondedAt == nil {
		t.Fatal("contact not resolved")
	}
	if hc.Status.ResponseOptionName != "" {
		t.Errorf("response_option_name = %q, want empty", hc.Status.ResponseOptionName)
	}
	if hc.Status.Response != "Responded by @ana" {
		t.Errorf("response = %q", hc.Status.Response)
	}
}
