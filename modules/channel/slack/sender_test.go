package slack

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
)

func slackCall(id string) *approval.FunctionCall {
	return &approval.FunctionCall{
		RunID:  "run-1",
		CallID: id,
		Spec: approval.FunctionCallSpec{
			Fn:     "send_email",
			Kwargs: json.RawMessage(`{"to":"a@example.com"}`),
			Channel: &approval.ContactChannel{Slack: &approval.SlackChannel{
				ChannelOrUserID:           "C123",
				ContextAboutChannelOrUser: "the ops channel",
			}},
			RejectOptions: []approval.ResponseOption{{Name: "too_risky", Title: "Too risky"}},
		},
		Status: &approval.FunctionCallStatus{RequestedAt: time.Now()},
	}
}

func newTestSender(t *testing.T, f *fakeSlack, token string) *Sender {
	t.Helper()
	return NewSender(Config{BotToken: token, APIURL: f.URL()}, testLogger())
}

func TestSender_ApprovalRequest(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	ts, err := s.SendApprovalRequest(context.Background(), slackCall("fc-1"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ts != "1700000000.000100" {
		t.Errorf("ts = %q", ts)
	}

	calls := f.Calls()
	if len(calls) != 1 || calls[0].Method != "chat.postMessage" {
		t.Fatalf("calls = %+v", calls)
	}
	c := calls[0]
	if c.Token != "xoxb-default" || c.Form["channel"] != "C123" {
		t.Errorf("token=%q channel=%q", c.Token, c.Form["channel"])
	}
	want := []string{"approve:fc-1", "deny:fc-1", "reject:fc-1:too_risky"}
	if got := blockValues(t, c.Form["blocks"]); !slices.Equal(got, want) {
		t.Errorf("button values = %v, want %v", got, want)
	}
	if !strings.Contains(c.Form["blocks"], "the ops channel") {
		t.Error("context line missing from blocks")
	}
}

func TestSender_TokenOverrideAndThread(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	fc := slackCall("fc-1")
	fc.Spec.Channel.Slack.BotToken = "xoxb-override"
	fc.Spec.Channel.Slack.ThreadTS = "1600000000.000001"
	if _, err := s.SendApprovalRequest(context.Background(), fc); err != nil {
		t.Fatalf("send: %v", err)
	}
	c := f.Calls()[0]
	if c.Token != "xoxb-override" {
		t.Errorf("token = %q, want override", c.Token)
	}
	if c.Form["thread_ts"] != "1600000000.000001" {
		t.Errorf("thread_ts = %q", c.Form["thread_ts"])
	}
}

func TestSender_NoToken(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "")

	if _, err := s.SendApprovalRequest(context.Background(), slackCall("fc-1")); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
	if n := len(f.Calls()); n != 0 {
		t.Errorf("api called %d times", n)
	}
}

func TestSender_MissingChannelID(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	fc := slackCall("fc-1")
	fc.Spec.Channel.Slack.ChannelOrUserID = ""
	if _, err := s.SendApprovalRequest(context.Background(), fc); err == nil {
		t.Error("expected error for missing channel_or_user_id")
	}
}

func TestSender_APIError(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	f.fail = "channel_not_found"
	s := newTestSender(t, f, "xoxb-default")

	_, err := s.SendApprovalRequest(context.Background(), slackCall("fc-1"))
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("err = %v", err)
	}
}

func TestSender_HumanContact(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	hc := &approval.HumanContact{
		RunID:  "run-1",
		CallID: "hc-1",
		Spec: approval.HumanContactSpec{
			Msg:     "Which region should we deploy to?",
			Subject: "Deploy",
			Channel: &approval.ContactChannel{Slack: &approval.SlackChannel{ChannelOrUserID: "U42"}},
			ResponseOptions: []approval.ResponseOption{
				{Name: "eu", Title: "Europe"}, {Name: "us"},
			},
		},
	}
	if _, err := s.SendHumanContactRequest(context.Background(), hc); err != nil {
		t.Fatalf("send: %v", err)
	}
	c := f.Calls()[0]
	want := []string{"respond:hc-1:eu", "respond:hc-1:us"}
	if got := blockValues(t, c.Form["blocks"]); !slices.Equal(got, want) {
		t.Errorf("button values = %v, want %v", got, want)
	}
	if !strings.Contains(c.Form["blocks"], "Europe") || !strings.Contains(c.Form["text"], "Deploy") {
		t.Errorf("labels missing: text=%q", c.Form["text"])
	}
}

func TestSender_UpdateApprovalMessage(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	fc := slackCall("fc-1")
	approved := false
	now := time.Now()
	fc.Status.RespondedAt = &now
	fc.Status.Approved = &approved
	fc.Status.RejectOptionName = "too_risky"
	fc.Status.Comment = "Rejected (too_risky) by @alice via Slack"
	fc.Status.SlackMessageTS = "1700000000.000100"

	if err := s.UpdateApprovalMessage(context.Background(), fc); err != nil {
		t.Fatalf("update: %v", err)
	}
	calls := f.Calls()
	if len(calls) != 1 || calls[0].Method != "chat.update" {
		t.Fatalf("calls = %+v", calls)
	}
	c := calls[0]
	if c.Form["ts"] != "1700000000.000100" || c.Form["channel"] != "C123" {
		t.Errorf("form = %v", c.Form)
	}
	if len(blockValues(t, c.Form["blocks"])) != 0 {
		t.Error("updated message still has buttons")
	}
	if !strings.Contains(c.Form["blocks"], "Rejected (too_risky)") {
		t.Errorf("decision missing: %s", c.Form["blocks"])
	}
}

func TestSender_UpdateWithoutHandleIsNoop(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	if err := s.UpdateApprovalMessage(context.Background(), slackCall("fc-1")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := len(f.Calls()); n != 0 {
		t.Errorf("api called %d times", n)
	}
}

func TestSender_Escalation(t *testing.T) {
	t.Parallel()
	f := newFakeSlack(t)
	s := newTestSender(t, f, "xoxb-default")

	target := approval.EscalationTarget{
		Kind:    approval.KindFunctionCall,
		CallID:  "fc-1",
		Summary: "send_email",
		Channel: &approval.ContactChannel{Slack: &approval.SlackChannel{ChannelOrUserID: "C999"}},
	}
	err := s.SendEscalation(context.Background(), target, approval.Escalation{EscalationMsg: "still waiting"})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	c := f.Calls()[0]
	if c.Form["channel"] != "C999" || !strings.Contains(c.Form["text"], "still waiting") {
		t.Errorf("form = %v", c.Form)
	}
}
