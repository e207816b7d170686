package slack

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/slack-go/slack"
)

func TestActionBlocks_RowsOfFive(t *testing.T) {
	t.Parallel()

	fc := slackCall("fc-1")
	fc.Spec.RejectOptions = nil
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		fc.Spec.RejectOptions = append(fc.Spec.RejectOptions, approval.ResponseOption{Name: n})
	}

	var rows []*slack.ActionBlock
	for _, b := range approvalBlocks(fc, 2900) {
		if ab, ok := b.(*slack.ActionBlock); ok {
			rows = append(rows, ab)
		}
	}
	if len(rows) != 2 {
		t.Fatalf("got %d action rows, want 2", len(rows))
	}
	if n := len(rows[0].Elements.ElementSet); n != 5 {
		t.Errorf("first row has %d buttons, want 5", n)
	}
	if n := len(rows[1].Elements.ElementSet); n != 3 {
		t.Errorf("second row has %d buttons, want 3", n)
	}
	if rows[0].BlockID == rows[1].BlockID {
		t.Error("action rows share a block_id")
	}
}

func TestApprovalBlocks_LongKwargsSplit(t *testing.T) {
	t.Parallel()

	fc := slackCall("fc-1")
	big := map[string]string{}
	for i := range 200 {
		big[strings.Repeat("k", 5)+string(rune('a'+i%26))+strings.Repeat("x", i%7)] = strings.Repeat("v", 40)
	}
	fc.Spec.Kwargs, _ = json.Marshal(big)

	for _, b := range approvalBlocks(fc, 500) {
		sb, ok := b.(*slack.SectionBlock)
		if !ok || sb.Text == nil {
			continue
		}
		if len(sb.Text.Text) > maxSectionText {
			t.Errorf("section of %d chars exceeds Slack limit", len(sb.Text.Text))
		}
	}
}

func TestDecisionText(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	tests := []struct {
		name   string
		status *approval.FunctionCallStatus
		want   string
	}{
		{"approved", &approval.FunctionCallStatus{Approved: &yes, Comment: "ok"}, "Approved"},
		{"denied", &approval.FunctionCallStatus{Approved: &no}, "Denied"},
		{"rejected", &approval.FunctionCallStatus{Approved: &no, RejectOptionName: "later"}, "Rejected (later)"},
		{"unknown", nil, "Resolved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fc := slackCall("fc-1")
			fc.Status = tt.status
			if got := decisionText(fc); !strings.Contains(got, tt.want) {
				t.Errorf("decisionText = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	c := Config{APIURL: "ftp://example.com"}
	c.defaults()
	if err := c.validate(); err == nil {
		t.Error("ftp api_url accepted")
	}
	c = Config{MaxSectionLength: 5000}
	c.defaults()
	if err := c.validate(); err == nil {
		t.Error("oversized max_section_length accepted")
	}
	c = Config{}
	c.defaults()
	if err := c.validate(); err != nil {
		t.Errorf("defaults rejected: %v", err)
	}
}
