package slack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/channel"
	"github.com/flemzord/hlbroker/internal/interaction"
	"github.com/slack-go/slack"
)

// Slack allows at most this many buttons per actions block in our layout.
const buttonsPerBlock = 5

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

// sections splits text into as many section blocks as needed.
func sections(text string, maxLen int) []slack.Block {
	chunks := channel.SplitText(text, channel.ChunkConfig{MaxLength: maxLen, PreserveBlocks: true})
	blocks := make([]slack.Block, 0, len(chunks))
	for _, c := range chunks {
		if len(c) > maxSectionText {
			c = c[:maxSectionText]
		}
		blocks = append(blocks, slack.NewSectionBlock(markdown(c), nil, nil))
	}
	return blocks
}

// actionBlocks lays buttons out in rows of buttonsPerBlock. Block IDs are
// derived from callID so every row is unique within a message.
func actionBlocks(callID string, buttons []*slack.ButtonBlockElement) []slack.Block {
	var blocks []slack.Block
	for i := 0; i < len(buttons); i += buttonsPerBlock {
		end := min(i+buttonsPerBlock, len(buttons))
		elems := make([]slack.BlockElement, 0, end-i)
		for _, b := range buttons[i:end] {
			elems = append(elems, b)
		}
		blocks = append(blocks, slack.NewActionBlock(fmt.Sprintf("hl:%s:%d", callID, i/buttonsPerBlock), elems...))
	}
	return blocks
}

func button(cmd interaction.Command, label string) *slack.ButtonBlockElement {
	actionID := string(cmd.Kind)
	if cmd.Option != "" {
		actionID += ":" + cmd.Option
	}
	return slack.NewButtonBlockElement(actionID, cmd.Encode(), plain(label))
}

func prettyKwargs(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func contextLine(ch *approval.ContactChannel) []slack.Block {
	if ch == nil || ch.Slack == nil || ch.Slack.ContextAboutChannelOrUser == "" {
		return nil
	}
	return []slack.Block{slack.NewContextBlock("", markdown(ch.Slack.ContextAboutChannelOrUser))}
}

func approvalSummary(fc *approval.FunctionCall) string {
	return fmt.Sprintf("Agent wants to call `%s`", fc.Spec.Fn)
}

// approvalBlocks renders a pending function call with its decision buttons.
func approvalBlocks(fc *approval.FunctionCall, maxLen int) []slack.Block {
	var blocks []slack.Block
	blocks = append(blocks, slack.NewSectionBlock(markdown("*"+approvalSummary(fc)+"*"), nil, nil))
	blocks = append(blocks, contextLine(fc.Spec.Channel)...)
	blocks = append(blocks, sections("```\n"+prettyKwargs(fc.Spec.Kwargs)+"\n```", maxLen)...)

	buttons := []*slack.ButtonBlockElement{
		button(interaction.Approve(fc.CallID), "Approve").WithStyle(slack.StylePrimary),
		button(interaction.Deny(fc.CallID), "Deny").WithStyle(slack.StyleDanger),
	}
	for _, opt := range fc.Spec.RejectOptions {
		buttons = append(buttons, button(interaction.Reject(fc.CallID, opt.Name), opt.Label()))
	}
	return append(blocks, actionBlocks(fc.CallID, buttons)...)
}

// decisionText describes a resolved function call.
func decisionText(fc *approval.FunctionCall) string {
	st := fc.Status
	var b strings.Builder
	switch {
	case st == nil || st.Approved == nil:
		b.WriteString(":grey_question: Resolved")
	case *st.Approved:
		b.WriteString(":white_check_mark: Approved")
	case st.RejectOptionName != "":
		fmt.Fprintf(&b, ":no_entry: Rejected (%s)", st.RejectOptionName)
	default:
		b.WriteString(":x: Denied")
	}
	if st != nil && st.Comment != "" {
		b.WriteString("\n> ")
		b.WriteString(st.Comment)
	}
	return b.String()
}

// decisionBlocks renders a resolved function call without buttons.
func decisionBlocks(fc *approval.FunctionCall, maxLen int) []slack.Block {
	var blocks []slack.Block
	blocks = append(blocks, slack.NewSectionBlock(markdown("*"+approvalSummary(fc)+"*"), nil, nil))
	blocks = append(blocks, sections("```\n"+prettyKwargs(fc.Spec.Kwargs)+"\n```", maxLen)...)
	blocks = append(blocks, slack.NewDividerBlock())
	return append(blocks, slack.NewSectionBlock(markdown(decisionText(fc)), nil, nil))
}

func contactSummary(hc *approval.HumanContact) string {
	if hc.Spec.Subject != "" {
		return hc.Spec.Subject
	}
	return "Agent needs your input"
}

// contactBlocks renders a human contact with one button per response option.
func contactBlocks(hc *approval.HumanContact, maxLen int) []slack.Block {
	var blocks []slack.Block
	blocks = append(blocks, slack.NewSectionBlock(markdown("*"+contactSummary(hc)+"*"), nil, nil))
	blocks = append(blocks, contextLine(hc.Spec.Channel)...)
	blocks = append(blocks, sections(hc.Spec.Msg, maxLen)...)

	buttons := make([]*slack.ButtonBlockElement, 0, len(hc.Spec.ResponseOptions))
	for _, opt := range hc.Spec.ResponseOptions {
		buttons = append(buttons, button(interaction.Respond(hc.CallID, opt.Name), opt.Label()))
	}
	return append(blocks, actionBlocks(hc.CallID, buttons)...)
}

func escalationText(target approval.EscalationTarget, esc approval.Escalation) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *Escalation* for %s `%s`", strings.ReplaceAll(string(target.Kind), "_", " "), target.CallID)
	if target.Summary != "" {
		fmt.Fprintf(&b, " (%s)", target.Summary)
	}
	b.WriteString("\n")
	b.WriteString(esc.EscalationMsg)
	return b.String()
}
