// Package approval implements the request lifecycle shared by function call
// approvals and human contacts: create, get, respond exactly once, escalate.
package approval

import (
	"encoding/json"
	"time"
)

// Kind distinguishes the two request families.
type Kind string

const (
	KindFunctionCall Kind = "function_call"
	KindHumanContact Kind = "human_contact"
)

// FunctionCall is a request for a human to approve an agent's tool call.
type FunctionCall struct {
	RunID  string              `json:"run_id"`
	CallID string              `json:"call_id"`
	Spec   FunctionCallSpec    `json:"spec"`
	Status *FunctionCallStatus `json:"status,omitempty"`
}

// FunctionCallSpec describes the call awaiting approval.
type FunctionCallSpec struct {
	Fn            string           `json:"fn"`
	Kwargs        json.RawMessage  `json:"kwargs"`
	Channel       *ContactChannel  `json:"channel,omitempty"`
	RejectOptions []ResponseOption `json:"reject_options,omitempty"`
	State         json.RawMessage  `json:"state,omitempty"`
}

// FunctionCallStatus is the 1:1 status record of a FunctionCall.
// The call is resolved once RespondedAt is set.
type FunctionCallStatus struct {
	RequestedAt      time.Time  `json:"requested_at"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	Approved         *bool      `json:"approved,omitempty"`
	Comment          string     `json:"comment,omitempty"`
	RejectOptionName string     `json:"reject_option_name,omitempty"`
	SlackMessageTS   string     `json:"slack_message_ts,omitempty"`
}

// Resolved reports whether a response has been recorded.
func (s *FunctionCallStatus) Resolved() bool {
	return s != nil && s.RespondedAt != nil
}

// HumanContact is a free-text question addressed to a human.
type HumanContact struct {
	RunID  string              `json:"run_id"`
	CallID string              `json:"call_id"`
	Spec   HumanContactSpec    `json:"spec"`
	Status *HumanContactStatus `json:"status,omitempty"`
}

// HumanContactSpec describes the question.
type HumanContactSpec struct {
	Msg             string           `json:"msg"`
	Subject         string           `json:"subject,omitempty"`
	Channel         *ContactChannel  `json:"channel,omitempty"`
	ResponseOptions []ResponseOption `json:"response_options,omitempty"`
	State           json.RawMessage  `json:"state,omitempty"`
}

// HumanContactStatus is the 1:1 status record of a HumanContact.
type HumanContactStatus struct {
	RequestedAt        time.Time  `json:"requested_at"`
	RespondedAt        *time.Time `json:"responded_at,omitempty"`
	Response           string     `json:"response,omitempty"`
	ResponseOptionName string     `json:"response_option_name,omitempty"`
	SlackMessageTS     string     `json:"slack_message_ts,omitempty"`
}

// Resolved reports whether a response has been recorded.
func (s *HumanContactStatus) Resolved() bool {
	return s != nil && s.RespondedAt != nil
}

// Option returns the response option with the given name.
func (s HumanContactSpec) Option(name string) (ResponseOption, bool) {
	for _, o := range s.ResponseOptions {
		if o.Name == name {
			return o, true
		}
	}
	return ResponseOption{}, false
}

// ContactChannel says where a human should be reached. Any variant may be
// set; only the first populated one in Slack, Email, SMS, WhatsApp order is
// used for delivery.
type ContactChannel struct {
	Slack    *SlackChannel    `json:"slack,omitempty"`
	Email    *EmailChannel    `json:"email,omitempty"`
	SMS      *SMSChannel      `json:"sms,omitempty"`
	WhatsApp *WhatsAppChannel `json:"whatsapp,omitempty"`
}

// ChannelKind names a ContactChannel variant.
type ChannelKind string

const (
	ChannelSlack    ChannelKind = "slack"
	ChannelEmail    ChannelKind = "email"
	ChannelSMS      ChannelKind = "sms"
	ChannelWhatsApp ChannelKind = "whatsapp"
)

// Kind returns the populated variant, or "" when none is.
func (c *ContactChannel) Kind() ChannelKind {
	switch {
	case c == nil:
		return ""
	case c.Slack != nil:
		return ChannelSlack
	case c.Email != nil:
		return ChannelEmail
	case c.SMS != nil:
		return ChannelSMS
	case c.WhatsApp != nil:
		return ChannelWhatsApp
	}
	return ""
}

type SlackChannel struct {
	ChannelOrUserID           string `json:"channel_or_user_id"`
	ContextAboutChannelOrUser string `json:"context_about_channel_or_user,omitempty"`
	BotToken                  string `json:"bot_token,omitempty"`
	ExperimentalSlackBlocks   bool   `json:"experimental_slack_blocks,omitempty"`
	ThreadTS                  string `json:"thread_ts,omitempty"`
}

type EmailChannel struct {
	Address                 string           `json:"address"`
	ContextAboutUser        string           `json:"context_about_user,omitempty"`
	AdditionalRecipients    []EmailRecipient `json:"additional_recipients,omitempty"`
	ExperimentalSubjectLine string           `json:"experimental_subject_line,omitempty"`
}

type SMSChannel struct {
	PhoneNumber      string `json:"phone_number"`
	ContextAboutUser string `json:"context_about_user,omitempty"`
}

type WhatsAppChannel struct {
	PhoneNumber      string `json:"phone_number"`
	ContextAboutUser string `json:"context_about_user,omitempty"`
}

// ResponseOption is a named choice offered to the human, used both as a
// reject option and as a contact response option.
type ResponseOption struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	PromptFill  string `json:"prompt_fill,omitempty"`
	Interactive bool   `json:"interactive,omitempty"`
}

// Label returns the title, falling back to the name.
func (o ResponseOption) Label() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Name
}

// EmailRecipient is an extra address for an escalation.
type EmailRecipient struct {
	Address          string `json:"address"`
	Field            string `json:"field"` // to, cc or bcc
	ContextAboutUser string `json:"context_about_user,omitempty"`
}

// Escalation asks for a pending request to be brought to someone's attention
// again, possibly on another channel.
type Escalation struct {
	EscalationMsg        string           `json:"escalation_msg"`
	AdditionalRecipients []EmailRecipient `json:"additional_recipients,omitempty"`
	Channel              *ContactChannel  `json:"channel,omitempty"`
}

// EscalationRecord is one entry of the append-only escalation log.
type EscalationRecord struct {
	ID                   string           `json:"id"`
	Kind                 Kind             `json:"kind"`
	CallID               string           `json:"call_id"`
	Message              string           `json:"escalation_msg"`
	AdditionalRecipients []EmailRecipient `json:"additional_recipients,omitempty"`
	Channel              *ContactChannel  `json:"channel,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Pending holds the number of unresolved requests per kind.
type Pending struct {
	FunctionCalls int
	HumanContacts int
}
