package approval

import (
	"context"
	"time"
)

// Notifier delivers requests to humans over an external channel.
type Notifier interface {
	// SendApprovalRequest posts the call and returns an opaque message
	// handle for later in-place updates. An empty handle means the channel
	// does not support updates.
	SendApprovalRequest(ctx context.Context, fc *FunctionCall) (string, error)
	SendHumanContactRequest(ctx context.Context, hc *HumanContact) (string, error)

	// UpdateApprovalMessage edits the posted message to show the decision.
	UpdateApprovalMessage(ctx context.Context, fc *FunctionCall) error

	SendEscalation(ctx context.Context, target EscalationTarget, esc Escalation) error
}

// EscalationTarget identifies the request an escalation is about.
type EscalationTarget struct {
	Kind    Kind
	RunID   string
	CallID  string
	Summary string // function name or contact message
	Channel *ContactChannel
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) SendApprovalRequest(context.Context, *FunctionCall) (string, error) {
	return "", nil
}

func (NopNotifier) SendHumanContactRequest(context.Context, *HumanContact) (string, error) {
	return "", nil
}

func (NopNotifier) UpdateApprovalMessage(context.Context, *FunctionCall) error { return nil }

func (NopNotifier) SendEscalation(context.Context, EscalationTarget, Escalation) error {
	return nil
}

// EventType names a lifecycle transition.
type EventType string

const (
	EventCreated      EventType = "request.created"
	EventNotified     EventType = "request.notified"
	EventNotifyFailed EventType = "request.notify_failed"
	EventResponded    EventType = "request.responded"
	EventEscalated    EventType = "request.escalated"
)

// Event describes a state change of a request.
type Event struct {
	Type     EventType `json:"type"`
	Kind     Kind      `json:"kind"`
	RunID    string    `json:"run_id"`
	CallID   string    `json:"call_id"`
	Approved *bool     `json:"approved,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Time     time.Time `json:"time"`
}

// Observer receives lifecycle events. Observe must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to several observers.
type Observers []Observer

func (obs Observers) Observe(e Event) {
	for _, o := range obs {
		if o != nil {
			o.Observe(e)
		}
	}
}
