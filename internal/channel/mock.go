package channel

import (
	"context"
	"sync"

	"github.com/flemzord/hlbroker/internal/approval"
)

// MockSender is a test double that implements Sender. It records every
// notification and returns Handle as the message handle.
type MockSender struct {
	kind   approval.ChannelKind
	Handle string

	mu          sync.Mutex
	approvals   []*approval.FunctionCall
	contacts    []*approval.HumanContact
	updates     []*approval.FunctionCall
	escalations []approval.EscalationTarget

	// Err, if set, is returned by every send.
	Err error
}

// Compile-time interface guard.
var _ Sender = (*MockSender)(nil)

// NewMockSender creates a MockSender for kind returning handle.
func NewMockSender(kind approval.ChannelKind, handle string) *MockSender {
	return &MockSender{kind: kind, Handle: handle}
}

func (m *MockSender) Kind() approval.ChannelKind { return m.kind }

func (m *MockSender) SendApprovalRequest(_ context.Context, fc *approval.FunctionCall) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, fc)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Handle, nil
}

func (m *MockSender) SendHumanContactRequest(_ context.Context, hc *approval.HumanContact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, hc)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Handle, nil
}

func (m *MockSender) UpdateApprovalMessage(_ context.Context, fc *approval.FunctionCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, fc)
	return m.Err
}

func (m *MockSender) SendEscalation(_ context.Context, target approval.EscalationTarget, _ approval.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations = append(m.escalations, target)
	return m.Err
}

// Approvals returns a copy of the recorded approval requests.
func (m *MockSender) Approvals() []*approval.FunctionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*approval.FunctionCall(nil), m.approvals...)
}

// Contacts returns a copy of the recorded contact requests.
func (m *MockSender) Contacts() []*approval.HumanContact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*approval.HumanContact(nil), m.contacts...)
}

// Updates returns a copy of the recorded in-place updates.
func (m *MockSender) Updates() []*approval.FunctionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*approval.FunctionCall(nil), m.updates...)
}

// Escalations returns a copy of the recorded escalation targets.
func (m *MockSender) Escalations() []approval.EscalationTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]approval.EscalationTarget(nil), m.escalations...)
}
