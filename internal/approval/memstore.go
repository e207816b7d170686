package approval

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemStore is an in-memory Store. All operations are serialised by a mutex,
// which makes the conditional respond trivially atomic.
type MemStore struct {
	mu          sync.Mutex
	calls       map[string]*FunctionCall
	contacts    map[string]*HumanContact
	escalations []EscalationRecord
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		calls:    make(map[string]*FunctionCall),
		contacts: make(map[string]*HumanContact),
	}
}

func (m *MemStore) CreateFunctionCall(_ context.Context, fc *FunctionCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.calls[fc.CallID]; ok {
		return fmt.Errorf("memstore: duplicate call_id %q", fc.CallID)
	}
	m.calls[fc.CallID] = cloneFunctionCall(fc)
	return nil
}

func (m *MemStore) GetFunctionCall(_ context.Context, callID string) (*FunctionCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fc, ok := m.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFunctionCall(fc), nil
}

func (m *MemStore) RespondFunctionCall(_ context.Context, callID string, patch FunctionCallResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fc, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	if fc.Status.Resolved() {
		return ErrAlreadyDecided
	}
	patch.Apply(fc.Status)
	return nil
}

func (m *MemStore) SetFunctionCallMessageTS(_ context.Context, callID, ts string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fc, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	if !fc.Status.Resolved() {
		fc.Status.SlackMessageTS = ts
	}
	return nil
}

func (m *MemStore) CreateHumanContact(_ context.Context, hc *HumanContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contacts[hc.CallID]; ok {
		return fmt.Errorf("memstore: duplicate call_id %q", hc.CallID)
	}
	m.contacts[hc.CallID] = cloneHumanContact(hc)
	return nil
}

func (m *MemStore) GetHumanContact(_ context.Context, callID string) (*HumanContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hc, ok := m.contacts[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneHumanContact(hc), nil
}

func (m *MemStore) RespondHumanContact(_ context.Context, callID string, patch HumanContactResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hc, ok := m.contacts[callID]
	if !ok {
		return ErrNotFound
	}
	if hc.Status.Resolved() {
		return ErrAlreadyResponded
	}
	patch.Apply(hc.Status)
	return nil
}

func (m *MemStore) SetHumanContactMessageTS(_ context.Context, callID, ts string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hc, ok := m.contacts[callID]
	if !ok {
		return ErrNotFound
	}
	if !hc.Status.Resolved() {
		hc.Status.SlackMessageTS = ts
	}
	return nil
}

func (m *MemStore) AppendEscalation(_ context.Context, rec EscalationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.escalations = append(m.escalations, rec)
	return nil
}

func (m *MemStore) ListEscalations(_ context.Context, kind Kind, callID string) ([]EscalationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []EscalationRecord
	for _, rec := range m.escalations {
		if rec.Kind == kind && rec.CallID == callID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemStore) CountPending(_ context.Context) (Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var p Pending
	for _, fc := range m.calls {
		if !fc.Status.Resolved() {
			p.FunctionCalls++
		}
	}
	for _, hc := range m.contacts {
		if !hc.Status.Resolved() {
			p.HumanContacts++
		}
	}
	return p, nil
}

// The spec fields are treated as immutable after creation, so only the
// status and the option slices are copied.
func cloneFunctionCall(fc *FunctionCall) *FunctionCall {
	out := *fc
	out.Spec.RejectOptions = slices.Clone(fc.Spec.RejectOptions)
	if fc.Status != nil {
		st := *fc.Status
		out.Status = &st
	}
	return &out
}

func cloneHumanContact(hc *HumanContact) *HumanContact {
	out := *hc
	out.Spec.ResponseOptions = slices.Clone(hc.Spec.ResponseOptions)
	if hc.Status != nil {
		st := *hc.Status
		out.Status = &st
	}
	return &out
}
