package approval

import "context"

// Store persists requests and their status records.
//
// The Respond methods are conditional updates: the patch is applied only
// while the request is unresolved, and the check and write happen
// atomically. They return ErrNotFound for an unknown call_id and
// ErrAlreadyDecided or ErrAlreadyResponded when a response was already
// recorded.
type Store interface {
	CreateFunctionCall(ctx context.Context, fc *FunctionCall) error
	GetFunctionCall(ctx context.Context, callID string) (*FunctionCall, error)
	RespondFunctionCall(ctx context.Context, callID string, patch FunctionCallResponse) error
	// SetFunctionCallMessageTS stores the external message handle. It is a
	// no-op once the call is resolved.
	SetFunctionCallMessageTS(ctx context.Context, callID, ts string) error

	CreateHumanContact(ctx context.Context, hc *HumanContact) error
	GetHumanContact(ctx context.Context, callID string) (*HumanContact, error)
	RespondHumanContact(ctx context.Context, callID string, patch HumanContactResponse) error
	SetHumanContactMessageTS(ctx context.Context, callID, ts string) error

	AppendEscalation(ctx context.Context, rec EscalationRecord) error
	ListEscalations(ctx context.Context, kind Kind, callID string) ([]EscalationRecord, error)

	CountPending(ctx context.Context) (Pending, error)
}
