package approval

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FunctionCallService manages function call approvals.
type FunctionCallService struct {
	e *engine
}

// NewFunctionCallService creates a service backed by opts.Store.
func NewFunctionCallService(opts Options) *FunctionCallService {
	return &FunctionCallService{e: newEngine(opts)}
}

// Create persists fc with a fresh status and asks the notifier to page a
// human when a channel is set.
func (s *FunctionCallService) Create(ctx context.Context, fc FunctionCall) (*FunctionCall, error) {
	switch {
	case fc.RunID == "":
		return nil, invalid("run_id")
	case fc.CallID == "":
		return nil, invalid("call_id")
	case fc.Spec.Fn == "":
		return nil, invalid("spec.fn")
	}

	ctx, span := tracer.Start(ctx, "approval.function_call.create",
		trace.WithAttributes(attribute.String("hlbroker.call_id", fc.CallID)))
	defer span.End()

	if len(fc.Spec.Kwargs) == 0 {
		fc.Spec.Kwargs = json.RawMessage("{}")
	}
	if fc.Status == nil {
		fc.Status = &FunctionCallStatus{}
	} else {
		st := *fc.Status
		fc.Status = &st
	}
	if fc.Status.RequestedAt.IsZero() {
		fc.Status.RequestedAt = s.e.clock()
	}

	if err := s.e.store.CreateFunctionCall(ctx, &fc); err != nil {
		return nil, fmt.Errorf("approval: create function call %s: %w", fc.CallID, err)
	}
	s.e.emit(Event{Type: EventCreated, Kind: KindFunctionCall, RunID: fc.RunID, CallID: fc.CallID, Detail: fc.Spec.Fn})

	if fc.Spec.Channel != nil && !fc.Status.Resolved() {
		snapshot := fc
		err := s.e.notify(ctx, KindFunctionCall, fc.RunID, fc.CallID,
			func(ctx context.Context) (string, error) {
				return s.e.notifier.SendApprovalRequest(ctx, &snapshot)
			},
			func(ctx context.Context, ts string) error {
				return s.e.store.SetFunctionCallMessageTS(ctx, fc.CallID, ts)
			},
		)
		if err != nil {
			return nil, err
		}
		if s.e.mode == NotifySync {
			return s.Get(ctx, fc.CallID)
		}
	}
	return &fc, nil
}

// Get returns the call with its current status.
func (s *FunctionCallService) Get(ctx context.Context, callID string) (*FunctionCall, error) {
	fc, err := s.e.store.GetFunctionCall(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("approval: get function call %s: %w", callID, err)
	}
	return fc, nil
}

// Respond applies patch if the call is still unresolved. A patch that sets
// RespondedAt resolves the call; any later Respond fails with
// ErrAlreadyDecided.
func (s *FunctionCallService) Respond(ctx context.Context, callID string, patch FunctionCallResponse) (*FunctionCall, error) {
	ctx, span := tracer.Start(ctx, "approval.function_call.respond",
		trace.WithAttributes(attribute.String("hlbroker.call_id", callID)))
	defer span.End()

	if err := s.e.store.RespondFunctionCall(ctx, callID, patch); err != nil {
		return nil, fmt.Errorf("approval: respond function call %s: %w", callID, err)
	}
	fc, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if !patch.RespondedAt.IsSet() {
		return fc, nil
	}

	s.e.emit(Event{Type: EventResponded, Kind: KindFunctionCall, RunID: fc.RunID, CallID: callID, Approved: fc.Status.Approved, Detail: fc.Status.Comment})

	if fc.Status.SlackMessageTS != "" && fc.Spec.Channel != nil {
		snapshot := *fc
		s.e.bg.Go(ctx, "update "+callID, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.e.timeout)
			defer cancel()
			return s.e.notifier.UpdateApprovalMessage(ctx, &snapshot)
		})
	}
	return fc, nil
}

// EscalateEmail records an escalation for a call and forwards it to the
// notifier. The call itself is not modified.
func (s *FunctionCallService) EscalateEmail(ctx context.Context, callID string, esc Escalation) (*FunctionCall, error) {
	fc, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	target := EscalationTarget{
		Kind:    KindFunctionCall,
		RunID:   fc.RunID,
		CallID:  fc.CallID,
		Summary: fc.Spec.Fn,
		Channel: fc.Spec.Channel,
	}
	if err := s.e.escalate(ctx, target, esc); err != nil {
		return nil, err
	}
	return fc, nil
}

// Escalations lists the escalation log of a call, oldest first.
func (s *FunctionCallService) Escalations(ctx context.Context, callID string) ([]EscalationRecord, error) {
	if _, err := s.Get(ctx, callID); err != nil {
		return nil, err
	}
	return s.e.listEscalations(ctx, KindFunctionCall, callID)
}

// Pending reports the number of unresolved requests of both kinds.
func (s *FunctionCallService) Pending(ctx context.Context) (Pending, error) {
	p, err := s.e.store.CountPending(ctx)
	if err != nil {
		return Pending{}, fmt.Errorf("approval: count pending: %w", err)
	}
	return p, nil
}
