package approval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HumanContactService manages free-text questions to humans.
type HumanContactService struct {
	e *engine
}

func NewHumanContactService(opts Options) *HumanContactService {
	return &HumanContactService{e: newEngine(opts)}
}

// Create persists hc with a fresh status and notifies when a channel is set.
func (s *HumanContactService) Create(ctx context.Context, hc HumanContact) (*HumanContact, error) {
	switch {
	case hc.RunID == "":
		return nil, invalid("run_id")
	case hc.CallID == "":
		return nil, invalid("call_id")
	case hc.Spec.Msg == "":
		return nil, invalid("spec.msg")
	}

	ctx, span := tracer.Start(ctx, "approval.human_contact.create",
		trace.WithAttributes(attribute.String("hlbroker.call_id", hc.CallID)))
	defer span.End()

	if hc.Status == nil {
		hc.Status = &HumanContactStatus{}
	} else {
		st := *hc.Status
		hc.Status = &st
	}
	if hc.Status.RequestedAt.IsZero() {
		hc.Status.RequestedAt = s.e.clock()
	}

	if err := s.e.store.CreateHumanContact(ctx, &hc); err != nil {
		return nil, fmt.Errorf("approval: create human contact %s: %w", hc.CallID, err)
	}
	s.e.emit(Event{Type: EventCreated, Kind: KindHumanContact, RunID: hc.RunID, CallID: hc.CallID, Detail: hc.Spec.Subject})

	if hc.Spec.Channel != nil && !hc.Status.Resolved() {
		snapshot := hc
		err := s.e.notify(ctx, KindHumanContact, hc.RunID, hc.CallID,
			func(ctx context.Context) (string, error) {
				return s.e.notifier.SendHumanContactRequest(ctx, &snapshot)
			},
			func(ctx context.Context, ts string) error {
				return s.e.store.SetHumanContactMessageTS(ctx, hc.CallID, ts)
			},
		)
		if err != nil {
			return nil, err
		}
		if s.e.mode == NotifySync {
			return s.Get(ctx, hc.CallID)
		}
	}
	return &hc, nil
}

// Get returns the contact with its current status.
func (s *HumanContactService) Get(ctx context.Context, callID string) (*HumanContact, error) {
	hc, err := s.e.store.GetHumanContact(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("approval: get human contact %s: %w", callID, err)
	}
	return hc, nil
}

// Respond applies patch if the contact is still unanswered.
func (s *HumanContactService) Respond(ctx context.Context, callID string, patch HumanContactResponse) (*HumanContact, error) {
	ctx, span := tracer.Start(ctx, "approval.human_contact.respond",
		trace.WithAttributes(attribute.String("hlbroker.call_id", callID)))
	defer span.End()

	if err := s.e.store.RespondHumanContact(ctx, callID, patch); err != nil {
		return nil, fmt.Errorf("approval: respond human contact %s: %w", callID, err)
	}
	hc, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if patch.RespondedAt.IsSet() {
		s.e.emit(Event{Type: EventResponded, Kind: KindHumanContact, RunID: hc.RunID, CallID: callID, Detail: hc.Status.Response})
	}
	return hc, nil
}

// EscalateEmail records an escalation for a contact and forwards it.
func (s *HumanContactService) EscalateEmail(ctx context.Context, callID string, esc Escalation) (*HumanContact, error) {
	hc, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	target := EscalationTarget{
		Kind:    KindHumanContact,
		RunID:   hc.RunID,
		CallID:  hc.CallID,
		Summary: hc.Spec.Msg,
		Channel: hc.Spec.Channel,
	}
	if err := s.e.escalate(ctx, target, esc); err != nil {
		return nil, err
	}
	return hc, nil
}

// Escalations lists the escalation log of a contact, oldest first.
func (s *HumanContactService) Escalations(ctx context.Context, callID string) ([]EscalationRecord, error) {
	if _, err := s.Get(ctx, callID); err != nil {
		return nil, err
	}
	return s.e.listEscalations(ctx, KindHumanContact, callID)
}
