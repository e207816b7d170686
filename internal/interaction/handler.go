package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
)

// FunctionCalls is the subset of approval.FunctionCallService the handler
// drives.
type FunctionCalls interface {
	Respond(ctx context.Context, callID string, patch approval.FunctionCallResponse) (*approval.FunctionCall, error)
}

// HumanContacts is the subset of approval.HumanContactService the handler
// drives.
type HumanContacts interface {
	Get(ctx context.Context, callID string) (*approval.HumanContact, error)
	Respond(ctx context.Context, callID string, patch approval.HumanContactResponse) (*approval.HumanContact, error)
}

// Actor is the human who clicked.
type Actor struct {
	ID       string
	Username string
}

func (a Actor) handle() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return "@" + a.ID
}

// Handler dispatches decoded commands to the request services.
type Handler struct {
	calls    FunctionCalls
	contacts HumanContacts
	via      string
	now      func() time.Time
}

// NewHandler returns a handler that signs comments with "via <via>".
func NewHandler(calls FunctionCalls, contacts HumanContacts, via string) *Handler {
	return &Handler{calls: calls, contacts: contacts, via: via, now: time.Now}
}

// Handle applies cmd on behalf of actor. Conflicts from a second click are
// returned like any other service error.
func (h *Handler) Handle(ctx context.Context, cmd Command, actor Actor) error {
	now := h.now().UTC()

	switch cmd.Kind {
	case KindApprove:
		return h.decide(ctx, cmd.CallID, approval.FunctionCallResponse{
			RespondedAt: approval.Some(now),
			Approved:    approval.Some(true),
			Comment:     approval.Some(fmt.Sprintf("Approved by %s via %s", actor.handle(), h.via)),
		})

	case KindDeny:
		return h.decide(ctx, cmd.CallID, approval.FunctionCallResponse{
			RespondedAt: approval.Some(now),
			Approved:    approval.Some(false),
			Comment:     approval.Some(fmt.Sprintf("Denied by %s via %s", actor.handle(), h.via)),
		})

	case KindReject:
		comment := fmt.Sprintf("Rejected (%s) by %s via %s", cmd.Option, actor.handle(), h.via)
		if cmd.Option == "" {
			comment = fmt.Sprintf("Rejected by %s via %s", actor.handle(), h.via)
		}
		return h.decide(ctx, cmd.CallID, approval.FunctionCallResponse{
			RespondedAt:      approval.Some(now),
			Approved:         approval.Some(false),
			RejectOptionName: approval.Some(cmd.Option),
			Comment:          approval.Some(comment),
		})

	case KindRespond:
		hc, err := h.contacts.Get(ctx, cmd.CallID)
		if err != nil {
			return fmt.Errorf("interaction: %s: %w", cmd, err)
		}
		text := cmd.Option
		if opt, ok := hc.Spec.Option(cmd.Option); ok {
			text = opt.Label()
		}
		response := fmt.Sprintf("%s (by %s)", text, actor.handle())
		if text == "" {
			response = fmt.Sprintf("Responded by %s", actor.handle())
		}
		_, err = h.contacts.Respond(ctx, cmd.CallID, approval.HumanContactResponse{
			RespondedAt:        approval.Some(now),
			Response:           approval.Some(response),
			ResponseOptionName: approval.Some(cmd.Option),
		})
		if err != nil {
			return fmt.Errorf("interaction: %s: %w", cmd, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

func (h *Handler) decide(ctx context.Context, callID string, patch approval.FunctionCallResponse) error {
	if _, err := h.calls.Respond(ctx, callID, patch); err != nil {
		return fmt.Errorf("interaction: respond %s: %w", callID, err)
	}
	return nil
}
