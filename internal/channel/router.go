package channel

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/hlbroker/internal/approval"
)

// Router implements approval.Notifier by forwarding each call to the sender
// registered for the request's channel kind. Kinds without a registered
// sender fall back to a log-only stub; requests without a channel are
// dropped.
type Router struct {
	mu      sync.RWMutex
	senders map[approval.ChannelKind]Sender
	logger  *slog.Logger
}

var _ approval.Notifier = (*Router)(nil)

// NewRouter creates a Router with no registered senders.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		senders: make(map[approval.ChannelKind]Sender),
		logger:  logger,
	}
}

// Register adds a sender for its kind.
// Returns ErrDuplicateChannel if the kind is already taken.
func (r *Router) Register(s Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := s.Kind()
	if _, exists := r.senders[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, kind)
	}
	r.senders[kind] = s
	return nil
}

// Kinds returns the registered channel kinds, sorted.
func (r *Router) Kinds() []approval.ChannelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]approval.ChannelKind, 0, len(r.senders))
	for k := range r.senders {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// sender returns the sender for ch, or nil when ch names no channel.
func (r *Router) sender(ch *approval.ContactChannel) Sender {
	kind := ch.Kind()
	if kind == "" {
		return nil
	}

	r.mu.RLock()
	s, ok := r.senders[kind]
	r.mu.RUnlock()
	if ok {
		return s
	}
	return &LogSender{kind: kind, logger: r.logger}
}

func (r *Router) SendApprovalRequest(ctx context.Context, fc *approval.FunctionCall) (string, error) {
	s := r.sender(fc.Spec.Channel)
	if s == nil {
		r.logger.Debug("no channel configured, skipping approval notification", "call_id", fc.CallID)
		return "", nil
	}
	return s.SendApprovalRequest(ctx, fc)
}

func (r *Router) SendHumanContactRequest(ctx context.Context, hc *approval.HumanContact) (string, error) {
	s := r.sender(hc.Spec.Channel)
	if s == nil {
		r.logger.Debug("no channel configured, skipping contact notification", "call_id", hc.CallID)
		return "", nil
	}
	return s.SendHumanContactRequest(ctx, hc)
}

// UpdateApprovalMessage is best effort: failures are logged and swallowed.
func (r *Router) UpdateApprovalMessage(ctx context.Context, fc *approval.FunctionCall) error {
	s := r.sender(fc.Spec.Channel)
	if s == nil || fc.Status == nil || fc.Status.SlackMessageTS == "" {
		return nil
	}
	if err := s.UpdateApprovalMessage(ctx, fc); err != nil {
		r.logger.Warn("failed to update approval message", "call_id", fc.CallID, "error", err)
	}
	return nil
}

func (r *Router) SendEscalation(ctx context.Context, target approval.EscalationTarget, esc approval.Escalation) error {
	s := r.sender(target.Channel)
	if s == nil {
		r.logger.Info("escalation recorded without delivery channel", "call_id", target.CallID)
		return nil
	}
	return s.SendEscalation(ctx, target, esc)
}
