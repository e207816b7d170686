package channel

import (
	"context"
	"log/slog"

	"github.com/flemzord/hlbroker/internal/approval"
)

// LogSender stands in for channel kinds that have no delivery
// implementation (email, SMS, WhatsApp). It logs and returns no handle.
type LogSender struct {
	kind   approval.ChannelKind
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender returns a log-only sender for kind.
func NewLogSender(kind approval.ChannelKind, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{kind: kind, logger: logger}
}

func (s *LogSender) Kind() approval.ChannelKind { return s.kind }

func (s *LogSender) SendApprovalRequest(_ context.Context, fc *approval.FunctionCall) (string, error) {
	s.logger.Info("approval request (log only)", "channel", s.kind, "call_id", fc.CallID, "fn", fc.Spec.Fn)
	return "", nil
}

func (s *LogSender) SendHumanContactRequest(_ context.Context, hc *approval.HumanContact) (string, error) {
	s.logger.Info("human contact request (log only)", "channel", s.kind, "call_id", hc.CallID)
	return "", nil
}

func (s *LogSender) UpdateApprovalMessage(context.Context, *approval.FunctionCall) error {
	return nil
}

func (s *LogSender) SendEscalation(_ context.Context, target approval.EscalationTarget, esc approval.Escalation) error {
	s.logger.Info("escalation (log only)", "channel", s.kind, "call_id", target.CallID,
		"recipients", len(esc.AdditionalRecipients))
	return nil
}
