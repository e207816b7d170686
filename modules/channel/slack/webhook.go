package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/channel"
	"github.com/flemzord/hlbroker/internal/gateway"
	"github.com/flemzord/hlbroker/internal/interaction"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/slack-go/slack"
)

// Interactor applies a decoded button command.
type Interactor interface {
	Handle(ctx context.Context, cmd interaction.Command, actor interaction.Actor) error
}

// WebhookReceiver handles Slack interaction payloads. Deliveries are
// verified and parsed synchronously; the click itself is applied in a
// background task after Slack has been acknowledged.
type WebhookReceiver struct {
	secret    string
	allowList *channel.AllowList
	bg        *approval.Background
	audit     *security.AuditLogger
	logger    *slog.Logger
	handler   Interactor
}

var (
	_ gateway.WebhookHandler  = (*WebhookReceiver)(nil)
	_ gateway.WebhookVerifier = (*WebhookReceiver)(nil)
)

// ReceiverConfig groups the dependencies of a WebhookReceiver.
type ReceiverConfig struct {
	SigningSecret string
	// AllowList restricts who may click; nil lets everyone through.
	AllowList  *channel.AllowList
	Background *approval.Background
	Audit      *security.AuditLogger
	Logger     *slog.Logger
}

// NewWebhookReceiver creates a receiver. SetHandler must be called before
// deliveries are accepted.
func NewWebhookReceiver(cfg ReceiverConfig) *WebhookReceiver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bg := cfg.Background
	if bg == nil {
		bg = approval.NewBackground(logger)
	}
	return &WebhookReceiver{
		secret:    cfg.SigningSecret,
		allowList: cfg.AllowList,
		bg:        bg,
		audit:     cfg.Audit,
		logger:    logger,
	}
}

// SetHandler sets the command handler.
func (w *WebhookReceiver) SetHandler(h Interactor) {
	w.handler = h
}

// VerifyWebhook checks the v0 request signature and the timestamp window.
// An empty signing secret disables verification.
func (w *WebhookReceiver) VerifyWebhook(body []byte, headers http.Header) error {
	if w.secret == "" {
		return nil
	}
	sv, err := slack.NewSecretsVerifier(headers, w.secret)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

// HandleWebhook parses the form-encoded payload and schedules processing.
func (w *WebhookReceiver) HandleWebhook(ctx context.Context, _ string, body []byte, _ http.Header) error {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("%w: malformed form body", gateway.ErrWebhookBadRequest)
	}
	payload := form.Get("payload")
	if payload == "" {
		return fmt.Errorf("%w: missing payload", gateway.ErrWebhookBadRequest)
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return fmt.Errorf("%w: malformed payload", gateway.ErrWebhookBadRequest)
	}

	w.bg.Go(ctx, "slack.interaction", func(ctx context.Context) error {
		return w.process(ctx, &cb)
	})
	return nil
}

// Wait blocks until scheduled interactions have been applied.
func (w *WebhookReceiver) Wait() {
	w.bg.Wait()
}

func (w *WebhookReceiver) process(ctx context.Context, cb *slack.InteractionCallback) error {
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		w.logger.Info("ignoring slack interaction", "type", cb.Type, "actions", len(cb.ActionCallback.BlockActions))
		return nil
	}
	if w.handler == nil {
		return errors.New("slack: interaction handler not wired")
	}

	action := cb.ActionCallback.BlockActions[0]
	cmd, err := interaction.Decode(action.Value)
	if err != nil {
		w.logger.Warn("ignoring slack action", "action_id", action.ActionID, "error", err)
		return nil
	}

	actor := interaction.Actor{ID: cb.User.ID, Username: cb.User.Name}
	if w.allowList != nil && !w.allowList.IsAllowed(cb.User.ID, cb.Team.ID) {
		w.logger.Warn("slack responder not allowed", "user", cb.User.ID, "team", cb.Team.ID, "call_id", cmd.CallID)
		w.audit.Log(security.AuditEvent{
			Type:   security.EventResponderDenied,
			CallID: cmd.CallID,
			Actor:  cb.User.ID,
			Detail: cmd.String(),
		})
		return nil
	}

	if err := w.handler.Handle(ctx, cmd, actor); err != nil {
		if errors.Is(err, approval.ErrConflict) {
			w.logger.Info("slack action on resolved request", "call_id", cmd.CallID, "user", actor.ID)
			return nil
		}
		return err
	}
	w.logger.Info("slack action applied", "command", cmd.String(), "user", actor.ID)
	return nil
}
