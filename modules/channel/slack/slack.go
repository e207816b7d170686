package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/channel"
	"github.com/flemzord/hlbroker/internal/core"
	"github.com/flemzord/hlbroker/internal/gateway"
	"github.com/flemzord/hlbroker/internal/security"
	"gopkg.in/yaml.v3"
)

// WebhookSource is the {source} segment of the interactions route.
const WebhookSource = "slack"

func init() {
	core.RegisterModule(&Slack{})
}

// Compile-time interface guards.
var (
	_ channel.Sender    = (*Slack)(nil)
	_ core.Configurable = (*Slack)(nil)
	_ core.Provisioner  = (*Slack)(nil)
	_ core.Validator    = (*Slack)(nil)
	_ core.Starter      = (*Slack)(nil)
	_ core.Stopper      = (*Slack)(nil)
)

// Slack is the channel.slack module.
type Slack struct {
	*Sender

	config   Config
	logger   *slog.Logger
	appCtx   *core.AppContext
	receiver *WebhookReceiver
}

// ModuleInfo implements core.Module.
func (s *Slack) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.slack",
		New: func() core.Module { return &Slack{} },
	}
}

// Configure implements core.Configurable.
func (s *Slack) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return fmt.Errorf("slack: decode config: %w", err)
	}
	s.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (s *Slack) Provision(ctx *core.AppContext) error {
	s.config.defaults()
	s.appCtx = ctx
	s.logger = ctx.Logger
	s.Sender = NewSender(s.config, ctx.Logger)

	var allow *channel.AllowList
	if s.config.restricted() {
		allow = channel.NewAllowList(s.config.AllowUsers, s.config.AllowTeams)
	}
	audit, _ := core.Lookup[*security.AuditLogger](ctx, gateway.ServiceAudit)
	bg, _ := core.Lookup[*approval.Background](ctx, gateway.ServiceBackground)
	if redactor, ok := core.Lookup[*security.Redactor](ctx, gateway.ServiceRedactor); ok {
		redactor.AddLiteral(s.config.BotToken)
		redactor.AddLiteral(s.config.SigningSecret)
	}
	s.receiver = NewWebhookReceiver(ReceiverConfig{
		SigningSecret: s.config.SigningSecret,
		AllowList:     allow,
		Background:    bg,
		Audit:         audit,
		Logger:        ctx.Logger,
	})
	return nil
}

// Validate implements core.Validator.
func (s *Slack) Validate() error {
	return s.config.validate()
}

// Receiver returns the interactions webhook receiver, for wiring.
func (s *Slack) Receiver() *WebhookReceiver {
	return s.receiver
}

// Start implements core.Starter. It warns about risky configurations and
// registers the interactions webhook with the gateway.
func (s *Slack) Start() error {
	if s.config.BotToken == "" {
		s.logger.Warn("slack bot_token is empty; only requests carrying their own bot_token will be delivered")
	}
	if s.config.SigningSecret == "" {
		s.logger.Warn("slack signing_secret is empty; interaction webhooks are NOT verified")
	}
	if s.receiver.handler == nil {
		return errors.New("slack: interaction handler not set, wire the module before Start")
	}

	dispatcher, ok := core.Lookup[*gateway.WebhookDispatcher](s.appCtx, gateway.ServiceWebhooks)
	if !ok {
		s.logger.Warn("no gateway loaded; slack interactions webhook not mounted")
		return nil
	}
	dispatcher.Register(WebhookSource, s.receiver)
	s.logger.Info("slack interactions webhook registered", "path", "/"+WebhookSource+"/interactions")
	return nil
}

// Stop implements core.Stopper. It waits for in-flight interactions.
func (s *Slack) Stop(_ context.Context) error {
	s.logger.Info("slack channel stopping")
	s.receiver.Wait()
	return nil
}
