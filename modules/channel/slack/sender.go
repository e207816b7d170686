package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/channel"
	"github.com/slack-go/slack"
)

// ErrNoToken is returned when neither the request nor the module config
// provides a bot token.
var ErrNoToken = errors.New("slack: no bot token configured")

// Sender posts requests through the Slack Web API. It implements
// channel.Sender for the slack contact channel.
type Sender struct {
	token   string
	apiURL  string
	http    *http.Client
	maxLen  int
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[string]*slack.Client
}

var _ channel.Sender = (*Sender)(nil)

// NewSender creates a Sender from cfg. Defaults are applied to a copy.
func NewSender(cfg Config, logger *slog.Logger) *Sender {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	apiURL := cfg.APIURL
	if apiURL != "" && !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	return &Sender{
		token:   cfg.BotToken,
		apiURL:  apiURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		maxLen:  cfg.MaxSectionLength,
		logger:  logger,
		clients: make(map[string]*slack.Client),
	}
}

// Kind implements channel.Sender.
func (s *Sender) Kind() approval.ChannelKind { return approval.ChannelSlack }

// client returns a cached API client for the request's bot token, falling
// back to the configured one.
func (s *Sender) client(sc *approval.SlackChannel) (*slack.Client, error) {
	token := s.token
	if sc != nil && sc.BotToken != "" {
		token = sc.BotToken
	}
	if token == "" {
		return nil, ErrNoToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[token]; ok {
		return c, nil
	}
	opts := []slack.Option{slack.OptionHTTPClient(s.http)}
	if s.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(s.apiURL))
	}
	c := slack.New(token, opts...)
	s.clients[token] = c
	return c, nil
}

func slackTarget(ch *approval.ContactChannel) (*approval.SlackChannel, error) {
	if ch == nil || ch.Slack == nil || ch.Slack.ChannelOrUserID == "" {
		return nil, errors.New("slack: channel_or_user_id is required")
	}
	return ch.Slack, nil
}

func (s *Sender) post(ctx context.Context, sc *approval.SlackChannel, fallback string, blocks []slack.Block) (string, error) {
	c, err := s.client(sc)
	if err != nil {
		return "", err
	}
	opts := []slack.MsgOption{
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	}
	if sc.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(sc.ThreadTS))
	}
	start := time.Now()
	_, ts, err := c.PostMessageContext(ctx, sc.ChannelOrUserID, opts...)
	if err != nil {
		return "", fmt.Errorf("slack: post message to %s: %w", sc.ChannelOrUserID, err)
	}
	s.logger.Debug("slack message posted", "channel", sc.ChannelOrUserID, "ts", ts, "elapsed", time.Since(start))
	return ts, nil
}

// SendApprovalRequest implements approval.Notifier.
func (s *Sender) SendApprovalRequest(ctx context.Context, fc *approval.FunctionCall) (string, error) {
	sc, err := slackTarget(fc.Spec.Channel)
	if err != nil {
		return "", err
	}
	return s.post(ctx, sc, approvalSummary(fc), approvalBlocks(fc, s.maxLen))
}

// SendHumanContactRequest implements approval.Notifier.
func (s *Sender) SendHumanContactRequest(ctx context.Context, hc *approval.HumanContact) (string, error) {
	sc, err := slackTarget(hc.Spec.Channel)
	if err != nil {
		return "", err
	}
	return s.post(ctx, sc, contactSummary(hc), contactBlocks(hc, s.maxLen))
}

// UpdateApprovalMessage replaces the buttons of a posted approval with the
// decision.
func (s *Sender) UpdateApprovalMessage(ctx context.Context, fc *approval.FunctionCall) error {
	sc, err := slackTarget(fc.Spec.Channel)
	if err != nil {
		return err
	}
	if fc.Status == nil || fc.Status.SlackMessageTS == "" {
		return nil
	}
	c, err := s.client(sc)
	if err != nil {
		return err
	}
	_, _, _, err = c.UpdateMessageContext(ctx, sc.ChannelOrUserID, fc.Status.SlackMessageTS,
		slack.MsgOptionText(approvalSummary(fc), false),
		slack.MsgOptionBlocks(decisionBlocks(fc, s.maxLen)...),
	)
	if err != nil {
		return fmt.Errorf("slack: update message %s: %w", fc.Status.SlackMessageTS, err)
	}
	return nil
}

// SendEscalation posts the escalation message to the target's Slack
// channel. Email recipients are out of reach for this sender and only
// logged.
func (s *Sender) SendEscalation(ctx context.Context, target approval.EscalationTarget, esc approval.Escalation) error {
	sc, err := slackTarget(target.Channel)
	if err != nil {
		return err
	}
	if n := len(esc.AdditionalRecipients); n > 0 {
		s.logger.Info("slack escalation ignores email recipients", "call_id", target.CallID, "recipients", n)
	}
	text := escalationText(target, esc)
	_, err = s.post(ctx, sc, text, sections(text, s.maxLen))
	return err
}
