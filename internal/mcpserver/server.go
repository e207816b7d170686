// Package mcpserver exposes the approval services as Model Context Protocol
// tools so an MCP-capable agent can ask for approval or contact a human
// without speaking the REST API.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/oklog/ulid/v2"
)

// FunctionCalls is the subset of the function call service the tools use.
type FunctionCalls interface {
	Create(ctx context.Context, fc approval.FunctionCall) (*approval.FunctionCall, error)
	Get(ctx context.Context, callID string) (*approval.FunctionCall, error)
}

// HumanContacts is the subset of the human contact service the tools use.
type HumanContacts interface {
	Create(ctx context.Context, hc approval.HumanContact) (*approval.HumanContact, error)
	Get(ctx context.Context, callID string) (*approval.HumanContact, error)
}

// Config sets defaults applied to requests created through MCP.
type Config struct {
	Name    string
	Version string

	// RunID tags requests whose caller gave none.
	RunID string

	// SlackChannel is where requests are posted when the caller names no
	// channel. Empty means requests are stored without notification.
	SlackChannel string
}

// Server holds the tool handlers.
type Server struct {
	calls    FunctionCalls
	contacts HumanContacts
	cfg      Config
	logger   *slog.Logger
}

// New creates a Server. logger may be nil.
func New(calls FunctionCalls, contacts HumanContacts, cfg Config, logger *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "hlbroker"
	}
	if cfg.RunID == "" {
		cfg.RunID = "mcp"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{calls: calls, contacts: contacts, cfg: cfg, logger: logger}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP() *server.MCPServer {
	srv := server.NewMCPServer(s.cfg.Name, s.cfg.Version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("request_approval",
		mcp.WithDescription("Ask a human to approve a function call before running it. Returns the call_id to poll with get_approval."),
		mcp.WithString("fn", mcp.Required(), mcp.Description("Name of the function awaiting approval")),
		mcp.WithObject("kwargs", mcp.Description("Arguments the function would be called with")),
		mcp.WithString("call_id", mcp.Description("Idempotency key; generated when omitted")),
		mcp.WithString("run_id", mcp.Description("Agent run the call belongs to")),
		mcp.WithString("slack_channel", mcp.Description("Slack channel or user ID to ask")),
	), s.requestApproval)

	srv.AddTool(mcp.NewTool("get_approval",
		mcp.WithDescription("Fetch the current status of an approval request."),
		mcp.WithString("call_id", mcp.Required()),
	), s.getApproval)

	srv.AddTool(mcp.NewTool("contact_human",
		mcp.WithDescription("Send a free-text question to a human. Returns the call_id to poll with get_human_contact."),
		mcp.WithString("msg", mcp.Required(), mcp.Description("The question")),
		mcp.WithString("subject", mcp.Description("Short subject line")),
		mcp.WithString("call_id", mcp.Description("Idempotency key; generated when omitted")),
		mcp.WithString("run_id", mcp.Description("Agent run the question belongs to")),
		mcp.WithString("slack_channel", mcp.Description("Slack channel or user ID to ask")),
	), s.contactHuman)

	srv.AddTool(mcp.NewTool("get_human_contact",
		mcp.WithDescription("Fetch the current status of a human contact request."),
		mcp.WithString("call_id", mcp.Required()),
	), s.getHumanContact)

	return srv
}

// ServeStdio speaks MCP over the given streams until ctx is done or in
// is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.MCP()).Listen(ctx, in, out)
}

func (s *Server) requestApproval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fn, err := req.RequireString("fn")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fc := approval.FunctionCall{
		RunID:  req.GetString("run_id", s.cfg.RunID),
		CallID: req.GetString("call_id", ulid.Make().String()),
		Spec: approval.FunctionCallSpec{
			Fn:      fn,
			Channel: s.channel(req),
		},
	}
	if kwargs, ok := req.GetArguments()["kwargs"]; ok && kwargs != nil {
		raw, err := json.Marshal(kwargs)
		if err != nil {
			return mcp.NewToolResultError("kwargs must be a JSON object"), nil
		}
		fc.Spec.Kwargs = raw
	}

	created, err := s.calls.Create(ctx, fc)
	if err != nil {
		return s.failure("request_approval", err)
	}
	return jsonResult(created)
}

func (s *Server) getApproval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID, err := req.RequireString("call_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fc, err := s.calls.Get(ctx, callID)
	if err != nil {
		return s.failure("get_approval", err)
	}
	return jsonResult(fc)
}

func (s *Server) contactHuman(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := req.RequireString("msg")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hc := approval.HumanContact{
		RunID:  req.GetString("run_id", s.cfg.RunID),
		CallID: req.GetString("call_id", ulid.Make().String()),
		Spec: approval.HumanContactSpec{
			Msg:     msg,
			Subject: req.GetString("subject", ""),
			Channel: s.channel(req),
		},
	}
	created, err := s.contacts.Create(ctx, hc)
	if err != nil {
		return s.failure("contact_human", err)
	}
	return jsonResult(created)
}

func (s *Server) getHumanContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID, err := req.RequireString("call_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hc, err := s.contacts.Get(ctx, callID)
	if err != nil {
		return s.failure("get_human_contact", err)
	}
	return jsonResult(hc)
}

func (s *Server) channel(req mcp.CallToolRequest) *approval.ContactChannel {
	id := req.GetString("slack_channel", s.cfg.SlackChannel)
	if id == "" {
		return nil
	}
	return &approval.ContactChannel{Slack: &approval.SlackChannel{ChannelOrUserID: id}}
}

// failure turns domain errors into tool errors the model can read.
// Anything else is logged and reported without detail.
func (s *Server) failure(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		return mcp.NewToolResultError("no request with that call_id"), nil
	case errors.Is(err, approval.ErrInvalid):
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Error("mcp tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed", tool)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
