package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/core"
	"github.com/flemzord/hlbroker/internal/events"
	"github.com/flemzord/hlbroker/internal/security"
	"gopkg.in/yaml.v3"
)

// Service registry names. The gateway registers ServiceWebhooks and
// ServiceMetrics during Provision and resolves the rest at Start.
const (
	ServiceWebhooks      = "gateway.webhooks"
	ServiceMetrics       = "gateway.metrics"
	ServiceFunctionCalls = "approval.function_calls"
	ServiceHumanContacts = "approval.human_contacts"
	ServiceAuth          = "security.authenticator"
	ServiceAudit         = "security.audit"
	ServiceRedactor      = "security.redactor"
	ServiceBackground    = "app.background"
	ServiceEvents        = "events.bus"
	ServiceChannels      = "channel.kinds"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP module serving the approval API, webhooks, health
// and metrics. It is a leaf module: nothing depends on it at provision time
// except webhook sources, which register with its dispatcher.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	dispatcher *WebhookDispatcher
	limiter    *security.RateLimiter
	addr       net.Addr
}

var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.limiter = security.NewRateLimiter(g.config.RateLimit)
	g.dispatcher = NewWebhookDispatcher(g.logger)

	audit, _ := core.Lookup[*security.AuditLogger](ctx, ServiceAudit)
	g.dispatcher.OnReject = func(source string, err error) {
		audit.Log(security.AuditEvent{
			Type:   security.EventWebhookRejected,
			Detail: err.Error(),
			Metadata: map[string]string{
				"source": source,
			},
		})
	}

	ctx.RegisterService(ServiceWebhooks, g.dispatcher)
	ctx.RegisterService(ServiceMetrics, g.metrics)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. Services are resolved here rather than in
// Provision so that the wiring step between load and start can register
// them.
func (g *Gateway) Start() error {
	deps, err := g.deps()
	if err != nil {
		return err
	}
	api := NewAPI(g.config, deps)

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           api.Handler(),
		ReadHeaderTimeout: g.config.ReadTimeout,
		ReadTimeout:       g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", g.config.Bind, err)
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

func (g *Gateway) deps() (Deps, error) {
	ctx := g.appCtx
	calls, ok := core.Lookup[*approval.FunctionCallService](ctx, ServiceFunctionCalls)
	if !ok {
		return Deps{}, fmt.Errorf("gateway: service %s not registered", ServiceFunctionCalls)
	}
	contacts, ok := core.Lookup[*approval.HumanContactService](ctx, ServiceHumanContacts)
	if !ok {
		return Deps{}, fmt.Errorf("gateway: service %s not registered", ServiceHumanContacts)
	}
	auth, ok := core.Lookup[*security.Authenticator](ctx, ServiceAuth)
	if !ok {
		return Deps{}, fmt.Errorf("gateway: service %s not registered", ServiceAuth)
	}

	deps := Deps{
		FunctionCalls: calls,
		HumanContacts: contacts,
		Auth:          auth,
		Webhooks:      g.dispatcher,
		Metrics:       g.metrics,
		Limiter:       g.limiter,
		Logger:        g.logger,
		Version:       ctx.Version,
	}
	deps.Audit, _ = core.Lookup[*security.AuditLogger](ctx, ServiceAudit)
	deps.Events, _ = core.Lookup[*events.Bus](ctx, ServiceEvents)
	deps.Channels, _ = core.Lookup[func() []approval.ChannelKind](ctx, ServiceChannels)
	return deps, nil
}

// Addr returns the listening address once started.
func (g *Gateway) Addr() net.Addr { return g.addr }

// Metrics returns the gateway's Prometheus collectors.
func (g *Gateway) Metrics() *Metrics { return g.metrics }

// Stop implements core.Stopper. In-flight requests get ShutdownTimeout to
// finish.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
