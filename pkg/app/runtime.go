package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/channel"
	"github.com/flemzord/hlbroker/internal/config"
	"github.com/flemzord/hlbroker/internal/core"
	"github.com/flemzord/hlbroker/internal/cron"
	"github.com/flemzord/hlbroker/internal/events"
	"github.com/flemzord/hlbroker/internal/gateway"
	"github.com/flemzord/hlbroker/internal/interaction"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/flemzord/hlbroker/modules/channel/slack"
	"github.com/flemzord/hlbroker/modules/store/sqlite"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options tune how a Runtime is assembled.
type Options struct {
	Version string

	// DataDir overrides the configured data directory.
	DataDir string

	// Skip lists module IDs that are configured but must not be loaded,
	// e.g. the HTTP gateway when serving MCP over stdio.
	Skip []string

	// Logger is used as-is when set; otherwise one is built from cfg.Log.
	Logger   *slog.Logger
	Redactor *security.Redactor
}

// Runtime is a fully wired broker: modules loaded and connected, ready to
// Start.
type Runtime struct {
	App     *core.App
	Context *core.AppContext
	Logger  *slog.Logger

	FunctionCalls *approval.FunctionCallService
	HumanContacts *approval.HumanContactService
	Keys          security.KeyAdmin
	Channels      *channel.Router
	Events        *events.Bus
	Background    *approval.Background
	Scheduler     *cron.Scheduler
	Audit         *security.AuditLogger

	closers []io.Closer
}

// Build loads the configured modules and wires them together. The caller
// owns the returned Runtime and must call Close after stopping it.
func Build(cfg *config.Config, opts Options) (_ *Runtime, err error) {
	cfg.ApplyDefaults()

	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	redactor := opts.Redactor
	if redactor == nil {
		redactor = security.NewRedactor()
	}
	logger := opts.Logger
	if logger == nil {
		var closer io.Closer
		logger, closer = NewLogger(cfg.Log, os.Stderr, redactor)
		rt.closers = append(rt.closers, closer)
	}
	rt.Logger = logger

	dataDir := firstNonEmpty(opts.DataDir, cfg.DataDir, DefaultDataDir())
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("app: create data dir: %w", err)
	}

	audit, auditCloser := newAuditLogger(cfg.Audit, dataDir, redactor)
	if auditCloser != nil {
		rt.closers = append(rt.closers, auditCloser)
	}
	rt.Audit = audit
	rt.Background = approval.NewBackground(logger.With("component", "background"))
	rt.Events = events.New()

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.Version = opts.Version
	appCtx.RegisterService(gateway.ServiceAudit, audit)
	appCtx.RegisterService(gateway.ServiceRedactor, redactor)
	appCtx.RegisterService(gateway.ServiceBackground, rt.Background)
	appCtx.RegisterService(gateway.ServiceEvents, rt.Events)
	rt.Context = appCtx

	ids := slices.DeleteFunc(config.Resolve(cfg), func(id string) bool {
		return slices.Contains(opts.Skip, id)
	})
	rt.App = core.NewApp(appCtx)
	if err := rt.App.LoadModules(ids); err != nil {
		return nil, err
	}
	if err := rt.wire(cfg, ids); err != nil {
		rt.App.Discard()
		return nil, err
	}
	return rt, nil
}

// wire connects the loaded modules. It runs after every module is
// provisioned and before any is started.
func (rt *Runtime) wire(cfg *config.Config, ids []string) error {
	ctx, logger := rt.Context, rt.Logger

	store, ok := core.Lookup[approval.Store](ctx, sqlite.ServiceApprovals)
	if !ok {
		return errors.New("app: no store module loaded (configure \"store.sqlite\")")
	}
	keys, ok := core.Lookup[security.KeyAdmin](ctx, sqlite.ServiceAPIKeys)
	if !ok {
		return errors.New("app: store module does not provide api keys")
	}
	rt.Keys = keys

	// Notification routing: every loaded module that can send becomes a
	// route for its channel kind.
	rt.Channels = channel.NewRouter(logger.With("component", "channel.router"))
	for _, id := range ids {
		mod, _ := rt.App.Module(id)
		if s, ok := mod.(channel.Sender); ok {
			if err := rt.Channels.Register(s); err != nil {
				return fmt.Errorf("app: register channel %s: %w", id, err)
			}
			logger.Info("channel registered", "module", id, "kind", s.Kind())
		}
	}

	observers := approval.Observers{rt.Events}
	metrics, hasMetrics := core.Lookup[*gateway.Metrics](ctx, gateway.ServiceMetrics)
	if hasMetrics {
		observers = append(observers, metrics)
	}

	mode := approval.NotifyAsync
	if cfg.Notify.Mode == config.NotifySync {
		mode = approval.NotifySync
	}
	opts := approval.Options{
		Store:      store,
		Notifier:   rt.Channels,
		Observer:   observers,
		Logger:     logger.With("component", "approval"),
		Background: rt.Background,
		Mode:       mode,
		Timeout:    cfg.Notify.Timeout,
	}
	rt.FunctionCalls = approval.NewFunctionCallService(opts)
	rt.HumanContacts = approval.NewHumanContactService(opts)

	ctx.RegisterService(gateway.ServiceFunctionCalls, rt.FunctionCalls)
	ctx.RegisterService(gateway.ServiceHumanContacts, rt.HumanContacts)
	ctx.RegisterService(gateway.ServiceAuth, security.NewAuthenticator(keys))
	ctx.RegisterService(gateway.ServiceChannels, rt.Channels.Kinds)

	// Button clicks resolve requests through the same services as the API.
	for _, id := range ids {
		mod, _ := rt.App.Module(id)
		if s, ok := mod.(*slack.Slack); ok {
			s.Receiver().SetHandler(interaction.NewHandler(rt.FunctionCalls, rt.HumanContacts, "Slack"))
		}
	}

	// Drain background work after the gateway and channels stop, before
	// the store closes.
	stores := 0
	for _, id := range ids {
		if strings.HasPrefix(id, "store.") {
			stores++
		}
	}
	rt.App.InsertModule(stores, "app.background", &hook{
		id: "app.background",
		stop: func(context.Context) error {
			rt.Background.Wait()
			return nil
		},
	})

	rt.Scheduler = cron.NewScheduler(logger.With("component", "cron"))
	if hasMetrics {
		job := &cron.PendingRequestsJob{Store: store, Gauge: metrics, Logger: logger}
		if err := rt.Scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	rt.App.AppendModule("app.cron", &hook{
		id: "app.cron",
		start: func() error {
			if err := rt.Scheduler.Start(); err != nil {
				return err
			}
			for _, name := range rt.Scheduler.Jobs() {
				_, _ = rt.Scheduler.RunNow(name)
			}
			return nil
		},
		stop: rt.Scheduler.Stop,
	})

	// Closing the bus ends websocket streams so the gateway can drain.
	rt.App.AppendModule("app.events", &hook{
		id: "app.events",
		stop: func(context.Context) error {
			rt.Events.Close()
			return nil
		},
	})

	logger.Info("wiring complete",
		"modules", len(ids),
		"channels", len(rt.Channels.Kinds()),
		"notify_mode", cfg.Notify.Mode,
	)
	return nil
}

// Close releases the log and audit files.
func (rt *Runtime) Close() error {
	var errs []error
	for _, c := range slices.Backward(rt.closers) {
		errs = append(errs, c.Close())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func newAuditLogger(cfg config.AuditConfig, dataDir string, redactor *security.Redactor) (*security.AuditLogger, io.Closer) {
	if !cfg.Enabled {
		return security.NewAuditLogger(security.AuditLoggerConfig{Redactor: redactor}), nil
	}
	path := cfg.Path
	if path == "" {
		path = filepath.Join(dataDir, "audit.jsonl")
	}
	w := &lumberjack.Logger{Filename: path, MaxSize: 100, MaxBackups: 5}
	return security.NewAuditLogger(security.AuditLoggerConfig{Writer: w, Redactor: redactor}), w
}

// hook adapts a pair of functions to the module lifecycle.
type hook struct {
	id    string
	start func() error
	stop  func(context.Context) error
}

func (h *hook) ModuleInfo() core.ModuleInfo { return core.ModuleInfo{ID: core.ModuleID(h.id)} }

func (h *hook) Start() error {
	if h.start == nil {
		return nil
	}
	return h.start()
}

func (h *hook) Stop(ctx context.Context) error {
	if h.stop == nil {
		return nil
	}
	return h.stop(ctx)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
