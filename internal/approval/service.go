package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/flemzord/hlbroker/internal/approval")

// NotifyMode selects how Create interacts with the Notifier.
type NotifyMode int

const (
	// NotifyAsync persists first and notifies in the background. A
	// notification failure is logged and never fails Create.
	NotifyAsync NotifyMode = iota
	// NotifySync notifies before Create returns and propagates failures.
	// The request is persisted either way.
	NotifySync
)

// DefaultNotifyTimeout bounds every outbound notification call.
const DefaultNotifyTimeout = 10 * time.Second

// Options holds the collaborators shared by both services.
type Options struct {
	Store    Store    // required
	Notifier Notifier // nil disables notifications
	Observer Observer
	Logger   *slog.Logger

	// Background runs async notifications. Share one between services so
	// shutdown can drain them together.
	Background *Background

	Mode    NotifyMode
	Timeout time.Duration

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// engine holds the plumbing common to both request kinds.
type engine struct {
	store    Store
	notifier Notifier
	observer Observer
	logger   *slog.Logger
	bg       *Background
	mode     NotifyMode
	timeout  time.Duration
	now      func() time.Time
}

func newEngine(opts Options) *engine {
	e := &engine{
		store:    opts.Store,
		notifier: opts.Notifier,
		observer: opts.Observer,
		logger:   opts.Logger,
		bg:       opts.Background,
		mode:     opts.Mode,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.observer == nil {
		e.observer = Observers(nil)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.bg == nil {
		e.bg = NewBackground(e.logger)
	}
	if e.timeout <= 0 {
		e.timeout = DefaultNotifyTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *engine) clock() time.Time {
	return e.now().UTC()
}

func (e *engine) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = e.clock()
	}
	e.observer.Observe(ev)
}

// notify sends a request through the Notifier and stores the returned
// message handle. In async mode it returns immediately.
func (e *engine) notify(ctx context.Context, kind Kind, runID, callID string,
	send func(context.Context) (string, error),
	save func(context.Context, string) error,
) error {
	run := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		ctx, span := tracer.Start(ctx, "approval.notify", trace.WithAttributes(
			attribute.String("hlbroker.kind", string(kind)),
			attribute.String("hlbroker.call_id", callID),
		))
		defer span.End()

		ts, err := send(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "notify failed")
			e.emit(Event{Type: EventNotifyFailed, Kind: kind, RunID: runID, CallID: callID, Detail: err.Error()})
			return fmt.Errorf("approval: notify %s %s: %w", kind, callID, err)
		}
		if ts != "" {
			if err := save(ctx, ts); err != nil {
				return fmt.Errorf("approval: store message handle for %s: %w", callID, err)
			}
		}
		e.emit(Event{Type: EventNotified, Kind: kind, RunID: runID, CallID: callID, Detail: ts})
		return nil
	}

	if e.mode == NotifySync {
		if err := run(ctx); err != nil {
			e.logger.Error("notification failed", "kind", kind, "call_id", callID, "error", err)
			return err
		}
		return nil
	}

	e.bg.Go(ctx, "notify "+callID, run)
	return nil
}

// escalate appends the escalation to the log and forwards it best effort.
func (e *engine) escalate(ctx context.Context, target EscalationTarget, esc Escalation) error {
	rec := EscalationRecord{
		ID:                   newID(),
		Kind:                 target.Kind,
		CallID:               target.CallID,
		Message:              esc.EscalationMsg,
		AdditionalRecipients: esc.AdditionalRecipients,
		Channel:              esc.Channel,
		CreatedAt:            e.clock(),
	}
	if err := e.store.AppendEscalation(ctx, rec); err != nil {
		return fmt.Errorf("approval: append escalation for %s: %w", target.CallID, err)
	}
	e.emit(Event{Type: EventEscalated, Kind: target.Kind, RunID: target.RunID, CallID: target.CallID, Detail: esc.EscalationMsg})

	if esc.Channel != nil {
		target.Channel = esc.Channel
	}
	send := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		if err := e.notifier.SendEscalation(ctx, target, esc); err != nil {
			return fmt.Errorf("approval: send escalation for %s: %w", target.CallID, err)
		}
		return nil
	}
	if e.mode == NotifySync {
		if err := send(ctx); err != nil {
			e.logger.Warn("escalation delivery failed", "call_id", target.CallID, "error", err)
		}
		return nil
	}
	e.bg.Go(ctx, "escalate "+target.CallID, send)
	return nil
}

func (e *engine) listEscalations(ctx context.Context, kind Kind, callID string) ([]EscalationRecord, error) {
	recs, err := e.store.ListEscalations(ctx, kind, callID)
	if err != nil {
		return nil, fmt.Errorf("approval: list escalations for %s: %w", callID, err)
	}
	if recs == nil {
		recs = []EscalationRecord{}
	}
	return recs, nil
}
