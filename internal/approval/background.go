package approval

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Background runs fire-and-forget work (notifications, webhook processing)
// that must outlive the request that triggered it. Panics are recovered
// and logged. Wait blocks until every task has returned.
type Background struct {
	wg     *conc.WaitGroup
	logger *slog.Logger
}

// NewBackground returns an empty task group.
func NewBackground(logger *slog.Logger) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{wg: conc.NewWaitGroup(), logger: logger}
}

// Go runs fn in a new goroutine. The context passed to fn keeps the values
// of ctx (trace spans, loggers) but not its cancellation.
func (b *Background) Go(ctx context.Context, name string, fn func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	b.wg.Go(func() {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn(detached)
		})
		if err == nil {
			err = catcher.Recovered().AsError()
		}
		if err != nil {
			b.logger.Error("background task failed", "task", name, "error", err)
		}
	})
}

// Wait blocks until all tasks started with Go have finished.
func (b *Background) Wait() {
	b.wg.Wait()
}
