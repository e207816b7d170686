// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/cron"
)

// MockJob is a configurable cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

var _ cron.Job = (*MockJob)(nil)

func (m *MockJob) Name() string     { return m.NameVal }
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run counts the call and delegates to RunFunc.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Gauge records the last pending counts it was given.
type Gauge struct {
	mu   sync.Mutex
	last approval.Pending
	sets int
}

var _ cron.PendingGauge = (*Gauge)(nil)

func (g *Gauge) SetPending(p approval.Pending) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = p
	g.sets++
}

// Last returns the most recent counts and how many times SetPending ran.
func (g *Gauge) Last() (approval.Pending, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.sets
}
