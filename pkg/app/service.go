package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/kardianos/service"
)

// ServiceActions are the control verbs accepted by ControlService.
var ServiceActions = service.ControlAction[:]

// program adapts Run to the OS service manager. Start must not block, so
// the broker runs on its own goroutine until Stop cancels it.
type program struct {
	params RunParams
	run    func(context.Context, RunParams) error

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- p.run(ctx, p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(time.Minute):
		return errors.New("service: broker did not stop within a minute")
	}
}

// NewService describes hlbroker to the host's service manager. The
// installed unit runs `hlbroker service run` with the given config.
func NewService(params RunParams) (service.Service, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		params.ConfigPath = abs
		args = append(args, "--config", abs)
	}
	cfg := &service.Config{
		Name:        appName,
		DisplayName: "HumanLayer approval broker",
		Description: "Routes agent function-call approvals and human contact requests to Slack.",
		Arguments:   args,
	}
	return service.New(&program{params: params, run: Run}, cfg)
}

// ControlService runs one of ServiceActions against the installed unit.
func ControlService(params RunParams, action string) error {
	if !slices.Contains(ServiceActions, action) {
		return fmt.Errorf("service: unknown action %q (want one of %v)", action, ServiceActions)
	}
	svc, err := NewService(params)
	if err != nil {
		return err
	}
	return service.Control(svc, action)
}

// RunService blocks under the service manager, or in the foreground when
// started interactively.
func RunService(params RunParams) error {
	svc, err := NewService(params)
	if err != nil {
		return err
	}
	return svc.Run()
}
