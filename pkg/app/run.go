// Package app assembles the broker process: configuration, logging,
// tracing and module wiring shared by every hlbroker command.
package app

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/flemzord/hlbroker/internal/config"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/flemzord/hlbroker/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string

	// DataDir overrides the configured data directory.
	DataDir string

	// Stderr receives log output; defaults to os.Stderr.
	Stderr io.Writer
}

// LoadConfig resolves, loads, defaults and validates the configuration.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	cfg.ApplyDefaults()
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	return WithRuntime(ctx, params, nil, func(ctx context.Context, rt *Runtime) error {
		return rt.App.Run(ctx)
	})
}

// WithRuntime builds a Runtime from params, hands it to fn and tears
// everything down when fn returns. Modules listed in skip are not loaded.
// fn is responsible for starting and stopping rt.App.
func WithRuntime(ctx context.Context, params RunParams, skip []string, fn func(context.Context, *Runtime) error) (err error) {
	cfg, cfgPath, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	stderr := params.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	redactor := security.NewRedactor()
	logger, logCloser := NewLogger(cfg.Log, stderr, redactor)
	defer func() { err = errors.Join(err, logCloser.Close()) }()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: params.Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		URLPath:        cfg.Telemetry.URLPath,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdownTracing(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn("tracing shutdown failed", "error", serr)
		}
	}()

	logger.Info("configuration loaded", "path", cfgPath, "version", params.Version)

	rt, err := Build(cfg, Options{
		Version:  params.Version,
		DataDir:  params.DataDir,
		Skip:     skip,
		Logger:   logger,
		Redactor: redactor,
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rt.Close()) }()

	return fn(ctx, rt)
}
