package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/hlbroker/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry and that the gateway has
// a store to serve from.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if _, ok := cfg.Modules["gateway.http"]; ok && !hasNamespace(cfg, "store") {
		errs = append(errs, errors.New("config: module \"gateway.http\" requires a store module (e.g. \"store.sqlite\")"))
	}

	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateNotify(cfg.Notify)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)

	return errors.Join(errs...)
}

func hasNamespace(cfg *Config, ns string) bool {
	for _, info := range core.GetModulesByNamespace(ns) {
		if _, ok := cfg.Modules[string(info.ID)]; ok {
			return true
		}
	}
	return false
}

func validateLog(l LogConfig) []error {
	var errs []error
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is invalid (debug, info, warn, error)", l.Level))
	}
	switch l.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q is invalid (text, json)", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, errors.New("config: log rotation limits must not be negative"))
	}
	return errs
}

func validateNotify(n NotifyConfig) []error {
	var errs []error
	switch n.Mode {
	case "", NotifyAsync, NotifySync:
	default:
		errs = append(errs, fmt.Errorf("config: notify.mode %q is invalid (async, sync)", n.Mode))
	}
	if n.Timeout < 0 {
		errs = append(errs, errors.New("config: notify.timeout must not be negative"))
	}
	return errs
}

func validateTelemetry(t TelemetryConfig) []error {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return []error{fmt.Errorf("config: telemetry.sample_ratio %v must be within [0, 1]", t.SampleRatio)}
	}
	return nil
}
