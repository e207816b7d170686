// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for hlbroker.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is where the database and audit log live. Empty means the
	// platform default chosen by the caller.
	DataDir string `yaml:"data_dir,omitempty"`

	Log       LogConfig       `yaml:"log"`
	Audit     AuditConfig     `yaml:"audit"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.slack").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects the slog handler and its output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json

	// File enables rotating file output in addition to stderr.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`

	// Redact lists extra literal values scrubbed from every log record.
	Redact []string `yaml:"redact,omitempty"`
}

// AuditConfig controls the JSONL audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Notification delivery modes.
const (
	NotifyAsync = "async"
	NotifySync  = "sync"
)

// NotifyConfig controls how request creation interacts with the
// notification channel.
type NotifyConfig struct {
	// Mode is "async" (persist, then notify in the background) or "sync"
	// (notify inline and fail the create on error).
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig configures OpenTelemetry tracing. Tracing is disabled
// when Endpoint is empty.
type TelemetryConfig struct {
	ServiceName string  `yaml:"service_name,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	URLPath     string  `yaml:"url_path,omitempty"`
	Insecure    bool    `yaml:"insecure,omitempty"`
	SampleRatio float64 `yaml:"sample_ratio,omitempty"`
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.File != "" && c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Notify.Mode == "" {
		c.Notify.Mode = NotifyAsync
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "hlbroker"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1
	}
}
