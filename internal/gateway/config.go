package gateway

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/flemzord/hlbroker/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string                   `yaml:"bind"`
	ReadTimeout     time.Duration            `yaml:"read_timeout"`
	WriteTimeout    time.Duration            `yaml:"write_timeout"`
	ShutdownTimeout time.Duration            `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64                    `yaml:"max_body_bytes"`
	CORS            CORSConfig               `yaml:"cors"`
	Metrics         MetricsConfig            `yaml:"metrics"`
	Events          EventsConfig             `yaml:"events"`
	RateLimit       security.RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig configures the websocket event stream.
type EventsConfig struct {
	Enabled *bool `yaml:"enabled"`
	Buffer  int   `yaml:"buffer"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Events.Buffer <= 0 {
		c.Events.Buffer = 64
	}
}

func (c *Config) metricsEnabled() bool { return c.Metrics.Enabled == nil || *c.Metrics.Enabled }
func (c *Config) eventsEnabled() bool  { return c.Events.Enabled == nil || *c.Events.Enabled }

func (c *Config) validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q", c.Bind))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("gateway: metrics.path must start with /, got %q", c.Metrics.Path))
	}
	if strings.HasPrefix(c.Metrics.Path, "/humanlayer/") {
		errs = append(errs, errors.New("gateway: metrics.path must not live under /humanlayer/"))
	}
	return errors.Join(errs...)
}
