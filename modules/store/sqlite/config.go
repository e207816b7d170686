package sqlite

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "hlbroker.db"
)

// Config holds the SQLite store module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/hlbroker.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// SeedKeys are literal API keys inserted (hashed) at startup if absent.
	SeedKeys []string `yaml:"seed_keys"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	for i, k := range c.SeedKeys {
		if k == "" {
			return fmt.Errorf("sqlite: seed_keys[%d] is empty", i)
		}
	}
	return nil
}

// DefaultPath is where the database lives when no path is configured.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, defaultDBFile)
}

// ConfigFromNode decodes a store.sqlite module block the way the module
// does, for tools that open the database outside the module lifecycle.
// A nil node yields the defaults.
func ConfigFromNode(node *yaml.Node, dataDir string) (Config, error) {
	var cfg Config
	if node != nil {
		if err := node.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("sqlite: decode config: %w", err)
		}
	}
	cfg.defaults()
	if cfg.Path == "" {
		cfg.Path = DefaultPath(dataDir)
	}
	return cfg, nil
}
