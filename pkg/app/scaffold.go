package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scaffold holds the answers of `hlbroker init`.
type Scaffold struct {
	Bind       string
	DataDir    string
	NotifyMode string
	Audit      bool

	// Slack enables the channel.slack module. Empty secrets are written as
	// environment references so the file can be committed.
	Slack              bool
	SlackBotToken      string
	SlackSigningSecret string

	// SeedKey is inserted as an API key on first start.
	SeedKey string
}

type scaffoldFile struct {
	Version string         `yaml:"version"`
	DataDir string         `yaml:"data_dir,omitempty"`
	Log     map[string]any `yaml:"log"`
	Audit   map[string]any `yaml:"audit"`
	Notify  map[string]any `yaml:"notify"`
	Modules scaffoldMods   `yaml:"modules"`
}

type scaffoldMods struct {
	Store   map[string]any `yaml:"store.sqlite"`
	Slack   map[string]any `yaml:"channel.slack,omitempty"`
	Gateway map[string]any `yaml:"gateway.http"`
}

// Render produces the YAML configuration for s.
func (s Scaffold) Render() ([]byte, error) {
	if s.Bind == "" {
		return nil, errors.New("init: bind address is required")
	}
	mode := s.NotifyMode
	if mode == "" {
		mode = "async"
	}

	f := scaffoldFile{
		Version: "1",
		DataDir: s.DataDir,
		Log:     map[string]any{"level": "info", "format": "text"},
		Audit:   map[string]any{"enabled": s.Audit},
		Notify:  map[string]any{"mode": mode, "timeout": "10s"},
		Modules: scaffoldMods{
			Store:   map[string]any{},
			Gateway: map[string]any{"bind": s.Bind},
		},
	}
	if s.SeedKey != "" {
		f.Modules.Store["seed_keys"] = []string{s.SeedKey}
	}
	if s.Slack {
		f.Modules.Slack = map[string]any{
			"bot_token":      orEnv(s.SlackBotToken, "SLACK_BOT_TOKEN"),
			"signing_secret": orEnv(s.SlackSigningSecret, "SLACK_SIGNING_SECRET"),
		}
	}
	return yaml.Marshal(f)
}

// Write renders s to path, refusing to overwrite an existing file.
func (s Scaffold) Write(path string) error {
	out, err := s.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if _, err := f.Write(out); err != nil {
		_ = f.Close()
		return fmt.Errorf("init: write %s: %w", path, err)
	}
	return f.Close()
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return "${" + env + "}"
}
