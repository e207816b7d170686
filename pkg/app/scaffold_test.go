package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/hlbroker/internal/config"
)

func TestScaffold_RenderLoads(t *testing.T) {
	t.Setenv("SLACK_SIGNING_SECRET", "from-env")

	s := Scaffold{
		Bind:          "127.0.0.1:8080",
		DataDir:       t.TempDir(),
		NotifyMode:    "sync",
		Audit:         true,
		Slack:         true,
		SlackBotToken: "xoxb-1",
		SeedKey:       "sk-seed-0123456789",
	}
	path := filepath.Join(t.TempDir(), "conf", "hlbroker.yaml")
	if err := s.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.ApplyDefaults()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, id := range []string{"store.sqlite", "channel.slack", "gateway.http"} {
		if _, ok := cfg.Modules[id]; !ok {
			t.Errorf("module %s missing", id)
		}
	}
	if cfg.Notify.Mode != config.NotifySync || !cfg.Audit.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "${SLACK_SIGNING_SECRET}") {
		t.Errorf("signing secret should be an env reference:\n%s", raw)
	}
}

func TestScaffold_NoOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hlbroker.yaml")
	if err := os.WriteFile(path, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := (Scaffold{Bind: ":8080"}).Write(path); err == nil {
		t.Fatal("existing file overwritten")
	}
}

func TestScaffold_RequiresBind(t *testing.T) {
	t.Parallel()

	if _, err := (Scaffold{}).Render(); err == nil {
		t.Fatal("expected error without bind")
	}
}
