package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/flemzord/hlbroker/internal/gateway"
)

const seedKey = "sk-runtime-0123456789"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hlbroker.yaml")
	body = strings.ReplaceAll(body, "{{dir}}", dir)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const brokerConfig = `version: "1"
data_dir: {{dir}}/data
audit:
  enabled: true
modules:
  store.sqlite:
    seed_keys: ["` + seedKey + `"]
  gateway.http:
    bind: 127.0.0.1:0
`

func TestWithRuntime_ServesAPI(t *testing.T) {
	path := writeConfig(t, brokerConfig)
	var stderr bytes.Buffer

	err := WithRuntime(t.Context(), RunParams{ConfigPath: path, Version: "9.9.9", Stderr: &stderr}, nil,
		func(_ context.Context, rt *Runtime) error {
			want := []string{"store.sqlite", "app.background", "gateway.http", "app.cron", "app.events"}
			if got := rt.App.IDs(); !slices.Equal(got, want) {
				t.Errorf("lifecycle order = %v, want %v", got, want)
			}
			if err := rt.App.Start(); err != nil {
				return err
			}
			defer rt.App.Stop()

			mod, _ := rt.App.Module("gateway.http")
			base := "http://" + mod.(*gateway.Gateway).Addr().String()

			body := `{"run_id":"r1","call_id":"c1","spec":{"fn":"send_email","kwargs":{"to":"a@b.c"}}}`
			req, _ := http.NewRequest(http.MethodPost, base+"/humanlayer/v1/function_calls", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+seedKey)
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("create status = %d, want 201", resp.StatusCode)
			}

			fc, err := rt.FunctionCalls.Get(t.Context(), "c1")
			if err != nil {
				t.Fatalf("get through service: %v", err)
			}
			if fc.Spec.Fn != "send_email" {
				t.Errorf("fn = %q", fc.Spec.Fn)
			}

			resp, err = http.Get(base + "/health")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			var health gateway.HealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				t.Fatalf("decode health: %v", err)
			}
			if health.Version != "9.9.9" {
				t.Errorf("health version = %q", health.Version)
			}
			return nil
		})
	if err != nil {
		t.Fatalf("WithRuntime: %v", err)
	}

	audit, err := os.ReadFile(filepath.Join(filepath.Dir(path), "data", "audit.jsonl"))
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	if !strings.Contains(string(audit), `"request_created"`) {
		t.Errorf("audit log missing creation: %s", audit)
	}
}

func TestWithRuntime_SkipGateway(t *testing.T) {
	path := writeConfig(t, brokerConfig)

	err := WithRuntime(t.Context(), RunParams{ConfigPath: path, Stderr: &bytes.Buffer{}}, []string{"gateway.http"},
		func(_ context.Context, rt *Runtime) error {
			if _, ok := rt.App.Module("gateway.http"); ok {
				t.Error("gateway loaded despite skip")
			}
			if len(rt.Scheduler.Jobs()) != 0 {
				t.Errorf("pending job registered without metrics: %v", rt.Scheduler.Jobs())
			}
			if rt.HumanContacts == nil || rt.Keys == nil {
				t.Error("services not wired")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("WithRuntime: %v", err)
	}
}

func TestBuild_RequiresStore(t *testing.T) {
	path := writeConfig(t, `version: "1"
data_dir: {{dir}}
modules:
  store.sqlite: {}
`)
	err := WithRuntime(t.Context(), RunParams{ConfigPath: path, Stderr: &bytes.Buffer{}}, []string{"store.sqlite"},
		func(context.Context, *Runtime) error {
			t.Fatal("fn must not run without a store")
			return nil
		})
	if err == nil || !strings.Contains(err.Error(), "no store module") {
		t.Fatalf("err = %v, want missing store", err)
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	if err := Run(t.Context(), RunParams{ConfigPath: "/nonexistent/config.yaml"}); err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: [")
	if err := Run(t.Context(), RunParams{ConfigPath: path}); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "modules:\n  foo: {}")
	if err := Run(t.Context(), RunParams{ConfigPath: path}); err == nil {
		t.Error("expected validation error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	path := writeConfig(t, brokerConfig)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := Run(ctx, RunParams{ConfigPath: path, Stderr: &bytes.Buffer{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
