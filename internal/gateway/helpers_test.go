package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/events"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/flemzord/hlbroker/internal/security/securitytest"
)

const testKey = "sk-test-0123456789"

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *httptest.Server
	api     *API
	store   *approval.MemStore
	keys    *securitytest.KeyStore
	bus     *events.Bus
	metrics *Metrics
	audit   func() []security.AuditEvent
}

func newTestEnv(t *testing.T, mutate ...func(*Config, *Deps)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := approval.NewMemStore()
	bus := events.New()
	metrics := NewMetrics()
	bg := approval.NewBackground(logger)
	opts := approval.Options{
		Store:      store,
		Observer:   approval.Observers{bus, metrics},
		Logger:     logger,
		Background: bg,
		Now:        func() time.Time { return fixedNow },
	}
	keys := securitytest.NewKeyStore(testKey)
	audit, recorded := securitytest.NewTestAuditLogger()

	cfg := Config{}
	deps := Deps{
		FunctionCalls: approval.NewFunctionCallService(opts),
		HumanContacts: approval.NewHumanContactService(opts),
		Auth:          security.NewAuthenticator(keys),
		Metrics:       metrics,
		Events:        bus,
		Audit:         audit,
		Logger:        logger,
		Version:       "test",
		Channels:      func() []approval.ChannelKind { return []approval.ChannelKind{approval.ChannelSlack} },
	}
	for _, m := range mutate {
		m(&cfg, &deps)
	}

	api := NewAPI(cfg, deps)
	api.now = func() time.Time { return fixedNow }
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		srv.Close()
		bg.Wait()
		bus.Close()
	})

	return &testEnv{
		srv:     srv,
		api:     api,
		store:   store,
		keys:    keys,
		bus:     bus,
		metrics: metrics,
		audit:   recorded,
	}
}

// do sends an authenticated JSON request and decodes the response into out
// when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	return e.doWithKey(t, testKey, method, path, body, out)
}

func (e *testEnv) doWithKey(t *testing.T, key, method, path string, body any, out any) int {
	t.Helper()
	return e.doFrom(t, "", key, method, path, body, out)
}

// doFrom is doWithKey for a request forwarded on behalf of clientIP.
func (e *testEnv) doFrom(t *testing.T, clientIP, key, method, path string, body any, out any) int {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if clientIP != "" {
		req.Header.Set("X-Real-IP", clientIP)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type errorResponse struct {
	Error struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Details []FieldError `json:"details"`
	} `json:"error"`
}

// statusView is a loose decoding of an entity's status, so absent fields
// can be told apart from zero values.
type entityView struct {
	RunID  string         `json:"run_id"`
	CallID string         `json:"call_id"`
	Spec   map[string]any `json:"spec"`
	Status map[string]any `json:"status"`
}
