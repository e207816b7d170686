package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/channel"
	"github.com/flemzord/hlbroker/internal/gateway"
	"github.com/flemzord/hlbroker/internal/interaction"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/flemzord/hlbroker/internal/security/securitytest"
	"github.com/go-chi/chi/v5"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type recordedCommand struct {
	cmd   interaction.Command
	actor interaction.Actor
}

type fakeInteractor struct {
	mu  sync.Mutex
	got []recordedCommand
	err error
}

func (f *fakeInteractor) Handle(_ context.Context, cmd interaction.Command, actor interaction.Actor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, recordedCommand{cmd, actor})
	return f.err
}

func (f *fakeInteractor) Commands() []recordedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCommand(nil), f.got...)
}

func sign(secret string, ts int64, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + strconv.FormatInt(ts, 10) + ":" + body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func formBody(payload string) string {
	return url.Values{"payload": {payload}}.Encode()
}

const approvePayload = `{"type":"block_actions","user":{"id":"U1","name":"alice"},"team":{"id":"T1"},` +
	`"actions":[{"action_id":"approve","block_id":"hl:fc-1:0","type":"button","value":"approve:fc-1"}]}`

// newTestServer mounts the receiver behind a gateway dispatcher, the way
// the application serves it.
func newTestServer(t *testing.T, r *WebhookReceiver) *httptest.Server {
	t.Helper()
	d := gateway.NewWebhookDispatcher(testLogger())
	d.Register(WebhookSource, r)
	router := chi.NewRouter()
	router.Post("/{source}/interactions", d.ServeHTTP)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string, ts int64, sig string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/slack/interactions", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ts != 0 {
		req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(ts, 10))
	}
	if sig != "" {
		req.Header.Set("X-Slack-Signature", sig)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func newReceiver(secret string, allow *channel.AllowList, audit *security.AuditLogger) (*WebhookReceiver, *fakeInteractor) {
	r := NewWebhookReceiver(ReceiverConfig{
		SigningSecret: secret,
		AllowList:     allow,
		Audit:         audit,
		Logger:        testLogger(),
	})
	h := &fakeInteractor{}
	r.SetHandler(h)
	return r, h
}

func TestWebhook_ValidSignatureApplied(t *testing.T) {
	t.Parallel()
	r, h := newReceiver(testSecret, nil, nil)
	srv := newTestServer(t, r)

	body := formBody(approvePayload)
	now := time.Now().Unix()
	resp := post(t, srv, body, now, sign(testSecret, now, body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	r.Wait()

	got := h.Commands()
	if len(got) != 1 {
		t.Fatalf("got %d commands, want 1", len(got))
	}
	if got[0].cmd != interaction.Approve("fc-1") {
		t.Errorf("cmd = %+v", got[0].cmd)
	}
	if got[0].actor.ID != "U1" || got[0].actor.Username != "alice" {
		t.Errorf("actor = %+v", got[0].actor)
	}
}

func TestWebhook_SignatureFailures(t *testing.T) {
	t.Parallel()

	body := formBody(approvePayload)
	now := time.Now().Unix()
	stale := time.Now().Add(-6 * time.Minute).Unix()

	tests := []struct {
		name string
		ts   int64
		sig  string
	}{
		{"missing headers", 0, ""},
		{"wrong secret", now, sign("other-secret", now, body)},
		{"tampered body", now, sign(testSecret, now, body+"x")},
		{"stale timestamp", stale, sign(testSecret, stale, body)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, h := newReceiver(testSecret, nil, nil)
			srv := newTestServer(t, r)

			resp := post(t, srv, body, tt.ts, tt.sig)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			r.Wait()
			if n := len(h.Commands()); n != 0 {
				t.Errorf("handler called %d times", n)
			}
		})
	}
}

func TestWebhook_BadPayload(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"missing payload": url.Values{"other": {"x"}}.Encode(),
		"malformed json":  formBody("{not json"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r, _ := newReceiver(testSecret, nil, nil)
			srv := newTestServer(t, r)

			now := time.Now().Unix()
			resp := post(t, srv, body, now, sign(testSecret, now, body))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestWebhook_EmptySecretSkipsVerification(t *testing.T) {
	t.Parallel()
	r, h := newReceiver("", nil, nil)
	srv := newTestServer(t, r)

	resp := post(t, srv, formBody(approvePayload), 0, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	r.Wait()
	if n := len(h.Commands()); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestWebhook_IgnoredInteractions(t *testing.T) {
	t.Parallel()

	payloads := map[string]string{
		"view submission": `{"type":"view_submission","user":{"id":"U1"}}`,
		"no actions":      `{"type":"block_actions","user":{"id":"U1"},"actions":[]}`,
		"bad value":       `{"type":"block_actions","user":{"id":"U1"},"actions":[{"action_id":"x","block_id":"b","value":"launch:fc-1"}]}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r, h := newReceiver("", nil, nil)
			if err := r.HandleWebhook(context.Background(), WebhookSource, []byte(formBody(payload)), nil); err != nil {
				t.Fatalf("HandleWebhook: %v", err)
			}
			r.Wait()
			if n := len(h.Commands()); n != 0 {
				t.Errorf("handler called %d times", n)
			}
		})
	}
}

func TestWebhook_OnlyFirstActionApplied(t *testing.T) {
	t.Parallel()
	r, h := newReceiver("", nil, nil)

	payload := `{"type":"block_actions","user":{"id":"U1","name":"alice"},"actions":[` +
		`{"action_id":"deny","block_id":"b","value":"deny:fc-1"},` +
		`{"action_id":"approve","block_id":"b","value":"approve:fc-1"}]}`
	if err := r.HandleWebhook(context.Background(), WebhookSource, []byte(formBody(payload)), nil); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	r.Wait()

	got := h.Commands()
	if len(got) != 1 || got[0].cmd != interaction.Deny("fc-1") {
		t.Errorf("commands = %+v", got)
	}
}

func TestWebhook_AllowList(t *testing.T) {
	t.Parallel()
	audit, events := securitytest.NewTestAuditLogger()
	r, h := newReceiver("", channel.NewAllowList([]string{"U2"}, nil), audit)

	if err := r.HandleWebhook(context.Background(), WebhookSource, []byte(formBody(approvePayload)), nil); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	r.Wait()

	if n := len(h.Commands()); n != 0 {
		t.Errorf("handler called %d times for denied user", n)
	}
	evs := events()
	if len(evs) != 1 || evs[0].Type != security.EventResponderDenied || evs[0].CallID != "fc-1" {
		t.Errorf("audit events = %+v", evs)
	}
}

func TestWebhook_ConflictSwallowed(t *testing.T) {
	t.Parallel()
	r, h := newReceiver("", nil, nil)
	h.err = approval.ErrAlreadyDecided

	err := r.process(context.Background(), mustCallback(t, approvePayload))
	if err != nil {
		t.Errorf("process: %v, want nil for an already resolved request", err)
	}
}

func TestWebhook_NoHandler(t *testing.T) {
	t.Parallel()
	r := NewWebhookReceiver(ReceiverConfig{Logger: testLogger()})

	if err := r.process(context.Background(), mustCallback(t, approvePayload)); err == nil {
		t.Error("expected error without a wired handler")
	}
}
