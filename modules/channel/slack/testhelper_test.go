package slack

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	slackapi "github.com/slack-go/slack"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// apiCall is one request received by the fake Slack API.
type apiCall struct {
	Method string
	Token  string
	Form   map[string]string
}

// fakeSlack is an httptest server answering chat.postMessage and
// chat.update like the Slack Web API.
type fakeSlack struct {
	srv   *httptest.Server
	mu    sync.Mutex
	calls []apiCall
	fail  string // Slack error code returned when set
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	f := &fakeSlack{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSlack) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	call := apiCall{
		Method: strings.TrimPrefix(r.URL.Path, "/"),
		Token:  strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		Form:   make(map[string]string),
	}
	for k := range r.PostForm {
		call.Form[k] = r.PostForm.Get(k)
	}
	if call.Token == "" {
		call.Token = call.Form["token"]
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fail := f.fail
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail != "" {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": fail})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"channel": call.Form["channel"],
		"ts":      "1700000000.000100",
		"text":    call.Form["text"],
	})
}

func (f *fakeSlack) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeSlack) URL() string { return f.srv.URL + "/" }

// blockValues extracts every button value from a posted blocks form field.
func blockValues(t *testing.T, blocksJSON string) []string {
	t.Helper()
	var blocks []map[string]any
	if err := json.Unmarshal([]byte(blocksJSON), &blocks); err != nil {
		t.Fatalf("decode blocks: %v\n%s", err, blocksJSON)
	}
	var values []string
	for _, b := range blocks {
		if b["type"] != "actions" {
			continue
		}
		elems, _ := b["elements"].([]any)
		for _, e := range elems {
			if m, ok := e.(map[string]any); ok {
				if v, ok := m["value"].(string); ok {
					values = append(values, v)
				}
			}
		}
	}
	return values
}

func mustCallback(t *testing.T, payload string) *slackapi.InteractionCallback {
	t.Helper()
	var cb slackapi.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &cb
}
