package security

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_WritesJSONL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fixedTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	logger := NewAuditLogger(AuditLoggerConfig{
		Writer: &buf,
		Now:    func() time.Time { return fixedTime },
	})

	logger.Log(AuditEvent{
		Type:   EventRequestResolved,
		Kind:   "function_call",
		CallID: "c1",
		Actor:  "U123",
		Detail: "approved",
	})

	var got AuditEvent
	if err := json.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatalf("failed to decode JSONL: %v", err)
	}
	if got.Type != EventRequestResolved || got.CallID != "c1" || got.Actor != "U123" {
		t.Errorf("event = %+v", got)
	}
	if !got.Timestamp.Equal(fixedTime) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, fixedTime)
	}
}

func TestAuditLogger_RedactsWithoutMutatingCaller(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("whsec-literal")

	logger := NewAuditLogger(AuditLoggerConfig{Writer: &buf, Redactor: r})

	meta := map[string]string{"signature": "whsec-literal"}
	logger.Log(AuditEvent{
		Type:     EventWebhookRejected,
		Detail:   "bad signature whsec-literal",
		Metadata: meta,
	})

	if bytes.Contains(buf.Bytes(), []byte("whsec-literal")) {
		t.Errorf("secret written to audit log: %s", buf.String())
	}
	if meta["signature"] != "whsec-literal" {
		t.Error("caller metadata was mutated")
	}
}

func TestAuditLogger_OnEventAndNil(t *testing.T) {
	t.Parallel()

	var got []AuditEvent
	logger := NewAuditLogger(AuditLoggerConfig{
		OnEvent: func(e AuditEvent) { got = append(got, e) },
	})
	logger.Log(AuditEvent{Type: EventAuthFailure})
	logger.Log(AuditEvent{Type: EventRateLimit})

	if len(got) != 2 || got[0].Type != EventAuthFailure {
		t.Errorf("events = %+v", got)
	}

	var nilLogger *AuditLogger
	nilLogger.Log(AuditEvent{Type: EventAuthFailure}) // must not panic
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewAuditLogger(AuditLoggerConfig{Writer: &buf})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEvent{Type: EventRequestCreated, CallID: "c"})
		}()
	}
	wg.Wait()

	lines := 0
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("corrupt line %q: %v", sc.Text(), err)
		}
		lines++
	}
	if lines != 50 {
		t.Errorf("lines = %d, want 50", lines)
	}
}
