package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// maxWebhookBody caps inbound webhook payloads.
const maxWebhookBody = 1 << 20

// Webhook errors a handler may return to pick the response status.
var (
	ErrWebhookUnauthorized = errors.New("webhook: unauthorized")
	ErrWebhookBadRequest   = errors.New("webhook: bad request")
)

// WebhookHandler processes a webhook payload. Returning nil acknowledges the
// delivery with 200 {"ok":true}; long work belongs in a background task.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookVerifier is implemented by handlers that authenticate deliveries
// before the body is interpreted. An error maps to 401.
type WebhookVerifier interface {
	VerifyWebhook(body []byte, headers http.Header) error
}

// WebhookDispatcher routes incoming webhooks to registered handlers by
// source name (the {source} URL parameter).
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandler
	logger   *slog.Logger

	// OnReject, if set, is called when a delivery fails verification.
	OnReject func(source string, err error)

	// Admit, if set, runs after a delivery passed verification and before
	// it is handled. An error rejects it with 429, so unsigned floods never
	// consume the budget of genuine deliveries.
	Admit func(r *http.Request, source string) error
}

// NewWebhookDispatcher creates a ready-to-use dispatcher.
func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDispatcher{
		handlers: make(map[string]WebhookHandler),
		logger:   logger,
	}
}

// Register adds a handler for the given source.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = h
}

// Len returns the number of registered handlers.
func (d *WebhookDispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// ServeHTTP implements http.Handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed", nil)
		return
	}

	source := chi.URLParam(r, "source")
	d.mu.RLock()
	h, ok := d.handlers[source]
	d.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "no webhook handler for "+source, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "failed to read body", nil)
		return
	}

	if v, ok := h.(WebhookVerifier); ok {
		if err := v.VerifyWebhook(body, r.Header); err != nil {
			d.logger.Warn("webhook rejected", "source", source, "error", err)
			if d.OnReject != nil {
				d.OnReject(source, err)
			}
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid signature", nil)
			return
		}
	}

	if d.Admit != nil {
		if err := d.Admit(r, source); err != nil {
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests", nil)
			return
		}
	}

	if err := h.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		switch {
		case errors.Is(err, ErrWebhookUnauthorized):
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid signature", nil)
		case errors.Is(err, ErrWebhookBadRequest):
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		default:
			d.logger.Error("webhook handler failed", "source", source, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "internal error", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
