package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/flemzord/hlbroker/internal/security"
)

type keyCtxKey struct{}

// APIKeyFrom returns the key that authenticated the request, if any.
func APIKeyFrom(ctx context.Context) (*security.APIKey, bool) {
	k, ok := ctx.Value(keyCtxKey{}).(*security.APIKey)
	return k, ok
}

// authenticate requires a valid bearer API key. Missing credentials map to
// UNAUTHORIZED, an unknown or inactive key to INVALID_API_KEY. Failures are
// counted per client address; a client whose bucket is full gets 429 for
// further failures while a valid key always gets through.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := a.Auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.authFailed(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), keyCtxKey{}, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	var code, msg string
	switch {
	case errors.Is(err, security.ErrMissingCredentials):
		code, msg = codeUnauthorized, "missing or malformed Authorization header"
	case errors.Is(err, security.ErrInvalidKey):
		code, msg = codeInvalidAPIKey, "invalid API key"
	default:
		a.Logger.Error("api key lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
		return
	}

	if a.Limiter.AllowKey(security.BucketAuthFailure, clientAddr(r)) != nil {
		a.Audit.Log(security.AuditEvent{
			Type:     security.EventRateLimit,
			Detail:   security.BucketAuthFailure,
			Metadata: map[string]string{"path": r.URL.Path, "remote_addr": r.RemoteAddr},
		})
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many failed authentication attempts", nil)
		return
	}
	if a.Metrics != nil {
		a.Metrics.authFailure(code)
	}
	a.Audit.Log(security.AuditEvent{
		Type:   security.EventAuthFailure,
		Detail: code,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
	writeError(w, http.StatusUnauthorized, code, msg, nil)
}

// clientAddr is the host part of RemoteAddr, which middleware.RealIP has
// already replaced with the forwarded client address when present.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// actor names the caller in audit entries.
func actor(ctx context.Context) string {
	if k, ok := APIKeyFrom(ctx); ok {
		if k.Name != "" {
			return k.Name
		}
		return k.KeyPrefix
	}
	return ""
}
