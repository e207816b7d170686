// Package securitytest provides test doubles for the security package.
// It is intended for use by other packages' tests.
package securitytest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/hlbroker/internal/security"
)

// NewTestRedactor creates a Redactor with no patterns, so test fixtures
// that look like credentials stay readable.
func NewTestRedactor() *security.Redactor {
	return &security.Redactor{}
}

// NewTestAuditLogger creates an AuditLogger that records events in memory.
// Returns the logger and a function to retrieve logged events.
func NewTestAuditLogger() (*security.AuditLogger, func() []security.AuditEvent) {
	var (
		mu     sync.Mutex
		events []security.AuditEvent
	)
	logger := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	})
	return logger, func() []security.AuditEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]security.AuditEvent(nil), events...)
	}
}

// KeyStore is an in-memory security.KeyAdmin.
type KeyStore struct {
	mu     sync.Mutex
	nextID int64
	keys   []*security.APIKey
}

var _ security.KeyAdmin = (*KeyStore)(nil)

// NewKeyStore returns a store holding an active key for each secret.
func NewKeyStore(secrets ...string) *KeyStore {
	s := &KeyStore{}
	for _, secret := range secrets {
		_, _ = s.CreateKey(context.Background(), security.NewAPIKey(secret, "", time.Now()))
	}
	return s
}

func (s *KeyStore) FindByHash(_ context.Context, hash string) (*security.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, security.ErrKeyNotFound
}

func (s *KeyStore) TouchLastUsed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id {
			k.LastUsedAt = &at
			return nil
		}
	}
	return security.ErrKeyNotFound
}

func (s *KeyStore) CreateKey(_ context.Context, key security.APIKey) (*security.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == key.KeyHash {
			cp := *k
			return &cp, nil
		}
	}
	s.nextID++
	key.ID = s.nextID
	s.keys = append(s.keys, &key)
	cp := key
	return &cp, nil
}

func (s *KeyStore) ListKeys(context.Context) ([]security.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]security.APIKey, len(s.keys))
	for i, k := range s.keys {
		out[i] = *k
	}
	return out, nil
}

func (s *KeyStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id {
			k.Active = active
			return nil
		}
	}
	return security.ErrKeyNotFound
}
