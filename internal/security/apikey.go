package security

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// API key errors. The gateway maps ErrMissingCredentials to UNAUTHORIZED
// and ErrInvalidKey to INVALID_API_KEY.
var (
	ErrMissingCredentials = errors.New("security: missing bearer credentials")
	ErrInvalidKey         = errors.New("security: invalid api key")
	ErrKeyNotFound        = errors.New("security: api key not found")
)

const (
	keyPrefix     = "sk-"
	keyRandBytes  = 32
	displayPrefix = 8
)

// APIKey is a stored bearer credential. Only the hash of the secret is kept.
type APIKey struct {
	ID         int64      `json:"id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Name       string     `json:"name,omitempty"`
	Active     bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// KeyStore looks up keys for authentication.
type KeyStore interface {
	// FindByHash returns ErrKeyNotFound when no key has the hash.
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}

// KeyAdmin manages keys out of band (CLI, seeding).
type KeyAdmin interface {
	KeyStore
	// CreateKey inserts key; a key whose hash already exists is returned
	// unchanged.
	CreateKey(ctx context.Context, key APIKey) (*APIKey, error)
	ListKeys(ctx context.Context) ([]APIKey, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// GenerateKey returns a new random secret of the form sk-<64 hex chars>.
func GenerateKey() (string, error) {
	b := make([]byte, keyRandBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("security: generate key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(b), nil
}

// HashKey returns the hex SHA-256 of secret. Keys are high-entropy random
// strings, so a fast unsalted hash allows direct lookup by hash.
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the display prefix of secret.
func KeyPrefix(secret string) string {
	if len(secret) <= displayPrefix {
		return secret
	}
	return secret[:displayPrefix]
}

// NewAPIKey builds the stored form of secret.
func NewAPIKey(secret, name string, now time.Time) APIKey {
	return APIKey{
		KeyHash:   HashKey(secret),
		KeyPrefix: KeyPrefix(secret),
		Name:      name,
		Active:    true,
		CreatedAt: now.UTC(),
	}
}

// Authenticator validates Authorization headers against a KeyStore.
type Authenticator struct {
	store KeyStore
	now   func() time.Time
}

// NewAuthenticator creates an Authenticator backed by store.
func NewAuthenticator(store KeyStore) *Authenticator {
	return &Authenticator{store: store, now: time.Now}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate resolves the key named by header and records its use.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*APIKey, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrMissingCredentials
	}

	key, err := a.store.FindByHash(ctx, HashKey(token))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("security: lookup api key: %w", err)
	}
	if !key.Active {
		return nil, ErrInvalidKey
	}

	now := a.now().UTC()
	if err := a.store.TouchLastUsed(ctx, key.ID, now); err != nil {
		return nil, fmt.Errorf("security: touch api key: %w", err)
	}
	key.LastUsedAt = &now
	return key, nil
}
