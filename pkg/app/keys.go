package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/flemzord/hlbroker/internal/security"
	"github.com/flemzord/hlbroker/modules/store/sqlite"
	"gopkg.in/yaml.v3"
)

// KeyManager administers API keys directly in the store, without starting
// the broker. Changes are written to the audit log when it is enabled.
type KeyManager struct {
	keys    security.KeyAdmin
	audit   *security.AuditLogger
	now     func() time.Time
	closers []io.Closer
}

// OpenKeyManager opens the database named by the configuration at
// configPath. dataDir overrides the configured data directory.
func OpenKeyManager(ctx context.Context, configPath, dataDir string) (*KeyManager, error) {
	cfg, _, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	dataDir = firstNonEmpty(dataDir, cfg.DataDir, DefaultDataDir())

	var node *yaml.Node
	if n, ok := cfg.Modules["store.sqlite"]; ok {
		node = &n
	}
	dbCfg, err := sqlite.ConfigFromNode(node, dataDir)
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	m := &KeyManager{keys: db, now: time.Now, closers: []io.Closer{db}}
	audit, closer := newAuditLogger(cfg.Audit, dataDir, security.NewRedactor())
	if closer != nil {
		m.closers = append(m.closers, closer)
	}
	m.audit = audit
	return m, nil
}

// NewKeyManager wraps an already open key store.
func NewKeyManager(keys security.KeyAdmin, audit *security.AuditLogger) *KeyManager {
	return &KeyManager{keys: keys, audit: audit, now: time.Now}
}

// Create stores a new active key and returns its secret. An empty secret
// is generated. The secret is never stored and cannot be shown again.
func (m *KeyManager) Create(ctx context.Context, name, secret string) (string, *security.APIKey, error) {
	if secret == "" {
		var err error
		if secret, err = security.GenerateKey(); err != nil {
			return "", nil, err
		}
	}
	key, err := m.keys.CreateKey(ctx, security.NewAPIKey(secret, name, m.now()))
	if err != nil {
		return "", nil, err
	}
	m.audit.Log(security.AuditEvent{
		Type:   security.EventAPIKeyCreated,
		Actor:  "cli",
		Detail: key.KeyPrefix,
		Metadata: map[string]string{
			"id":   strconv.FormatInt(key.ID, 10),
			"name": key.Name,
		},
	})
	return secret, key, nil
}

// List returns every key, active or not.
func (m *KeyManager) List(ctx context.Context) ([]security.APIKey, error) {
	return m.keys.ListKeys(ctx)
}

// Revoke deactivates the key with the given ID.
func (m *KeyManager) Revoke(ctx context.Context, id int64) error {
	if err := m.keys.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("revoke key %d: %w", id, err)
	}
	m.audit.Log(security.AuditEvent{
		Type:     security.EventAPIKeyDeactivate,
		Actor:    "cli",
		Metadata: map[string]string{"id": strconv.FormatInt(id, 10)},
	})
	return nil
}

// Close releases the database and audit log.
func (m *KeyManager) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.closers = nil
	return errors.Join(errs...)
}
