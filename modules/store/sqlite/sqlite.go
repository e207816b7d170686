// Package sqlite implements the persistent request store on SQLite, using
// modernc.org/sqlite (pure Go, no CGO) in WAL mode. A single database holds
// function calls, human contacts, their status records, the escalation log
// and the API key table.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/core"
	"github.com/flemzord/hlbroker/internal/security"
	"gopkg.in/yaml.v3"
)

// Service names under which the store is registered.
const (
	ServiceApprovals = "store.approvals"
	ServiceAPIKeys   = "store.apikeys"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ approval.Store    = (*DB)(nil)
	_ security.KeyAdmin = (*DB)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module exposes a DB to the rest of the application.
type Module struct {
	config Config
	db     *DB
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = DefaultPath(ctx.DataDir)
	}

	db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db

	if err := m.seedKeys(context.Background()); err != nil {
		_ = db.Close()
		return err
	}

	ctx.RegisterService(ServiceApprovals, approval.Store(db))
	ctx.RegisterService(ServiceAPIKeys, security.KeyAdmin(db))

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"seed_keys", len(m.config.SeedKeys),
	)
	return nil
}

func (m *Module) seedKeys(ctx context.Context) error {
	now := time.Now()
	for _, secret := range m.config.SeedKeys {
		if _, err := m.db.CreateKey(ctx, security.NewAPIKey(secret, "seed", now)); err != nil {
			return fmt.Errorf("sqlite: seed api key: %w", err)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.Ping(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// DB returns the opened database.
func (m *Module) DB() *DB {
	return m.db
}
