package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/hlbroker/internal/security"
)

const keyColumns = `id, key_hash, key_prefix, name, is_active, created_at, last_used_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(r rowScanner) (*security.APIKey, error) {
	var (
		k         security.APIKey
		active    int
		createdAt string
		lastUsed  sql.NullString
	)
	if err := r.Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &active, &createdAt, &lastUsed); err != nil {
		return nil, err
	}
	k.Active = active != 0
	var err error
	if k.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if k.LastUsedAt, err = parseNullTime(lastUsed); err != nil {
		return nil, err
	}
	return &k, nil
}

func (d *DB) FindByHash(ctx context.Context, hash string) (*security.APIKey, error) {
	k, err := scanKey(d.db.QueryRowContext(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE key_hash = ?", hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, security.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find api key: %w", err)
	}
	return k, nil
}

func (d *DB) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: touch api key %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return security.ErrKeyNotFound
	}
	return nil
}

// CreateKey inserts key unless its hash is already present, in which case
// the stored key is returned.
func (d *DB) CreateKey(ctx context.Context, key security.APIKey) (*security.APIKey, error) {
	active := 0
	if key.Active {
		active = 1
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, key_prefix, name, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key_hash) DO NOTHING`,
		key.KeyHash, key.KeyPrefix, key.Name, active, formatTime(key.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("sqlite: create api key: %w", err)
	}
	return d.FindByHash(ctx, key.KeyHash)
}

func (d *DB) ListKeys(ctx context.Context) ([]security.APIKey, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT "+keyColumns+" FROM api_keys ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []security.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan api key: %w", err)
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (d *DB) SetActive(ctx context.Context, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := d.db.ExecContext(ctx, "UPDATE api_keys SET is_active = ? WHERE id = ?", v, id)
	if err != nil {
		return fmt.Errorf("sqlite: set api key %d active: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return security.ErrKeyNotFound
	}
	return nil
}
