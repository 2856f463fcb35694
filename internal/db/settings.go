package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const vaultRootKey = "vault_root"

// SaveVaultRoot remembers the selected vault root.
func (db *DB) SaveVaultRoot(ctx context.Context, root string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO vault_settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, vaultRootKey, root)
	if err != nil {
		return fmt.Errorf("db: save vault root: %w", err)
	}
	return nil
}

// LoadVaultRoot returns the remembered root, or "" if none was saved.
func (db *DB) LoadVaultRoot(ctx context.Context) (string, error) {
	var root string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM vault_settings WHERE key = ?`, vaultRootKey).Scan(&root)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db: load vault root: %w", err)
	}
	return root, nil
}
