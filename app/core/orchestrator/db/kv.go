package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// GetRecord returns the stored value for key, or "" when the key is absent.
func (d *DB) GetRecord(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) PutRecord(ctx context.Context, key string, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	query := `
INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := d.conn.ExecContext(ctx, query, key, value, time.Now().Unix())
	return err
}
