// Package secrets persists provider credentials in a local SQLite database.
package secrets

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const secretTable = "provider_secrets"

// Store is a durable key/value store for provider credentials.
// Writes are idempotent upserts, so reconfiguring a provider never
// corrupts previously stored state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the secret store at path and ensures schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("secret store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create secret store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open secret store: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		provider TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY(provider, key)
	);`, secretTable)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("ensure secret schema: %w", err)
	}
	return nil
}

// Set stores a secret for a provider, replacing any previous value.
func (s *Store) Set(ctx context.Context, provider, key, value string) error {
	if provider == "" || key == "" {
		return fmt.Errorf("provider and key are required")
	}
	now := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (provider, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(provider, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			secretTable),
		provider, key, value, now)
	return err
}

// Get returns the stored secret, or "" with ok=false when absent.
func (s *Store) Get(ctx context.Context, provider, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE provider = ? AND key = ?", secretTable),
		provider, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Delete removes a stored secret. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, provider, key string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE provider = ? AND key = ?", secretTable),
		provider, key)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns a credential for a provider, preferring the process
// environment over the store so env-driven deployments need no writes.
func Lookup(ctx context.Context, store *Store, provider, envVar string) (string, bool) {
	if v := os.Getenv(envVar); v != "" {
		return v, true
	}
	if store == nil {
		return "", false
	}
	v, ok, err := store.Get(ctx, provider, envVar)
	if err != nil || !ok {
		return "", false
	}
	return v, v != ""
}
