package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/navimind/navimind/pkg/storage"
)

// PGStore implements storage.Store on the kv_store table.
type PGStore struct {
	client *Client
}

// NewPGStore builds a store over an open client.
func NewPGStore(client *Client) *PGStore {
	return &PGStore{client: client}
}

var _ storage.Store = (*PGStore)(nil)

func (s *PGStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.client.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.client.db.QueryContext(ctx,
		`SELECT key FROM kv_store WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
