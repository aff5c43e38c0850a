// Package store persists named JSON blobs. The application state lives in
// exactly two of them, rewritten in full on every mutation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type BlobStore struct {
	db *sql.DB
}

func NewBlobStore(db *sql.DB) *BlobStore {
	return &BlobStore{db: db}
}

// Get unmarshals the blob named key into dest. It reports found=false when
// the key has never been written; a stored value that does not decode into
// dest is an error the caller recovers from.
func (s *BlobStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM blobs WHERE key = ?
	`, key).Scan(&raw)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read blob %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode blob %s: %w", key, err)
	}
	return true, nil
}

// Set marshals value and upserts it under key.
func (s *BlobStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode blob %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, raw)
	if err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}
