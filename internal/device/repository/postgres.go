package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultSnapshotKey identifies the snapshot row when a single process owns the table.
const DefaultSnapshotKey = "default"

const createSnapshotTable = `CREATE TABLE IF NOT EXISTS device_record_snapshots (
	id         TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBackend stores the snapshot document as one jsonb row.
type PostgresBackend struct {
	db  *sql.DB
	key string
}

// NewPostgresBackend ensures the snapshot table exists and returns a backend
// reading and writing the row identified by key.
func NewPostgresBackend(ctx context.Context, db *sql.DB, key string) (*PostgresBackend, error) {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if _, err := db.ExecContext(ctx, createSnapshotTable); err != nil {
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &PostgresBackend{db: db, key: key}, nil
}

// Load returns the stored snapshot, or nil if the row does not exist.
func (b *PostgresBackend) Load(ctx context.Context) (*Snapshot, error) {
	var body []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT body FROM device_record_snapshots WHERE id = $1`, b.key,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", b.key, err)
	}
	return &s, nil
}

// Save upserts the snapshot row.
func (b *PostgresBackend) Save(ctx context.Context, s *Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO device_record_snapshots (id, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		b.key, string(payload))
	return err
}
