package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/skylark/aviary/common/db"
)

// Postgres implements Store on a single PostgreSQL table. Keys are ordered
// by the primary key (table_name, k); range scans use keyset pagination so
// the cursor is simply the last key of the previous page.
type Postgres struct {
	db *db.DB
}

// NewPostgres creates a Postgres-backed store
func NewPostgres(db *db.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the backing table if it does not exist. Run once at
// startup via the bootstrap DB init hook. The key column carries the "C"
// collation so comparison and ORDER BY are plain byte order; locale
// collations can treat control bytes like the 0x1f separator as ignorable,
// which would break prefix-range bounds.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			table_name TEXT NOT NULL,
			k          TEXT COLLATE "C" NOT NULL,
			v          BYTEA NOT NULL,
			version    BIGINT NOT NULL DEFAULT 1,
			PRIMARY KEY (table_name, k)
		)
	`)
	if err != nil {
		return fmt.Errorf("create kv_entries: %w", err)
	}
	return nil
}

// Get returns the value and version for key, or ErrNotFound
func (s *Postgres) Get(ctx context.Context, table, key string) ([]byte, int64, error) {
	var value []byte
	var version int64

	err := s.db.QueryRow(ctx,
		`SELECT v, version FROM kv_entries WHERE table_name = $1 AND k = $2`,
		table, key,
	).Scan(&value, &version)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get %s/%s: %w", table, key, err)
	}

	return value, version, nil
}

// Put unconditionally writes value under key
func (s *Postgres) Put(ctx context.Context, table, key string, value []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO kv_entries (table_name, k, v, version)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (table_name, k)
		DO UPDATE SET v = EXCLUDED.v, version = kv_entries.version + 1
	`, table, key, value)

	if err != nil {
		return fmt.Errorf("put %s/%s: %w", table, key, err)
	}
	return nil
}

// PutVersion writes value only if the row's current version equals expected.
// Expected 0 is a create-only insert.
func (s *Postgres) PutVersion(ctx context.Context, table, key string, value []byte, expected int64) (bool, error) {
	if expected == 0 {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO kv_entries (table_name, k, v, version)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (table_name, k) DO NOTHING
		`, table, key, value)
		if err != nil {
			return false, fmt.Errorf("insert %s/%s: %w", table, key, err)
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE kv_entries
		SET v = $3, version = version + 1
		WHERE table_name = $1 AND k = $2 AND version = $4
	`, table, key, value, expected)
	if err != nil {
		return false, fmt.Errorf("conditional put %s/%s: %w", table, key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes key; absent keys are not an error
func (s *Postgres) Delete(ctx context.Context, table, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM kv_entries WHERE table_name = $1 AND k = $2`,
		table, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, key, err)
	}
	return nil
}

// Scan returns one page of entries in ascending key order
func (s *Postgres) Scan(ctx context.Context, table string, r Range) ([]Entry, string, error) {
	if r.Limit < 1 {
		return nil, "", fmt.Errorf("scan %s: limit must be positive", table)
	}

	// Cursor beats Start: it is the last key already returned.
	after := r.Start
	inclusive := true
	if r.Cursor != "" {
		after = r.Cursor
		inclusive = false
	}

	query := `
		SELECT k, v, version FROM kv_entries
		WHERE table_name = $1 AND k >= $2 AND ($3 = '' OR k < $3)
		ORDER BY k
		LIMIT $4
	`
	if !inclusive {
		query = `
		SELECT k, v, version FROM kv_entries
		WHERE table_name = $1 AND k > $2 AND ($3 = '' OR k < $3)
		ORDER BY k
		LIMIT $4
	`
	}

	rows, err := s.db.Query(ctx, query, table, after, r.End, r.Limit)
	if err != nil {
		return nil, "", fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return nil, "", fmt.Errorf("scan %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("scan %s: %w", table, err)
	}

	// A short page means the range is drained.
	next := ""
	if len(entries) == r.Limit {
		next = entries[len(entries)-1].Key
	}
	return entries, next, nil
}

// Close is a no-op; pool lifetime is owned by bootstrap
func (s *Postgres) Close() error {
	return nil
}
