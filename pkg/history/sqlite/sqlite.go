// Package sqlite provides a SQLite-backed history driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver

	"github.com/papercomputeco/spool/pkg/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	model       TEXT NOT NULL DEFAULT '',
	prompt      TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	chunk_count INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions (ended_at DESC);
`

// Driver implements history.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed history store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Save stores a record, overwriting any existing record with the same ID.
func (d *Driver) Save(ctx context.Context, record *history.Record) error {
	if record == nil {
		return errors.New("cannot store nil record")
	}
	if record.ID == "" {
		return errors.New("record requires a session ID")
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO sessions (id, model, prompt, state, reason, content, chunk_count, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			model = excluded.model,
			prompt = excluded.prompt,
			state = excluded.state,
			reason = excluded.reason,
			content = excluded.content,
			chunk_count = excluded.chunk_count,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`,
		record.ID, record.Model, record.Prompt, record.State, record.Reason,
		record.Content, record.ChunkCount, record.StartedAt, record.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("saving session record: %w", err)
	}
	return nil
}

// Get retrieves a record by session ID.
func (d *Driver) Get(ctx context.Context, id string) (*history.Record, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, model, prompt, state, reason, content, chunk_count, started_at, ended_at
		FROM sessions WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting session record: %w", err)
	}
	return record, nil
}

// List returns records most recent first.
func (d *Driver) List(ctx context.Context, limit int) ([]*history.Record, error) {
	query := `
		SELECT id, model, prompt, state, reason, content, chunk_count, started_at, ended_at
		FROM sessions ORDER BY ended_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing session records: %w", err)
	}
	defer rows.Close()

	var records []*history.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session records: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*history.Record, error) {
	var record history.Record
	err := s.Scan(
		&record.ID, &record.Model, &record.Prompt, &record.State,
		&record.Reason, &record.Content, &record.ChunkCount,
		&record.StartedAt, &record.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
