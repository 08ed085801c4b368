// Package history persists finished generation sessions. It mirrors the
// storage driver split used elsewhere in the system: a small Driver
// interface with in-memory, SQLite, and PostgreSQL implementations.
package history

import (
	"context"
	"time"
)

/// Record is the persisted summary of one finished session: terminal state,
// termination reason, and whatever content accumulated before termination.
type Record struct {
	// ID is the session's opaque identifier.
	ID string `json:"id"`

	// Model that served the generation.
	Model string `json:"model"`

	// Prompt that started the session.
	Prompt string `json:"prompt"`

	// State is the terminal state name (completed, cancelled, failed).
	State string `json:"state"`

	// Reason is the recorded termination reason: a sentinel marker,
	// "end-of-stream", or an error kind.
	Reason string `json:"reason"`

	// Content is the accumulated generation output, possibly partial.
	Content string `json:"content"`

	// ChunkCount is the number of chunks delivered before termination.
	ChunkCount int `json:"chunk_count"`

	// StartedAt and EndedAt bound the session lifetime.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Driver defines the interface for persisting and retrieving session
// records in a storage backend.
type Driver interface {
	// Save stores a record. Saving an existing ID overwrites it.
	Save(ctx context.Context, record *Record) error

	// Get retrieves a record by session ID. Returns ErrNotFound when the
	// ID is unknown.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records ordered most recent first, up to limit
	// (0 means no limit).
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close closes the store and releases any resources.
	Close() error
}
