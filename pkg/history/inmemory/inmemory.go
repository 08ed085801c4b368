// Package inmemory provides a map-backed history driver for tests and for
// callers that opt out of persistence.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/spool/pkg/history"
)

// Driver implements history.Driver using an in-memory map.
type Driver struct {
	// mu guards records and order.
	mu sync.RWMutex

	// records maps session ID to record.
	records map[string]*history.Record

	// order tracks insertion order so List can return most recent first.
	order []string
}

// NewDriver creates a new in-memory history store.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*history.Record),
	}
}

// Save stores a record, overwriting any existing record with the same ID.
func (d *Driver) Save(_ context.Context, record *history.Record) error {
	if record == nil {
		return errors.New("cannot store nil record")
	}
	if record.ID == "" {
		return errors.New("record requires a session ID")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.records[record.ID]; !exists {
		d.order = append(d.order, record.ID)
	}
	clone := *record
	d.records[record.ID] = &clone
	return nil
}

// Get retrieves a record by session ID.
func (d *Driver) Get(_ context.Context, id string) (*history.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.records[id]
	if !ok {
		return nil, history.ErrNotFound{ID: id}
	}
	clone := *record
	return &clone, nil
}

// List returns records most recent first.
func (d *Driver) List(_ context.Context, limit int) ([]*history.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*history.Record, 0, len(d.order))
	for i := len(d.order) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		clone := *d.records[d.order[i]]
		result = append(result, &clone)
	}
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
