package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastSessionFile = "last_session.json"
)

// LastSession is the persisted pointer to the most recent generation session.
// History commands use it to resolve "show me the last one" without an ID.
type LastSession struct {
	// SessionID is the ID of the most recently finished session.
	SessionID string `json:"session_id"`

	// State is the terminal state the session ended in.
	State string `json:"state"`

	// EndedAt is when the session reached its terminal state.
	EndedAt time.Time `json:"ended_at"`
}

// LoadLastSession loads the pointer from a target .spool/last_session.json.
// Returns nil, nil if no pointer exists (no session has run yet).
// If overrideDir is non-empty, it is used instead of the default ~/.spool/ location.
func (m *Manager) LoadLastSession(overrideDir string) (*LastSession, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, lastSessionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last session: %w", err)
	}

	last := &LastSession{}
	if err := json.Unmarshal(data, last); err != nil {
		return nil, fmt.Errorf("parsing last session: %w", err)
	}

	return last, nil
}

// SaveLastSession persists the pointer to a target .spool/last_session.json.
func (m *Manager) SaveLastSession(last *LastSession, overrideDir string) error {
	if last == nil {
		return errors.New("cannot save nil last session")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last session: %w", err)
	}

	path := filepath.Join(dir, lastSessionFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing last session: %w", err)
	}

	return nil
}

// ClearLastSession removes the last-session pointer.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearLastSession(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, lastSessionFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last session: %w", err)
	}

	return nil
}
