package history

// ErrNotFound is returned when a session record doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "session record not found"
	}
	return "session record not found: " + e.ID
}
