package session

// State is the lifecycle state of a streaming session.
//
// Idle → Connecting → Streaming → {Completed, Cancelled, Failed}
//
// Terminal states are absorbing: once entered, late frames, duplicate timer
// fires, and repeated Cancel calls are all no-ops.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
