package model

// BatchState is the visible state of the result area. It only moves
// forward: Idle, Running, Done. There is no failure state; a batch whose
// files all failed still ends Done.
type BatchState int

const (
	// StateIdle is the state before any upload starts.
	StateIdle BatchState = iota
	// StateRunning lasts from the first fetch until every file settled.
	StateRunning
	// StateDone is terminal.
	StateDone
)

// String returns the state name.
func (s BatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Color is the border colour shown for the state. Idle keeps the page's
// own style.
func (s BatchState) Color() string {
	switch s {
	case StateRunning:
		return "orange"
	case StateDone:
		return "green"
	default:
		return ""
	}
}

// MarshalText encodes the state by name.
func (s BatchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
