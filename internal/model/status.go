package model

// State is the processing state reported by the service.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ParseState maps a raw status string to a State.
// Anything that is not terminal (e.g. "processing") counts as pending.
func ParseState(s string) State {
	switch State(s) {
	case StateCompleted:
		return StateCompleted
	case StateFailed:
		return StateFailed
	default:
		return StatePending
	}
}

// Terminal reports whether polling should stop once s is observed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// StatusSnapshot is a single observation of a job's status.
type StatusSnapshot struct {
	State   State  `json:"status"`
	Message string `json:"message,omitempty"`
	Fault   bool   `json:"fault,omitempty"` // status query itself failed
}
