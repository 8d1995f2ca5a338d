package record

import "fmt"

// State is the lifecycle state of a recording session.
type State uint8

const (
	// StateIdle is a session that has not been started.
	StateIdle State = iota
	// StateAwaitingFirstFrame has an open output but no frame yet.
	StateAwaitingFirstFrame
	// StateWriting has begun at its first frame's timestamp.
	StateWriting
	// StateFinalizing is finishing the output after Stop.
	StateFinalizing
	// StateCompleted produced a finished output.
	StateCompleted
	// StateFailed could not start or finish.
	StateFailed
	// StateAborted was cancelled and its output deleted.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstFrame:
		return "awaiting-first-frame"
	case StateWriting:
		return "writing"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// IsTerminal reports whether the session has reached its final state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}

// IsActive reports whether the session is accepting or finishing samples.
func (s State) IsActive() bool {
	return s == StateAwaitingFirstFrame || s == StateWriting || s == StateFinalizing
}

// FinishFailurePolicy decides what happens to the output when finishing fails.
type FinishFailurePolicy uint8

const (
	// KeepPartial leaves the partial output on disk for inspection.
	KeepPartial FinishFailurePolicy = iota
	// RemovePartial deletes the partial output.
	RemovePartial
)

// String returns the policy name.
func (p FinishFailurePolicy) String() string {
	switch p {
	case KeepPartial:
		return "keep"
	case RemovePartial:
		return "remove"
	default:
		return fmt.Sprintf("FinishFailurePolicy(%d)", uint8(p))
	}
}

// ParseFinishFailurePolicy returns the policy for a configuration name.
func ParseFinishFailurePolicy(s string) (FinishFailurePolicy, error) {
	switch s {
	case "", "keep":
		return KeepPartial, nil
	case "remove":
		return RemovePartial, nil
	}
	return 0, fmt.Errorf("unknown finish failure policy %q", s)
}
