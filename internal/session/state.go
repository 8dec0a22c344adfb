// Package session manages the lifecycle of trading sessions.
package session

import (
	"ashare-trader/internal/errors"
)

// State is the lifecycle state of a trading session.
type State string

const (
	StateCreated  State = "CREATED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StatePaused   State = "PAUSED"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
	StateFailed   State = "FAILED"
)

// IsActive reports whether the state represents a session with live
// obligations (a loop that is or should be running).
func (s State) IsActive() bool {
	switch s {
	case StateStarting, StateRunning, StatePaused:
		return true
	}
	return false
}

// IsTerminalForRestart reports whether a session in this state may be
// started (again).
func (s State) IsTerminalForRestart() bool {
	switch s {
	case StateCreated, StateStopped, StateFailed:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from one state
// to another. Failure is reachable from every non-terminal state.
func CanTransition(from, to State) bool {
	switch to {
	case StateStarting:
		return from.IsTerminalForRestart()
	case StateRunning:
		return from == StateStarting || from == StatePaused
	case StatePaused:
		return from == StateRunning
	case StateStopping:
		return from == StateRunning || from == StatePaused
	case StateStopped:
		return from == StateStopping
	case StateFailed:
		return from != StateStopped && from != StateFailed
	}
	return false
}

// ValidateTransition returns a StateError when the transition is not
// permitted. The caller must leave the session untouched on error.
func ValidateTransition(sessionID string, from, to State) error {
	if !CanTransition(from, to) {
		return errors.NewStateError(sessionID, string(from), string(to))
	}
	return nil
}
