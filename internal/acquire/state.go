package acquire

import (
	"fmt"

	"seatgrab/internal/outcome"
)

// State is where an operation is in its lifecycle.
type State int

const (
	Idle State = iota
	Waiting
	Attempting
	Succeeded
	ResourceTaken
	SessionInvalid
	ExhaustedRetries
	FatalError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case ResourceTaken:
		return "resource_taken"
	case SessionInvalid:
		return "session_invalid"
	case ExhaustedRetries:
		return "exhausted_retries"
	case FatalError:
		return "fatal_error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s >= Succeeded
}

// terminalState maps the outcome an operation ends with onto its terminal state. A closed window
// has no state of its own, retrying cannot help so it ends like any other fatal error.
func terminalState(kind outcome.Kind) State {
	switch kind {
	case outcome.Succeeded:
		return Succeeded
	case outcome.ResourceUnavailable:
		return ResourceTaken
	case outcome.SessionInvalid:
		return SessionInvalid
	case outcome.ExhaustedRetries:
		return ExhaustedRetries
	}
	return FatalError
}
