package outcome

import "fmt"

// Kind tags which variant of an Outcome is active.
type Kind int

const (
	// Succeeded: the seat is ours, either just now or through an existing reservation.
	Succeeded Kind = iota + 1
	// ResourceUnavailable: someone else holds the seat, the caller should pick another.
	ResourceUnavailable
	// SessionInvalid: the credential was rejected and must be reacquired externally.
	SessionInvalid
	// OutOfWindow: the server is not accepting this operation right now.
	OutOfWindow
	// TransientFailure: a network hiccup or an ambiguous response, worth retrying.
	TransientFailure
	// ExhaustedRetries: transient failures outlived the attempt budget.
	ExhaustedRetries
	// FatalError: a programming or configuration error.
	FatalError
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case ResourceUnavailable:
		return "resource_unavailable"
	case SessionInvalid:
		return "session_invalid"
	case OutOfWindow:
		return "out_of_window"
	case TransientFailure:
		return "transient_failure"
	case ExhaustedRetries:
		return "exhausted_retries"
	case FatalError:
		return "fatal_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Terminal reports whether an outcome of this kind ends the whole operation.
func (k Kind) Terminal() bool {
	return k != TransientFailure
}

// Outcome is the result of one attempt or of the whole operation. Message carries the server's
// diagnostic (or confirmation) text verbatim when one exists.
type Outcome struct {
	Kind     Kind
	Message  string
	Attempts int
}

func Success(message string) Outcome {
	return Outcome{Kind: Succeeded, Message: message}
}

func Unavailable(message string) Outcome {
	return Outcome{Kind: ResourceUnavailable, Message: message}
}

func Invalid(reason string) Outcome {
	return Outcome{Kind: SessionInvalid, Message: reason}
}

func Window(reason string) Outcome {
	return Outcome{Kind: OutOfWindow, Message: reason}
}

func Transient(reason string) Outcome {
	return Outcome{Kind: TransientFailure, Message: reason}
}

func Exhausted(lastReason string) Outcome {
	return Outcome{Kind: ExhaustedRetries, Message: lastReason}
}

func Fatal(reason string) Outcome {
	return Outcome{Kind: FatalError, Message: reason}
}

func (o Outcome) Ok() bool {
	return o.Kind == Succeeded
}

// Advice is the actionable sentence a human should read for this outcome.
func (o Outcome) Advice() string {
	switch o.Kind {
	case Succeeded:
		return "the seat is reserved"
	case ResourceUnavailable:
		return "this seat is taken, choose another one"
	case SessionInvalid:
		return "the session cookie is stale or rejected, reacquire it and try again"
	case OutOfWindow:
		return "the server is not accepting this operation right now, check the reservation window"
	case TransientFailure:
		return "the server gave no clear answer, the attempt may be retried"
	case ExhaustedRetries:
		return "the network or server kept failing, every attempt was used up"
	case FatalError:
		return "the operation could not run, check the configuration"
	}
	return "unknown outcome"
}

func (o Outcome) String() string {
	if o.Message == "" {
		return fmt.Sprintf("%s: %s", o.Kind, o.Advice())
	}
	return fmt.Sprintf("%s: %s (%s)", o.Kind, o.Advice(), o.Message)
}
