package acquire

import (
	"fmt"

	"seatgrab/internal/classify"
	"seatgrab/internal/outcome"
	"seatgrab/internal/platforms/seatlib"
)

// evaluate decides what a primary acquisition response means. `related` holds the raw bodies of
// the other calls of the same attempt, they are only consulted for session-invalid markers since
// an expired session tends to surface on whichever call hits it first.
func evaluate(mode seatlib.Mode, res seatlib.Response, related ...string) outcome.Outcome {
	cls := classify.ClassifyResponse(res.Body, res.Status)
	sessionElsewhere := (classify.Scan(related...) | classify.Match(res.Body)) & classify.SessionInvalid

	if !cls.Failed {
		result, ok := seatlib.SuccessResult(mode, res.Body)
		if ok {
			return outcome.Success(result)
		}
		if sessionElsewhere != classify.None {
			return outcome.Invalid(cls.Message)
		}
		return outcome.Transient(fmt.Sprintf("unexpected response: %s", cls.Message))
	}

	switch (cls.Signals | sessionElsewhere).Decide() {
	case classify.SessionInvalid:
		return outcome.Invalid(cls.Message)
	case classify.OutOfWindow:
		return outcome.Window(cls.Message)
	case classify.ResourceUnavailable:
		return outcome.Unavailable(cls.Message)
	case classify.AlreadySucceeded:
		return outcome.Success(cls.Message)
	}
	return outcome.Transient(cls.Message)
}

// transportFailure classifies an error that prevented a call from getting any response.
func transportFailure(call string, err error) outcome.Outcome {
	text := fmt.Sprintf("%s: %v", call, err)
	if classify.Match(err.Error()).Has(classify.SessionInvalid) {
		return outcome.Invalid(text)
	}
	return outcome.Transient(text)
}

func excerptOf(body string) string {
	message, _ := classify.ExtractMessage(body)
	return message
}
