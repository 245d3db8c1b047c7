// Package classify turns loosely structured server payloads into a diagnostic message and a set of
// keyword signals. Nothing in here does I/O and nothing in here fails, malformed input always
// produces some message.
package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxExcerpt is the number of code points kept from a raw body when no structured message exists.
const MaxExcerpt = 200

// Result is what the classifier extracts from a single payload.
type Result struct {
	Message string
	Signals Signal
	// Failed is true when the payload carries structural error markers: a non-empty `errors`
	// array or an http status of 400 and above.
	Failed bool
}

type envelope struct {
	Errors []json.RawMessage `json:"errors"`
	Msg    *json.RawMessage  `json:"msg"`
}

// Classify is ClassifyResponse without an http status.
func Classify(body string) Result {
	return ClassifyResponse(body, 0)
}

// ClassifyResponse extracts the diagnostic message of a response body and matches it against the
// keyword sets. A `status` of 0 means the status is unknown.
func ClassifyResponse(body string, status int) Result {
	message, hasErrors := ExtractMessage(body)
	failed := hasErrors || status >= 400
	return Result{
		Message: message,
		Signals: Match(message),
		Failed:  failed,
	}
}

// ExtractMessage returns the most specific human readable message found in `body` and whether
// the body carried an error marker.
func ExtractMessage(body string) (message string, hasErrors bool) {
	var env envelope
	err := json.Unmarshal([]byte(body), &env)
	if err != nil {
		// not json or not an object, a raw `"errors":` key still counts as a marker
		return excerpt(decodeEscapes(body)), strings.Contains(body, `"errors":`)
	}

	if len(env.Errors) > 0 {
		return errorEntryMessage(env.Errors[0]), true
	}
	if env.Msg != nil {
		if msg := rawString(*env.Msg); msg != "" {
			return msg, false
		}
	}
	return excerpt(body), false
}

func errorEntryMessage(entry json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err == nil {
		for _, key := range []string{"msg", "message"} {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			if msg := rawString(raw); msg != "" {
				return decodeEscapes(msg)
			}
		}
	}
	return excerpt(string(entry))
}

// rawString renders a json value as text, strings are unquoted and null is empty.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func excerpt(text string) string {
	text = strings.ToValidUTF8(text, string(utf8.RuneError))
	if utf8.RuneCountInString(text) <= MaxExcerpt {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxExcerpt]) + "..."
}

var escapeSequence = regexp.MustCompile(`\\u[0-9a-fA-F]{4}|\\[nrt"\\/]`)

// decodeEscapes is a best-effort decode of the json escape sequences servers leave in
// double-encoded messages, invalid sequences are left as they are.
func decodeEscapes(text string) string {
	text = strings.ToValidUTF8(text, string(utf8.RuneError))
	if !strings.Contains(text, `\`) {
		return text
	}
	return escapeSequence.ReplaceAllStringFunc(text, func(seq string) string {
		if strings.HasPrefix(seq, `\u`) {
			code, err := strconv.ParseUint(seq[2:], 16, 32)
			if err != nil {
				return seq
			}
			r := rune(code)
			if !utf8.ValidRune(r) {
				return seq
			}
			return string(r)
		}
		switch seq[1] {
		case 'n':
			return "\n"
		case 'r':
			return "\r"
		case 't':
			return "\t"
		default:
			return seq[1:]
		}
	})
}

func (r Result) String() string {
	return fmt.Sprintf("%s [%s]", r.Message, r.Signals)
}
