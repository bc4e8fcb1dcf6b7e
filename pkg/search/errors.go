// CLAUDE:SUMMARY Lookup failure type carrying an optional structured body message, and the normaliser that turns any failure into display text.
package search

import (
	"errors"
	"fmt"
)

// FallbackMessage is shown when a failure carries no usable message.
const FallbackMessage = "An error occurred while searching. Please try again."

var (
	// ErrBusy is returned by Submit while a previous submission is in flight.
	ErrBusy = errors.New("search already in progress")
	// ErrStale is returned by Submit when its result was superseded by a mode
	// change or newer submission and therefore not applied.
	ErrStale = errors.New("search result superseded")
)

// ErrorBody is the structured part of a lookup failure.
type ErrorBody struct {
	Message string `json:"message"`
}

// LookupError wraps a failure from a LookupService call.
type LookupError struct {
	Op     string // "abn" or "name"
	Status int    // upstream status code, 0 when unknown
	Body   *ErrorBody
	Err    error
}

func (e *LookupError) Error() string {
	msg, _ := e.Message()
	switch {
	case msg != "" && e.Err != nil:
		return fmt.Sprintf("lookup %s: %s: %v", e.Op, msg, e.Err)
	case msg != "":
		return fmt.Sprintf("lookup %s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("lookup %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("lookup %s failed", e.Op)
	}
}

func (e *LookupError) Unwrap() error { return e.Err }

// Message returns the body message, if any.
func (e *LookupError) Message() (string, bool) {
	if e == nil || e.Body == nil || e.Body.Message == "" {
		return "", false
	}
	return e.Body.Message, true
}

// ExtractMessage returns the display text for a lookup failure: the body
// message when one is present anywhere in the chain, FallbackMessage otherwise.
func ExtractMessage(err error) string {
	var le *LookupError
	if errors.As(err, &le) {
		if msg, ok := le.Message(); ok {
			return msg
		}
	}
	return FallbackMessage
}
