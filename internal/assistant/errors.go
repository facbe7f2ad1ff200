package assistant

import (
	"errors"
	"fmt"
	"strings"
)

// The turn pipeline surfaces five error kinds. All of them propagate up to
// the channel adapter, which alone decides whether to show a user-safe
// fallback or end the session.

// ValidationError reports missing or malformed caller input. Not retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "assistant: invalid input: " + e.Reason
}

// DecisionError reports a tag mapping that reached no leaf of the decision
// tree. An operator-visible defect, never silently defaulted.
type DecisionError struct {
	Path   []string
	Reason string
}

func (e *DecisionError) Error() string {
	if len(e.Path) == 0 {
		return "assistant: decision failed: " + e.Reason
	}
	return fmt.Sprintf("assistant: decision failed at %s: %s", strings.Join(e.Path, "/"), e.Reason)
}

// TemplateError reports a rendering failure: missing template, syntax
// error, or an unresolved context reference. Fatal to the turn.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("assistant: template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// PersistenceError reports a store failure. Retryable at the adapter's
// discretion; the in-memory response may still be returned to the user.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("assistant: persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TimeoutError reports a suspending step that exceeded its caller-supplied
// deadline. Retryable.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("assistant: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout marks the error as retryable for callers that probe with a
// Timeout() bool interface.
func (e *TimeoutError) Timeout() bool { return true }

// FallbackText maps a failed turn to the conversational reply the user
// should hear instead of a transport error. Returns false for failures
// that have no user-safe wording (timeouts, infrastructure faults), which
// adapters surface as transport errors.
func FallbackText(err error) (string, bool) {
	var (
		validation *ValidationError
		decision   *DecisionError
		tmpl       *TemplateError
	)
	switch {
	case errors.As(err, &validation):
		return "I'm sorry, I couldn't make sense of that request.", true
	case errors.As(err, &decision):
		return "I'm sorry, I didn't understand that.", true
	case errors.As(err, &tmpl):
		return "I'm sorry, something went wrong while preparing my answer.", true
	}
	return "", false
}
