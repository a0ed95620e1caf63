package conversation

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by session stores when no session exists
// for the customer.
var ErrSessionNotFound = errors.New("conversation: session not found")

// InvalidStateTransitionError reports a handler requesting an edge that is
// not in the transition table. This is a bug in handler logic, never a
// transient condition, so it is surfaced and logged rather than retried.
type InvalidStateTransitionError struct {
	Current   State
	Attempted State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("conversation: invalid state transition %s -> %s", e.Current, e.Attempted)
}

// ValidationError marks bad user input (unparseable phone number, missing
// context field). It is recovered with bounded user-facing retries.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("conversation: validation failed for %s: %s", e.Field, e.Reason)
}

// ExternalServiceError wraps a failure talking to a collaborator (payment
// gateway, messaging API, store). The orchestrator converts it into a
// generic apology; retry policy belongs to the collaborator.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("conversation: %s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ErrCascadeDepthExceeded is returned when chained handler execution runs
// past the configured depth cap. The transition table should make this
// unreachable; hitting it means a cycle was introduced by a table edit.
var ErrCascadeDepthExceeded = errors.New("conversation: cascade depth exceeded")
