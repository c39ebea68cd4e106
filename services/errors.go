package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the request id is unknown to the store.
	ErrNotFound = errors.New("request not found")

	// ErrAlreadyProcessed means the request left the pending state before
	// this call persisted its transition. No side effects were run.
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrInvalidTransition means the requested status change is not part of
	// the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a precondition failure. No collaborator is called
// when a ValidationError is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// CollaboratorError wraps a failure from a downstream collaborator. Reverted
// is true when the failure triggered the compensating transition back to
// pending.
type CollaboratorError struct {
	Collaborator string
	Err          error
	Reverted     bool
}

func (e *CollaboratorError) Error() string {
	if e.Reverted {
		return fmt.Sprintf("%s failed (request reverted to pending): %v", e.Collaborator, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
