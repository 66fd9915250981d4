package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSnapshotNotFound is returned when a key is absent from a storage backend.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrNavigationBlocked is returned when a navigation precondition does not hold.
// It is not a failure: the wizard simply stays where it is.
var ErrNavigationBlocked = errors.New("navigation blocked")

// ErrCompleted is returned by any operation on a wizard that already submitted.
var ErrCompleted = errors.New("wizard already completed")

// ErrIncomplete is matched by IncompleteError.
var ErrIncomplete = errors.New("wizard is incomplete")

// ErrSubmissionFailed is matched by SubmissionError.
var ErrSubmissionFailed = errors.New("submission failed")

// ErrStepOutOfRange is returned when a step index does not exist.
var ErrStepOutOfRange = errors.New("step index out of range")

// NavigationError explains why a move was refused.
type NavigationError struct {
	From   int
	To     int
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("cannot move from step %d to step %d: %s", e.From+1, e.To+1, e.Reason)
}

func (e *NavigationError) Unwrap() error { return ErrNavigationBlocked }

// IncompleteError names the steps that never recorded a payload.
type IncompleteError struct {
	Missing []StepRef
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = m.String()
	}
	return "please complete " + strings.Join(names, ", ") + " before submitting"
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

// FieldError is one structured validation message returned by the backend.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RemoteValidationError is returned by a Submitter when the backend rejected the
// payload with per-field detail.
type RemoteValidationError struct {
	Status int
	Fields []FieldError
}

func (e *RemoteValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Field == "" {
			parts[i] = f.Message
			continue
		}
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("validation failed (status %d): %s", e.Status, strings.Join(parts, "; "))
}

// GenericSubmissionMessage is shown when the backend failure carries no detail.
const GenericSubmissionMessage = "Failed to save your data. Please try again."

// SubmissionError is what the coordinator surfaces when the backend refused or
// could not be reached. The collected data is left untouched.
type SubmissionError struct {
	// Message is user-facing.
	Message string
	// Fields is set verbatim when the backend returned structured detail.
	Fields []FieldError
	Cause  error
}

func (e *SubmissionError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SubmissionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSubmissionFailed}
	}
	return []error{ErrSubmissionFailed, e.Cause}
}

// HasFieldErrors reports whether per-field detail is available.
func (e *SubmissionError) HasFieldErrors() bool {
	return len(e.Fields) > 0
}
