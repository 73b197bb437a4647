package collab

import (
	"errors"
	"fmt"
)

// AcquireError reports that a resource could not be acquired.
// Scenario-fatal: the harness records it as an Error outcome and runs no
// further steps for that scenario.
type AcquireError struct {
	// Spec is the resource that was requested.
	Spec ResourceSpec

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *AcquireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire %s/%s: %s: %v", e.Spec.Kind, e.Spec.ID, e.Message, e.Err)
	}
	return fmt.Sprintf("acquire %s/%s: %s", e.Spec.Kind, e.Spec.ID, e.Message)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// NewAcquireError creates an AcquireError for the given spec.
func NewAcquireError(spec ResourceSpec, message string) *AcquireError {
	return &AcquireError{Spec: spec, Message: message}
}

// CommandError reports that a command was rejected synchronously.
// Scenario-fatal, like AcquireError.
type CommandError struct {
	Command string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %s rejected: %s: %v", e.Command, e.Message, e.Err)
	}
	return fmt.Sprintf("command %s rejected: %s", e.Command, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError for the given command name.
func NewCommandError(command, message string) *CommandError {
	return &CommandError{Command: command, Message: message}
}

// ReleaseError reports that cleanup failed. It is logged by the resource
// scope and never escalated, so one scenario's teardown failure cannot
// mask its primary outcome or cascade into the next scenario.
type ReleaseError struct {
	HandleID string
	Err      error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.HandleID, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// IsAcquireError reports whether err is (or wraps) an AcquireError.
func IsAcquireError(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae)
}

// IsCommandError reports whether err is (or wraps) a CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}
