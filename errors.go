package fixtures

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/fixture-runner/exitcodes"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

// RuntimeError represents an operational error of the harness itself,
// such as an invalid configuration or an unreadable config file.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError is returned when a run ends in the Failed state.
// The diagnostic for it has already been printed by the reporter.
type TestFailureError struct {
	Outcome *types.RunOutcome
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Outcome)
}

// Unwrap returns the discovery or launch error of the outcome, if any
func (e *TestFailureError) Unwrap() error {
	if e.Outcome == nil {
		return nil
	}
	return e.Outcome.Err
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(outcome *types.RunOutcome) *TestFailureError {
	return &TestFailureError{Outcome: outcome}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode maps a run outcome to the process exit status.
func ExitCode(outcome *types.RunOutcome) int {
	if outcome.Completed() {
		return exitcodes.Success
	}
	return exitcodes.Failure
}

// ExitCodeForError maps an error returned by the harness to the process exit status.
func ExitCodeForError(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var testErr *TestFailureError
	if errors.As(err, &testErr) {
		return ExitCode(testErr.Outcome)
	}
	return exitcodes.Failure
}
