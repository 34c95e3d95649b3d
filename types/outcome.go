package types

import (
	"fmt"
	"time"
)

// FailureCause classifies the first failure of a run
type FailureCause string

const (
	CauseNone           FailureCause = ""
	CauseDiscoveryError FailureCause = "discovery_error"
	CauseLaunchError    FailureCause = "launch_error"
	CauseNonZeroExit    FailureCause = "nonzero_exit"
)

// RunState is a state of the fail-fast run state machine
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateFailed    RunState = "failed"
	RunStateCompleted RunState = "completed"
)

// TestStatus is the per-fixture status shown in summaries and metrics
type TestStatus string

const (
	TestStatusPass   TestStatus = "pass"
	TestStatusFail   TestStatus = "fail"
	TestStatusNotRun TestStatus = "not_run"
)

// CaseResult records what happened to one discovered fixture during a run.
type CaseResult struct {
	Case     TestCase
	Status   TestStatus
	Duration time.Duration
}

// RunOutcome is the terminal state of one run. It is computed once by the
// runner and decides the process exit status; nothing else does.
type RunOutcome struct {
	RunID string
	State RunState
	Cause FailureCause

	// At is the fixture the run failed on. Index is its 1-based position in
	// discovery order, or 0 when discovery itself failed.
	At    TestCase
	Index int

	// Invocation is the command the failing fixture was launched with.
	Invocation *Invocation

	// Err holds the discovery or launch error. It is nil for NonZeroExit.
	Err error
	// Result holds the failing execution for NonZeroExit.
	Result *ExecutionResult

	Total     int // Number of discovered fixtures
	Attempted int // Number of fixtures handed to the process runner
	Cases     []CaseResult
	Duration  time.Duration
}

// Completed reports whether every discovered fixture ran and exited 0.
func (o *RunOutcome) Completed() bool {
	return o != nil && o.State == RunStateCompleted
}

// Failed reports whether the run stopped on a failure.
func (o *RunOutcome) Failed() bool {
	return o != nil && o.State == RunStateFailed
}

func (o *RunOutcome) String() string {
	if o == nil {
		return "no outcome"
	}
	switch o.State {
	case RunStateCompleted:
		return fmt.Sprintf("completed: %d/%d fixtures passed", o.Attempted, o.Total)
	case RunStateFailed:
		switch o.Cause {
		case CauseDiscoveryError:
			return fmt.Sprintf("failed (%s): %v", o.Cause, o.Err)
		case CauseNonZeroExit:
			exitCode := -1
			if o.Result != nil {
				exitCode = o.Result.ExitCode
			}
			return fmt.Sprintf("failed (%s) at fixture %d/%d %s: exit code %d", o.Cause, o.Index, o.Total, o.At.Path, exitCode)
		default:
			return fmt.Sprintf("failed (%s) at fixture %d/%d %s: %v", o.Cause, o.Index, o.Total, o.At.Path, o.Err)
		}
	default:
		return string(o.State)
	}
}
