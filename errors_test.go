package fixtures

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/fixture-runner/discovery"
	"github.com/ethereum-optimism/infra/fixture-runner/exitcodes"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

func TestErrorTypes(t *testing.T) {
	runtimeErr := NewRuntimeError(errors.New("bad config"))
	assert.True(t, IsRuntimeError(runtimeErr))
	assert.True(t, IsRuntimeError(fmt.Errorf("wrapped: %w", runtimeErr)))
	assert.False(t, IsTestFailureError(runtimeErr))
	assert.Equal(t, "runtime error: bad config", runtimeErr.Error())

	outcome := &types.RunOutcome{
		State: types.RunStateFailed,
		Cause: types.CauseDiscoveryError,
		Err:   &discovery.Error{Dir: "tests", Err: os.ErrNotExist},
	}
	testErr := NewTestFailureError(outcome)
	assert.True(t, IsTestFailureError(testErr))
	assert.True(t, IsTestFailureError(errors.Join(errors.New("failed to start"), testErr)))
	assert.False(t, IsRuntimeError(testErr))
	assert.True(t, errors.Is(testErr, discovery.ErrDiscovery))
	assert.Contains(t, testErr.Error(), "test failure: failed (discovery_error)")

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
	assert.NoError(t, NewTestFailureError(nil).Unwrap())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		outcome  *types.RunOutcome
		expected int
	}{
		{"completed", &types.RunOutcome{State: types.RunStateCompleted}, exitcodes.Success},
		{"discovery error", &types.RunOutcome{State: types.RunStateFailed, Cause: types.CauseDiscoveryError}, exitcodes.Failure},
		{"launch error", &types.RunOutcome{State: types.RunStateFailed, Cause: types.CauseLaunchError}, exitcodes.Failure},
		{"nonzero exit", &types.RunOutcome{State: types.RunStateFailed, Cause: types.CauseNonZeroExit}, exitcodes.Failure},
		{"no outcome", nil, exitcodes.Failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCode(tt.outcome))
		})
	}
}

func TestExitCodeForError(t *testing.T) {
	failed := &types.RunOutcome{State: types.RunStateFailed, Cause: types.CauseNonZeroExit}

	assert.Equal(t, 0, ExitCodeForError(nil))
	assert.Equal(t, 1, ExitCodeForError(NewTestFailureError(failed)))
	assert.Equal(t, 1, ExitCodeForError(fmt.Errorf("failed to start: %w", NewTestFailureError(failed))))
	assert.Equal(t, 1, ExitCodeForError(NewRuntimeError(errors.New("bad config"))))
	assert.Equal(t, 1, ExitCodeForError(errors.New("anything else")))
}
