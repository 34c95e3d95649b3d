package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

var _ ProcessRunner = (*executor)(nil)

// ErrLaunch is matched by every error returned when a child process could not be started.
var ErrLaunch = errors.New("failed to launch program")

// LaunchError reports a program that could not be started at all, as opposed to one that
// ran and exited with a nonzero status.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrLaunch) hold for every *LaunchError.
func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunch
}

// ProcessRunner executes exactly one invocation as a child process.
type ProcessRunner interface {
	// Execute starts the invocation and blocks until the child terminates.
	// A child that could not be started yields a *LaunchError and no result.
	// A child that ran yields a result whatever its exit code.
	Execute(ctx context.Context, inv types.Invocation) (*types.ExecutionResult, error)
}

// ExecutorConfig holds the optional settings of the child processes.
type ExecutorConfig struct {
	WorkDir string   // Working directory of the child, empty for the harness's own
	Env     []string // KEY=VALUE pairs appended to the harness environment
	Log     log.Logger
}

type executor struct {
	workDir string
	env     []string
	log     log.Logger
}

// NewExecutor creates a ProcessRunner that starts programs directly, without a shell.
func NewExecutor(cfg ExecutorConfig) ProcessRunner {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &executor{
		workDir: cfg.WorkDir,
		env:     cfg.Env,
		log:     cfg.Log,
	}
}

func (e *executor) Execute(ctx context.Context, inv types.Invocation) (*types.ExecutionResult, error) {
	if inv.Program == "" {
		return nil, &LaunchError{Program: inv.Program, Err: errors.New("program cannot be empty")}
	}

	// The child is not bound to ctx: a started fixture always runs to completion.
	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Dir = e.workDir
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("Starting child process", "program", inv.Program, "args", inv.Args, "dir", e.workDir)

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Program: inv.Program, Err: err}
	}

	waitErr := cmd.Wait()
	duration := time.Since(startTime)

	if waitErr != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("failed waiting for %s: %w", inv.Program, waitErr)
		}
	}

	result := &types.ExecutionResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: duration,
	}

	e.log.Debug("Child process exited", "program", inv.Program, "exit_code", result.ExitCode,
		"duration", duration, "stdout_bytes", len(result.Stdout), "stderr_bytes", len(result.Stderr))

	return result, nil
}
