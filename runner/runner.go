package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/fixture-runner/discovery"
	"github.com/ethereum-optimism/infra/fixture-runner/logging"
	"github.com/ethereum-optimism/infra/fixture-runner/metrics"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

// Reporter receives the progress of a run. Implementations must not block for long:
// they are called inline between child processes.
type Reporter interface {
	RunStarted(runID string, total int)
	CaseStarted(index, total int, tc types.TestCase, inv types.Invocation)
	CasePassed(index int, tc types.TestCase, result *types.ExecutionResult)
	RunFinished(outcome *types.RunOutcome)
}

// DiscoverFunc lists the fixtures of a directory
type DiscoverFunc func(dir string) ([]types.TestCase, error)

// Config holds configuration for creating a new runner
type Config struct {
	TestDir    string
	Builder    *InvocationBuilder
	Executor   ProcessRunner
	Reporter   Reporter
	FileLogger *logging.FileLogger // Optional, stores per-fixture output
	Discover   DiscoverFunc        // Defaults to discovery.DiscoverFixtures
	Log        log.Logger
}

// Runner runs every fixture of a directory in order and stops at the first failure.
type Runner struct {
	testDir    string
	builder    *InvocationBuilder
	executor   ProcessRunner
	reporter   Reporter
	fileLogger *logging.FileLogger
	discover   DiscoverFunc
	log        log.Logger
	tracer     trace.Tracer
}

// New creates a new runner instance
func New(cfg Config) (*Runner, error) {
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("test directory is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("invocation builder is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("reporter is required")
	}
	if cfg.Discover == nil {
		cfg.Discover = discovery.DiscoverFixtures
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	cfg.Log.Debug("runner.New()", "testDir", cfg.TestDir, "program", cfg.Builder.Program(),
		"fileLogger", cfg.FileLogger != nil)

	return &Runner{
		testDir:    cfg.TestDir,
		builder:    cfg.Builder,
		executor:   cfg.Executor,
		reporter:   cfg.Reporter,
		fileLogger: cfg.FileLogger,
		discover:   cfg.Discover,
		log:        cfg.Log,
		tracer:     otel.Tracer("fixture runner"),
	}, nil
}

// Run discovers the fixtures and executes them one at a time, in discovery order.
//
// The run is a state machine over the discovered fixtures:
//
//	Idle -> Running(1)                    discovery succeeded
//	Idle -> Failed(DiscoveryError)        discovery failed
//	Running(i) -> Running(i+1)            fixture i exited 0 and is not the last one
//	Running(i) -> Completed               fixture i exited 0 and is the last one
//	Running(i) -> Failed(LaunchError, i)  fixture i could not be started
//	Running(i) -> Failed(NonZeroExit, i)  fixture i exited nonzero
//
// Failed and Completed are terminal: no fixture after a failing one is ever started.
// Run never exits the process; the returned outcome is the only result.
func (r *Runner) Run(ctx context.Context) *types.RunOutcome {
	runID := uuid.New().String()
	if r.fileLogger != nil {
		runID = r.fileLogger.GetRunID()
	}
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "fixture run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("test_dir", r.testDir),
	))
	defer span.End()

	outcome := &types.RunOutcome{
		RunID: runID,
		State: types.RunStateIdle,
	}

	fixtures, err := r.discover(r.testDir)
	if err != nil {
		r.log.Error("Fixture discovery failed", "dir", r.testDir, "run_id", runID, "err", err)
		metrics.RecordErrorDetails("discovery", err)
		outcome.State = types.RunStateFailed
		outcome.Cause = types.CauseDiscoveryError
		outcome.Err = err
		return r.finish(span, outcome, start)
	}

	outcome.Total = len(fixtures)
	outcome.Cases = make([]types.CaseResult, len(fixtures))
	for i, tc := range fixtures {
		outcome.Cases[i] = types.CaseResult{Case: tc, Status: types.TestStatusNotRun}
	}

	r.log.Info("Discovered fixtures", "dir", r.testDir, "count", len(fixtures), "run_id", runID)
	r.reporter.RunStarted(runID, len(fixtures))

	outcome.State = types.RunStateRunning
	if len(fixtures) == 0 {
		outcome.State = types.RunStateCompleted
	}
	for outcome.State == types.RunStateRunning {
		r.step(ctx, fixtures, outcome)
	}

	return r.finish(span, outcome, start)
}

// step runs fixture Attempted+1 and applies the transition out of Running(i).
func (r *Runner) step(ctx context.Context, fixtures []types.TestCase, outcome *types.RunOutcome) {
	index := outcome.Attempted + 1
	tc := fixtures[index-1]
	outcome.Attempted = index

	inv := r.builder.Build(tc)
	r.reporter.CaseStarted(index, outcome.Total, tc, inv)

	result, err := r.runCase(ctx, index, outcome.Total, tc, inv, outcome.RunID)

	switch {
	case err != nil:
		outcome.Cases[index-1].Status = types.TestStatusFail
		r.fail(outcome, types.CauseLaunchError, index, tc, inv, err, nil)
	case result.ExitCode != 0:
		outcome.Cases[index-1].Status = types.TestStatusFail
		outcome.Cases[index-1].Duration = result.Duration
		r.fail(outcome, types.CauseNonZeroExit, index, tc, inv, nil, result)
	default:
		outcome.Cases[index-1].Status = types.TestStatusPass
		outcome.Cases[index-1].Duration = result.Duration
		r.reporter.CasePassed(index, tc, result)
		if index == outcome.Total {
			outcome.State = types.RunStateCompleted
		}
	}
	metrics.RecordCase(outcome.Cases[index-1].Status, outcome.Cases[index-1].Duration)
}

func (r *Runner) fail(outcome *types.RunOutcome, cause types.FailureCause, index int, tc types.TestCase, inv types.Invocation, err error, result *types.ExecutionResult) {
	outcome.State = types.RunStateFailed
	outcome.Cause = cause
	outcome.Index = index
	outcome.At = tc
	outcome.Invocation = &inv
	outcome.Err = err
	outcome.Result = result
}

// runCase executes one fixture inside its own span and stores its output when a file logger is set.
func (r *Runner) runCase(ctx context.Context, index, total int, tc types.TestCase, inv types.Invocation, runID string) (*types.ExecutionResult, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("fixture %s", tc.Name()), trace.WithAttributes(
		attribute.String("path", tc.Path),
		attribute.Int("index", index),
		attribute.StringSlice("argv", inv.Argv()),
	))
	defer span.End()

	r.log.Info("Running fixture", "index", index, "total", total, "path", tc.Path, "run_id", runID)

	result, err := r.executor.Execute(ctx, inv)
	if err != nil {
		r.log.Warn("Fixture could not be launched", "index", index, "path", tc.Path, "program", inv.Program, "err", err)
		metrics.RecordErrorDetails("launch", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch error")
	} else {
		span.SetAttributes(attribute.Int("exit_code", result.ExitCode))
		if result.ExitCode != 0 {
			r.log.Warn("Fixture failed", "index", index, "path", tc.Path, "exit_code", result.ExitCode, "duration", result.Duration)
			span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", result.ExitCode))
		} else {
			r.log.Info("Fixture passed", "index", index, "path", tc.Path, "duration", result.Duration)
		}
	}

	if r.fileLogger != nil {
		if logErr := r.fileLogger.LogCase(index, tc, inv, result, err); logErr != nil {
			r.log.Error("Failed to write fixture log", "path", tc.Path, "err", logErr)
			metrics.RecordErrorDetails("filelogger", logErr)
		}
	}

	return result, err
}

func (r *Runner) finish(span trace.Span, outcome *types.RunOutcome, start time.Time) *types.RunOutcome {
	outcome.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("state", string(outcome.State)),
		attribute.Int("fixtures", outcome.Total),
		attribute.Int("attempted", outcome.Attempted),
	)
	if outcome.Failed() {
		span.SetStatus(codes.Error, string(outcome.Cause))
	}

	metrics.RecordRun(outcome)
	for _, c := range outcome.Cases {
		if c.Status == types.TestStatusNotRun {
			metrics.RecordCase(c.Status, 0)
		}
	}

	if r.fileLogger != nil {
		if err := r.fileLogger.Complete(outcome); err != nil {
			r.log.Error("Failed to write run summary", "dir", r.fileLogger.GetDirectory(), "err", err)
		}
	}

	r.log.Info("Fixture run finished", "run_id", outcome.RunID, "state", outcome.State, "cause", outcome.Cause,
		"attempted", outcome.Attempted, "total", outcome.Total, "duration", outcome.Duration)
	r.reporter.RunFinished(outcome)

	return outcome
}
