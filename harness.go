package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/fixture-runner/logging"
	"github.com/ethereum-optimism/infra/fixture-runner/reporting"
	"github.com/ethereum-optimism/infra/fixture-runner/runner"
	"github.com/ethereum-optimism/infra/fixture-runner/service"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

// Harness implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Harness{}

// Harness runs the fixture directory once and reports the outcome.
type Harness struct {
	config     *Config
	version    string
	runner     *runner.Runner
	fileLogger *logging.FileLogger

	mu      sync.Mutex
	service *service.Service
	outcome *types.RunOutcome
	// pending holds a failed outcome while the metrics server outlives the run
	pending *TestFailureError
	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		return nil, errors.New("logger is required")
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating harness with config",
		"testDir", config.TestDir,
		"program", config.Program,
		"workDir", config.WorkDir,
		"logDir", config.LogDir,
		"metrics", config.MetricsConfig.Enabled)

	var fileLogger *logging.FileLogger
	if config.LogDir != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(config.LogDir, uuid.New().String())
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
	}

	fixtureRunner, err := runner.New(runner.Config{
		TestDir: config.TestDir,
		Builder: runner.NewInvocationBuilder(config.Program, config.ProgramArgs, config.TrailingArgs),
		Executor: runner.NewExecutor(runner.ExecutorConfig{
			WorkDir: config.WorkDir,
			Env:     config.Env,
			Log:     config.Log,
		}),
		Reporter:   reporting.NewConsoleReporter(config.Stdout, config.Stderr, config.ShowSummary),
		FileLogger: fileLogger,
		Log:        config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fixture runner: %w", err)
	}

	return &Harness{
		config:           config,
		version:          version,
		runner:           fixtureRunner,
		fileLogger:       fileLogger,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs every fixture once. A failed run is returned as a *TestFailureError;
// a completed run triggers the shutdown callback. With metrics enabled the harness
// keeps serving /metrics and /healthz until it is stopped, and a failed run is
// returned from Stop instead.
// Start implements the cliapp.Lifecycle interface.
func (h *Harness) Start(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return errors.New("harness already started")
	}
	h.config.Log.Info("Starting fixture-runner", "version", h.version, "testDir", h.config.TestDir)

	if h.config.MetricsConfig.Enabled {
		svc := service.New(h.config.Log)
		if err := svc.Start(h.config.MetricsConfig.ListenAddr, h.config.MetricsConfig.ListenPort); err != nil {
			h.running.Store(false)
			return NewRuntimeError(fmt.Errorf("failed to start metrics server: %w", err))
		}
		h.mu.Lock()
		h.service = svc
		h.mu.Unlock()
	}

	outcome := h.runner.Run(ctx)
	h.mu.Lock()
	h.outcome = outcome
	h.mu.Unlock()

	if h.fileLogger != nil {
		h.config.Log.Info("Fixture logs written", "dir", h.fileLogger.GetDirectory())
	}

	if addr := h.MetricsAddr(); addr != "" {
		h.config.Log.Info("Fixture run finished, serving metrics until interrupted", "addr", addr, "state", outcome.State)
		if outcome.Failed() {
			h.mu.Lock()
			h.pending = NewTestFailureError(outcome)
			h.mu.Unlock()
		}
		return nil
	}

	if outcome.Failed() {
		h.config.Log.Warn("Fixture run failed, returning exit code 1", "cause", outcome.Cause, "index", outcome.Index)
		// The lifecycle is not stopped after a failed start
		if err := h.Stop(ctx); err != nil {
			h.config.Log.Error("Failed to stop harness", "err", err)
		}
		return NewTestFailureError(outcome)
	}

	h.config.Log.Info("Fixture run completed, exiting")
	go func() {
		h.shutdownCallback(nil)
	}()
	return nil
}

// Stop implements the cliapp.Lifecycle interface.
func (h *Harness) Stop(ctx context.Context) error {
	if !h.running.CompareAndSwap(true, false) {
		h.config.Log.Debug("Harness already stopped, nothing to do")
		return nil
	}

	h.mu.Lock()
	svc := h.service
	h.service = nil
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	var errs []error
	if svc != nil {
		if err := svc.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}
	if pending != nil {
		errs = append(errs, pending)
	}

	h.config.Log.Info("fixture-runner stopped")
	return errors.Join(errs...)
}

// Stopped implements the cliapp.Lifecycle interface.
func (h *Harness) Stopped() bool {
	return !h.running.Load()
}

// Outcome returns the outcome of the run, or nil before Start has finished.
func (h *Harness) Outcome() *types.RunOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// MetricsAddr returns the address of the metrics server while it is running.
func (h *Harness) MetricsAddr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.service == nil {
		return ""
	}
	return h.service.Addr()
}
