package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	fixtures "github.com/ethereum-optimism/infra/fixture-runner"
	"github.com/ethereum-optimism/infra/fixture-runner/exitcodes"
	"github.com/ethereum-optimism/infra/fixture-runner/flags"
	"github.com/ethereum-optimism/infra/fixture-runner/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "fixture-runner"
	app.Usage = "Fail-fast fixture harness for a compiler under test"
	app.Description = "fixture-runner runs every file of a fixture directory through an external program and stops at the first failure"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = handleExitErr

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// handleExitErr maps every error to exit status 1. A failed run has already
// printed its diagnostic, so its exit carries no message.
func handleExitErr(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	if fixtures.IsTestFailureError(err) {
		cli.HandleExitCoder(cli.Exit("", fixtures.ExitCodeForError(err)))
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.Failure))
}

// metricsDebug reports whether metric updates are logged at the given log level.
func metricsDebug(level slog.Level) bool {
	return level <= slog.LevelDebug
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()
	metrics.Debug = metricsDebug(logCfg.Level)

	cfg, err := fixtures.NewConfig(ctx, log)
	if err != nil {
		return nil, fixtures.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	harness, err := fixtures.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, fixtures.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	return harness, nil
}
