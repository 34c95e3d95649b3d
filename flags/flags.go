package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/fixture-runner/runner"
)

const EnvVarPrefix = "FIXTURE_RUNNER"

var (
	TestDir = &cli.StringFlag{
		Name:    "testdir",
		Value:   runner.DefaultTestDir,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TESTDIR"),
		Usage:   "Directory whose regular files are run as fixtures (not recursive)",
	}
	Program = &cli.StringFlag{
		Name:    "program",
		Value:   runner.DefaultProgram,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRAM"),
		Usage:   "Program under test, resolved through PATH",
	}
	ProgramArgs = &cli.StringSliceFlag{
		Name:    "program-args",
		Value:   cli.NewStringSlice(runner.DefaultProgramArgs...),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRAM_ARGS"),
		Usage:   "Arguments placed before the fixture path",
	}
	TrailingArgs = &cli.StringSliceFlag{
		Name:    "trailing-args",
		Value:   cli.NewStringSlice(runner.DefaultTrailingArgs...),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TRAILING_ARGS"),
		Usage:   "Arguments placed after the fixture path",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Working directory of the program under test. Defaults to the current directory.",
	}
	Env = &cli.StringSliceFlag{
		Name:    "env",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENV"),
		Usage:   "Extra KEY=VALUE environment entries for the program under test",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to a YAML harness config file. Explicitly set flags take precedence.",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-fixture output logs. Disabled when empty.",
	}
	Summary = &cli.BoolFlag{
		Name:    "summary",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUMMARY"),
		Usage:   "Print a summary table after the run",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	TestDir,
	Program,
	ProgramArgs,
	TrailingArgs,
	WorkDir,
	Env,
	ConfigFile,
	LogDir,
	Summary,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
