package fixtures

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/fixture-runner/flags"
)

// Config holds the application configuration
type Config struct {
	TestDir       string
	Program       string
	ProgramArgs   []string // Arguments placed before the fixture path
	TrailingArgs  []string // Arguments placed after the fixture path
	WorkDir       string   // Working directory of the program under test, empty for the current one
	Env           []string // Extra KEY=VALUE entries for the program under test
	LogDir        string   // Directory to store per-fixture logs, empty to disable
	ShowSummary   bool
	MetricsConfig opmetrics.CLIConfig
	Stdout        io.Writer
	Stderr        io.Writer
	Log           log.Logger
}

// FileConfig is the YAML harness config. Every field is optional.
type FileConfig struct {
	TestDir      string   `yaml:"testdir"`
	Program      string   `yaml:"program"`
	ProgramArgs  []string `yaml:"program_args"`
	TrailingArgs []string `yaml:"trailing_args"`
	WorkDir      string   `yaml:"workdir"`
	Env          []string `yaml:"env"`
	LogDir       string   `yaml:"logdir"`
	Summary      *bool    `yaml:"summary"`
}

// LoadFileConfig reads and strictly decodes a YAML harness config.
func LoadFileConfig(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// NewConfig creates a new Config from cli context.
// Precedence is: explicitly set flag or env var, then the config file, then the flag default.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	file := &FileConfig{}
	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		var err error
		file, err = LoadFileConfig(path)
		if err != nil {
			return nil, err
		}
	}

	pickString := func(flag *cli.StringFlag, fromFile string) string {
		if ctx.IsSet(flag.Name) || fromFile == "" {
			return ctx.String(flag.Name)
		}
		return fromFile
	}
	pickSlice := func(flag *cli.StringSliceFlag, fromFile []string) []string {
		if ctx.IsSet(flag.Name) || fromFile == nil {
			return argList(ctx.StringSlice(flag.Name))
		}
		return slices.Clone(fromFile)
	}

	cfg := &Config{
		TestDir:       pickString(flags.TestDir, file.TestDir),
		Program:       pickString(flags.Program, file.Program),
		ProgramArgs:   pickSlice(flags.ProgramArgs, file.ProgramArgs),
		TrailingArgs:  pickSlice(flags.TrailingArgs, file.TrailingArgs),
		WorkDir:       pickString(flags.WorkDir, file.WorkDir),
		Env:           pickSlice(flags.Env, file.Env),
		LogDir:        pickString(flags.LogDir, file.LogDir),
		ShowSummary:   ctx.Bool(flags.Summary.Name),
		MetricsConfig: opmetrics.ReadCLIConfig(ctx),
		Stdout:        ctx.App.Writer,
		Stderr:        ctx.App.ErrWriter,
		Log:           log,
	}
	if !ctx.IsSet(flags.Summary.Name) && file.Summary != nil {
		cfg.ShowSummary = *file.Summary
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// argList copies a slice flag value. A flag set to the empty string, such as
// --program-args= or FIXTURE_RUNNER_PROGRAM_ARGS=, parses as [""] and means no arguments.
func argList(values []string) []string {
	if len(values) == 1 && values[0] == "" {
		return []string{}
	}
	return slices.Clone(values)
}

// Check validates the config
func (c *Config) Check() error {
	if c.TestDir == "" {
		return errors.New("test directory is required")
	}
	if c.Program == "" {
		return errors.New("program is required")
	}
	if slices.Contains(c.ProgramArgs, "") {
		return fmt.Errorf("invalid program args %q: empty argument", c.ProgramArgs)
	}
	if slices.Contains(c.TrailingArgs, "") {
		return fmt.Errorf("invalid trailing args %q: empty argument", c.TrailingArgs)
	}
	for _, entry := range c.Env {
		if key, _, ok := strings.Cut(entry, "="); !ok || key == "" {
			return fmt.Errorf("invalid env entry %q: expected KEY=VALUE", entry)
		}
	}
	if err := c.MetricsConfig.Check(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	return nil
}

// resolvePaths makes the working directory and log directory absolute. The test
// directory keeps its relative form for progress output unless the program runs
// in another working directory, where a relative fixture path would not resolve.
func (c *Config) resolvePaths() error {
	if c.WorkDir != "" {
		absWorkDir, err := filepath.Abs(c.WorkDir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for working directory '%s': %w", c.WorkDir, err)
		}
		c.WorkDir = absWorkDir

		absTestDir, err := filepath.Abs(c.TestDir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", c.TestDir, err)
		}
		c.TestDir = absTestDir
	}
	if c.LogDir != "" {
		absLogDir, err := filepath.Abs(c.LogDir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", c.LogDir, err)
		}
		c.LogDir = absLogDir
	}
	return nil
}
