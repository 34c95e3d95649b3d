package fixtures

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/fixture-runner/discovery"
	"github.com/ethereum-optimism/infra/fixture-runner/logging"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

// fakeCompiler stands in for the program under test: it fails for any fixture
// whose name contains "fail" and prints its first line otherwise.
const fakeCompiler = `#!/bin/sh
case "$1" in
  *fail*) echo "?SYNTAX ERROR IN $1" >&2; exit 1 ;;
esac
head -n 1 "$1"
`

type testEnv struct {
	config   *Config
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	shutdown chan error
}

func setupHarnessTest(t *testing.T, fixtures map[string]string) *testEnv {
	t.Helper()

	binDir := t.TempDir()
	program := filepath.Join(binDir, "c64mc")
	require.NoError(t, os.WriteFile(program, []byte(fakeCompiler), 0o755))

	testDir := t.TempDir()
	for name, content := range fixtures {
		require.NoError(t, os.WriteFile(filepath.Join(testDir, name), []byte(content), 0o644))
	}

	env := &testEnv{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		shutdown: make(chan error, 1),
	}
	env.config = &Config{
		TestDir:      testDir,
		Program:      program,
		TrailingArgs: []string{"-T"},
		Stdout:       env.stdout,
		Stderr:       env.stderr,
		Log:          log.NewLogger(log.DiscardHandler()),
	}
	return env
}

func (e *testEnv) newHarness(t *testing.T) *Harness {
	t.Helper()
	h, err := New(context.Background(), e.config, "test", func(err error) { e.shutdown <- err })
	require.NoError(t, err)
	return h
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), nil, "test", nil)
	assert.EqualError(t, err, "config is required")

	_, err = New(context.Background(), &Config{TestDir: "tests", Program: "opam"}, "test", nil)
	assert.EqualError(t, err, "logger is required")

	_, err = New(context.Background(), &Config{Program: "opam", Log: log.NewLogger(log.DiscardHandler())}, "test", nil)
	assert.ErrorContains(t, err, "test directory is required")
}

func TestHarness_CompletedRun(t *testing.T) {
	env := setupHarnessTest(t, map[string]string{
		"a.c64": "10 PRINT \"A\"\n",
		"b.c64": "10 PRINT \"B\"\n",
	})
	env.config.ShowSummary = true
	h := env.newHarness(t)

	require.NoError(t, h.Start(context.Background()))

	select {
	case err := <-env.shutdown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback was not called")
	}

	outcome := h.Outcome()
	require.NotNil(t, outcome)
	assert.True(t, outcome.Completed())
	assert.Equal(t, 0, ExitCode(outcome))
	assert.False(t, h.Stopped())

	out := env.stdout.String()
	assert.Contains(t, out, "Running test: "+filepath.Join(env.config.TestDir, "a.c64"))
	assert.Contains(t, out, "10 PRINT \"A\"\n")
	assert.Contains(t, out, "Running test: "+filepath.Join(env.config.TestDir, "b.c64"))
	assert.Contains(t, out, "completed: 2/2 fixtures passed")
	assert.Empty(t, env.stderr.String())

	assert.Error(t, h.Start(context.Background()), "a harness runs once")

	require.NoError(t, h.Stop(context.Background()))
	assert.True(t, h.Stopped())
	require.NoError(t, h.Stop(context.Background()))
}

func TestHarness_FailedRun(t *testing.T) {
	env := setupHarnessTest(t, map[string]string{
		"1-ok.c64":   "10 END\n",
		"2-fail.c64": "10 GOTO\n",
		"3-ok.c64":   "10 END\n",
	})
	h := env.newHarness(t)

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Equal(t, 1, ExitCodeForError(err))
	assert.True(t, h.Stopped())

	outcome := h.Outcome()
	assert.Equal(t, types.CauseNonZeroExit, outcome.Cause)
	assert.Equal(t, 2, outcome.Index)
	assert.Equal(t, 2, outcome.Attempted)

	assert.NotContains(t, env.stdout.String(), "3-ok.c64")
	stderr := env.stderr.String()
	assert.Equal(t, 1, strings.Count(stderr, "Error executing command:"))
	assert.Contains(t, stderr, "?SYNTAX ERROR IN")

	select {
	case <-env.shutdown:
		t.Fatal("shutdown callback must not be called for a failed run")
	default:
	}
}

func TestHarness_DiscoveryError(t *testing.T) {
	env := setupHarnessTest(t, nil)
	env.config.TestDir = filepath.Join(env.config.TestDir, "missing")
	h := env.newHarness(t)

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.True(t, errors.Is(err, discovery.ErrDiscovery))
	assert.Equal(t, types.CauseDiscoveryError, h.Outcome().Cause)
	assert.Contains(t, env.stderr.String(), "failed to discover fixtures")
	assert.Empty(t, env.stdout.String())
}

func TestHarness_LogDir(t *testing.T) {
	env := setupHarnessTest(t, map[string]string{"a.c64": "10 END\n"})
	env.config.LogDir = t.TempDir()
	h := env.newHarness(t)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop(context.Background()) //nolint:errcheck

	runID := h.Outcome().RunID
	runDir := filepath.Join(env.config.LogDir, logging.RunDirectoryPrefix+runID)
	assert.FileExists(t, filepath.Join(runDir, "001-a.c64.log"))
	assert.FileExists(t, filepath.Join(runDir, logging.SummaryFilename))
}

func metricsConfigForTest() opmetrics.CLIConfig {
	return opmetrics.CLIConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1",
		ListenPort: 0,
	}
}

func httpGet(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return string(body)
}

func TestHarness_MetricsServerOutlivesRun(t *testing.T) {
	env := setupHarnessTest(t, map[string]string{"a.c64": "10 END\n"})
	env.config.MetricsConfig = metricsConfigForTest()
	h := env.newHarness(t)

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.Outcome().Completed())

	// The run is over but the server keeps answering until the harness is stopped
	addr := h.MetricsAddr()
	require.NotEmpty(t, addr)
	assert.Contains(t, httpGet(t, "http://"+addr+"/metrics"), "fixtures_runs_total")
	assert.Equal(t, "OK", httpGet(t, "http://"+addr+"/healthz"))
	assert.False(t, h.Stopped())

	select {
	case <-env.shutdown:
		t.Fatal("shutdown callback must wait for an interrupt while metrics are served")
	default:
	}

	require.NoError(t, h.Stop(context.Background()))
	assert.Empty(t, h.MetricsAddr())
	assert.True(t, h.Stopped())
}

func TestHarness_MetricsServerFailedRun(t *testing.T) {
	env := setupHarnessTest(t, map[string]string{
		"1-ok.c64":   "10 END\n",
		"2-fail.c64": "10 GOTO\n",
	})
	env.config.MetricsConfig = metricsConfigForTest()
	h := env.newHarness(t)

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.Outcome().Failed())
	addr := h.MetricsAddr()
	require.NotEmpty(t, addr)
	assert.Contains(t, httpGet(t, "http://"+addr+"/metrics"), "fixtures_runs_total")

	// The failure is reported when the harness stops
	err := h.Stop(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Equal(t, 1, ExitCodeForError(err))
	assert.Equal(t, 1, strings.Count(env.stderr.String(), "Error executing command:"))

	require.NoError(t, h.Stop(context.Background()))
}
