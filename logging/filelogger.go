package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileLogger writes the captured output of every executed fixture to a per-run directory.
type FileLogger struct {
	baseDir string     // Base directory for logs
	logDir  string     // Directory of the current run
	runID   string     // Current run ID
	mu      sync.Mutex // Protects file operations
}

// NewFileLogger creates <baseDir>/testrun-<runID>.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("log directory cannot be empty")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &FileLogger{
		baseDir: baseDir,
		logDir:  logDir,
		runID:   runID,
	}, nil
}

// GetRunID returns the run ID the logger was created for
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetDirectory returns the directory of the current run
func (l *FileLogger) GetDirectory() string {
	return l.logDir
}

// CaseLogPath returns the file the output of fixture index is written to.
func (l *FileLogger) CaseLogPath(index int, tc types.TestCase) string {
	name := unsafeFilenameChars.ReplaceAllString(tc.Name(), "_")
	return filepath.Join(l.logDir, fmt.Sprintf("%03d-%s.log", index, name))
}

// LogCase writes the invocation and captured output of one executed fixture.
// result is nil when the program could not be launched; runErr then holds the reason.
func (l *FileLogger) LogCase(index int, tc types.TestCase, inv types.Invocation, result *types.ExecutionResult, runErr error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Fixture: %s\n", tc.Path)
	fmt.Fprintf(&b, "Command: %s\n", inv.String())
	if runErr != nil {
		fmt.Fprintf(&b, "Launch error: %v\n", runErr)
	}
	if result != nil {
		fmt.Fprintf(&b, "Exit code: %d\n", result.ExitCode)
		fmt.Fprintf(&b, "Duration: %s\n", result.Duration)
		b.WriteString("\n--- stdout ---\n")
		b.WriteString(stripansi.Strip(string(result.Stdout)))
		b.WriteString("\n--- stderr ---\n")
		b.WriteString(stripansi.Strip(string(result.Stderr)))
		b.WriteString("\n")
	}

	path := l.CaseLogPath(index, tc)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write log file %s: %w", path, err)
	}
	return nil
}

// Complete writes the run summary.
func (l *FileLogger) Complete(outcome *types.RunOutcome) error {
	if outcome == nil {
		return fmt.Errorf("outcome cannot be nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Run ID: %s\n", l.runID)
	fmt.Fprintf(&b, "Result: %s\n", outcome.String())
	fmt.Fprintf(&b, "Fixtures: %d discovered, %d attempted\n", outcome.Total, outcome.Attempted)
	fmt.Fprintf(&b, "Duration: %s\n", outcome.Duration)
	if len(outcome.Cases) > 0 {
		b.WriteString("\n")
	}
	for i, c := range outcome.Cases {
		fmt.Fprintf(&b, "%3d  %-8s %s\n", i+1, c.Status, c.Case.Path)
	}

	path := filepath.Join(l.logDir, SummaryFilename)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write summary file %s: %w", path, err)
	}
	return nil
}
