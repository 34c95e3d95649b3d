package reporting

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/fixture-runner/runner"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

var _ runner.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter writes run progress to stdout and the single failure diagnostic to stderr.
type ConsoleReporter struct {
	stdout      io.Writer
	stderr      io.Writer
	showSummary bool
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter(stdout, stderr io.Writer, showSummary bool) *ConsoleReporter {
	return &ConsoleReporter{
		stdout:      stdout,
		stderr:      stderr,
		showSummary: showSummary,
	}
}

func (r *ConsoleReporter) RunStarted(string, int) {}

// CaseStarted prints the progress line for a fixture before it is executed.
func (r *ConsoleReporter) CaseStarted(_, _ int, tc types.TestCase, _ types.Invocation) {
	fmt.Fprintf(r.stdout, "Running test: %s\n", tc.Path)
}

// CasePassed echoes the captured stdout of a passing fixture verbatim.
func (r *ConsoleReporter) CasePassed(_ int, _ types.TestCase, result *types.ExecutionResult) {
	if result == nil || len(result.Stdout) == 0 {
		return
	}
	r.stdout.Write(result.Stdout) //nolint:errcheck
}

// RunFinished prints the summary table and, for a failed run, exactly one diagnostic.
func (r *ConsoleReporter) RunFinished(outcome *types.RunOutcome) {
	if outcome == nil {
		return
	}
	if r.showSummary && len(outcome.Cases) > 0 {
		r.printSummary(outcome)
	}
	if outcome.Failed() {
		r.printDiagnostic(outcome)
	}
}

func (r *ConsoleReporter) printDiagnostic(outcome *types.RunOutcome) {
	switch outcome.Cause {
	case types.CauseNonZeroExit:
		command := outcome.At.Path
		if outcome.Invocation != nil {
			command = outcome.Invocation.String()
		}
		fmt.Fprintf(r.stderr, "Error executing command: %s\n", command)
		if outcome.Result != nil && len(outcome.Result.Stderr) > 0 {
			r.stderr.Write(outcome.Result.Stderr) //nolint:errcheck
			if !bytes.HasSuffix(outcome.Result.Stderr, []byte("\n")) {
				fmt.Fprintln(r.stderr)
			}
		}
	default:
		fmt.Fprintln(r.stderr, outcome.Err)
	}
}

func (r *ConsoleReporter) printSummary(outcome *types.RunOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(r.stdout)
	t.SetTitle(fmt.Sprintf("Fixture Results (%s)", formatDuration(outcome.Duration)))

	t.AppendHeader(table.Row{"#", "Fixture", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Fixture", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	passed := 0
	for i, c := range outcome.Cases {
		duration := "-"
		if c.Status != types.TestStatusNotRun {
			duration = formatDuration(c.Duration)
		}
		if c.Status == types.TestStatusPass {
			passed++
		}
		t.AppendRow(table.Row{i + 1, c.Case.Path, duration, getResultString(c.Status)})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("TOTAL %d/%d passed", passed, outcome.Total),
		formatDuration(outcome.Duration),
		getResultString(runStatus(outcome)),
	})
	style := table.StyleLight
	style.Title.Format = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	t.Render()

	fmt.Fprintln(r.stdout, outcome.String())
}

func runStatus(outcome *types.RunOutcome) types.TestStatus {
	if outcome.Completed() {
		return types.TestStatusPass
	}
	return types.TestStatusFail
}

// getResultString returns a symbol-prefixed string for a fixture status
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusNotRun:
		return "- not run"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
