package types

import (
	"path/filepath"
	"strings"
	"time"
)

// TestCase identifies one fixture file the program under test is run against.
type TestCase struct {
	Path string
}

// Name returns the base name of the fixture file.
func (tc TestCase) Name() string {
	return filepath.Base(tc.Path)
}

func (tc TestCase) String() string {
	return tc.Path
}

// Invocation is a fully resolved, shell-free description of one child process launch.
// Program is resolved through PATH; Args are passed to the child as discrete argv tokens.
type Invocation struct {
	Program string
	Args    []string
}

// Argv returns a copy of the full argument vector, program first.
func (i Invocation) Argv() []string {
	argv := make([]string, 0, len(i.Args)+1)
	argv = append(argv, i.Program)
	return append(argv, i.Args...)
}

// String renders the invocation as a POSIX-quoted command line.
// It is meant for logs and diagnostics only and is never executed.
func (i Invocation) String() string {
	argv := i.Argv()
	quoted := make([]string, len(argv))
	for n, arg := range argv {
		quoted[n] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

const shellSafeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./=:,+@%"

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := true
	for _, r := range arg {
		if !strings.ContainsRune(shellSafeChars, r) {
			safe = false
			break
		}
	}
	if safe {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// ExecutionResult captures the termination state and output of one finished child process.
type ExecutionResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the child exited with status 0.
func (r *ExecutionResult) Success() bool {
	return r != nil && r.ExitCode == 0
}
