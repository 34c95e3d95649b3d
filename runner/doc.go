// Package runner provides the components that run fixtures against the program under test.
//
// The main components are:
//   - InvocationBuilder: turns a fixture path into an argv-style Invocation
//   - ProcessRunner: starts one Invocation as a child process and captures its output
//   - Runner: drives discovery, invocation and execution over every fixture, stopping at
//     the first failure, and returns the run's terminal RunOutcome
//
// Nothing in this package goes through a shell, and nothing in it decides the process
// exit status; callers map the returned RunOutcome onto one.
package runner
