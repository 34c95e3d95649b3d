// Package exitcodes defines the exit codes used by fixture-runner.
package exitcodes

// Exit code constants used by fixture-runner.
//
// * Success (0): every discovered fixture ran and exited 0
// * Failure (1): discovery failed, a fixture could not be launched, a fixture
// exited nonzero, or the harness itself could not be configured
const (
	Success = 0 // All fixtures pass
	Failure = 1 // Any failure
)
