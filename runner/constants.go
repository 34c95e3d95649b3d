package runner

const (
	// DefaultTestDir is the fixture directory, relative to the working directory
	DefaultTestDir = "tests"

	// DefaultProgram is the program under test, resolved through PATH
	DefaultProgram = "opam"

	// TestModeFlag puts the compiler under test into test mode
	TestModeFlag = "-T"
)

// DefaultProgramArgs are passed before the fixture path.
var DefaultProgramArgs = []string{"exec", "--", "dune", "exec", "C64MC"}

// DefaultTrailingArgs are passed after the fixture path.
var DefaultTrailingArgs = []string{TestModeFlag}
