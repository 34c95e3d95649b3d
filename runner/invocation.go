package runner

import (
	"slices"

	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

// InvocationBuilder builds the invocation of the program under test for one fixture.
type InvocationBuilder struct {
	program  string
	prefix   []string
	trailing []string
}

// NewInvocationBuilder returns a builder producing program prefix... <fixture> trailing...
func NewInvocationBuilder(program string, prefix, trailing []string) *InvocationBuilder {
	return &InvocationBuilder{
		program:  program,
		prefix:   slices.Clone(prefix),
		trailing: slices.Clone(trailing),
	}
}

// NewDefaultInvocationBuilder returns a builder for `opam exec -- dune exec C64MC <fixture> -T`.
func NewDefaultInvocationBuilder() *InvocationBuilder {
	return NewInvocationBuilder(DefaultProgram, DefaultProgramArgs, DefaultTrailingArgs)
}

// Build returns the invocation for tc. The fixture path is always a single argv token,
// whatever characters it contains.
func (b *InvocationBuilder) Build(tc types.TestCase) types.Invocation {
	args := make([]string, 0, len(b.prefix)+1+len(b.trailing))
	args = append(args, b.prefix...)
	args = append(args, tc.Path)
	args = append(args, b.trailing...)

	return types.Invocation{
		Program: b.program,
		Args:    args,
	}
}

// Program returns the program every built invocation launches.
func (b *InvocationBuilder) Program() string {
	return b.program
}
