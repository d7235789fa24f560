package compiler_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/heap"
)

func TestCompileSucceeds(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(`print 1 + 2;`, h)
	require.NoError(t, err)
}

func TestCompileErrorReturnFromTopLevel(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(`return 42;`, h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.NotEmpty(t, ce.Diagnostics)
	require.Contains(t, ce.Diagnostics[0], "Can't return from top-level code.")
}

func TestCompileErrorDuplicateLocal(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(`{ var a = 1; var a = 2; }`, h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.Contains(t, ce.Diagnostics[0], "Already a variable with this name in this scope.")
}

func TestCompileErrorInvalidAssignmentTarget(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(`var question = 1; var answer = 2; question + answer = 42;`, h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.Contains(t, ce.Diagnostics[0], "Invalid assignment target.")
}

func TestCompileErrorContinueOutsideLoop(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(`continue;`, h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.Contains(t, ce.Diagnostics[0], "Can't use 'continue' outside of a loop.")
}

func TestCompileErrorUnterminatedString(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile("var s = \"oops;", h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.Contains(t, ce.Diagnostics[0], "unterminated string")
}

func TestCompileErrorMultipleDiagnosticsSurviveSynchronize(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(`
var ;
var ;
`, h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(ce.Diagnostics), 2)
}

func TestCompileTooManyParameters(t *testing.T) {
	h := heap.New()
	var sb strings.Builder
	sb.WriteString("fun f(")
	for i := 0; i < 256; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "p%d", i)
	}
	sb.WriteString(") {}")

	_, err := compiler.Compile(sb.String(), h)
	require.Error(t, err)
	ce, ok := err.(*compiler.Error)
	require.True(t, ok)
	require.Contains(t, strings.Join(ce.Diagnostics, "\n"), "Can't have more than 255 parameters.")
}
