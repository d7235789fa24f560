package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	for k := Kind(0); k < maxKind; k++ {
		require.NotEmpty(t, k.String(), "kind %d has no string form", k)
	}
	require.Equal(t, "unknown", Kind(-1).String())
	require.Equal(t, "unknown", maxKind.String())
}

func TestLookupIdent(t *testing.T) {
	cases := map[string]Kind{
		"and":      AND,
		"class":    CLASS,
		"else":     ELSE,
		"false":    FALSE,
		"for":      FOR,
		"fun":      FUN,
		"if":       IF,
		"nil":      NIL,
		"or":       OR,
		"print":    PRINT,
		"return":   RETURN,
		"super":    SUPER,
		"this":     THIS,
		"true":     TRUE,
		"var":      VAR,
		"while":    WHILE,
		"switch":   SWITCH,
		"case":     CASE,
		"default":  DEFAULT,
		"continue": CONTINUE,
		"foo":      IDENT,
		"_bar9":    IDENT,
	}
	for ident, want := range cases {
		require.Equal(t, want, LookupIdent(ident), "ident %q", ident)
	}
}
