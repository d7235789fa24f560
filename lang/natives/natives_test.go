package natives_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/natives"
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/value"
)

func findNative(t *testing.T, h *heap.Heap, name string) object.NativeFun {
	t.Helper()
	for _, n := range natives.Standard(h) {
		if n.Data().Name == name {
			return n
		}
	}
	t.Fatalf("no native named %q", name)
	return object.NativeFun{}
}

func TestSqrt(t *testing.T) {
	h := heap.New()
	sqrt := findNative(t, h, "sqrt")
	result, err := sqrt.Data().Fn([]value.Value{value.Number(1764)})
	require.NoError(t, err)
	require.Equal(t, value.Number(42), result)
}

func TestSqrtWrongType(t *testing.T) {
	h := heap.New()
	sqrt := findNative(t, h, "sqrt")
	_, err := sqrt.Data().Fn([]value.Value{object.NewStr(h, "nope")})
	require.Error(t, err)
}

func TestConcat(t *testing.T) {
	h := heap.New()
	concat := findNative(t, h, "concat")
	result, err := concat.Data().Fn([]value.Value{object.NewStr(h, "foo"), object.NewStr(h, "bar")})
	require.NoError(t, err)
	s, ok := result.(object.Str)
	require.True(t, ok)
	require.Equal(t, "foobar", s.Content())
}

func TestLen(t *testing.T) {
	h := heap.New()
	ln := findNative(t, h, "len")
	result, err := ln.Data().Fn([]value.Value{object.NewStr(h, "hello")})
	require.NoError(t, err)
	require.Equal(t, value.Number(5), result)
}

func TestClock(t *testing.T) {
	h := heap.New()
	clock := findNative(t, h, "clock")
	result, err := clock.Data().Fn(nil)
	require.NoError(t, err)
	n, ok := result.(value.Number)
	require.True(t, ok)
	require.Greater(t, float64(n), 0.0)
}
