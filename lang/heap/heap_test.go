package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/lang/heap"
)

func TestAllocAndGet(t *testing.T) {
	h := heap.New()
	a := h.Alloc("hello")
	b := h.Alloc("world")
	require.NotEqual(t, a, b)
	require.Equal(t, "hello", h.Get(a))
	require.Equal(t, "world", h.Get(b))
}

func TestFreeReusesSlot(t *testing.T) {
	h := heap.New()
	a := h.Alloc("one")
	h.Free(a)
	b := h.Alloc("two")
	require.Equal(t, a, b)
	require.Equal(t, "two", h.Get(b))
}

func TestGetPanicsOnFreedHandle(t *testing.T) {
	h := heap.New()
	a := h.Alloc("gone")
	h.Free(a)
	require.Panics(t, func() { h.Get(a) })
}

func TestFreeAll(t *testing.T) {
	h := heap.New()
	h.Alloc("a")
	h.Alloc("b")
	require.Equal(t, 2, h.Len())
	h.FreeAll()
	require.Equal(t, 0, h.Len())
}
