// Package object implements the heap-allocated Value cases: strings, and the
// function objects produced by the compiler and invoked by the VM (both
// user-defined and native). Each is a thin handle into a *heap.Heap —
// copying one copies the handle, never the underlying content.
package object

import (
	"fmt"

	"github.com/loxlang/loxvm/lang/chunk"
	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/value"
)

// Str is a handle to an immutable byte string allocated on the heap.
type Str struct {
	Heap   *heap.Heap
	Handle heap.Handle
}

var _ value.Value = Str{}

// NewStr allocates content on h and returns a Str handle to it.
func NewStr(h *heap.Heap, content string) Str {
	return Str{Heap: h, Handle: h.Alloc(content)}
}

// Content returns the string's bytes.
func (s Str) Content() string { return s.Heap.Get(s.Handle).(string) }
func (s Str) String() string  { return s.Content() }
func (Str) Type() string      { return "string" }

// FunData holds the metadata and compiled body of a user-defined function.
// The top-level script is represented as a FunData with an empty Name, arity
// 0, and the module's chunk.
type FunData struct {
	Name  string
	Arity int
	Chunk *chunk.Chunk
}

// Fun is a handle to a FunData allocated on the heap.
type Fun struct {
	Heap   *heap.Heap
	Handle heap.Handle
}

var _ value.Value = Fun{}

// NewFun allocates fd on h and returns a Fun handle to it.
func NewFun(h *heap.Heap, fd *FunData) Fun {
	return Fun{Heap: h, Handle: h.Alloc(fd)}
}

// Data dereferences the handle to the function's metadata.
func (f Fun) Data() *FunData { return f.Heap.Get(f.Handle).(*FunData) }

func (f Fun) String() string {
	data := f.Data()
	if data.Name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", data.Name)
}
func (Fun) Type() string { return "function" }

// NativeData holds the metadata and Go implementation of a native function.
type NativeData struct {
	Name  string
	Arity int
	Fn    func(args []value.Value) (value.Value, error)
}

// NativeFun is a handle to a NativeData allocated on the heap.
type NativeFun struct {
	Heap   *heap.Heap
	Handle heap.Handle
}

var _ value.Value = NativeFun{}

// NewNativeFun allocates nd on h and returns a NativeFun handle to it.
func NewNativeFun(h *heap.Heap, nd *NativeData) NativeFun {
	return NativeFun{Heap: h, Handle: h.Alloc(nd)}
}

// Data dereferences the handle to the native function's metadata.
func (n NativeFun) Data() *NativeData { return n.Heap.Get(n.Handle).(*NativeData) }
func (n NativeFun) String() string    { return fmt.Sprintf("<native fn %s>", n.Data().Name) }
func (NativeFun) Type() string        { return "native function" }

// Equal implements value equality: structural for Number/Bool/Nil (handled
// directly), by string content for Str, by name for Fun and NativeFun.
func Equal(a, b value.Value) bool {
	switch a := a.(type) {
	case value.Number:
		bn, ok := b.(value.Number)
		return ok && a == bn
	case value.Bool:
		bb, ok := b.(value.Bool)
		return ok && a == bb
	case value.NilType:
		_, ok := b.(value.NilType)
		return ok
	case Str:
		bs, ok := b.(Str)
		return ok && a.Content() == bs.Content()
	case Fun:
		bf, ok := b.(Fun)
		return ok && a.Data().Name == bf.Data().Name
	case NativeFun:
		bn, ok := b.(NativeFun)
		return ok && a.Data().Name == bn.Data().Name
	default:
		return false
	}
}
