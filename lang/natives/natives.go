// Package natives implements the native function bindings seeded into a VM's
// globals before a program runs: sqrt and concat (required), plus len and
// clock (supplemental, registered the same way — there is no language-level
// syntax for declaring a native, only Go-side registration).
package natives

import (
	"fmt"
	"math"
	"time"

	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/value"
)

// Standard returns the native bindings present by default: sqrt, concat,
// len, and clock.
func Standard(h *heap.Heap) []object.NativeFun {
	return []object.NativeFun{
		object.NewNativeFun(h, &object.NativeData{Name: "sqrt", Arity: 1, Fn: sqrt}),
		object.NewNativeFun(h, &object.NativeData{Name: "concat", Arity: 2, Fn: concat(h)}),
		object.NewNativeFun(h, &object.NativeData{Name: "len", Arity: 1, Fn: length}),
		object.NewNativeFun(h, &object.NativeData{Name: "clock", Arity: 0, Fn: clock}),
	}
}

func sqrt(args []value.Value) (value.Value, error) {
	n, ok := args[0].(value.Number)
	if !ok {
		return nil, fmt.Errorf("sqrt: argument must be a number")
	}
	return value.Number(math.Sqrt(float64(n))), nil
}

func concat(h *heap.Heap) func(args []value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		a, okA := args[0].(object.Str)
		b, okB := args[1].(object.Str)
		if !okA || !okB {
			return nil, fmt.Errorf("concat: arguments must be strings")
		}
		return object.NewStr(h, a.Content()+b.Content()), nil
	}
}

func length(args []value.Value) (value.Value, error) {
	s, ok := args[0].(object.Str)
	if !ok {
		return nil, fmt.Errorf("len: argument must be a string")
	}
	return value.Number(len(s.Content())), nil
}

// clock returns seconds since the Unix epoch, for timing Lox programs.
func clock(_ []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}
