package compiler

import (
	"github.com/loxlang/loxvm/lang/chunk"
	"github.com/loxlang/loxvm/lang/object"
)

// localVar is a compile-time record of one local variable's name and the
// scope depth it was declared at. depth is -1 between the point its name is
// declared and the point its initializer finishes evaluating, so a reference
// to the variable within its own initializer can be rejected.
type localVar struct {
	name  string
	depth int
}

// loopCtx records enough about an enclosing loop for continue to unwind the
// right number of locals and jump to the right place: the scope depth active
// when the loop body starts, and the code offset continue should jump back
// to (the condition re-check for while, the increment for a three-clause
// for).
type loopCtx struct {
	depth          int
	continueTarget int
}

// funcCompiler holds the compile-time state private to one function body
// (or the top-level script, which is compiled as a function of arity 0 and
// empty name). Nested function declarations push a new funcCompiler and pop
// it back to the enclosing one when the body finishes.
type funcCompiler struct {
	enclosing *funcCompiler

	function *object.FunData
	chunk    *chunk.Chunk

	locals     []localVar
	scopeDepth int

	loops []loopCtx

	isScript bool
}

// newFuncCompiler starts compiling a function (or the script) named name. It
// reserves local slot 0 for the function's own value, which makes recursive
// calls resolvable as a local reference from within the body, matching the
// calling convention where the callee occupies its own call frame's base
// slot.
func newFuncCompiler(enclosing *funcCompiler, name string, isScript bool) *funcCompiler {
	c := chunk.New()
	slot0Depth := 1
	if isScript {
		// The script's slot 0 never sits inside any lexical block the
		// compiler opens and closes, so it must not look poppable by a
		// top-level block's endScope.
		slot0Depth = 0
	}
	return &funcCompiler{
		enclosing:  enclosing,
		function:   &object.FunData{Name: name, Chunk: c},
		chunk:      c,
		locals:     []localVar{{name: name, depth: slot0Depth}},
		scopeDepth: 0,
		isScript:   isScript,
	}
}
