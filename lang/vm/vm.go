// Package vm implements the fetch-decode-dispatch loop that executes a
// compiled chunk: operand stack, call-frame stack, globals table, and native
// function dispatch.
package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/loxlang/loxvm/lang/chunk"
	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/value"
)

const maxFrames = 256

// frame is one active call's execution record.
type frame struct {
	fn         object.Fun
	ip         int
	stackBase  int
	callerLine int
}

// Config tunes ambient behavior that is not part of the language contract:
// where output goes, whether to trace execution, and embedding safety
// limits. MaxSteps, MaxCallStackDepth and DisableRecursion mirror the
// teacher's Thread tunables. A MaxSteps of zero or less means no step limit.
// Call depth is always capped at maxFrames (256) frames: a MaxCallStackDepth
// of zero or less leaves that cap in place, and a larger value does not raise
// it.
type Config struct {
	Stdout io.Writer
	Stderr io.Writer
	Trace  bool

	MaxSteps          int
	MaxCallStackDepth int
	DisableRecursion  bool
}

// VM executes compiled chunks. All of its mutable state — operand stack,
// frame stack, globals, heap — lives in a single instance and is touched
// only by the dispatch loop; there is no concurrent access.
type VM struct {
	heap    *heap.Heap
	stack   []value.Value
	frames  []frame
	globals *swiss.Map[string, value.Value]

	stdout io.Writer
	stderr io.Writer
	trace  bool

	maxSteps          int
	maxCallStackDepth int
	disableRecursion  bool
}

// New returns a VM sharing h for heap allocations (string results from Add,
// strings produced by native functions), with natives already bound into
// globals.
func New(h *heap.Heap, cfg Config, natives ...object.NativeFun) *VM {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	m := &VM{
		heap:              h,
		globals:           swiss.NewMap[string, value.Value](0),
		stdout:            cfg.Stdout,
		stderr:            cfg.Stderr,
		trace:             cfg.Trace,
		maxSteps:          cfg.MaxSteps,
		maxCallStackDepth: cfg.MaxCallStackDepth,
		disableRecursion:  cfg.DisableRecursion,
	}
	for _, n := range natives {
		m.globals.Put(n.Data().Name, n)
	}
	return m
}

// RuntimeError is returned by Run when the dispatch loop aborts on a
// language-level error (as opposed to a Go-level bug). Message is the
// unadorned error text; Trace is the pre-formatted frame walk.
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string { return e.Message }

// Run executes fn (a freshly compiled script or, in tests, any zero-arity
// function) to completion, with no cancellation. Config.MaxSteps still
// applies.
func (m *VM) Run(fn object.Fun) error {
	return m.RunContext(context.Background(), fn)
}

// RunContext is Run with a context that can cancel a running script (the
// dispatch loop polls ctx.Err() the way the teacher's machine polls its own
// cancellation flag) and, if Config.MaxSteps is set, a bound on the number
// of instructions dispatched before aborting with a runtime error.
func (m *VM) RunContext(ctx context.Context, fn object.Fun) error {
	m.stack = append(m.stack[:0], value.Value(fn))
	m.frames = append(m.frames[:0], frame{fn: fn, ip: 0, stackBase: 0})

	steps := 0
	for {
		if ctx.Err() != nil {
			return m.runtimeErr("execution cancelled")
		}
		if m.maxSteps > 0 {
			steps++
			if steps > m.maxSteps {
				return m.runtimeErr("step limit exceeded")
			}
		}

		f := &m.frames[len(m.frames)-1]
		c := f.fn.Data().Chunk

		if m.trace {
			m.printTrace(c, f.ip)
		}

		insn, next, ok := c.ReadInstruction(f.ip)
		if !ok {
			if len(m.frames) == 1 {
				return nil
			}
			return m.runtimeErr("malformed bytecode: ran off the end of the chunk")
		}
		opcodeOffset := f.ip
		f.ip = next

		if err := m.dispatch(insn, opcodeOffset); err != nil {
			if err == errHalt {
				return nil
			}
			return err
		}
	}
}

// errHalt is a sentinel used internally to unwind the dispatch loop when the
// bottom frame returns.
var errHalt = fmt.Errorf("halt")

func (m *VM) push(v value.Value) { m.stack = append(m.stack, v) }

func (m *VM) pop() value.Value {
	n := len(m.stack)
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v
}

func (m *VM) peek(distance int) value.Value {
	return m.stack[len(m.stack)-1-distance]
}

func (m *VM) currentLine() int {
	f := &m.frames[len(m.frames)-1]
	if line, ok := f.fn.Data().Chunk.LineOf(f.ip); ok {
		return line
	}
	return 0
}

func (m *VM) dispatch(insn chunk.Instruction, opcodeOffset int) error {
	f := &m.frames[len(m.frames)-1]
	c := f.fn.Data().Chunk

	switch insn.Op {
	case chunk.Constant, chunk.ConstantLong:
		m.push(c.Constants[insn.Arg])

	case chunk.Nil:
		m.push(value.Nil)
	case chunk.True:
		m.push(value.Bool(true))
	case chunk.False:
		m.push(value.Bool(false))

	case chunk.Pop:
		m.pop()

	case chunk.Negate:
		n, ok := m.peek(0).(value.Number)
		if !ok {
			return m.runtimeErr("operand must be a number")
		}
		m.pop()
		m.push(-n)

	case chunk.Not:
		m.push(value.Bool(value.IsFalsey(m.pop())))

	case chunk.Equal:
		b, a := m.pop(), m.pop()
		m.push(value.Bool(object.Equal(a, b)))

	case chunk.Greater, chunk.Less:
		b, okB := m.peek(0).(value.Number)
		a, okA := m.peek(1).(value.Number)
		if !okA || !okB {
			return m.runtimeErr("operands must be numbers")
		}
		m.pop()
		m.pop()
		if insn.Op == chunk.Greater {
			m.push(value.Bool(a > b))
		} else {
			m.push(value.Bool(a < b))
		}

	case chunk.Add:
		if err := m.execAdd(); err != nil {
			return err
		}

	case chunk.Subtract, chunk.Multiply, chunk.Divide:
		b, okB := m.peek(0).(value.Number)
		a, okA := m.peek(1).(value.Number)
		if !okA || !okB {
			return m.runtimeErr("operands must be numbers")
		}
		m.pop()
		m.pop()
		switch insn.Op {
		case chunk.Subtract:
			m.push(a - b)
		case chunk.Multiply:
			m.push(a * b)
		case chunk.Divide:
			m.push(a / b)
		}

	case chunk.Print:
		fmt.Fprintln(m.stdout, m.pop().String())

	case chunk.DefineGlobal:
		name := c.Constants[insn.Arg].(object.Str).Content()
		m.globals.Put(name, m.pop())

	case chunk.GetGlobal:
		name := c.Constants[insn.Arg].(object.Str).Content()
		v, ok := m.globals.Get(name)
		if !ok {
			return m.runtimeErr(fmt.Sprintf("undefined variable '%s'", name))
		}
		m.push(v)

	case chunk.SetGlobal:
		name := c.Constants[insn.Arg].(object.Str).Content()
		if _, ok := m.globals.Get(name); !ok {
			return m.runtimeErr(fmt.Sprintf("undefined variable '%s'", name))
		}
		m.globals.Put(name, m.peek(0))

	case chunk.GetLocal:
		m.push(m.stack[f.stackBase+int(insn.Arg)])

	case chunk.SetLocal:
		m.stack[f.stackBase+int(insn.Arg)] = m.peek(0)

	case chunk.Jump:
		f.ip = opcodeOffset + int(insn.Arg)

	case chunk.JumpIfFalse:
		if value.IsFalsey(m.peek(0)) {
			f.ip = opcodeOffset + int(insn.Arg)
		}

	case chunk.Loop:
		f.ip = opcodeOffset - int(insn.Arg)

	case chunk.Call:
		if err := m.call(int(insn.Arg)); err != nil {
			return err
		}

	case chunk.Return:
		return m.execReturn()

	default:
		return m.runtimeErr(fmt.Sprintf("unknown opcode %d", insn.Op))
	}
	return nil
}

func (m *VM) execAdd() error {
	b, okBn := m.peek(0).(value.Number)
	a, okAn := m.peek(1).(value.Number)
	if okAn && okBn {
		m.pop()
		m.pop()
		m.push(a + b)
		return nil
	}
	bs, okBs := m.peek(0).(object.Str)
	as, okAs := m.peek(1).(object.Str)
	if okAs && okBs {
		m.pop()
		m.pop()
		m.push(object.NewStr(m.heap, as.Content()+bs.Content()))
		return nil
	}
	return m.runtimeErr("operands must be two numbers or two strings")
}

func (m *VM) call(argc int) error {
	callee := m.peek(argc)
	switch fn := callee.(type) {
	case object.Fun:
		data := fn.Data()
		if argc != data.Arity {
			return m.runtimeErr(fmt.Sprintf("expected %d arguments but got %d", data.Arity, argc))
		}
		if m.disableRecursion {
			for _, f := range m.frames {
				if f.fn.Data() == data {
					return m.runtimeErr(fmt.Sprintf("recursion disabled: %s", data.Name))
				}
			}
		}
		limit := maxFrames
		if m.maxCallStackDepth > 0 && m.maxCallStackDepth < limit {
			limit = m.maxCallStackDepth
		}
		if len(m.frames) >= limit {
			return m.runtimeErr("stack overflow")
		}
		m.frames = append(m.frames, frame{
			fn:         fn,
			ip:         0,
			stackBase:  len(m.stack) - 1 - argc,
			callerLine: m.currentLine(),
		})
		return nil

	case object.NativeFun:
		data := fn.Data()
		if argc != data.Arity {
			return m.runtimeErr(fmt.Sprintf("expected %d arguments but got %d", data.Arity, argc))
		}
		args := make([]value.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = m.pop()
		}
		m.pop() // the callee itself
		result, err := data.Fn(args)
		if err != nil {
			return m.runtimeErr(err.Error())
		}
		m.push(result)
		return nil

	default:
		return m.runtimeErr(fmt.Sprintf("%s is not a function", callee.String()))
	}
}

func (m *VM) execReturn() error {
	result := m.pop()

	if len(m.frames) == 1 {
		// stackBase+1 accounts for slot 0, reserved for the script's own Fun
		// value (pushed once in Run/RunContext and never otherwise touched at
		// the top level, since declareVariable never records top-level locals).
		stackBase := m.frames[0].stackBase
		if len(m.stack) != stackBase+1 {
			return m.runtimeErr("stack imbalance at script end")
		}
		m.stack = m.stack[:stackBase]
		m.push(result)
		return errHalt
	}

	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	m.stack = m.stack[:f.stackBase]
	m.push(result)
	return nil
}

// runtimeErr builds a RuntimeError carrying the current frame walk, in the
// format the CLI prints to stderr.
func (m *VM) runtimeErr(msg string) *RuntimeError {
	trace := make([]string, 0, len(m.frames))
	line := m.currentLine()
	for i := len(m.frames) - 1; i >= 0; i-- {
		f := m.frames[i]
		name := f.fn.Data().Name
		if name == "" {
			trace = append(trace, fmt.Sprintf("[line %d] in script", line))
		} else {
			trace = append(trace, fmt.Sprintf("[line %d] in %s()", line, name))
		}
		line = f.callerLine
	}
	return &RuntimeError{Message: msg, Trace: trace}
}

func (m *VM) printTrace(c *chunk.Chunk, ip int) {
	fmt.Fprint(m.stderr, "          ")
	for _, v := range m.stack {
		fmt.Fprintf(m.stderr, "[ %s ]", v.String())
	}
	fmt.Fprintln(m.stderr)
	var sb strings.Builder
	c.DisassembleInstruction(&sb, ip, -1)
	fmt.Fprint(m.stderr, sb.String())
}
