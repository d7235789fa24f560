// Package clitool implements the loxvm command line: a REPL when invoked
// with no arguments, single-file interpretation when invoked with one, and
// a usage error otherwise. It follows the sysexits-style exit code contract:
// 0 success, 64 CLI misuse, 65 compile error, 70 runtime error, 74 file I/O
// error.
package clitool

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/natives"
	"github.com/loxlang/loxvm/lang/vm"
)

//nolint:revive
const (
	ExitSuccess    mainer.ExitCode = 0
	ExitUsage      mainer.ExitCode = 64
	ExitCompileErr mainer.ExitCode = 65
	ExitRuntimeErr mainer.ExitCode = 70
	ExitIOErr      mainer.ExitCode = 74
)

const binName = "loxvm"

var usage = fmt.Sprintf("usage: %s [path]\n", binName)

// Cmd is the loxvm CLI's argument target and entry point.
type Cmd struct {
	Trace             bool `flag:"trace"`
	MaxSteps          int  `flag:"max-steps"`
	MaxCallStackDepth int  `flag:"max-call-depth"`
	DisableRecursion  bool `flag:"disable-recursion"`

	args []string
}

func (c *Cmd) vmConfig(stdio mainer.Stdio) vm.Config {
	return vm.Config{
		Stdout:            stdio.Stdout,
		Stderr:            stdio.Stderr,
		Trace:             c.Trace,
		MaxSteps:          c.MaxSteps,
		MaxCallStackDepth: c.MaxCallStackDepth,
		DisableRecursion:  c.DisableRecursion,
	}
}

func (c *Cmd) SetArgs(args []string)         { c.args = args }
func (c *Cmd) SetFlags(_ map[string]bool)    {}
func (c *Cmd) Validate() error {
	if len(c.args) > 1 {
		return fmt.Errorf("too many arguments")
	}
	return nil
}

// Main parses args and dispatches to the REPL or single-file mode.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: true, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n%s", err, usage)
		return ExitUsage
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	if len(c.args) == 1 {
		return c.runFile(ctx, stdio, c.args[0])
	}
	return c.repl(ctx, stdio)
}

func (c *Cmd) runFile(ctx context.Context, stdio mainer.Stdio, path string) mainer.ExitCode {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitIOErr
	}

	h := heap.New()
	m := vm.New(h, c.vmConfig(stdio), natives.Standard(h)...)
	defer h.FreeAll()

	return c.interpret(ctx, stdio, m, h, string(src))
}

// repl reads one line at a time from stdio.Stdin and interprets each,
// sharing one VM (and its globals and heap) across lines so definitions
// persist across the session. A compile or runtime error on one line is
// reported but does not end the session; EOF on stdin does.
func (c *Cmd) repl(ctx context.Context, stdio mainer.Stdio) mainer.ExitCode {
	h := heap.New()
	m := vm.New(h, c.vmConfig(stdio), natives.Standard(h)...)
	defer h.FreeAll()

	sc := bufio.NewScanner(stdio.Stdin)
	for {
		select {
		case <-ctx.Done():
			return ExitSuccess
		default:
		}
		fmt.Fprint(stdio.Stdout, "> ")
		if !sc.Scan() {
			return ExitSuccess
		}
		c.interpret(ctx, stdio, m, h, sc.Text())
	}
}

// interpret compiles and runs src against m, reporting any diagnostic to
// stdio.Stderr in the format spelled out by the CLI contract.
func (c *Cmd) interpret(ctx context.Context, stdio mainer.Stdio, m *vm.VM, h *heap.Heap, src string) mainer.ExitCode {
	fn, err := compiler.Compile(src, h)
	if err != nil {
		if ce, ok := err.(*compiler.Error); ok {
			for _, d := range ce.Diagnostics {
				fmt.Fprintln(stdio.Stderr, d)
			}
		} else {
			fmt.Fprintln(stdio.Stderr, err)
		}
		return ExitCompileErr
	}

	if err := m.RunContext(ctx, fn); err != nil {
		if re, ok := err.(*vm.RuntimeError); ok {
			fmt.Fprintln(stdio.Stderr, re.Message)
			for _, line := range re.Trace {
				fmt.Fprintln(stdio.Stderr, line)
			}
		} else {
			fmt.Fprintln(stdio.Stderr, err)
		}
		return ExitRuntimeErr
	}
	return ExitSuccess
}
