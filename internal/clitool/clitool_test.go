package clitool

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func newStdio() (mainer.Stdio, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return mainer.Stdio{Stdin: bytes.NewReader(nil), Stdout: &out, Stderr: &errOut}, &out, &errOut
}

func TestRunFileSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.lox")
	require.NoError(t, os.WriteFile(path, []byte(`print 1 + 1;`), 0o644))

	c := &Cmd{}
	stdio, out, _ := newStdio()
	code := c.runFile(context.Background(), stdio, path)
	require.Equal(t, ExitSuccess, code)
	require.Equal(t, "2\n", out.String())
}

func TestRunFileMissing(t *testing.T) {
	c := &Cmd{}
	stdio, _, _ := newStdio()
	code := c.runFile(context.Background(), stdio, filepath.Join(t.TempDir(), "nope.lox"))
	require.Equal(t, ExitIOErr, code)
}

func TestRunFileCompileError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.lox")
	require.NoError(t, os.WriteFile(path, []byte(`return 42;`), 0o644))

	c := &Cmd{}
	stdio, _, errOut := newStdio()
	code := c.runFile(context.Background(), stdio, path)
	require.Equal(t, ExitCompileErr, code)
	require.Contains(t, errOut.String(), "Can't return from top-level code.")
}

func TestRunFileRuntimeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boom.lox")
	require.NoError(t, os.WriteFile(path, []byte(`print missing;`), 0o644))

	c := &Cmd{}
	stdio, _, errOut := newStdio()
	code := c.runFile(context.Background(), stdio, path)
	require.Equal(t, ExitRuntimeErr, code)
	require.Contains(t, errOut.String(), "undefined variable")
	require.Contains(t, errOut.String(), "in script")
}

func TestValidateRejectsTooManyArgs(t *testing.T) {
	c := &Cmd{}
	c.SetArgs([]string{"a.lox", "b.lox"})
	require.Error(t, c.Validate())
}

func TestValidateAcceptsOneArg(t *testing.T) {
	c := &Cmd{}
	c.SetArgs([]string{"a.lox"})
	require.NoError(t, c.Validate())
}
