package vm_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/internal/filetest"
	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/natives"
	"github.com/loxlang/loxvm/lang/vm"
)

var testUpdateVMGolden = flag.Bool("test.update-vm-tests", false, "If set, replace expected VM test results with actual results.")

// TestGoldenPrograms runs every .lox program under testdata/in against a
// fresh VM and diffs its stdout against the matching golden file under
// testdata/out.
func TestGoldenPrograms(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".lox") {
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			require.NoError(t, err)

			h := heap.New()
			fn, err := compiler.Compile(string(src), h)
			require.NoError(t, err)

			var out bytes.Buffer
			m := vm.New(h, vm.Config{Stdout: &out}, natives.Standard(h)...)
			require.NoError(t, m.Run(fn))

			filetest.DiffOutput(t, fi, out.String(), resultDir, testUpdateVMGolden)
		})
	}
}
