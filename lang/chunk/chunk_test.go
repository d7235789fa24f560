package chunk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/lang/chunk"
	"github.com/loxlang/loxvm/lang/value"
)

func TestWriteInstructionAndRead(t *testing.T) {
	c := chunk.New()
	idx := c.AddValue(value.Number(42))
	start, next := c.WriteInstruction(chunk.Constant, idx, 1)
	require.Equal(t, 0, start)
	require.Equal(t, 2, next)

	insn, after, ok := c.ReadInstruction(0)
	require.True(t, ok)
	require.Equal(t, chunk.Constant, insn.Op)
	require.Equal(t, idx, insn.Arg)
	require.Equal(t, next, after)
}

func TestBigEndianEncoding(t *testing.T) {
	c := chunk.New()
	c.WriteInstruction(chunk.GetLocal, 0x01020304, 1)
	require.Equal(t, []byte{byte(chunk.GetLocal), 0x01, 0x02, 0x03, 0x04}, c.Code)
}

func TestPatchU16(t *testing.T) {
	c := chunk.New()
	start, _ := c.WriteInstruction(chunk.Jump, 0xFFFF, 1)
	c.PatchU16(start, 7)
	insn, _, ok := c.ReadInstruction(start)
	require.True(t, ok)
	require.EqualValues(t, 7, insn.Arg)
}

func TestLineOfRunLength(t *testing.T) {
	c := chunk.New()
	c.WriteInstruction(chunk.Nil, 0, 1)
	c.WriteInstruction(chunk.Nil, 0, 1)
	c.WriteInstruction(chunk.Pop, 0, 2)

	line, ok := c.LineOf(0)
	require.True(t, ok)
	require.Equal(t, 1, line)

	line, ok = c.LineOf(1)
	require.True(t, ok)
	require.Equal(t, 1, line)

	line, ok = c.LineOf(2)
	require.True(t, ok)
	require.Equal(t, 2, line)

	_, ok = c.LineOf(100)
	require.False(t, ok)
}

func TestAddStringValueInterns(t *testing.T) {
	c := chunk.New()
	calls := 0
	make1 := func() value.Value { calls++; return value.Bool(true) }

	idx1 := c.AddStringValue("hello", make1)
	idx2 := c.AddStringValue("hello", make1)
	idx3 := c.AddStringValue("world", make1)

	require.Equal(t, idx1, idx2)
	require.NotEqual(t, idx1, idx3)
	require.Equal(t, 2, calls)
}

func TestReadInstructionEndOfCode(t *testing.T) {
	c := chunk.New()
	c.WriteInstruction(chunk.Pop, 0, 1)
	_, _, ok := c.ReadInstruction(len(c.Code))
	require.False(t, ok)
}

func TestDisassembleIncludesOpcodeNames(t *testing.T) {
	c := chunk.New()
	idx := c.AddValue(value.Number(1))
	c.WriteInstruction(chunk.Constant, idx, 1)
	c.WriteInstruction(chunk.Return, 0, 1)

	out := c.Disassemble("test")
	require.Contains(t, out, "== test ==")
	require.Contains(t, out, "constant")
	require.Contains(t, out, "return")
}

func TestJumpDisassemblyShowsTarget(t *testing.T) {
	c := chunk.New()
	c.WriteInstruction(chunk.Jump, 3, 1)
	c.WriteInstruction(chunk.Nil, 0, 1)
	out := c.Disassemble("jump")
	require.Contains(t, out, "jump")
	require.Contains(t, out, "-> 3")
}
