// Package chunk implements the bytecode container produced by the compiler
// and executed by the VM: a byte-addressable code buffer, its constant pool
// (with string interning), and a run-length-encoded map from code offset back
// to source line for diagnostics.
package chunk

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/loxlang/loxvm/lang/value"
)

// lineRun is one run in the run-length-encoded line table: Count consecutive
// code bytes all map to Line.
type lineRun struct {
	Line  int
	Count int
}

// Chunk holds one function's compiled code, the constant pool it indexes
// into, and the line map used to report diagnostics against the original
// source.
type Chunk struct {
	Code      []byte
	Constants []value.Value

	// stringsIndex deduplicates string constants: content -> constant index.
	stringsIndex *swiss.Map[string, uint32]

	lines []lineRun
}

// New returns an empty Chunk ready to be written to.
func New() *Chunk {
	return &Chunk{
		stringsIndex: swiss.NewMap[string, uint32](0),
	}
}

// WriteByte appends a single code byte, extending the run-length line map.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.recordLine(line)
}

func (c *Chunk) recordLine(line int) {
	if n := len(c.lines); n > 0 && c.lines[n-1].Line == line {
		c.lines[n-1].Count++
		return
	}
	c.lines = append(c.lines, lineRun{Line: line, Count: 1})
}

// WriteU16 appends v as two big-endian operand bytes.
func (c *Chunk) WriteU16(v uint16, line int) {
	c.WriteByte(byte(v>>8), line)
	c.WriteByte(byte(v), line)
}

// WriteU32 appends v as four big-endian operand bytes.
func (c *Chunk) WriteU32(v uint32, line int) {
	c.WriteByte(byte(v>>24), line)
	c.WriteByte(byte(v>>16), line)
	c.WriteByte(byte(v>>8), line)
	c.WriteByte(byte(v), line)
}

// WriteInstruction emits opcode op with operand arg (ignored if op takes no
// operand) and returns the opcode's own offset and the offset just past its
// last operand byte. The compiler uses the returned start offset to patch
// forward jumps with PatchU16.
func (c *Chunk) WriteInstruction(op Opcode, arg uint32, line int) (start, next int) {
	start = len(c.Code)
	c.WriteByte(byte(op), line)
	switch op.operandWidth() {
	case 1:
		c.WriteByte(byte(arg), line)
	case 2:
		c.WriteU16(uint16(arg), line)
	case 4:
		c.WriteU32(arg, line)
	}
	return start, len(c.Code)
}

// PatchU16 rewrites the two operand bytes immediately following the opcode
// at offset at with the big-endian encoding of value. Used to back-patch
// forward jumps once their target is known.
func (c *Chunk) PatchU16(at int, value uint16) {
	c.Code[at+1] = byte(value >> 8)
	c.Code[at+2] = byte(value)
}

// AddValue appends v to the constant pool and returns its index.
func (c *Chunk) AddValue(v value.Value) uint32 {
	idx := uint32(len(c.Constants))
	c.Constants = append(c.Constants, v)
	return idx
}

// AddStringValue interns a string constant by content: if content was
// already added via AddStringValue, its existing constant index is returned
// and make is not called; otherwise make is invoked to build the Value (a
// Str handle) and it is appended as a new constant.
func (c *Chunk) AddStringValue(content string, make func() value.Value) uint32 {
	if idx, ok := c.stringsIndex.Get(content); ok {
		return idx
	}
	idx := c.AddValue(make())
	c.stringsIndex.Put(content, idx)
	return idx
}

// Instruction is one decoded bytecode instruction: its opcode and its
// operand (zero if the opcode takes none).
type Instruction struct {
	Op  Opcode
	Arg uint32
}

// ReadInstruction decodes the instruction starting at offset at. It reports
// ok=false at the end of code or when at names an opcode byte out of range.
func (c *Chunk) ReadInstruction(at int) (insn Instruction, next int, ok bool) {
	if at < 0 || at >= len(c.Code) {
		return Instruction{}, at, false
	}
	op := Opcode(c.Code[at])
	if op > opcodeMax {
		return Instruction{}, at, false
	}
	width := op.operandWidth()
	if at+1+width > len(c.Code) {
		return Instruction{}, at, false
	}
	var arg uint32
	switch width {
	case 1:
		arg = uint32(c.Code[at+1])
	case 2:
		arg = uint32(binary.BigEndian.Uint16(c.Code[at+1 : at+3]))
	case 4:
		arg = binary.BigEndian.Uint32(c.Code[at+1 : at+5])
	}
	return Instruction{Op: op, Arg: arg}, at + 1 + width, true
}

// LineOf walks the run-length-encoded line map and returns the source line
// that code offset at belongs to.
func (c *Chunk) LineOf(at int) (line int, ok bool) {
	remaining := at
	for _, run := range c.lines {
		if remaining < run.Count {
			return run.Line, true
		}
		remaining -= run.Count
	}
	return 0, false
}

// Disassemble renders the full chunk in a human-readable form, one
// instruction per line, prefixed by offset and source line (or "|" when the
// line is the same as the previous instruction's).
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	lastLine := -1
	for offset < len(c.Code) {
		line, next := c.DisassembleInstruction(&sb, offset, lastLine)
		lastLine = line
		offset = next
	}
	return sb.String()
}

// DisassembleInstruction writes the single instruction at offset to w,
// prefixed by offset and source line (or "|" when the line equals
// lastLine, the line printed for the previous instruction — pass -1 when
// there is none). It returns the line it printed and the offset of the next
// instruction, for the caller to thread into its next call.
func (c *Chunk) DisassembleInstruction(w *strings.Builder, offset, lastLine int) (line, next int) {
	insn, nextOffset, ok := c.ReadInstruction(offset)
	if !ok {
		fmt.Fprintf(w, "%04d    ???? (bad opcode %d)\n", offset, c.Code[offset])
		return lastLine, offset + 1
	}
	line, _ = c.LineOf(offset)
	if line == lastLine {
		fmt.Fprintf(w, "%04d    |  ", offset)
	} else {
		fmt.Fprintf(w, "%04d %4d  ", offset, line)
	}
	fmt.Fprintf(w, "%-16s", insn.Op.String())
	if insn.Op.operandWidth() > 0 {
		if isJump(insn.Op) {
			target := jumpTarget(insn.Op, offset, insn.Arg)
			fmt.Fprintf(w, " %4d -> %d", insn.Arg, target)
		} else {
			fmt.Fprintf(w, " %4d", insn.Arg)
			if int(insn.Arg) < len(c.Constants) &&
				(insn.Op == Constant || insn.Op == ConstantLong || insn.Op == DefineGlobal ||
					insn.Op == GetGlobal || insn.Op == SetGlobal) {
				fmt.Fprintf(w, " '%s'", c.Constants[insn.Arg].String())
			}
		}
	}
	w.WriteByte('\n')
	return line, nextOffset
}

// jumpTarget computes the absolute code offset a jump/loop instruction at
// opcodeOffset with the given delta resolves to, per the opcode-relative
// convention: forward jumps add the delta, Loop subtracts it.
func jumpTarget(op Opcode, opcodeOffset int, delta uint32) int {
	if op == Loop {
		return opcodeOffset - int(delta)
	}
	return opcodeOffset + int(delta)
}
