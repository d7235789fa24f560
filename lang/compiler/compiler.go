// Package compiler implements the single-pass Pratt parser that compiles
// source text directly to bytecode, with no intermediate AST: each grammar
// production emits instructions as it recognizes them.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/loxlang/loxvm/lang/chunk"
	"github.com/loxlang/loxvm/lang/heap"
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/scanner"
	"github.com/loxlang/loxvm/lang/token"
	"github.com/loxlang/loxvm/lang/value"
)

const maxArgs = 255

// Compiler holds the parser's cursor over the token stream and the stack of
// funcCompilers for the function nesting currently being compiled.
type Compiler struct {
	scanner *scanner.Scanner
	heap    *heap.Heap

	previous, current token.Token

	hadError  bool
	panicMode bool
	diags     []string

	fc *funcCompiler
}

// Compile compiles source into a top-level function (the script), ready to
// be called by the VM with zero arguments. On a compile error it returns a
// non-nil *Error alongside a zero Fun.
func Compile(source string, h *heap.Heap) (object.Fun, error) {
	c := &Compiler{
		scanner: scanner.New(source),
		heap:    h,
	}
	c.fc = newFuncCompiler(nil, "", true)

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.emitReturn()

	if c.hadError {
		return object.Fun{}, &Error{Diagnostics: c.diags}
	}
	return object.NewFun(h, c.fc.function), nil
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.Scan()
		if c.current.Kind != token.ILLEGAL {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(k token.Kind) bool { return c.current.Kind == k }

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, msg string) {
	if c.current.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// --- diagnostics --------------------------------------------------------

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var report string
	switch tok.Kind {
	case token.EOF:
		report = fmt.Sprintf("[line %d] Error at end: %s", tok.Line, msg)
	case token.ILLEGAL:
		report = fmt.Sprintf("[line %d] Error: %s", tok.Line, msg)
	default:
		report = fmt.Sprintf("[line %d] Error at '%s': %s", tok.Line, tok.Lexeme, msg)
	}
	c.diags = append(c.diags, report)
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so one error doesn't cascade into a wall of spurious ones.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.SEMICOLON {
			return
		}
		switch c.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// --- emission -----------------------------------------------------------

func (c *Compiler) line() int { return c.previous.Line }

func (c *Compiler) emitOpcode(op chunk.Opcode) {
	c.fc.chunk.WriteInstruction(op, 0, c.line())
}

func (c *Compiler) emitOpcodeArg(op chunk.Opcode, arg uint32) {
	c.fc.chunk.WriteInstruction(op, arg, c.line())
}

func (c *Compiler) emitReturn() {
	c.emitOpcode(chunk.Nil)
	c.emitOpcode(chunk.Return)
}

func (c *Compiler) emitConstant(v value.Value) {
	idx := c.fc.chunk.AddValue(v)
	c.emitConstantIndex(idx)
}

func (c *Compiler) emitConstantIndex(idx uint32) {
	if idx < 256 {
		c.emitOpcodeArg(chunk.Constant, idx)
		return
	}
	c.emitOpcodeArg(chunk.ConstantLong, idx)
}

// emitJump writes a jump/loop opcode with a placeholder u16 delta and
// returns the opcode's own offset, to be passed to patchJump once the target
// is known (emitLoop patches its own backward jump right away).
func (c *Compiler) emitJump(op chunk.Opcode) int {
	start, _ := c.fc.chunk.WriteInstruction(op, 0xFFFF, c.line())
	return start
}

func (c *Compiler) patchJump(at int) {
	target := len(c.fc.chunk.Code)
	delta := target - at
	if delta > 0xFFFF {
		c.error("too much code to jump over")
		return
	}
	c.fc.chunk.PatchU16(at, uint16(delta))
}

func (c *Compiler) emitLoop(loopStart int) {
	start := c.emitJump(chunk.Loop)
	delta := start - loopStart
	if delta > 0xFFFF {
		c.error("loop body too large")
		return
	}
	c.fc.chunk.PatchU16(start, uint16(delta))
}

// --- scopes and variables ------------------------------------------------

func (c *Compiler) beginScope() { c.fc.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fc.scopeDepth--
	for len(c.fc.locals) > 0 && c.fc.locals[len(c.fc.locals)-1].depth > c.fc.scopeDepth {
		c.emitOpcode(chunk.Pop)
		c.fc.locals = c.fc.locals[:len(c.fc.locals)-1]
	}
}

func (c *Compiler) identifierConstant(name token.Token) uint32 {
	return c.fc.chunk.AddStringValue(name.Lexeme, func() value.Value {
		return object.NewStr(c.heap, name.Lexeme)
	})
}

func (c *Compiler) addLocal(name token.Token) {
	c.fc.locals = append(c.fc.locals, localVar{name: name.Lexeme, depth: -1})
}

func (c *Compiler) declareVariable() {
	if c.fc.scopeDepth == 0 {
		return
	}
	name := c.previous
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		local := c.fc.locals[i]
		if local.depth != -1 && local.depth < c.fc.scopeDepth {
			break
		}
		if local.name == name.Lexeme {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) resolveLocal(name string) (slot uint32, ok bool) {
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		if c.fc.locals[i].name == name {
			if c.fc.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return uint32(i), true
		}
	}
	return 0, false
}

func (c *Compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

func (c *Compiler) parseVariable(errMsg string) uint32 {
	c.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.fc.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) defineVariable(global uint32) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpcodeArg(chunk.DefineGlobal, global)
}

// --- declarations and statements ------------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(token.VAR):
		c.varDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.EQ) {
		c.expression()
	} else {
		c.emitOpcode(chunk.Nil)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(c.previous.Lexeme)
	c.defineVariable(global)
}

func (c *Compiler) function(name string) {
	enclosing := c.fc
	c.fc = newFuncCompiler(enclosing, name, false)
	c.beginScope()

	c.consume(token.LPAREN, "Expect '(' after function name.")
	if !c.check(token.RPAREN) {
		for {
			c.fc.function.Arity++
			if c.fc.function.Arity > maxArgs {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after parameters.")
	c.consume(token.LBRACE, "Expect '{' before function body.")
	c.block()
	c.emitReturn()

	fn := c.fc.function
	c.fc = enclosing

	idx := c.fc.chunk.AddValue(object.NewFun(c.heap, fn))
	c.emitConstantIndex(idx)
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.SWITCH):
		c.switchStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitOpcode(chunk.Print)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitOpcode(chunk.Pop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.JumpIfFalse)
	c.emitOpcode(chunk.Pop)
	c.statement()

	elseJump := c.emitJump(chunk.Jump)
	c.patchJump(thenJump)
	c.emitOpcode(chunk.Pop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.fc.chunk.Code)
	c.consume(token.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.JumpIfFalse)
	c.emitOpcode(chunk.Pop)

	c.fc.loops = append(c.fc.loops, loopCtx{depth: c.fc.scopeDepth, continueTarget: loopStart})
	c.statement()
	c.fc.loops = c.fc.loops[:len(c.fc.loops)-1]

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOpcode(chunk.Pop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after 'for'.")

	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.fc.chunk.Code)
	exitJump := -1
	if !c.check(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.JumpIfFalse)
		c.emitOpcode(chunk.Pop)
	} else {
		c.consume(token.SEMICOLON, "Expect ';' after loop condition.")
	}

	if !c.check(token.RPAREN) {
		bodyJump := c.emitJump(chunk.Jump)
		incrementStart := len(c.fc.chunk.Code)
		c.expression()
		c.emitOpcode(chunk.Pop)
		c.consume(token.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.consume(token.RPAREN, "Expect ')' after for clauses.")
	}

	c.fc.loops = append(c.fc.loops, loopCtx{depth: c.fc.scopeDepth, continueTarget: loopStart})
	c.statement()
	c.fc.loops = c.fc.loops[:len(c.fc.loops)-1]

	c.emitLoop(loopStart)
	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOpcode(chunk.Pop)
	}
	c.endScope()
}

func (c *Compiler) continueStatement() {
	if len(c.fc.loops) == 0 {
		c.error("Can't use 'continue' outside of a loop.")
		c.consume(token.SEMICOLON, "Expect ';' after 'continue'.")
		return
	}
	loop := c.fc.loops[len(c.fc.loops)-1]
	for i := len(c.fc.locals) - 1; i >= 0 && c.fc.locals[i].depth > loop.depth; i-- {
		c.emitOpcode(chunk.Pop)
	}
	c.emitLoop(loop.continueTarget)
	c.consume(token.SEMICOLON, "Expect ';' after 'continue'.")
}

func (c *Compiler) returnStatement() {
	if c.fc.isScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(token.SEMICOLON) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after return value.")
	c.emitOpcode(chunk.Return)
}

func (c *Compiler) switchStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after switch value.")

	c.beginScope()
	c.addLocal(token.Token{Kind: token.IDENT, Lexeme: ""})
	c.markInitialized()
	switchSlot := uint32(len(c.fc.locals) - 1)

	c.consume(token.LBRACE, "Expect '{' before switch body.")

	var endJumps []int
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		switch {
		case c.match(token.CASE):
			c.expression()
			c.consume(token.COLON, "Expect ':' after case value.")
			c.emitOpcodeArg(chunk.GetLocal, switchSlot)
			c.emitOpcode(chunk.Equal)
			nextCase := c.emitJump(chunk.JumpIfFalse)
			c.emitOpcode(chunk.Pop)
			for !c.check(token.CASE) && !c.check(token.DEFAULT) && !c.check(token.RBRACE) && !c.check(token.EOF) {
				c.declaration()
			}
			endJumps = append(endJumps, c.emitJump(chunk.Jump))
			c.patchJump(nextCase)
			c.emitOpcode(chunk.Pop)
		case c.match(token.DEFAULT):
			c.consume(token.COLON, "Expect ':' after 'default'.")
			for !c.check(token.CASE) && !c.check(token.DEFAULT) && !c.check(token.RBRACE) && !c.check(token.EOF) {
				c.declaration()
			}
			endJumps = append(endJumps, c.emitJump(chunk.Jump))
		default:
			c.errorAtCurrent("Expect 'case' or 'default'.")
			c.advance()
		}
	}
	c.consume(token.RBRACE, "Expect '}' after switch body.")

	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.endScope()
}

// --- expressions -----------------------------------------------------

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(min precedence) {
	c.advance()
	prefix := getRule(c.previous.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := min <= precAssignment
	prefix(c, canAssign)

	for min <= getRule(c.current.Kind).precedence {
		c.advance()
		infix := getRule(c.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQ) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *Compiler) string(_ bool) {
	lexeme := c.previous.Lexeme
	content := lexeme[1 : len(lexeme)-1]
	idx := c.fc.chunk.AddStringValue(content, func() value.Value {
		return object.NewStr(c.heap, content)
	})
	c.emitConstantIndex(idx)
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Kind {
	case token.FALSE:
		c.emitOpcode(chunk.False)
	case token.TRUE:
		c.emitOpcode(chunk.True)
	case token.NIL:
		c.emitOpcode(chunk.Nil)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	op := c.previous.Kind
	c.parsePrecedence(precUnary)
	switch op {
	case token.MINUS:
		c.emitOpcode(chunk.Negate)
	case token.BANG:
		c.emitOpcode(chunk.Not)
	}
}

func (c *Compiler) binary(_ bool) {
	op := c.previous.Kind
	r := getRule(op)
	c.parsePrecedence(r.precedence + 1)
	switch op {
	case token.PLUS:
		c.emitOpcode(chunk.Add)
	case token.MINUS:
		c.emitOpcode(chunk.Subtract)
	case token.STAR:
		c.emitOpcode(chunk.Multiply)
	case token.SLASH:
		c.emitOpcode(chunk.Divide)
	case token.BANG_EQ:
		c.emitOpcode(chunk.Equal)
		c.emitOpcode(chunk.Not)
	case token.EQ_EQ:
		c.emitOpcode(chunk.Equal)
	case token.GT:
		c.emitOpcode(chunk.Greater)
	case token.GT_EQ:
		c.emitOpcode(chunk.Less)
		c.emitOpcode(chunk.Not)
	case token.LT:
		c.emitOpcode(chunk.Less)
	case token.LT_EQ:
		c.emitOpcode(chunk.Greater)
		c.emitOpcode(chunk.Not)
	}
}

func (c *Compiler) and(_ bool) {
	endJump := c.emitJump(chunk.JumpIfFalse)
	c.emitOpcode(chunk.Pop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(_ bool) {
	elseJump := c.emitJump(chunk.JumpIfFalse)
	endJump := c.emitJump(chunk.Jump)
	c.patchJump(elseJump)
	c.emitOpcode(chunk.Pop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(_ bool) {
	argc := c.argumentList()
	c.emitOpcodeArg(chunk.Call, uint32(argc))
}

func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argc == maxArgs {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return argc
}

func (c *Compiler) variable(canAssign bool) { c.namedVariable(c.previous, canAssign) }

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp chunk.Opcode
	var arg uint32
	if slot, ok := c.resolveLocal(name.Lexeme); ok {
		arg, getOp, setOp = slot, chunk.GetLocal, chunk.SetLocal
	} else {
		arg, getOp, setOp = c.identifierConstant(name), chunk.GetGlobal, chunk.SetGlobal
	}

	if canAssign && c.match(token.EQ) {
		c.expression()
		c.emitOpcodeArg(setOp, arg)
		return
	}
	c.emitOpcodeArg(getOp, arg)
}
