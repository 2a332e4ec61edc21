// Package compiler implements Copper's single-pass compiler: a
// recursive-descent parser fused directly with bytecode emission and
// lexical scope resolution. There is no separate AST or resolve phase;
// every construct is parsed and turned into bytecode in the same walk.
package compiler

import (
	"strconv"

	"github.com/mna/copper/internal/diag"
	"github.com/mna/copper/lang/scanner"
	"github.com/mna/copper/lang/token"
	"github.com/mna/copper/lang/types"
)

// globalBit is set on an LDVAR/SETVAR operand to address the machine's
// persistent globals vector rather than the current stack frame's locals.
// It halves the addressable slot count to 128 of each kind, a deliberate
// trade-off for keeping every operand a single byte.
const globalBit = 0x80

// prec orders operator binding strength, tightest last.
type prec int

const (
	precNone prec = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precExponent
	precUnary
	precPostfix
	precPrimary
)

// loopFrame tracks the patch points a break/continue inside an enclosing
// loop needs: continueTarget is the bytecode offset control resumes at
// (the increment clause of a for, or the condition of a while), and
// breakPatches accumulates the offsets of not-yet-patched break jumps.
type loopFrame struct {
	continueTarget int
	breakPatches   []int
}

// Compiler parses one translation unit and emits its Bytecode directly,
// threading a LexicalEnvironment through the walk so the same environment
// can be reused across successive REPL inputs to keep global state live.
type Compiler struct {
	path string
	sc   *scanner.Scanner
	env  *LexicalEnvironment
	bc   *Bytecode

	prev, cur token.Token
	errs      diag.ErrorList
	panicMode bool

	loops []*loopFrame
}

// Compile parses and compiles src as a translation unit rooted at path,
// resolving identifiers against env (which callers reuse across turns so
// globals persist), and returns the resulting Bytecode.
func Compile(path string, src []byte, env *LexicalEnvironment) (*Bytecode, error) {
	sc := scanner.New(path, src)
	c := &Compiler{path: path, sc: sc, env: env, bc: NewBytecode()}
	c.advance()
	for !c.check(token.EOF) {
		c.declaration()
	}
	c.bc.emit(RET, c.cur.Pos)

	var all diag.ErrorList
	all = append(all, sc.Errors()...)
	all = append(all, c.errs...)
	if err := all.Err(); err != nil {
		return nil, err
	}
	return c.bc, nil
}

func (c *Compiler) advance() {
	c.prev = c.cur
	c.cur = c.sc.Scan()
}

func (c *Compiler) check(k token.Kind) bool { return c.cur.Kind == k }

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) expect(k token.Kind, msg string) {
	if c.check(k) {
		c.advance()
		return
	}
	c.errorAt(c.cur, "%s", msg)
}

func (c *Compiler) errorAt(tok token.Token, format string, args ...interface{}) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	line, _ := tok.Pos.LineCol()
	c.errs.Add(c.path, tok.Pos, c.sc.Line(line), format, args...)
}

// synchronize discards tokens after a syntax error until a point a new
// statement can plausibly start from, so one mistake reports as one
// diagnostic instead of cascading into dozens.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		if c.prev.Kind == token.SEMI {
			return
		}
		switch c.cur.Kind {
		case token.LET, token.CONST, token.IF, token.WHILE, token.FOR,
			token.PRINT, token.BREAK, token.CONTINUE, token.LBRACE:
			return
		}
		c.advance()
	}
}

func (c *Compiler) emitConstant(v types.Value, pos token.Pos) {
	idx := c.bc.addConstant(v)
	c.bc.emitArg(LDC, idx, pos)
}

func encodeSlot(r Resolved) byte {
	if r.Global {
		return byte(r.Slot) | globalBit
	}
	return byte(r.Slot)
}

// --- statements ---

func (c *Compiler) declaration() {
	switch {
	case c.match(token.LET):
		c.varDecl(false)
	case c.match(token.CONST):
		c.varDecl(true)
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDecl(isConst bool) {
	if !c.check(token.IDENT) {
		c.errorAt(c.cur, "expected variable name")
		return
	}
	nameTok := c.cur
	c.advance()

	if c.match(token.ASSIGN) {
		c.expression()
	} else if isConst {
		c.errorAt(nameTok, "Missing initializer in const declaration: %s", nameTok.Lexeme)
		c.emitConstant(types.Undefined{}, nameTok.Pos)
	} else {
		c.emitConstant(types.Undefined{}, nameTok.Pos)
	}
	c.expect(token.SEMI, "expected ';' after variable declaration")

	wasGlobal := c.env.AtTopLevel()
	slot, ok := c.env.Declare(nameTok.Lexeme, isConst)
	if !ok {
		c.errorAt(nameTok, "Redeclaration of variable: %s", nameTok.Lexeme)
		return
	}
	if wasGlobal {
		// Globals live in the machine's persistent vector, not on the value
		// stack, so the initializer's value must be copied out explicitly.
		c.bc.emitArg(SETVAR, byte(slot)|globalBit, nameTok.Pos)
		c.bc.emit(POP, nameTok.Pos)
	}
	// A local's initializer is left sitting on the stack: that slot IS the
	// variable's storage for the rest of its scope.
}

func (c *Compiler) statement() {
	switch {
	case c.check(token.PRINT):
		c.printStmt()
	case c.check(token.IF):
		c.ifStmt()
	case c.check(token.WHILE):
		c.whileStmt()
	case c.check(token.FOR):
		c.forStmt()
	case c.check(token.LBRACE):
		c.advance()
		c.block()
	case c.check(token.BREAK):
		c.breakStmt()
	case c.check(token.CONTINUE):
		c.continueStmt()
	default:
		c.exprStmt()
	}
}

func (c *Compiler) block() {
	c.env.BeginScope()
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.expect(token.RBRACE, "expected '}' to close block")
	if n := c.env.CloseScope(); n > 0 {
		c.bc.emitArg(POPN, byte(n), c.prev.Pos)
	}
}

func (c *Compiler) printStmt() {
	pos := c.cur.Pos
	c.advance()
	c.expression()
	c.expect(token.SEMI, "expected ';' after print statement")
	c.bc.emit(PRINT, pos)
}

func (c *Compiler) exprStmt() {
	pos := c.cur.Pos
	c.expression()
	c.expect(token.SEMI, "expected ';' after expression statement")
	c.bc.emit(POP, pos)
}

func (c *Compiler) ifStmt() {
	pos := c.cur.Pos
	c.advance()
	c.expect(token.LPAREN, "expected '(' after 'if'")
	c.expression()
	c.expect(token.RPAREN, "expected ')' after condition")

	elseJump := c.bc.emitArg(JNT, 0, pos)
	c.statement()

	if c.match(token.ELSE) {
		endJump := c.bc.emitArg(JMP, 0, pos)
		c.patchJump(elseJump)
		c.statement()
		c.patchJump(endJump)
	} else {
		c.patchJump(elseJump)
	}
}

func (c *Compiler) whileStmt() {
	pos := c.cur.Pos
	c.advance()
	c.expect(token.LPAREN, "expected '(' after 'while'")
	loopStart := c.bc.here()
	c.expression()
	c.expect(token.RPAREN, "expected ')' after condition")

	exitJump := c.bc.emitArg(JNT, 0, pos)
	c.loops = append(c.loops, &loopFrame{continueTarget: loopStart})
	c.statement()
	c.bc.emitArg(JMP, 0, pos)
	c.patchJumpTo(c.bc.here()-2, loopStart)
	c.patchJump(exitJump)
	c.endLoop()
}

func (c *Compiler) forStmt() {
	pos := c.cur.Pos
	c.advance()
	c.expect(token.LPAREN, "expected '(' after 'for'")
	c.env.BeginScope()

	switch {
	case c.match(token.SEMI):
		// no initializer
	case c.match(token.LET):
		c.varDecl(false)
	default:
		c.exprStmt()
	}

	loopStart := c.bc.here()
	exitJump := -1
	if !c.check(token.SEMI) {
		c.expression()
		exitJump = c.bc.emitArg(JNT, 0, c.cur.Pos)
	}
	c.expect(token.SEMI, "expected ';' after loop condition")

	if !c.check(token.RPAREN) {
		bodyJump := c.bc.emitArg(JMP, 0, c.cur.Pos)
		incrementStart := c.bc.here()
		c.expression()
		c.bc.emit(POP, c.cur.Pos)
		c.bc.emitArg(JMP, 0, c.cur.Pos)
		c.patchJumpTo(c.bc.here()-2, loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}
	c.expect(token.RPAREN, "expected ')' after for clauses")

	c.loops = append(c.loops, &loopFrame{continueTarget: loopStart})
	c.statement()
	c.bc.emitArg(JMP, 0, pos)
	c.patchJumpTo(c.bc.here()-2, loopStart)
	if exitJump != -1 {
		c.patchJump(exitJump)
	}
	c.endLoop()

	if n := c.env.CloseScope(); n > 0 {
		c.bc.emitArg(POPN, byte(n), pos)
	}
}

func (c *Compiler) endLoop() {
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, off := range frame.breakPatches {
		c.patchJump(off)
	}
}

func (c *Compiler) breakStmt() {
	pos := c.cur.Pos
	c.advance()
	c.expect(token.SEMI, "expected ';' after 'break'")
	if len(c.loops) == 0 {
		c.errorAt(c.prev, "Illegal break statement")
		return
	}
	off := c.bc.emitArg(JMP, 0, pos)
	frame := c.loops[len(c.loops)-1]
	frame.breakPatches = append(frame.breakPatches, off)
}

func (c *Compiler) continueStmt() {
	pos := c.cur.Pos
	c.advance()
	c.expect(token.SEMI, "expected ';' after 'continue'")
	if len(c.loops) == 0 {
		c.errorAt(c.prev, "Illegal continue statement")
		return
	}
	target := c.loops[len(c.loops)-1].continueTarget
	off := c.bc.emitArg(JMP, 0, pos)
	c.patchJumpTo(off, target)
}

// patchJump rewrites the jump instruction at off to target the
// instruction that will be emitted next.
func (c *Compiler) patchJump(off int) {
	c.patchJumpTo(off, c.bc.here())
}

func (c *Compiler) patchJumpTo(off, target int) {
	if target > 255 {
		c.errorAt(c.cur, "program too large: jump target %d exceeds the 1-byte operand range", target)
		return
	}
	c.bc.patchArg(off, byte(target))
}

// --- expressions ---

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func precedenceOf(k token.Kind) prec {
	switch k {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQL, token.NEQ:
		return precEquality
	case token.LT, token.LE, token.GT, token.GE:
		return precComparison
	case token.PLUS, token.MINUS:
		return precTerm
	case token.STAR, token.SLASH, token.PERCENT:
		return precFactor
	case token.STARSTAR:
		return precExponent
	case token.LBRACK, token.DOT:
		return precPostfix
	default:
		return precNone
	}
}

func (c *Compiler) parsePrecedence(min prec) {
	canAssign := min <= precAssignment
	c.parsePrefix(canAssign)
	for precedenceOf(c.cur.Kind) >= min && precedenceOf(c.cur.Kind) != precNone {
		c.parseInfix(canAssign)
	}
	if canAssign && c.check(token.ASSIGN) {
		c.errorAt(c.cur, "invalid assignment target")
		c.advance()
		c.expression()
	}
}

func (c *Compiler) parsePrefix(canAssign bool) {
	tok := c.cur
	switch tok.Kind {
	case token.NUMBER:
		c.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			c.errorAt(tok, "invalid number literal %q", tok.Lexeme)
			f = 0
		}
		c.emitConstant(types.Number(f), tok.Pos)
	case token.STRING:
		c.advance()
		c.emitConstant(types.String(tok.Lexeme), tok.Pos)
	case token.BACK_TICK:
		c.advance()
		c.templateString()
	case token.TRUE:
		c.advance()
		c.emitConstant(types.Boolean(true), tok.Pos)
	case token.FALSE:
		c.advance()
		c.emitConstant(types.Boolean(false), tok.Pos)
	case token.NULL:
		c.advance()
		c.emitConstant(types.Null{}, tok.Pos)
	case token.UNDEFINED:
		c.advance()
		c.emitConstant(types.Undefined{}, tok.Pos)
	case token.IDENT:
		c.namedVariable(canAssign)
	case token.LPAREN:
		c.advance()
		c.expression()
		c.expect(token.RPAREN, "expected ')' after expression")
	case token.LBRACK:
		c.arrayLiteral()
	case token.MINUS:
		c.advance()
		c.parsePrecedence(precUnary)
		c.bc.emit(NEG, tok.Pos)
	case token.NOT:
		c.advance()
		c.parsePrecedence(precUnary)
		c.bc.emit(NOT, tok.Pos)
	case token.INCR, token.DECR:
		c.prefixIncrDecr(tok.Kind)
	default:
		c.errorAt(tok, "expected an expression, found %s", tok.Kind)
		c.advance()
	}
}

func (c *Compiler) parseInfix(canAssign bool) {
	tok := c.cur
	switch tok.Kind {
	case token.PLUS:
		c.advance()
		c.parsePrecedence(precTerm + 1)
		c.bc.emit(ADD, tok.Pos)
	case token.MINUS:
		c.advance()
		c.parsePrecedence(precTerm + 1)
		c.bc.emit(SUB, tok.Pos)
	case token.STAR:
		c.advance()
		c.parsePrecedence(precFactor + 1)
		c.bc.emit(MUL, tok.Pos)
	case token.SLASH:
		c.advance()
		c.parsePrecedence(precFactor + 1)
		c.bc.emit(DIV, tok.Pos)
	case token.PERCENT:
		c.advance()
		c.parsePrecedence(precFactor + 1)
		c.bc.emit(MOD, tok.Pos)
	case token.STARSTAR:
		c.advance()
		c.parsePrecedence(precExponent) // right-associative
		c.bc.emit(EXP, tok.Pos)
	case token.LT:
		c.advance()
		c.parsePrecedence(precComparison + 1)
		c.bc.emit(LST, tok.Pos)
	case token.LE:
		c.advance()
		c.parsePrecedence(precComparison + 1)
		c.bc.emit(LSE, tok.Pos)
	case token.GT:
		c.advance()
		c.parsePrecedence(precComparison + 1)
		c.bc.emit(GRT, tok.Pos)
	case token.GE:
		c.advance()
		c.parsePrecedence(precComparison + 1)
		c.bc.emit(GRE, tok.Pos)
	case token.EQL:
		c.advance()
		c.parsePrecedence(precEquality + 1)
		c.bc.emit(EQU, tok.Pos)
	case token.NEQ:
		c.advance()
		c.parsePrecedence(precEquality + 1)
		c.bc.emit(NEQ, tok.Pos)
	case token.AND:
		c.advance()
		c.parsePrecedence(precAnd + 1)
		c.bc.emit(AND, tok.Pos)
	case token.OR:
		c.advance()
		c.parsePrecedence(precOr + 1)
		c.bc.emit(OR, tok.Pos)
	case token.LBRACK:
		c.advance()
		c.indexInfix(canAssign)
	case token.DOT:
		c.advance()
		c.dotInfix(canAssign)
	default:
		c.errorAt(tok, "unexpected token %s", tok.Kind)
		c.advance()
	}
}

func (c *Compiler) namedVariable(canAssign bool) {
	tok := c.cur
	c.advance()
	resolved, ok := c.env.Resolve(tok.Lexeme)
	if !ok {
		c.errorAt(tok, "Undefined variable: %s", tok.Lexeme)
		return
	}
	slotArg := encodeSlot(resolved)

	if canAssign && c.check(token.ASSIGN) {
		c.advance()
		if resolved.IsConst {
			c.errorAt(tok, "cannot assign to const variable %q", tok.Lexeme)
		}
		c.expression()
		c.bc.emitArg(SETVAR, slotArg, tok.Pos)
		return
	}
	if canAssign && (c.check(token.INCR) || c.check(token.DECR)) {
		isIncr := c.check(token.INCR)
		c.advance()
		if resolved.IsConst {
			c.errorAt(tok, "cannot modify const variable %q", tok.Lexeme)
		}
		c.bc.emitArg(LDVAR, slotArg, tok.Pos) // kept as the postfix expression's result
		c.bc.emitArg(LDVAR, slotArg, tok.Pos) // reloaded to compute the new value
		if isIncr {
			c.bc.emit(INCR, tok.Pos)
		} else {
			c.bc.emit(DECR, tok.Pos)
		}
		c.bc.emitArg(SETVAR, slotArg, tok.Pos)
		c.bc.emit(POP, tok.Pos)
		return
	}
	c.bc.emitArg(LDVAR, slotArg, tok.Pos)
}

func (c *Compiler) prefixIncrDecr(op token.Kind) {
	opTok := c.cur
	c.advance()
	if !c.check(token.IDENT) {
		c.errorAt(c.cur, "expected variable name after '%s'", opTok.Kind)
		return
	}
	nameTok := c.cur
	c.advance()
	resolved, ok := c.env.Resolve(nameTok.Lexeme)
	if !ok {
		c.errorAt(nameTok, "Undefined variable: %s", nameTok.Lexeme)
		return
	}
	if resolved.IsConst {
		c.errorAt(nameTok, "cannot modify const variable %q", nameTok.Lexeme)
	}
	slotArg := encodeSlot(resolved)
	c.bc.emitArg(LDVAR, slotArg, nameTok.Pos)
	if op == token.INCR {
		c.bc.emit(INCR, nameTok.Pos)
	} else {
		c.bc.emit(DECR, nameTok.Pos)
	}
	c.bc.emitArg(SETVAR, slotArg, nameTok.Pos)
}

func (c *Compiler) indexInfix(canAssign bool) {
	pos := c.prev.Pos
	c.expression()
	c.expect(token.RBRACK, "expected ']' after index expression")
	if canAssign && c.check(token.ASSIGN) {
		c.advance()
		c.expression()
		c.bc.emit(SETPROP, pos)
		return
	}
	c.bc.emit(LDPROP, pos)
}

func (c *Compiler) dotInfix(canAssign bool) {
	pos := c.prev.Pos
	if !c.check(token.IDENT) {
		c.errorAt(c.cur, "expected property name after '.'")
		return
	}
	name := c.cur.Lexeme
	c.advance()
	c.emitConstant(types.String(name), pos)
	if canAssign && c.check(token.ASSIGN) {
		c.advance()
		c.expression()
		c.bc.emit(SETPROP, pos)
		return
	}
	c.bc.emit(LDPROP, pos)
}

func (c *Compiler) arrayLiteral() {
	pos := c.cur.Pos
	c.advance() // '['
	count := 0
	if !c.check(token.RBRACK) {
		c.expression()
		count++
		for c.match(token.COMMA) {
			if c.check(token.RBRACK) {
				break
			}
			c.expression()
			count++
		}
	}
	c.expect(token.RBRACK, "expected ']' after array elements")
	if count > 255 {
		c.errorAt(c.prev, "array literal has too many elements")
		count = 255
	}
	c.bc.emitArg(NEWARR, byte(count), pos)
}

// templateString compiles a back-tick template string, starting right
// after the opening back-tick has been consumed. It lowers the literal
// chunks and ${...} interpolations into a chain of string concatenations,
// always seeding the accumulator with a (possibly empty) string constant
// first so every subsequent ADD is guaranteed to see a string operand and
// therefore stringify the other side.
func (c *Compiler) templateString() {
	count := 0
	for {
		chunk := c.cur
		c.emitConstant(types.String(chunk.Lexeme), chunk.Pos)
		if count > 0 {
			c.bc.emit(ADD, chunk.Pos)
		}
		count++

		if c.sc.PeekIsInterpolation() {
			startTok := c.sc.ScanInterpolationStart()
			c.cur = startTok
			c.advance()
			c.expression()
			c.bc.emit(ADD, startTok.Pos)
			c.expect(token.CLOSE_BRACE, "expected '}' to close interpolation")
			continue
		}

		bt := c.sc.ScanBackTick()
		c.cur = bt
		c.advance()
		return
	}
}
