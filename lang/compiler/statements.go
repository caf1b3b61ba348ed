package compiler

import (
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/token"
)

// declaration parses one top-level-or-block-level declaration and
// synchronizes to the next statement boundary if it produced a compile
// error, so a single mistake doesn't cascade.
func (c *Compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.VAR):
		c.varDeclaration(false)
	case c.match(token.FINAL):
		// both `final var x` and plain `final x` declare a final variable
		c.match(token.VAR)
		c.varDeclaration(true)
	case c.match(token.IMPORT):
		c.importStatement()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

// Only local variables exist in this implementation: the top-level script
// is itself a function, so a "global" declared at scope depth 0 is simply
// that function's local slot. parseVariable/defineVariable never branch on
// depth because of this.
func (c *Compiler) varDeclaration(isFinal bool) {
	c.parseVariable("Expect variable name.", isFinal)
	if c.match(token.EQUAL) {
		c.expression()
		// the initializer counts as the variable's first assignment, so a
		// final initialized here can never be assigned again
		c.fs.locals[len(c.fs.locals)-1].assignCount++
	} else {
		c.emitOp(object.OpNil)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")
	c.defineVariable()
}

func (c *Compiler) funDeclaration() {
	c.parseVariable("Expect function name.", false)
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable()
}

func (c *Compiler) classDeclaration() {
	c.consume(token.IDENT, "Expect class name.")
	nameTok := c.previous
	nameConst := c.identifierConstant(nameTok)
	c.declareVariable(nameTok, false)

	c.emitOpByte(object.OpClass, nameConst)
	c.defineVariable()

	cs := &classState{enclosing: c.class}
	c.class = cs

	if c.match(token.LESS) {
		c.consume(token.IDENT, "Expect superclass name.")
		superTok := c.previous
		if superTok.Lexeme == nameTok.Lexeme {
			c.error("A class can't inherit from itself.")
		}
		c.namedVariable(superTok, false)

		c.beginScope()
		c.addLocal(token.Token{Kind: token.IDENT, Lexeme: "super"}, false)
		c.markInitialized()

		c.namedVariable(nameTok, false)
		c.emitOp(object.OpInherit)
		cs.hasSuperclass = true
	}

	c.namedVariable(nameTok, false)
	c.consume(token.LEFT_BRACE, "Expect '{' before class body.")
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RIGHT_BRACE, "Expect '}' after class body.")
	c.emitOp(object.OpPop) // the class itself

	if cs.hasSuperclass {
		c.endScope()
	}
	c.class = cs.enclosing
}

func (c *Compiler) method() {
	c.consume(token.IDENT, "Expect method name.")
	nameTok := c.previous
	nameConst := c.identifierConstant(nameTok)

	fnType := TypeMethod
	if nameTok.Lexeme == "init" {
		fnType = TypeInitializer
	}
	c.function(fnType)
	c.emitOpByte(object.OpMethod, nameConst)
}

// importStatement compiles `import N1, N2;`: each name must be one of the
// natives the VM registers at startup (see natives.go); it is bound as an
// ordinary local variable, initialized by a dedicated OP_GET_NATIVE lookup
// rather than a general expression, since a native isn't reachable through
// any other Lox expression form.
func (c *Compiler) importStatement() {
	for {
		c.consume(token.IDENT, "Expect native name.")
		nameTok := c.previous
		if !IsNativeName(nameTok.Lexeme) {
			c.error("Unknown native '" + nameTok.Lexeme + "'.")
		}
		nameConst := c.identifierConstant(nameTok)
		c.declareVariable(nameTok, false)
		c.emitOpByte(object.OpGetNative, nameConst)
		c.defineVariable()
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.SEMICOLON, "Expect ';' after import.")
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.DEBUGGER):
		c.consume(token.SEMICOLON, "Expect ';' after 'debugger'.")
		c.emitOp(object.OpDebugBreakpoint)
	case c.match(token.EXIT):
		c.consume(token.SEMICOLON, "Expect ';' after 'exit'.")
		c.emitOp(object.OpExitVM)
	case c.match(token.LEFT_BRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.exprStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RIGHT_BRACE, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitOp(object.OpPrint)
}

func (c *Compiler) exprStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitOp(object.OpPop)
}

// returnStatement compiles `return;` or `return EXPR;`. At the top level the
// returned value becomes the script's exit code.
func (c *Compiler) returnStatement() {
	if c.match(token.SEMICOLON) {
		c.emitReturn()
		return
	}
	if c.fs.fnType == TypeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after return value.")
	c.emitOp(object.OpReturn)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LEFT_PAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.statement()

	elseJump := c.emitJump(object.OpJump)
	c.patchJump(thenJump)
	c.emitOp(object.OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// ---- loops -----------------------------------------------------------

func (c *Compiler) pushLoop() *loopContext {
	lc := &loopContext{depth: c.fs.scopeDepth}
	c.fs.loops = append(c.fs.loops, lc)
	// the caller just recorded the current offset as a backward-jump target
	c.fs.barrier = len(c.chunk().Code)
	return lc
}

func (c *Compiler) popLoop() *loopContext {
	n := len(c.fs.loops) - 1
	lc := c.fs.loops[n]
	c.fs.loops = c.fs.loops[:n]
	return lc
}

// patchBreaks patches every recorded break jump, which are always forward
// (the loop's exit always lies ahead of wherever `break` appeared).
func (c *Compiler) patchBreaks(lc *loopContext) {
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
}

// patchContinues patches every recorded continue jump against target. The
// direction isn't fixed: a while-loop's continue target (the condition
// re-check) precedes the loop body, so it patches as a backward LOOP; a
// for-loop's continue target (the flushed increment, emitted right after
// the body) follows every continue site inside that body, so it patches as
// an ordinary forward JUMP. The opcode byte itself — emitted speculatively
// as JUMP when the continue was parsed — is rewritten in place when the
// distance turns out to run backward.
func (c *Compiler) patchContinues(lc *loopContext, target int) {
	c.fs.barrier = len(c.chunk().Code)
	for _, j := range lc.continueJumps {
		if target <= j {
			c.chunk().Code[j-1] = byte(object.OpLoop)
			dist := j - target + 2
			c.chunk().Code[j] = byte(dist >> 8)
			c.chunk().Code[j+1] = byte(dist)
		} else {
			dist := target - j - 2
			if dist > 0xffff {
				c.error("Too much code to jump over.")
				continue
			}
			c.chunk().Code[j] = byte(dist >> 8)
			c.chunk().Code[j+1] = byte(dist)
		}
	}
}

func (c *Compiler) whileStatement() {
	conditionStart := len(c.chunk().Code)
	lc := c.pushLoop()

	c.consume(token.LEFT_PAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.statement()

	c.patchContinues(lc, conditionStart)
	c.emitLoop(conditionStart)

	c.patchJump(exitJump)
	c.emitOp(object.OpPop)
	c.patchBreaks(lc)
	c.popLoop()
}

func (c *Compiler) forStatement() {
	c.beginScope()

	c.consume(token.LEFT_PAREN, "Expect '(' after 'for'.")
	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration(false)
	default:
		c.exprStatement()
	}

	conditionStart := len(c.chunk().Code)
	lc := c.pushLoop()

	exitJump := -1
	if !c.check(token.SEMICOLON) {
		c.expression()
		exitJump = c.emitJump(object.OpJumpIfFalse)
		c.emitOp(object.OpPop)
	}
	c.consume(token.SEMICOLON, "Expect ';' after loop condition.")

	var incrementCode []byte
	if !c.check(token.RIGHT_PAREN) {
		c.pushEmitBuffer()
		c.expression()
		c.emitOp(object.OpPop)
		incrementCode = c.popEmitBuffer()
	}
	c.consume(token.RIGHT_PAREN, "Expect ')' after for clauses.")

	c.statement()

	continueTarget := len(c.chunk().Code)
	c.flushBytes(incrementCode)
	c.patchContinues(lc, continueTarget)
	c.emitLoop(conditionStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(object.OpPop)
	}
	c.patchBreaks(lc)
	c.popLoop()
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if len(c.fs.loops) == 0 {
		c.error("Can't use 'break' outside of a loop.")
		c.consume(token.SEMICOLON, "Expect ';' after 'break'.")
		return
	}
	lc := c.fs.loops[len(c.fs.loops)-1]
	c.emitPopsToDepth(lc.depth)
	j := c.emitJump(object.OpJump)
	lc.breakJumps = append(lc.breakJumps, j)
	c.consume(token.SEMICOLON, "Expect ';' after 'break'.")
}

func (c *Compiler) continueStatement() {
	if len(c.fs.loops) == 0 {
		c.error("Can't use 'continue' outside of a loop.")
		c.consume(token.SEMICOLON, "Expect ';' after 'continue'.")
		return
	}
	lc := c.fs.loops[len(c.fs.loops)-1]
	c.emitPopsToDepth(lc.depth)
	j := c.emitJump(object.OpJump)
	lc.continueJumps = append(lc.continueJumps, j)
	c.consume(token.SEMICOLON, "Expect ';' after 'continue'.")
}

// emitPopsToDepth emits the POP/CLOSE_UPVALUE sequence for every local
// declared deeper than depth, without removing them from the compiler's
// local stack: break/continue jump past the rest of the scope, they don't
// leave it the way a block's endScope does.
func (c *Compiler) emitPopsToDepth(depth int) {
	for i := len(c.fs.locals) - 1; i >= 0 && c.fs.locals[i].depth > depth; i-- {
		if c.fs.locals[i].isCaptured {
			c.emitOp(object.OpCloseUpvalue)
		} else {
			c.emitOp(object.OpPop)
		}
	}
}

// ---- scopes & variables --------------------------------------------------

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	locals := c.fs.locals
	n := len(locals)
	for n > 0 && locals[n-1].depth > c.fs.scopeDepth {
		if locals[n-1].isCaptured {
			c.emitOp(object.OpCloseUpvalue)
		} else {
			c.emitOp(object.OpPop)
		}
		n--
	}
	c.fs.locals = locals[:n]
}

func (c *Compiler) parseVariable(errMsg string, isFinal bool) {
	c.consume(token.IDENT, errMsg)
	c.declareVariable(c.previous, isFinal)
}

func (c *Compiler) declareVariable(nameTok token.Token, isFinal bool) {
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		l := c.fs.locals[i]
		if l.depth != -1 && l.depth < c.fs.scopeDepth {
			break
		}
		if l.name.Lexeme == nameTok.Lexeme {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(nameTok, isFinal)
}

func (c *Compiler) addLocal(nameTok token.Token, isFinal bool) int {
	if len(c.fs.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return 0
	}
	c.fs.locals = append(c.fs.locals, local{name: nameTok, depth: -1, isFinal: isFinal})
	return len(c.fs.locals) - 1
}

// markInitialized sets the most recently declared local's depth to the
// current scope depth, making it resolvable. Every local, including one
// declared at the outermost scope depth 0, goes through this — there is no
// depth at which a declaration skips becoming a local.
func (c *Compiler) markInitialized() {
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

func (c *Compiler) defineVariable() { c.markInitialized() }

func (c *Compiler) resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name.Lexeme == name {
			if fs.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if slot := c.resolveLocal(fs.enclosing, name); slot != -1 {
		fs.enclosing.locals[slot].isCaptured = true
		return c.addUpvalue(fs, byte(slot), true)
	}
	if idx := c.resolveUpvalue(fs.enclosing, name); idx != -1 {
		return c.addUpvalue(fs, byte(idx), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	fs.function.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1
}

// namedVariable compiles a read (or, if canAssign and a '=' follows, a
// write) of the variable named by tok.
func (c *Compiler) namedVariable(tok token.Token, canAssign bool) {
	var getOp, setOp object.OpCode
	slot := c.resolveLocal(c.fs, tok.Lexeme)
	if slot != -1 {
		getOp, setOp = object.OpGetLocal, object.OpSetLocal
	} else if slot = c.resolveUpvalue(c.fs, tok.Lexeme); slot != -1 {
		getOp, setOp = object.OpGetUpvalue, object.OpSetUpvalue
	} else {
		c.error("Undefined variable '" + tok.Lexeme + "'.")
		return
	}

	if canAssign && c.match(token.EQUAL) {
		if getOp == object.OpGetLocal && c.fs.locals[slot].isFinal && c.fs.locals[slot].assignCount > 0 {
			c.error("Cannot assign to final variable.")
		}
		c.expression()
		if getOp == object.OpGetLocal {
			c.fs.locals[slot].assignCount++
		}
		c.emitOpByte(setOp, byte(slot))
		return
	}
	if c.elideRedundantPop(setOp, byte(slot)) {
		return
	}
	c.emitOpByte(getOp, byte(slot))
}

// ---- functions ------------------------------------------------------------

// function compiles a function/method/lambda body: parameters through the
// closing brace. On return it has emitted an OP_CLOSURE (with its trailing
// upvalue descriptors) into the enclosing function's chunk.
func (c *Compiler) function(fnType FunctionType) {
	fn := c.heap.NewFunction()
	fs := &funcState{
		enclosing:  c.fs,
		function:   fn,
		fnType:     fnType,
		scopeDepth: c.fs.scopeDepth + 1,
		lastInstr:  -1,
		prevInstr:  -1,
	}
	// slot 0 holds `this` for methods/initializers, the closure itself otherwise
	recvName := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		recvName = "this"
	}
	fs.locals = append(fs.locals, local{name: token.Token{Lexeme: recvName}, depth: 0})
	c.fs = fs

	// interning the name can collect, so fn must already be rooted through
	// the funcState chain above. A lambda's prefix token is `fun` itself,
	// not a name; funDeclaration and method always leave the name
	// identifier in c.previous first.
	if fnType != TypeScript && c.previous.Kind == token.IDENT {
		fn.Name = c.heap.InternString(c.previous.Lexeme)
	}

	c.consume(token.LEFT_PAREN, "Expect '(' after function name.")
	if !c.check(token.RIGHT_PAREN) {
		for {
			if c.fs.function.Arity == 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			c.fs.function.Arity++
			c.parseVariable("Expect parameter name.", false)
			c.defineVariable()
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RIGHT_PAREN, "Expect ')' after parameters.")
	c.consume(token.LEFT_BRACE, "Expect '{' before function body.")
	c.block()

	upvalues := c.fs.upvalues
	compiled := c.endFunction()
	if compiled == nil {
		return
	}

	c.emitOpByte(object.OpClosure, c.makeConstant(compiled))
	for _, uv := range upvalues {
		b := byte(0)
		if uv.isLocal {
			b = 1
		}
		c.emitByte(b)
		c.emitByte(uv.index)
	}
}
