// Package compiler implements the single-pass Pratt-style parser that turns
// Lox source text directly into bytecode, with no separate AST stage: each
// grammar production emits its instructions into the enclosing function's
// Chunk as it is recognized.
package compiler

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/scanner"
	"github.com/loxlang/loxvm/lang/token"
)

// FunctionType distinguishes the four shapes of compiled function body,
// which differ in how `this` and implicit returns are handled.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

const maxLocals = 256
const maxUpvalues = 256

// local is one entry of a funcState's local-variable stack.
type local struct {
	name        token.Token
	depth       int // -1 while the variable's own initializer is still compiling
	isFinal     bool
	assignCount int
	isCaptured  bool
}

// upvalueDesc records where a funcState's upvalue comes from: either slot
// index of the immediately enclosing function's locals (isLocal), or slot
// index of the enclosing function's own upvalue array otherwise.
type upvalueDesc struct {
	index   byte
	isLocal bool
}

// loopContext tracks the jumps a break/continue inside the loop body needs
// patched once the loop's extent is known.
type loopContext struct {
	depth         int // scope depth at loop entry; break/continue pop back to this
	continueJumps []int
	breakJumps    []int
}

// funcState holds per-function compiler state; one is pushed for the
// top-level script and for every nested function, method or lambda.
type funcState struct {
	enclosing *funcState

	function *object.ObjFunction
	fnType   FunctionType

	locals     []local
	scopeDepth int
	upvalues   []upvalueDesc
	loops      []*loopContext

	// lastInstr and prevInstr are the code offsets of the two most recently
	// emitted instructions (-1 when unknown), and barrier is the offset below
	// which already-patched jump targets or recorded loop starts forbid
	// rewriting. Together they drive the redundant set/pop elision in
	// namedVariable.
	lastInstr int
	prevInstr int
	barrier   int
}

// classState tracks whether the class currently being compiled has a
// superclass, consulted when compiling `super.NAME`.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Compiler turns one chunk of Lox source into one top-level ObjFunction. A
// Compiler instance is single-use: call Compile once.
type Compiler struct {
	heap *object.Heap
	scan scanner.Scanner

	previous token.Token
	current  token.Token

	hadError  bool
	panicMode bool
	errOut    io.Writer // where compile diagnostics are written; defaults to os.Stderr

	fs    *funcState
	class *classState

	// emitBuffers is the deferred-emission stack used by the for-loop's
	// increment clause: emitByte writes to the top buffer if one is pushed,
	// otherwise straight to the current function's chunk.
	emitBuffers [][]byte
}

// New returns a Compiler that allocates objects (functions, strings) through
// heap and registers itself as a GC root for the duration of Compile.
func New(heap *object.Heap) *Compiler {
	return &Compiler{heap: heap, errOut: os.Stderr}
}

// SetErrOut redirects compile diagnostics to w instead of os.Stderr.
func (c *Compiler) SetErrOut(w io.Writer) { c.errOut = w }

// Compile compiles source as an implicit top-level function. It returns the
// function and true on success; on a compile error it returns nil, false
// after printing every diagnostic it can produce without cascading.
func (c *Compiler) Compile(source string) (*object.ObjFunction, bool) {
	remove := c.heap.AddTemporaryRoot(c)
	defer remove()

	c.scan.Init(source)
	c.fs = &funcState{
		function:  c.heap.NewFunction(),
		fnType:    TypeScript,
		lastInstr: -1,
		prevInstr: -1,
	}
	// slot 0 is reserved to align with the call frame's receiver/closure slot
	c.fs.locals = append(c.fs.locals, local{depth: 0})

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}

	fn := c.endFunction()
	return fn, !c.hadError
}

// GCRoots implements object.RootSource: every function on the compiler's
// enclosing-function stack must survive a GC that runs mid-compilation,
// since they are not yet reachable from anywhere else.
func (c *Compiler) GCRoots(dst []object.Value) []object.Value {
	for fs := c.fs; fs != nil; fs = fs.enclosing {
		dst = append(dst, fs.function)
	}
	return dst
}

// ---- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scan.Scan()
		if c.current.Kind != token.ILLEGAL {
			break
		}
		c.errorAtCurrent(c.current.Message)
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

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	line, _ := tok.Pos.LineCol()
	switch tok.Kind {
	case token.EOF:
		fmt.Fprintf(c.errOut, "[line %d] Error at end: %s\n", line, msg)
	case token.ILLEGAL:
		fmt.Fprintf(c.errOut, "[line %d] Error: %s\n", line, msg)
	default:
		fmt.Fprintf(c.errOut, "[line %d] Error at '%s': %s\n", line, tok.Lexeme, msg)
	}
	c.hadError = true
}

// synchronize discards tokens until it reaches a likely statement boundary,
// so one error does not cascade into a wall of spurious follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.SEMICOLON {
			return
		}
		switch c.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FINAL, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// ---- emission -----------------------------------------------------------

func (c *Compiler) chunk() *object.Chunk { return &c.fs.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	if n := len(c.emitBuffers); n > 0 {
		c.emitBuffers[n-1] = append(c.emitBuffers[n-1], b)
		return
	}
	line, _ := c.previous.Pos.LineCol()
	c.chunk().Write(b, line)
}

func (c *Compiler) emitOp(op object.OpCode) {
	if len(c.emitBuffers) == 0 {
		c.fs.prevInstr = c.fs.lastInstr
		c.fs.lastInstr = len(c.chunk().Code)
	}
	c.emitByte(byte(op))
}
func (c *Compiler) emitOps(op1, op2 object.OpCode)   { c.emitOp(op1); c.emitOp(op2) }
func (c *Compiler) emitOpByte(op object.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

// pushEmitBuffer redirects emitByte into a fresh buffer; popEmitBuffer
// returns and removes it. Used to compile the for-loop's increment clause in
// source order but emit it after the loop body.
func (c *Compiler) pushEmitBuffer() {
	c.emitBuffers = append(c.emitBuffers, nil)
}

func (c *Compiler) popEmitBuffer() []byte {
	n := len(c.emitBuffers) - 1
	buf := c.emitBuffers[n]
	c.emitBuffers = c.emitBuffers[:n]
	return buf
}

func (c *Compiler) flushBytes(buf []byte) {
	for _, b := range buf {
		c.emitByte(b)
	}
	// the flushed bytes carry no instruction-boundary bookkeeping
	c.fs.prevInstr = -1
	c.fs.lastInstr = -1
	c.fs.barrier = len(c.chunk().Code)
}

// emitJump emits op followed by a placeholder 16-bit offset and returns the
// offset of the first placeholder byte, to be patched once the jump target
// is known.
func (c *Compiler) emitJump(op object.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	dist := len(c.chunk().Code) - offset - 2
	if dist > math.MaxUint16 {
		c.error("Too much code to jump over.")
		return
	}
	c.chunk().Code[offset] = byte(dist >> 8)
	c.chunk().Code[offset+1] = byte(dist)
	// the patched jump now targets the current end of code; nothing before
	// this point may be rewritten away anymore
	c.fs.barrier = len(c.chunk().Code)
}

// elideRedundantPop is the one peephole optimization: when a read of a
// variable immediately follows an assignment to it as a statement, the
// emitted SET s; POP; GET s collapses to just SET s — the assignment's
// result is already the value the read wants. `x = 1; print x;` becomes the
// equivalent of `print x = 1;`. Reports whether the GET was elided. It
// refuses to rewrite across a buffer flush, a patched jump target or a
// recorded loop start (the barrier), since removing the POP byte would move
// those targets.
func (c *Compiler) elideRedundantPop(setOp object.OpCode, slot byte) bool {
	if len(c.emitBuffers) > 0 {
		return false
	}
	fs := c.fs
	code := c.chunk().Code
	n := len(code)
	if fs.prevInstr < 0 || fs.prevInstr < fs.barrier || fs.prevInstr != n-3 || fs.lastInstr != n-1 {
		return false
	}
	if object.OpCode(code[n-3]) != setOp || code[n-2] != slot || object.OpCode(code[n-1]) != object.OpPop {
		return false
	}
	c.chunk().DropLastByte()
	fs.lastInstr = fs.prevInstr
	fs.prevInstr = -1
	return true
}

// emitLoop emits a backward LOOP jump to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(object.OpLoop)
	dist := len(c.chunk().Code) - loopStart + 2
	if dist > math.MaxUint16 {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(dist >> 8))
	c.emitByte(byte(dist))
}

// emitReturn emits the implicit trailing return for the current function
// body. The top-level script returns a number (its exit code) rather than
// nil, since the VM's outermost RETURN hands that value to the host as the
// process exit status.
func (c *Compiler) emitReturn() {
	switch c.fs.fnType {
	case TypeInitializer:
		c.emitOpByte(object.OpGetLocal, 0)
	case TypeScript:
		c.emitConstant(object.Number(0))
	default:
		c.emitOp(object.OpNil)
	}
	c.emitOp(object.OpReturn)
}

func (c *Compiler) makeConstant(v object.Value) byte {
	idx, ok := c.chunk().AddConstant(v)
	if !ok {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v object.Value) {
	c.emitOpByte(object.OpConstant, c.makeConstant(v))
}

func (c *Compiler) identifierConstant(tok token.Token) byte {
	return c.makeConstant(c.heap.InternString(tok.Lexeme))
}

// endFunction emits the implicit trailing return, pops the function frame,
// and returns the finished function, or nil on error: the caller already
// has hadError latched for reporting, so no error type is threaded back.
func (c *Compiler) endFunction() *object.ObjFunction {
	c.emitReturn()
	fn := c.fs.function
	c.fs = c.fs.enclosing
	if c.hadError {
		return nil
	}
	return fn
}
