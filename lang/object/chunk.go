package object

// OpCode identifies a single bytecode instruction. Every opcode is one byte;
// operands (constant indices, local slots, upvalue indices, jump offsets)
// follow inline in the code stream at fixed widths — one byte for an index,
// two bytes big-endian for a jump offset.
type OpCode byte

const ( //nolint:revive
	OpConstant           OpCode = iota // - CONSTANT<k>      value
	OpNil                              // -    NIL           nil
	OpTrue                             // -    TRUE          true
	OpFalse                            // -    FALSE         false
	OpPop                              // x    POP           -
	OpPopN                             // x1..xn POP_MANY<n> -
	OpLoadInlineConstant               // -    LOAD_INLINE_CONSTANT<typed literal>  value

	OpAdd      // a b ADD      a+b  (numbers, or string concatenation)
	OpSubtract // a b SUBTRACT a-b
	OpMultiply // a b MULTIPLY a*b
	OpDivide   // a b DIVIDE   a/b
	OpExponent // a b EXPONENT a**b
	OpNegate   // x   NEGATE   -x
	OpNot      // x   NOT      !x
	OpEqual    // a b EQUAL    a==b
	OpGreater  // a b GREATER  a>b
	OpLess     // a b LESS     a<b

	OpIndex      // a i     INDEX          a[i]
	OpSliceIndex // a lo hi SLICE_INDEX    a[lo:hi]
	OpLength     // -       GET_LENGTH<n>  len of the value n slots below the top (does not pop)

	OpGetLocal     // -     GET_LOCAL<slot>     value
	OpSetLocal     // value SET_LOCAL<slot>     value
	OpGetUpvalue   // -     GET_UPVALUE<i>      value
	OpSetUpvalue   // value SET_UPVALUE<i>      value
	OpCloseUpvalue // x     CLOSE_UPVALUE       -      (x promoted to a heap cell)

	OpJump        // -    JUMP<off16>          -
	OpJumpIfFalse // cond JUMP_IF_FALSE<off16> cond   (does not pop)
	OpLoop        // -    LOOP<off16>          -

	OpCall    // callee arg1..argn CALL<argc>      result
	OpClosure // -                 CLOSURE<k>{(is_local,index)*upvalueCount} closure
	OpReturn  // value             RETURN          -   (unwinds the frame)

	OpClass       // -          CLASS<nameId>           class
	OpInherit     // super sub  INHERIT                 super
	OpMethod      // class fn   METHOD<nameId>           class
	OpGetProperty // recv       GET_PROPERTY<nameId>     value
	OpSetProperty // recv value SET_PROPERTY<nameId>     value
	OpInvoke      // recv arg1..argn INVOKE<nameId,argc>  result
	OpGetSuper    // recv super GET_SUPER<nameId>        boundMethod
	OpSuperInvoke // recv arg1..argn super SUPER_INVOKE<nameId,argc> result

	OpPrint           // value PRINT               -
	OpDebugBreakpoint // -     DEBUG_BREAK_POINT   -
	OpExitVM          // -     EXIT_VM             -

	// OpGetNative looks a name up in the VM's native-function table. The
	// `import` statement needs it because it binds a name to a value
	// that, unlike every other binding source, doesn't come from a Lox
	// expression, a local slot, or a constant, only from the host-
	// registered native table.
	OpGetNative // - GET_NATIVE<nameId> value
)

var opNames = [...]string{
	OpConstant:           "OP_CONSTANT",
	OpNil:                "OP_NIL",
	OpTrue:               "OP_TRUE",
	OpFalse:              "OP_FALSE",
	OpPop:                "OP_POP",
	OpPopN:               "OP_POP_MANY",
	OpLoadInlineConstant: "OP_LOAD_INLINE_CONSTANT",
	OpAdd:                "OP_ADD",
	OpSubtract:           "OP_SUBTRACT",
	OpMultiply:           "OP_MULTIPLY",
	OpDivide:             "OP_DIVIDE",
	OpExponent:           "OP_EXPONENT",
	OpNegate:             "OP_NEGATE",
	OpNot:                "OP_NOT",
	OpEqual:              "OP_EQUAL",
	OpGreater:            "OP_GREATER",
	OpLess:               "OP_LESS",
	OpIndex:              "OP_ACCESS_INDEX",
	OpSliceIndex:         "OP_SLICE_INDEX",
	OpLength:             "OP_GET_LENGTH",
	OpGetLocal:           "OP_GET_LOCAL",
	OpSetLocal:           "OP_SET_LOCAL",
	OpGetUpvalue:         "OP_GET_UPVALUE",
	OpSetUpvalue:         "OP_SET_UPVALUE",
	OpCloseUpvalue:       "OP_CLOSE_UPVALUE",
	OpJump:               "OP_JUMP",
	OpJumpIfFalse:        "OP_JUMP_IF_FALSE",
	OpLoop:               "OP_LOOP",
	OpCall:               "OP_CALL",
	OpClosure:            "OP_CLOSURE",
	OpReturn:             "OP_RETURN",
	OpClass:              "OP_CLASS",
	OpInherit:            "OP_INHERIT",
	OpMethod:             "OP_METHOD",
	OpGetProperty:        "OP_GET_PROPERTY",
	OpSetProperty:        "OP_SET_PROPERTY",
	OpInvoke:             "OP_INVOKE",
	OpGetSuper:           "OP_GET_SUPER",
	OpSuperInvoke:        "OP_SUPER_INVOKE",
	OpPrint:              "OP_PRINT",
	OpDebugBreakpoint:    "OP_DEBUG_BREAK_POINT",
	OpExitVM:             "OP_EXIT_VM",
	OpGetNative:          "OP_GET_NATIVE",
}

func (op OpCode) String() string {
	if int(op) < 0 || int(op) >= len(opNames) || opNames[op] == "" {
		return "OP_UNKNOWN"
	}
	return opNames[op]
}

// MaxConstants is the largest number of constants a single Chunk may hold;
// constant operands are single bytes.
const MaxConstants = 256

// lineRun is one entry of a Chunk's run-length-encoded line table: Count
// consecutive instruction bytes all originated from source Line.
type lineRun struct {
	line  int
	count int
}

// Chunk is a self-contained unit of bytecode, owned by exactly one
// ObjFunction: the code vector, its constant pool, and the RLE line table
// used to map a code offset back to a source line for error reporting.
type Chunk struct {
	Code      []byte
	Constants []Value
	lines     []lineRun
}

// Write appends byte b, originating from source line, to the code vector,
// extending the RLE line table.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	if n := len(c.lines); n > 0 && c.lines[n-1].line == line {
		c.lines[n-1].count++
		return
	}
	c.lines = append(c.lines, lineRun{line: line, count: 1})
}

// DropLastByte removes the most recently written code byte, undoing one
// Write; the compiler's redundant set/pop elision uses it to delete a POP it
// has just emitted. The RLE line table shrinks in step.
func (c *Chunk) DropLastByte() {
	c.Code = c.Code[:len(c.Code)-1]
	if n := len(c.lines); n > 0 {
		c.lines[n-1].count--
		if c.lines[n-1].count == 0 {
			c.lines = c.lines[:n-1]
		}
	}
}

// LineAt returns the source line that produced the instruction byte at
// offset, scanning the RLE run table.
func (c *Chunk) LineAt(offset int) int {
	remaining := offset
	for _, run := range c.lines {
		if remaining < run.count {
			return run.line
		}
		remaining -= run.count
	}
	if len(c.lines) == 0 {
		return 0
	}
	return c.lines[len(c.lines)-1].line
}

// AddConstant interns value into the constant pool: if an existing constant
// is structurally equal, its index is returned and value is discarded
// (letting the caller's duplicate heap allocation, if any, become
// unreachable garbage); otherwise value is appended. Returns false as the
// second result if the pool is already at MaxConstants.
func (c *Chunk) AddConstant(value Value) (index int, ok bool) {
	for i, existing := range c.Constants {
		if constantsEqual(existing, value) {
			return i, true
		}
	}
	if len(c.Constants) >= MaxConstants {
		return 0, false
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1, true
}

// constantsEqual is structural equality for constant-pool deduplication: it
// differs from ValuesEqual only for strings, which compare by content here
// rather than identity, so two equal strings share one constant slot even if
// they are distinct objects.
func constantsEqual(a, b Value) bool {
	as, aIsStr := a.(*ObjString)
	bs, bIsStr := b.(*ObjString)
	if aIsStr || bIsStr {
		return aIsStr && bIsStr && as.Chars() == bs.Chars()
	}
	return ValuesEqual(a, b)
}
