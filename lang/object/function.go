package object

// ObjFunction is a compiled, but not yet captured, function: the compiler's
// only output. Calling a function always goes through a Closure wrapping it,
// even for functions with no captured variables.
type ObjFunction struct {
	objHeader
	Arity        int
	UpvalueCount int
	Name         *ObjString // nil for the implicit top-level script function
	Chunk        Chunk
}

func (f *ObjFunction) objType() ObjType { return TypeFunction }
func (f *ObjFunction) Type() string     { return "function" }
func (f *ObjFunction) Truth() bool      { return true }

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<fn script>"
	}
	return "<fn " + f.Name.Chars() + ">"
}

// ObjUpvalue is a captured variable cell, shared by every closure that
// captures the same enclosing local. It starts open, pointing at a live
// slot on the VM's value stack, and is later closed by copying that slot's
// value into Closed and repointing Location at it. The VM tracks which
// upvalues are still open in its own slot-indexed list rather than through
// an intrusive link on this struct.
type ObjUpvalue struct {
	objHeader
	Location *Value // points into the VM stack while open, or at &Closed once closed
	Closed   Value
}

func (u *ObjUpvalue) objType() ObjType { return TypeUpvalue }
func (u *ObjUpvalue) Type() string     { return "upvalue" }
func (u *ObjUpvalue) Truth() bool      { return true }
func (u *ObjUpvalue) String() string   { return "upvalue" }

// ObjClosure pairs a compiled function with the array of upvalue cells it
// captured at creation time. Its length always equals Function.UpvalueCount.
type ObjClosure struct {
	objHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) objType() ObjType { return TypeClosure }
func (c *ObjClosure) Type() string     { return "function" }
func (c *ObjClosure) Truth() bool      { return true }
func (c *ObjClosure) String() string   { return c.Function.String() }

// NewClosure allocates a closure over fn with an upvalue array sized to
// fn's upvalue count, every slot initially nil until the VM's OP_CLOSURE
// handler fills them in.
func NewClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
}
