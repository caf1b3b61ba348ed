package object

// ObjClass is a Lox class: a name and a table of methods (name -> Closure).
// Inheritance is implemented by copying the superclass's method table into
// the subclass's at OP_INHERIT time, not by a parent pointer.
type ObjClass struct {
	objHeader
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) objType() ObjType { return TypeClass }
func (c *ObjClass) Type() string     { return "class" }
func (c *ObjClass) Truth() bool      { return true }
func (c *ObjClass) String() string   { return c.Name.Chars() }

// NewClass allocates a class with an empty method table.
func NewClass(name *ObjString) *ObjClass {
	return &ObjClass{Name: name, Methods: NewTable()}
}

// ObjInstance is an instance of a class: the class it was created from plus
// a table of field name -> value.
type ObjInstance struct {
	objHeader
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) objType() ObjType { return TypeInstance }
func (i *ObjInstance) Type() string     { return "instance" }
func (i *ObjInstance) Truth() bool      { return true }
func (i *ObjInstance) String() string   { return i.Class.Name.Chars() + " instance" }

// NewInstance allocates an instance of class with an empty field table.
func NewInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Class: class, Fields: NewTable()}
}

// ObjBoundMethod pairs a receiver value with a method closure, produced by a
// GET_PROPERTY that resolves to a method rather than a field.
type ObjBoundMethod struct {
	objHeader
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) objType() ObjType { return TypeBoundMethod }
func (b *ObjBoundMethod) Type() string     { return "function" }
func (b *ObjBoundMethod) Truth() bool      { return true }
func (b *ObjBoundMethod) String() string   { return b.Method.String() }

// NativeFn is a Go function exposed to Lox as a native callable. It receives
// its arguments and returns a Value or an error; a returned error becomes a
// Lox runtime error at the call site.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a NativeFn with the name and fixed arity the VM checks
// against at the call site.
type ObjNative struct {
	objHeader
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *ObjNative) objType() ObjType { return TypeNative }
func (n *ObjNative) Type() string     { return "function" }
func (n *ObjNative) Truth() bool      { return true }
func (n *ObjNative) String() string   { return "<native fn " + n.Name + ">" }

// NewNative wraps fn as a native callable named name with the given arity.
func NewNative(name string, arity int, fn NativeFn) *ObjNative {
	return &ObjNative{Name: name, Arity: arity, Fn: fn}
}
