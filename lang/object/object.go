package object

// ObjType tags the concrete kind of an Object, used by the collector's mark
// and sweep passes to dispatch without a type switch at every call site that
// only needs the tag.
type ObjType uint8

const (
	TypeString ObjType = iota
	TypeFunction
	TypeClosure
	TypeUpvalue
	TypeClass
	TypeInstance
	TypeBoundMethod
	TypeNative
)

// Object is a heap-allocated Value: every object variant in the data model
// (string, function, closure, upvalue, class, instance, bound method,
// native) implements it. The classic intrusive all-objects linked list is
// replaced here by the Heap's own objects slice (see heap.go): Go values
// don't carry a free next-pointer the way a manually managed C struct does,
// and a slice the Heap already owns gives sweep the same "walk everything
// live" contract without forcing every variant to embed a link field whose
// type would have to be Object itself.
type Object interface {
	Value
	objType() ObjType
	marked() bool
	setMarked(bool)
}

// objHeader is embedded in every object variant to provide the GC mark bit.
type objHeader struct {
	mark bool
}

func (h *objHeader) marked() bool     { return h.mark }
func (h *objHeader) setMarked(v bool) { h.mark = v }
