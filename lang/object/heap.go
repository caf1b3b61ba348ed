package object

// RootSource is implemented by whatever owns a set of GC roots outside the
// Heap itself — the VM (its value stack, call frames, open-upvalue list,
// native table) and the compiler (its stack of in-progress functions). The
// Heap depends on this interface rather than on the vm or compiler packages
// directly, so object stays the leaf package those two import instead of
// the other way around.
type RootSource interface {
	// GCRoots appends every Value this source currently holds live to dst
	// and returns the extended slice, mirroring the append builtin's
	// calling convention so sources can be queried without an intermediate
	// allocation on the Heap's part.
	GCRoots(dst []Value) []Value
}

// Heap owns every live object, the string-intern set, and the mark-sweep
// collector's bookkeeping.
type Heap struct {
	objects []Object
	strings *Table // intern set; keys are the interned *ObjStrings, values are True

	roots      []RootSource
	initString *ObjString

	bytesAllocated int64
	nextGC         int64

	StressGC bool // collect before every allocation, not just past the threshold
	LogGC    bool // write collector activity to Log

	Log func(format string, args ...any) // nil is a valid, silent logger

	gray []Object

	// pinned holds objects under construction that are not yet reachable
	// through any root but must survive a GC triggered mid-allocation
	// (e.g. InternString allocating the string before it's inserted into
	// the intern table). Kept separate from gray: traceReferences drains
	// gray down to empty on every collection, so a temporary root stored
	// there would vanish out from under its owner's deferred cleanup.
	pinned []Object
}

// NewHeap returns an empty Heap with the default initial GC threshold.
func NewHeap() *Heap {
	h := &Heap{strings: NewTable(), nextGC: 1 << 20}
	h.initString = h.InternString("init")
	return h
}

// InitString returns the interned "init" string, the name the VM looks up
// to find a class's initializer. It is always a GC root.
func (h *Heap) InitString() *ObjString { return h.initString }

// AddRoot registers a RootSource that stays live for the remainder of the
// Heap's lifetime (the VM registers itself this way at startup).
func (h *Heap) AddRoot(r RootSource) { h.roots = append(h.roots, r) }

// AddTemporaryRoot registers r and returns a function that unregisters it;
// the compiler uses this to add itself as a root only while compilation is
// in progress, via `defer heap.AddTemporaryRoot(c)()`.
func (h *Heap) AddTemporaryRoot(r RootSource) (remove func()) {
	h.roots = append(h.roots, r)
	return func() {
		// search by identity rather than captured index: other sources may
		// have registered after r
		for i := len(h.roots) - 1; i >= 0; i-- {
			if h.roots[i] == r {
				h.roots = append(h.roots[:i], h.roots[i+1:]...)
				return
			}
		}
	}
}

// track registers a freshly allocated object with the heap and charges its
// estimated size against the allocation threshold, collecting first if
// StressGC is set or the new total has crossed nextGC.
func (h *Heap) track(o Object, size int64) {
	h.bytesAllocated += size
	if h.StressGC || h.bytesAllocated > h.nextGC {
		h.Collect()
	}
	h.objects = append(h.objects, o)
}

func (h *Heap) logf(format string, args ...any) {
	if h.LogGC && h.Log != nil {
		h.Log(format, args...)
	}
}

// NewFunction allocates an empty, uninitialized function object.
func (h *Heap) NewFunction() *ObjFunction {
	f := &ObjFunction{}
	h.track(f, 64)
	return f
}

// NewClosure allocates a closure over fn.
func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	c := NewClosure(fn)
	h.track(c, int64(32+8*len(c.Upvalues)))
	return c
}

// NewUpvalue allocates an open upvalue pointing at slot.
func (h *Heap) NewUpvalue(slot *Value) *ObjUpvalue {
	u := &ObjUpvalue{Location: slot}
	h.track(u, 32)
	return u
}

// NewClass allocates a class named name.
func (h *Heap) NewClass(name *ObjString) *ObjClass {
	c := NewClass(name)
	h.track(c, 40)
	return c
}

// NewInstance allocates an instance of class.
func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	i := NewInstance(class)
	h.track(i, 40)
	return i
}

// NewBoundMethod allocates a bound method pairing receiver and method.
func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	h.track(b, 24)
	return b
}

// NewNative wraps fn as a native callable and registers it with the heap.
// Natives are never swept: they hold no Lox-managed state and are rooted
// directly by whoever keeps the returned pointer (the VM's native table),
// but they're tracked here too so disassembly/debugging can enumerate every
// live object uniformly.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	n := NewNative(name, arity, fn)
	h.track(n, 24)
	return n
}

// InternString returns the canonical ObjString for chars, allocating and
// interning a new one only if chars has not been seen before.
func (h *Heap) InternString(chars string) *ObjString {
	hash := hashString(chars)
	if existing := h.strings.FindInterned(chars, hash); existing != nil {
		return existing
	}
	s := &ObjString{chars: chars, hash: hash}
	// the string must be reachable before the Set call below can allocate
	// (and thus trigger a GC): pin it as a temporary root, since the heap
	// has no VM stack of its own to push onto.
	h.pinned = append(h.pinned, s)
	defer func() { h.pinned = h.pinned[:len(h.pinned)-1] }()

	h.track(s, int64(24+len(chars)))
	h.strings.Set(s, True)
	return s
}

// Collect runs one full mark-and-sweep cycle.
func (h *Heap) Collect() {
	h.logf("-- gc begin")

	h.markRoots()
	h.traceReferences()
	h.strings.RemoveUnmarkedKeys()
	h.sweep()

	h.nextGC = h.bytesAllocated * 2
	if h.nextGC < (1 << 16) {
		h.nextGC = 1 << 16
	}

	h.logf("-- gc end")
}

func (h *Heap) markRoots() {
	if h.initString != nil {
		h.markObject(h.initString)
	}
	for _, r := range h.roots {
		for _, v := range r.GCRoots(nil) {
			h.markValue(v)
		}
	}
	// values temporarily protected mid-allocation (see InternString)
	for _, o := range h.pinned {
		h.markObject(o)
	}
}

func (h *Heap) markValue(v Value) {
	if o, ok := v.(Object); ok {
		h.markObject(o)
	}
}

func (h *Heap) markObject(o Object) {
	if o == nil || o.marked() {
		return
	}
	o.setMarked(true)
	h.gray = append(h.gray, o)
}

// traceReferences drains the gray worklist, marking every Value reachable
// from an already-marked object's fields until nothing new turns gray.
func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		n := len(h.gray) - 1
		o := h.gray[n]
		h.gray = h.gray[:n]
		h.blacken(o)
	}
}

func (h *Heap) blacken(o Object) {
	switch v := o.(type) {
	case *ObjString:
		// no outgoing references
	case *ObjFunction:
		if v.Name != nil {
			h.markObject(v.Name)
		}
		for _, c := range v.Chunk.Constants {
			h.markValue(c)
		}
	case *ObjClosure:
		h.markObject(v.Function)
		for _, uv := range v.Upvalues {
			// slots are nil while OP_CLOSURE is still filling them in
			if uv != nil {
				h.markObject(uv)
			}
		}
	case *ObjUpvalue:
		h.markValue(v.Closed)
	case *ObjClass:
		h.markObject(v.Name)
		v.Methods.Each(func(_ *ObjString, val Value) { h.markValue(val) })
	case *ObjInstance:
		h.markObject(v.Class)
		v.Fields.Each(func(_ *ObjString, val Value) { h.markValue(val) })
	case *ObjBoundMethod:
		h.markValue(v.Receiver)
		h.markObject(v.Method)
	case *ObjNative:
		// no outgoing references
	}
}

// sweep walks every tracked object, unmarking survivors and dropping the
// rest. "Freeing" an object here means removing the heap's own strong
// reference to it (its objects-slice slot and, for strings, its intern-table
// entry already cleared above); once nothing else points to it, Go's
// runtime collector reclaims the memory on its own schedule. That still
// reproduces every GC-observable behavior the data model specifies (stress
// mode collecting deterministically, the string table holding only weak
// references, unreachable objects eventually going away) without a
// hand-rolled allocator underneath Go's own.
func (h *Heap) sweep() {
	kept := h.objects[:0]
	for _, o := range h.objects {
		if o.marked() {
			o.setMarked(false)
			kept = append(kept, o)
		}
	}
	h.objects = kept
}

// Objects returns every currently live tracked object, for the disassembler
// and REPL debug dump.
func (h *Heap) Objects() []Object { return h.objects }
