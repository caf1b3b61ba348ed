// Package object implements the Lox value and object model: the tagged
// Value union, every heap object variant, the Chunk bytecode container, the
// open-addressed hash table, and the tracing garbage collector that owns
// them all.
//
// These four concerns are folded into a single package because in this
// object model they are mutually self-referential: a Chunk's constant pool
// holds Values, a function object holds a Chunk, the hash table stores
// Values under string keys, and the collector must reach into every object
// variant's fields to mark them. Splitting that into importer/imported
// packages along those lines produces an import cycle; one package with one
// file per concern, in the style this codebase uses for its own
// self-referential value/frame/thread cluster, does not.
package object

import "strconv"

// Value is anything that can live on the VM's value stack, in a local slot,
// or in the constant pool of a Chunk. Nil, Bool and Number are plain value
// types; every other Value is a pointer to a heap-allocated Object.
type Value interface {
	// Type returns the Lox type name of the value, as reported by a
	// hypothetical `type()` builtin and used in runtime type-error messages.
	Type() string
	// String returns the value's print representation.
	String() string
	// Truth reports whether the value is truthy. Only Nil and the boolean
	// false are falsy; every other value, including the number 0, is truthy.
	Truth() bool
}

// Nil is the Lox nil value.
type Nil struct{}

func (Nil) Type() string   { return "nil" }
func (Nil) String() string { return "nil" }
func (Nil) Truth() bool    { return false }

// NilValue is the single Nil value; Value equality for Nil is by type alone
// so any Nil{} would do, but sharing one avoids allocating interface values
// for it repeatedly.
var NilValue Value = Nil{}

// Bool is a Lox boolean.
type Bool bool

func (b Bool) Type() string   { return "bool" }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (b Bool) Truth() bool    { return bool(b) }

// True and False are the two Bool values, exported so callers can compare
// and return them without a conversion at every use site.
const (
	True  = Bool(true)
	False = Bool(false)
)

// BoolValue converts a Go bool to the corresponding Lox Bool value.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number is a Lox number, always a double-precision float.
type Number float64

func (n Number) Type() string   { return "number" }
func (n Number) Truth() bool    { return true }
func (n Number) String() string { return formatNumber(float64(n)) }

// formatNumber renders a float the way C's printf("%.10g", ...) does: up to
// 10 significant digits, trailing zeros and a trailing decimal point
// trimmed.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', 10, 64)
}

// ValuesEqual implements Lox's `==`: structural equality for nil, bool and
// number; pointer identity for every object (safe for strings because they
// are interned).
func ValuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	default:
		// every other Value is an Object pointer; interface comparison is
		// pointer comparison for the pointer types that implement Object.
		return a == b
	}
}
