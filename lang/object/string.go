package object

// ObjString is an immutable, interned Lox string. Two ObjStrings with equal
// bytes are always the same object — see Heap.InternString.
type ObjString struct {
	objHeader
	chars string
	hash  uint32
}

func (s *ObjString) objType() ObjType { return TypeString }
func (s *ObjString) Type() string     { return "string" }
func (s *ObjString) String() string   { return s.chars }
func (s *ObjString) Truth() bool      { return true }

// Chars returns the string's content.
func (s *ObjString) Chars() string { return s.chars }

// Len returns the number of bytes in the string.
func (s *ObjString) Len() int { return len(s.chars) }

// hashString computes the FNV-1a hash used to bucket strings in both the
// intern set and ordinary Tables.
func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
