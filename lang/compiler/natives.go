package compiler

// nativeNames lists the names legal in an `import` statement. The set is
// fixed at compile time even though the values themselves are looked up at
// runtime from the VM's native table: an unknown import name is a compile
// error, not a runtime one.
var nativeNames = map[string]bool{
	"clock": true,
	"time":  true,
	"input": true,
}

// IsNativeName reports whether name is one of the bindings `import` is
// allowed to introduce.
func IsNativeName(name string) bool { return nativeNames[name] }
