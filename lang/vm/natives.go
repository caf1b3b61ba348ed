package vm

import (
	"bufio"
	"time"

	"github.com/loxlang/loxvm/lang/object"
)

// registerNatives seeds the VM's native-function table with the bindings
// `import` is allowed to name (see compiler/natives.go's matching allowlist).
func (vm *VM) registerNatives() {
	vm.defineNative("clock", 0, func([]object.Value) (object.Value, error) {
		return object.Number(time.Since(vm.startTime).Seconds()), nil
	})
	vm.defineNative("time", 0, func([]object.Value) (object.Value, error) {
		return object.Number(float64(time.Now().UnixMilli()) / 1000), nil
	})
	vm.defineNative("input", 0, func([]object.Value) (object.Value, error) {
		if vm.stdinReader == nil {
			vm.stdinReader = bufio.NewReader(vm.Stdin)
		}
		line, err := vm.stdinReader.ReadString('\n')
		if err != nil && line == "" {
			return vm.heap.InternString(""), nil
		}
		line = trimNewline(line)
		return vm.heap.InternString(line), nil
	})
}

func (vm *VM) defineNative(name string, arity int, fn object.NativeFn) {
	vm.natives.Put(name, vm.heap.NewNative(name, arity, fn))
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
