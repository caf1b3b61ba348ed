package vm

import (
	"fmt"

	"github.com/loxlang/loxvm/lang/debug"
)

// debugBreak implements DEBUG_BREAK_POINT: it dumps the current chunk, the
// live object set, the value stack and the frame stack to Stdout, then
// execution continues with the next instruction.
func (vm *VM) debugBreak(fr *frame) {
	if vm.Silent {
		return
	}
	name := "script"
	if fn := fr.closure.Function; fn.Name != nil {
		name = fn.Name.Chars()
	}
	debug.DisassembleChunk(vm.Stdout, &fr.closure.Function.Chunk, name)

	fmt.Fprintln(vm.Stdout, "== objects ==")
	for _, o := range vm.heap.Objects() {
		fmt.Fprintf(vm.Stdout, "%p %s\n", o, o.String())
	}

	fmt.Fprintln(vm.Stdout, "== stack ==")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(vm.Stdout, "[ %s ]", vm.stack[i].String())
	}
	fmt.Fprintln(vm.Stdout)

	fmt.Fprintln(vm.Stdout, "== frames ==")
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fnName := "script"
		if f.closure.Function.Name != nil {
			fnName = f.closure.Function.Name.Chars()
		}
		line := f.closure.Function.Chunk.LineAt(f.ip - 1)
		fmt.Fprintf(vm.Stdout, "[line %d] in %s\n", line, fnName)
	}
}
