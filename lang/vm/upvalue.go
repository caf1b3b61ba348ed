package vm

import (
	"golang.org/x/exp/slices"

	"github.com/loxlang/loxvm/lang/object"
)

// captureUpvalue returns the open upvalue for the absolute stack slot,
// reusing one already open at that slot (so two closures capturing the same
// local share one cell) or splicing a new entry into vm.openUpvalues, which
// is kept sorted descending by slot so closeUpvalues can close a prefix.
func (vm *VM) captureUpvalue(slot int) *object.ObjUpvalue {
	i := 0
	for ; i < len(vm.openUpvalues); i++ {
		if vm.openUpvalues[i].slot == slot {
			return vm.openUpvalues[i].uv
		}
		if vm.openUpvalues[i].slot < slot {
			break
		}
	}
	uv := vm.heap.NewUpvalue(&vm.stack[slot])
	vm.openUpvalues = slices.Insert(vm.openUpvalues, i, openUpvalue{slot: slot, uv: uv})
	return uv
}

// closeUpvalues closes every open upvalue at or above the absolute stack
// slot last, copying the live stack value into the upvalue's own Closed
// field and redirecting Location there, then drops them from the open list.
func (vm *VM) closeUpvalues(last int) {
	i := 0
	for ; i < len(vm.openUpvalues); i++ {
		o := vm.openUpvalues[i]
		if o.slot < last {
			break
		}
		o.uv.Closed = vm.stack[o.slot]
		o.uv.Location = &o.uv.Closed
	}
	vm.openUpvalues = slices.Delete(vm.openUpvalues, 0, i)
}
