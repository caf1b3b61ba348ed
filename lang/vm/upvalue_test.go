package vm

import (
	"testing"

	"github.com/loxlang/loxvm/lang/object"
)

func TestCaptureUpvalueKeepsListSortedAndShared(t *testing.T) {
	heap := object.NewHeap()
	machine := New(heap)
	machine.push(object.Number(1))
	machine.push(object.Number(2))
	machine.push(object.Number(3))

	u1 := machine.captureUpvalue(1)
	machine.captureUpvalue(0)
	machine.captureUpvalue(2)

	if machine.captureUpvalue(1) != u1 {
		t.Error("capturing the same slot twice must return the same upvalue")
	}
	if len(machine.openUpvalues) != 3 {
		t.Fatalf("open list has %d entries, want 3", len(machine.openUpvalues))
	}
	for i := 1; i < len(machine.openUpvalues); i++ {
		if machine.openUpvalues[i-1].slot <= machine.openUpvalues[i].slot {
			t.Fatalf("open-upvalue list not sorted descending by slot: %d then %d",
				machine.openUpvalues[i-1].slot, machine.openUpvalues[i].slot)
		}
	}
}

func TestCloseUpvaluesClosesAtOrAboveSlot(t *testing.T) {
	heap := object.NewHeap()
	machine := New(heap)
	machine.push(object.Number(10))
	machine.push(object.Number(20))

	u0 := machine.captureUpvalue(0)
	u1 := machine.captureUpvalue(1)

	machine.closeUpvalues(1)

	if len(machine.openUpvalues) != 1 {
		t.Fatalf("open list has %d entries, want 1", len(machine.openUpvalues))
	}
	if u1.Location != &u1.Closed || u1.Closed != object.Number(20) {
		t.Error("the upvalue at slot 1 should be closed over the value 20")
	}
	if u0.Location != &machine.stack[0] {
		t.Error("the upvalue at slot 0 must remain open, pointing into the stack")
	}
}
