package object_test

import (
	"testing"

	"github.com/loxlang/loxvm/lang/object"
)

// fakeRoot lets a test control exactly which values the collector treats as
// reachable, independent of the VM or compiler.
type fakeRoot struct{ values []object.Value }

func (r *fakeRoot) GCRoots(dst []object.Value) []object.Value {
	return append(dst, r.values...)
}

func TestCollectFreesUnreachableInternedString(t *testing.T) {
	h := object.NewHeap()
	root := &fakeRoot{}
	h.AddRoot(root)

	h.InternString("transient")
	before := len(h.Objects())

	h.Collect()

	after := len(h.Objects())
	if after >= before {
		t.Errorf("Collect should have dropped the unreferenced string: before=%d after=%d", before, after)
	}
}

func TestCollectKeepsRootedObjects(t *testing.T) {
	h := object.NewHeap()
	root := &fakeRoot{}
	h.AddRoot(root)

	s := h.InternString("kept")
	root.values = append(root.values, s)

	h.Collect()

	for _, o := range h.Objects() {
		if o == object.Object(s) {
			return
		}
	}
	t.Error("a string reachable from a root must survive Collect")
}

func TestAddTemporaryRootIsRemovedOnCleanup(t *testing.T) {
	h := object.NewHeap()
	root := &fakeRoot{}
	remove := h.AddTemporaryRoot(root)

	s := h.InternString("scratch")
	root.values = append(root.values, s)
	remove()

	h.Collect()
	for _, o := range h.Objects() {
		if o == object.Object(s) {
			t.Error("a temporary root removed before Collect should not keep its values alive")
		}
	}
}

func TestInternStringReusesExistingObject(t *testing.T) {
	h := object.NewHeap()
	a := h.InternString("dup")
	b := h.InternString("dup")
	if a != b {
		t.Error("interning the same bytes twice should return the same object")
	}
}

// TestStressGCDuringInternDoesNotPanic checks that a collection is safe at
// any allocation point: with StressGC set,
// every InternString call runs a full Collect before the string is linked
// into the intern table, which must not disturb the temporary root that
// keeps the string itself alive across that nested collection.
func TestStressGCDuringInternDoesNotPanic(t *testing.T) {
	h := object.NewHeap()
	h.StressGC = true
	root := &fakeRoot{}
	h.AddRoot(root)

	for i := 0; i < 50; i++ {
		s := h.InternString("stress")
		root.values = root.values[:0]
		root.values = append(root.values, s)
	}
}

func TestInitStringIsAlwaysARoot(t *testing.T) {
	h := object.NewHeap()
	root := &fakeRoot{}
	h.AddRoot(root)

	h.Collect()
	for _, o := range h.Objects() {
		if o == object.Object(h.InitString()) {
			return
		}
	}
	t.Error("the interned \"init\" string must survive collection even with no other roots")
}
