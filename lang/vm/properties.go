package vm

import "github.com/loxlang/loxvm/lang/object"

// getProperty implements GET_PROPERTY: field lookup first, then a method
// lookup that produces a bound method.
func (vm *VM) getProperty(fr *frame) error {
	instance, ok := vm.peek(0).(*object.ObjInstance)
	if !ok {
		return vm.runtimeError(fr, "Only instances have properties.")
	}
	name := vm.readString(fr)

	if value, ok := instance.Fields.Get(name); ok {
		vm.pop() // instance
		vm.push(value)
		return nil
	}

	bound, err := vm.bindMethod(fr, instance.Class, name)
	if err != nil {
		return err
	}
	vm.pop() // instance
	vm.push(bound)
	return nil
}

// setProperty implements SET_PROPERTY: the assigned value replaces both the
// value and the receiver on the stack, becoming the expression's result.
func (vm *VM) setProperty(fr *frame) error {
	instance, ok := vm.peek(1).(*object.ObjInstance)
	if !ok {
		return vm.runtimeError(fr, "Only instances have fields.")
	}
	name := vm.readString(fr)
	value := vm.peek(0)
	instance.Fields.Set(name, value)

	vm.pop() // value
	vm.pop() // instance
	vm.push(value)
	return nil
}

// stringIndex resolves a possibly-negative Lox index against a string's
// length, per ACCESS_INDEX's "-len valid, -len-1 an error" boundary rule.
// SLICE_INDEX does not use it; its bounds go through clampSliceBound.
func stringIndex(length int, idx float64) (int, bool) {
	i := int(idx)
	if float64(i) != idx {
		return 0, false
	}
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

func (vm *VM) index(fr *frame) error {
	idxVal := vm.pop()
	recv := vm.pop()

	s, ok := recv.(*object.ObjString)
	if !ok {
		return vm.runtimeError(fr, "Can only index strings.")
	}
	n, ok := idxVal.(object.Number)
	if !ok {
		return vm.runtimeError(fr, "Index must be a number.")
	}
	i, ok := stringIndex(len(s.Chars()), float64(n))
	if !ok {
		return vm.runtimeError(fr, "Index out of range.")
	}
	vm.push(vm.heap.InternString(s.Chars()[i : i+1]))
	return nil
}

// sliceIndex implements the half-open `a[lo:hi]` form. Bounds clamp to
// [0, length] after negative-index translation, rather than erroring,
// matching ordinary half-open slice conventions; only ACCESS_INDEX enforces
// the strict out-of-range boundary.
func (vm *VM) sliceIndex(fr *frame) error {
	hiVal := vm.pop()
	loVal := vm.pop()
	recv := vm.pop()

	s, ok := recv.(*object.ObjString)
	if !ok {
		return vm.runtimeError(fr, "Can only slice strings.")
	}
	loN, loOk := loVal.(object.Number)
	hiN, hiOk := hiVal.(object.Number)
	if !loOk || !hiOk {
		return vm.runtimeError(fr, "Slice bounds must be numbers.")
	}

	chars := s.Chars()
	length := len(chars)
	lo := clampSliceBound(length, float64(loN))
	hi := clampSliceBound(length, float64(hiN))
	if lo > hi {
		return vm.runtimeError(fr, "Invalid slice bounds.")
	}
	vm.push(vm.heap.InternString(chars[lo:hi]))
	return nil
}

func clampSliceBound(length int, idx float64) int {
	i := int(idx)
	if i < 0 {
		i += length
	}
	switch {
	case i < 0:
		return 0
	case i > length:
		return length
	default:
		return i
	}
}
