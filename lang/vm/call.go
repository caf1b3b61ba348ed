package vm

import "github.com/loxlang/loxvm/lang/object"

// callValue dispatches a CALL on callee, which occupies vm.stack at
// vm.stackTop-argc-1 with its arguments above it.
func (vm *VM) callValue(callee object.Value, argc int) error {
	switch c := callee.(type) {
	case *object.ObjClosure:
		return vm.callClosure(c, argc)

	case *object.ObjNative:
		if argc != c.Arity {
			return vm.runtimeError(vm.currentFrame(), "Expected %d arguments but got %d.", c.Arity, argc)
		}
		args := vm.stack[vm.stackTop-argc : vm.stackTop]
		result, err := c.Fn(args)
		if err != nil {
			return vm.runtimeError(vm.currentFrame(), "%s", err.Error())
		}
		vm.stackTop -= argc + 1
		vm.push(result)
		return nil

	case *object.ObjClass:
		instance := vm.heap.NewInstance(c)
		vm.stack[vm.stackTop-argc-1] = instance
		if initVal, ok := c.Methods.Get(vm.heap.InitString()); ok {
			return vm.callClosure(initVal.(*object.ObjClosure), argc)
		}
		if argc != 0 {
			return vm.runtimeError(vm.currentFrame(), "Expected 0 arguments but got %d.", argc)
		}
		return nil

	case *object.ObjBoundMethod:
		vm.stack[vm.stackTop-argc-1] = c.Receiver
		return vm.callClosure(c.Method, argc)

	default:
		return vm.runtimeError(vm.currentFrame(), "Can only call functions and classes.")
	}
}

func (vm *VM) callClosure(closure *object.ObjClosure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError(vm.currentFrame(), "Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError(vm.currentFrame(), "Stack overflow.")
	}
	fr := &vm.frames[vm.frameCount]
	fr.closure = closure
	fr.ip = 0
	fr.base = vm.stackTop - argc - 1
	vm.frameCount++
	return nil
}

// invoke implements the INVOKE fast-path for `recv.name(args)`: if name
// resolves to a field holding a callable, fall back to an ordinary
// property-get-then-call; otherwise look the method up directly in the
// receiver's class and enter it with the receiver already in slot 0.
func (vm *VM) invoke(name *object.ObjString, argc int) error {
	receiver := vm.peek(argc)
	instance, ok := receiver.(*object.ObjInstance)
	if !ok {
		return vm.runtimeError(vm.currentFrame(), "Only instances have methods.")
	}
	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(vm.currentFrame(), instance.Class, name, argc)
}

func (vm *VM) invokeFromClass(fr *frame, class *object.ObjClass, name *object.ObjString, argc int) error {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError(fr, "Undefined property '%s'.", name.Chars())
	}
	return vm.callClosure(methodVal.(*object.ObjClosure), argc)
}

// bindMethod looks name up in class's method table and wraps it with the
// value at the top of the stack (the receiver) as an ObjBoundMethod.
func (vm *VM) bindMethod(fr *frame, class *object.ObjClass, name *object.ObjString) (*object.ObjBoundMethod, error) {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		return nil, vm.runtimeError(fr, "Undefined property '%s'.", name.Chars())
	}
	return vm.heap.NewBoundMethod(vm.peek(0), methodVal.(*object.ObjClosure)), nil
}

func (vm *VM) defineMethod(name *object.ObjString) {
	method := vm.pop()
	class := vm.peek(0).(*object.ObjClass)
	class.Methods.Set(name, method)
}
