// Package vm implements the stack-based bytecode interpreter: call frames,
// the fetch-decode-execute dispatch loop, closures and their upvalues, and
// classes with single inheritance.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/dolthub/swiss"

	"github.com/loxlang/loxvm/lang/object"
)

// framesMax bounds call depth; stackMax is frames * max-locals-per-frame.
const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// frame is the per-call record of an executing closure.
type frame struct {
	closure *object.ObjClosure
	ip      int // index into closure.Function.Chunk.Code
	base    int // vm.stack index of slot 0 for this call
}

// openUpvalue pairs a still-open ObjUpvalue with the absolute stack slot it
// currently points at, kept in vm.openUpvalues sorted descending by slot so
// closeUpvalues can close a contiguous run from the list's front.
type openUpvalue struct {
	slot int
	uv   *object.ObjUpvalue
}

// VM executes compiled Lox bytecode. A VM is reusable across multiple Run
// calls; the value stack and frame array are allocated once.
type VM struct {
	heap *object.Heap

	stack    [stackMax]object.Value
	stackTop int

	frames     [framesMax]frame
	frameCount int

	openUpvalues []openUpvalue

	natives *swiss.Map[string, *object.ObjNative]

	// Stdout, Stderr and Stdin are where PRINT output, runtime diagnostics,
	// and the `input` native's reads go; all default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// Silent suppresses DEBUG_BREAK_POINT dumps, matching the `-s` CLI flag.
	Silent bool

	startTime   time.Time
	stdinReader *bufio.Reader
}

// New returns a VM that allocates through heap and registers its stack,
// frames, open upvalues and native table as permanent GC roots.
func New(heap *object.Heap) *VM {
	vm := &VM{
		heap:      heap,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Stdin:     os.Stdin,
		natives:   swiss.NewMap[string, *object.ObjNative](8),
		startTime: time.Now(),
	}
	vm.registerNatives()
	heap.AddRoot(vm)
	return vm
}

// GCRoots implements object.RootSource.
func (vm *VM) GCRoots(dst []object.Value) []object.Value {
	for i := 0; i < vm.stackTop; i++ {
		dst = append(dst, vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		if c := vm.frames[i].closure; c != nil {
			dst = append(dst, c)
		}
	}
	for _, o := range vm.openUpvalues {
		dst = append(dst, o.uv)
	}
	vm.natives.Iter(func(_ string, n *object.ObjNative) bool {
		dst = append(dst, n)
		return false
	})
	return dst
}

func (vm *VM) push(v object.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() object.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) object.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = vm.openUpvalues[:0]
}

// Run wraps script, the compiler's top-level function, in a closure and
// executes it as the outermost call frame, returning its exit-code result (a
// Number) on success.
func (vm *VM) Run(script *object.ObjFunction) (object.Value, error) {
	vm.resetStack()
	// root script on the stack before NewClosure can trigger a collection,
	// then swap it for the closure
	vm.push(script)
	closure := vm.heap.NewClosure(script)
	vm.pop()
	vm.push(closure)
	if err := vm.callClosure(closure, 0); err != nil {
		return nil, err
	}
	return vm.run()
}

func (vm *VM) currentFrame() *frame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(fr *frame) byte {
	b := fr.closure.Function.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readShort(fr *frame) int {
	hi := vm.readByte(fr)
	lo := vm.readByte(fr)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(fr *frame) object.Value {
	return fr.closure.Function.Chunk.Constants[vm.readByte(fr)]
}

func (vm *VM) readString(fr *frame) *object.ObjString {
	return vm.readConstant(fr).(*object.ObjString)
}

// run is the fetch-decode-execute loop over the current top frame. It
// returns when the outermost (script) frame returns, EXIT_VM fires, or a
// runtime error aborts execution.
func (vm *VM) run() (object.Value, error) {
	fr := vm.currentFrame()

loop:
	for {
		op := object.OpCode(vm.readByte(fr))

		switch op {
		case object.OpConstant:
			vm.push(vm.readConstant(fr))

		case object.OpNil:
			vm.push(object.NilValue)
		case object.OpTrue:
			vm.push(object.True)
		case object.OpFalse:
			vm.push(object.False)

		case object.OpPop:
			vm.pop()
		case object.OpPopN:
			n := int(vm.readByte(fr))
			vm.stackTop -= n

		case object.OpLoadInlineConstant:
			// reserved for an optional bytecode importer; this compiler
			// never emits it
			return nil, vm.runtimeError(fr, "OP_LOAD_INLINE_CONSTANT is not supported")

		case object.OpAdd:
			if err := vm.add(fr); err != nil {
				return nil, err
			}
		case object.OpSubtract:
			if err := vm.numericBinary(fr, op); err != nil {
				return nil, err
			}
		case object.OpMultiply:
			if err := vm.numericBinary(fr, op); err != nil {
				return nil, err
			}
		case object.OpDivide:
			if err := vm.numericBinary(fr, op); err != nil {
				return nil, err
			}
		case object.OpExponent:
			if err := vm.numericBinary(fr, op); err != nil {
				return nil, err
			}

		case object.OpNegate:
			n, ok := vm.peek(0).(object.Number)
			if !ok {
				return nil, vm.runtimeError(fr, "Operand must be a number.")
			}
			vm.pop()
			vm.push(-n)

		case object.OpNot:
			vm.push(object.BoolValue(!vm.pop().Truth()))

		case object.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(object.BoolValue(object.ValuesEqual(a, b)))

		case object.OpGreater:
			if err := vm.comparisonBinary(fr, op); err != nil {
				return nil, err
			}
		case object.OpLess:
			if err := vm.comparisonBinary(fr, op); err != nil {
				return nil, err
			}

		case object.OpIndex:
			if err := vm.index(fr); err != nil {
				return nil, err
			}
		case object.OpSliceIndex:
			if err := vm.sliceIndex(fr); err != nil {
				return nil, err
			}
		case object.OpLength:
			dist := int(vm.readByte(fr))
			s, ok := vm.peek(dist).(*object.ObjString)
			if !ok {
				return nil, vm.runtimeError(fr, "Can only take the length of a string.")
			}
			vm.push(object.Number(len(s.Chars())))

		case object.OpGetLocal:
			slot := fr.base + int(vm.readByte(fr))
			vm.push(vm.stack[slot])
		case object.OpSetLocal:
			slot := fr.base + int(vm.readByte(fr))
			vm.stack[slot] = vm.peek(0)

		case object.OpGetUpvalue:
			i := vm.readByte(fr)
			vm.push(*fr.closure.Upvalues[i].Location)
		case object.OpSetUpvalue:
			i := vm.readByte(fr)
			*fr.closure.Upvalues[i].Location = vm.peek(0)

		case object.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case object.OpJump:
			off := vm.readShort(fr)
			fr.ip += off
		case object.OpJumpIfFalse:
			off := vm.readShort(fr)
			if !vm.peek(0).Truth() {
				fr.ip += off
			}
		case object.OpLoop:
			off := vm.readShort(fr)
			fr.ip -= off

		case object.OpCall:
			argc := int(vm.readByte(fr))
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return nil, err
			}
			fr = vm.currentFrame()

		case object.OpClosure:
			fn := vm.readConstant(fr).(*object.ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(closure)
			for i := range closure.Upvalues {
				isLocal := vm.readByte(fr)
				index := int(vm.readByte(fr))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.base + index)
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}

		case object.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop() // the outermost script closure
				if _, ok := result.(object.Number); !ok {
					return nil, vm.runtimeError(fr, "Top-level return value must be a number.")
				}
				return result, nil
			}
			vm.stackTop = fr.base
			vm.push(result)
			fr = vm.currentFrame()

		case object.OpClass:
			vm.push(vm.heap.NewClass(vm.readString(fr)))

		case object.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.(*object.ObjClass)
			if !ok {
				return nil, vm.runtimeError(fr, "Superclass must be a class.")
			}
			subclass := vm.peek(0).(*object.ObjClass)
			superclass.Methods.Each(func(name *object.ObjString, m object.Value) {
				subclass.Methods.Set(name, m)
			})
			vm.pop() // the subclass; namedVariable reloads it for the method loop

		case object.OpMethod:
			vm.defineMethod(vm.readString(fr))

		case object.OpGetProperty:
			if err := vm.getProperty(fr); err != nil {
				return nil, err
			}
		case object.OpSetProperty:
			if err := vm.setProperty(fr); err != nil {
				return nil, err
			}
		case object.OpInvoke:
			name := vm.readString(fr)
			argc := int(vm.readByte(fr))
			if err := vm.invoke(name, argc); err != nil {
				return nil, err
			}
			fr = vm.currentFrame()
		case object.OpGetSuper:
			name := vm.readString(fr)
			superclass := vm.pop().(*object.ObjClass)
			bound, err := vm.bindMethod(fr, superclass, name)
			if err != nil {
				return nil, err
			}
			vm.pop() // receiver
			vm.push(bound)
		case object.OpSuperInvoke:
			name := vm.readString(fr)
			argc := int(vm.readByte(fr))
			superclass := vm.pop().(*object.ObjClass)
			if err := vm.invokeFromClass(fr, superclass, name, argc); err != nil {
				return nil, err
			}
			fr = vm.currentFrame()

		case object.OpGetNative:
			name := vm.readString(fr)
			native, ok := vm.natives.Get(name.Chars())
			if !ok {
				return nil, vm.runtimeError(fr, "Unknown native '%s'.", name.Chars())
			}
			vm.push(native)

		case object.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case object.OpDebugBreakpoint:
			vm.debugBreak(fr)

		case object.OpExitVM:
			break loop

		default:
			return nil, vm.runtimeError(fr, "Unknown opcode %s.", op)
		}
	}

	return object.Number(0), nil
}

func (vm *VM) add(fr *frame) error {
	b := vm.peek(0)
	a := vm.peek(1)
	as, aIsStr := a.(*object.ObjString)
	bs, bIsStr := b.(*object.ObjString)
	switch {
	case aIsStr && bIsStr:
		vm.pop()
		vm.pop()
		vm.push(vm.heap.InternString(as.Chars() + bs.Chars()))
	default:
		an, aIsNum := a.(object.Number)
		bn, bIsNum := b.(object.Number)
		if !aIsNum || !bIsNum {
			return vm.runtimeError(fr, "Operands must be two numbers or two strings.")
		}
		vm.pop()
		vm.pop()
		vm.push(an + bn)
	}
	return nil
}

func (vm *VM) numericBinary(fr *frame, op object.OpCode) error {
	b, bOk := vm.peek(0).(object.Number)
	a, aOk := vm.peek(1).(object.Number)
	if !aOk || !bOk {
		return vm.runtimeError(fr, "Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	switch op {
	case object.OpSubtract:
		vm.push(a - b)
	case object.OpMultiply:
		vm.push(a * b)
	case object.OpDivide:
		vm.push(a / b)
	case object.OpExponent:
		vm.push(object.Number(math.Pow(float64(a), float64(b))))
	}
	return nil
}

func (vm *VM) comparisonBinary(fr *frame, op object.OpCode) error {
	b, bOk := vm.peek(0).(object.Number)
	a, aOk := vm.peek(1).(object.Number)
	if !aOk || !bOk {
		return vm.runtimeError(fr, "Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	switch op {
	case object.OpGreater:
		vm.push(object.BoolValue(a > b))
	case object.OpLess:
		vm.push(object.BoolValue(a < b))
	}
	return nil
}

// runtimeError writes message to Stderr followed by a top-down stack trace
// and returns a sentinel error so run's caller unwinds.
func (vm *VM) runtimeError(fr *frame, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.Stderr, msg)

	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.closure.Function
		ip := f.ip
		if f == fr {
			ip = fr.ip
		}
		line := fn.Chunk.LineAt(ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars()
		}
		fmt.Fprintf(vm.Stderr, "[line %d] in %s\n", line, name)
	}
	vm.resetStack()
	return &RuntimeError{Message: msg}
}

// RuntimeError is returned by Run when the program aborts mid-execution; the
// message and stack trace have already been written to vm.Stderr.
type RuntimeError struct{ Message string }

func (e *RuntimeError) Error() string { return e.Message }
