// Package debug implements the bytecode disassembler used by the REPL's
// debug breakpoints and by any tooling that wants to print a Chunk's
// instructions in human-readable form.
package debug

import (
	"fmt"
	"io"

	"github.com/loxlang/loxvm/lang/object"
)

// DisassembleChunk writes every instruction in chunk to w, labelled name.
func DisassembleChunk(w io.Writer, chunk *object.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	lastLine := -1
	for offset := 0; offset < len(chunk.Code); {
		offset, lastLine = disassembleInstruction(w, chunk, offset, lastLine)
	}
}

// DisassembleInstruction writes the single instruction at offset and returns
// the offset of the next one.
func DisassembleInstruction(w io.Writer, chunk *object.Chunk, offset int) int {
	next, _ := disassembleInstruction(w, chunk, offset, -1)
	return next
}

func disassembleInstruction(w io.Writer, chunk *object.Chunk, offset, lastLine int) (int, int) {
	line := chunk.LineAt(offset)
	if line == lastLine {
		fmt.Fprintf(w, "%04d    | ", offset)
	} else {
		fmt.Fprintf(w, "%04d %4d ", offset, line)
	}
	lastLine = line

	op := object.OpCode(chunk.Code[offset])
	switch op {
	case object.OpPop, object.OpReturn, object.OpPrint, object.OpAdd, object.OpSubtract,
		object.OpMultiply, object.OpDivide, object.OpNegate, object.OpExponent,
		object.OpTrue, object.OpFalse, object.OpNil, object.OpNot, object.OpEqual,
		object.OpGreater, object.OpLess, object.OpDebugBreakpoint, object.OpExitVM,
		object.OpIndex, object.OpSliceIndex, object.OpCloseUpvalue, object.OpInherit:
		return simpleInstruction(w, op, offset), lastLine

	case object.OpConstant, object.OpGetProperty, object.OpSetProperty,
		object.OpClass, object.OpMethod, object.OpGetSuper, object.OpGetNative:
		return constantInstruction(w, chunk, op, offset), lastLine

	case object.OpPopN, object.OpCall, object.OpLength, object.OpGetLocal,
		object.OpSetLocal, object.OpGetUpvalue, object.OpSetUpvalue:
		return byteArgInstruction(w, chunk, op, offset), lastLine

	case object.OpJump, object.OpJumpIfFalse:
		return jumpInstruction(w, op, 1, chunk, offset), lastLine
	case object.OpLoop:
		return jumpInstruction(w, op, -1, chunk, offset), lastLine

	case object.OpInvoke, object.OpSuperInvoke:
		return invokeInstruction(w, chunk, op, offset), lastLine

	case object.OpClosure:
		return closureInstruction(w, chunk, offset), lastLine

	case object.OpLoadInlineConstant:
		fmt.Fprintf(w, "%-22s (unsupported)\n", op.String())
		return offset + 1, lastLine

	default:
		fmt.Fprintf(w, "Unknown opcode %d\n", chunk.Code[offset])
		return offset + 1, lastLine
	}
}

func simpleInstruction(w io.Writer, op object.OpCode, offset int) int {
	fmt.Fprintln(w, op.String())
	return offset + 1
}

func constantInstruction(w io.Writer, chunk *object.Chunk, op object.OpCode, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-22s %4d '%s'\n", op.String(), idx, constantRepr(chunk, idx))
	return offset + 2
}

func byteArgInstruction(w io.Writer, chunk *object.Chunk, op object.OpCode, offset int) int {
	fmt.Fprintf(w, "%-22s %4d\n", op.String(), chunk.Code[offset+1])
	return offset + 2
}

func jumpInstruction(w io.Writer, op object.OpCode, sign int, chunk *object.Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(w, "%-22s %4d -> %d\n", op.String(), offset, offset+3+sign*jump)
	return offset + 3
}

func invokeInstruction(w io.Writer, chunk *object.Chunk, op object.OpCode, offset int) int {
	idx := chunk.Code[offset+1]
	argc := chunk.Code[offset+2]
	fmt.Fprintf(w, "%-22s (%d args) %4d '%s'\n", op.String(), argc, idx, constantRepr(chunk, idx))
	return offset + 3
}

func closureInstruction(w io.Writer, chunk *object.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-22s %4d %s\n", object.OpClosure.String(), idx, constantRepr(chunk, idx))
	offset += 2

	if fn, ok := chunk.Constants[idx].(*object.ObjFunction); ok {
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := chunk.Code[offset]
			index := chunk.Code[offset+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, index)
			offset += 2
		}
	}
	return offset
}

func constantRepr(chunk *object.Chunk, idx byte) string {
	if int(idx) >= len(chunk.Constants) {
		return "out of range"
	}
	return chunk.Constants[idx].String()
}
