package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/debug"
	"github.com/loxlang/loxvm/lang/object"
)

// Disassemble compiles each file and prints the bytecode of its top-level
// function. Nested functions are not disassembled: an OP_CLOSURE line shows
// only the function constant's String form, such as <fn name>.
func (c *Cmd) Disassemble(ctx context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	code := mainer.Success
	for _, path := range args {
		if fileCode := disassembleFile(stdio, path); fileCode != mainer.Success {
			code = fileCode
		}
	}
	return code
}

func disassembleFile(stdio mainer.Stdio, path string) mainer.ExitCode {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitIOError
	}

	heap := object.NewHeap()
	comp := compiler.New(heap)
	comp.SetErrOut(stdio.Stderr)
	fn, ok := comp.Compile(string(src))
	if !ok {
		return exitCompileError
	}
	debug.DisassembleChunk(stdio.Stdout, &fn.Chunk, path)
	return mainer.Success
}
