package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/loxlang/loxvm/internal/config"
	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/vm"
)

// exit codes, per the command-line contract: 0 or the script's returned
// number on success, 65 on compile error, 70 on runtime error, 74 on file
// I/O error.
const (
	exitCompileError mainer.ExitCode = 65
	exitRuntimeError mainer.ExitCode = 70
	exitIOError      mainer.ExitCode = 74
)

// Run compiles and executes a single script file, exiting with the integer
// the script's top-level `return` produced.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitIOError
	}
	return c.runSource(stdio, string(src))
}

func (c *Cmd) runSource(stdio mainer.Stdio, src string) mainer.ExitCode {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitIOError
	}

	heap := newHeap(cfg, stdio)

	// the VM comes first so its native table is registered (and rooted)
	// before compilation produces objects a collection must not lose
	machine := vm.New(heap)
	machine.Stdout = stdio.Stdout
	machine.Stderr = stdio.Stderr
	machine.Stdin = stdio.Stdin
	machine.Silent = c.Silent

	comp := compiler.New(heap)
	comp.SetErrOut(stdio.Stderr)
	fn, ok := comp.Compile(src)
	if !ok {
		return exitCompileError
	}

	result, err := machine.Run(fn)
	if err != nil {
		return exitRuntimeError
	}
	n, _ := result.(object.Number)
	return mainer.ExitCode(int(n))
}

func newHeap(cfg config.Runtime, stdio mainer.Stdio) *object.Heap {
	heap := object.NewHeap()
	heap.StressGC = cfg.GCStressTest
	heap.LogGC = cfg.GCLog
	heap.Log = func(format string, args ...any) {
		fmt.Fprintf(stdio.Stderr, format+"\n", args...)
	}
	return heap
}
