// Package maincmd implements the lox command-line tool: a REPL, a script
// runner, and a couple of small introspection subcommands built on top of
// the same scanner, compiler and VM the runtime uses.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "lox"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<command>] [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<command>] [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

Bytecode compiler and virtual machine for the %[1]s programming language.

With no command and no path, starts an interactive REPL. With a single
path and no command, compiles and runs that file as a script.

The <command> can be one of:
       run <path>                Compile and run a script file.
       repl                      Start the interactive REPL.
       tokenize <path>...        Print the tokens scanned from each file.
       disassemble <path>...     Compile each file and print its bytecode.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -s --silent               Suppress DEBUG_BREAK_POINT dumps.
`, binName)
)

// Cmd is the command-line entry point, reflected over by Main to dispatch
// to one of its own methods.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Silent  bool `flag:"s,silent"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) mainer.ExitCode
}

func (c *Cmd) SetArgs(args []string) { c.args = args }

func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

// Validate picks the subcommand to run, defaulting to repl with no
// arguments or run when the first argument does not name a subcommand.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	commands := buildCmds(c)
	name := "run"
	switch {
	case len(c.args) == 0:
		name = "repl"
	case commands[strings.ToLower(c.args[0])] != nil:
		name = strings.ToLower(c.args[0])
		c.args = c.args[1:]
	}

	c.cmdFn = commands[name]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", name)
	}

	switch name {
	case "run":
		if len(c.args) != 1 {
			return errors.New("run: exactly one script file is required")
		}
	case "tokenize", "disassemble":
		if len(c.args) == 0 {
			return fmt.Errorf("%s: at least one file must be provided", name)
		}
	case "repl":
		if len(c.args) != 0 {
			return errors.New("repl: takes no arguments")
		}
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: true, EnvPrefix: strings.ToUpper(binName) + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	if err := c.Validate(); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	return c.cmdFn(ctx, stdio, c.args)
}

// valid commands are those that take a mainer.Stdio and a slice of strings
// as input, and return a mainer.ExitCode.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) mainer.ExitCode {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) mainer.ExitCode)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	exitCodeType := reflect.TypeOf(mainer.ExitCode(0))

	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if mt.Out(0) != exitCodeType {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) mainer.ExitCode)
	}
	return cmds
}
