package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"
)

// Repl reads one line at a time and compiles-and-runs it as a complete,
// standalone program with its own heap and VM: nothing declared on one line
// is visible on the next.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	scan := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scan.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return mainer.Success
		}
		line := scan.Text()
		if line == "" {
			continue
		}
		c.runSource(stdio, line)
	}
}
