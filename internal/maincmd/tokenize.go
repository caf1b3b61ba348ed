package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/loxlang/loxvm/lang/scanner"
	"github.com/loxlang/loxvm/lang/token"
)

// Tokenize prints every token scanned from each file, one per line.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	code := mainer.Success
	for _, path := range args {
		if err := tokenizeFile(stdio, path); err != nil {
			code = exitIOError
		}
	}
	return code
}

func tokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	var s scanner.Scanner
	s.Init(string(src))
	for {
		tok := s.Scan()
		line, col := tok.Pos.LineCol()
		fmt.Fprintf(stdio.Stdout, "%s:%d:%d: %#v", path, line, col, tok.Kind)
		if tok.Kind == token.IDENT || tok.Kind == token.STRING || tok.Kind == token.NUMBER {
			fmt.Fprintf(stdio.Stdout, " %q", tok.Lexeme)
		}
		if tok.Kind == token.ILLEGAL {
			fmt.Fprintf(stdio.Stdout, " %s", tok.Message)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}
