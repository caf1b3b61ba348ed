// Package scanner implements the lexical scanner for Lox source text. The
// scanner is lazy: each call to Scan recognizes exactly one token by the
// longest match starting at the current offset, without look-behind or
// buffering beyond two bytes of look-ahead.
//
// The overall shape of the scan loop (a mutable cursor struct, advance/peek
// helpers operating on raw bytes, a big switch over the current rune) is
// adapted from the same style of hand-written recursive-descent scanner used
// throughout this codebase.
package scanner

import (
	"fmt"

	"github.com/loxlang/loxvm/lang/token"
)

// Scanner tokenizes a single chunk of Lox source text.
type Scanner struct {
	src   string
	start int // byte offset of the start of the token being scanned
	off   int // byte offset of the next unread byte
	line  int
	col   int
	// startLine/startCol hold the position of start, captured before any
	// advance() calls for the current token.
	startLine int
	startCol  int
}

// Init resets the scanner to tokenize src from the beginning.
func (s *Scanner) Init(src string) {
	s.src = src
	s.start = 0
	s.off = 0
	s.line = 1
	s.col = 1
	s.startLine = 1
	s.startCol = 1
}

func (s *Scanner) atEnd() bool { return s.off >= len(s.src) }

// advance consumes and returns the current byte. It must not be called at
// end of input.
func (s *Scanner) advance() byte {
	c := s.src[s.off]
	s.off++
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return c
}

// peek returns the current unread byte without consuming it, or 0 at end of
// input.
func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.off]
}

// peekNext returns the byte after the current one without consuming
// anything, or 0 if that would be past the end of input.
func (s *Scanner) peekNext() byte {
	if s.off+1 >= len(s.src) {
		return 0
	}
	return s.src[s.off+1]
}

// match consumes the current byte and returns true if it equals want;
// otherwise it leaves the scanner untouched and returns false.
func (s *Scanner) match(want byte) bool {
	if s.atEnd() || s.src[s.off] != want {
		return false
	}
	s.advance()
	return true
}

func (s *Scanner) skipWhitespaceAndComments() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n':
			s.advance()
		case '/':
			switch s.peekNext() {
			case '/':
				for !s.atEnd() && s.peek() != '\n' {
					s.advance()
				}
			case '*':
				s.advance()
				s.advance()
				s.blockComment()
			default:
				return
			}
		default:
			return
		}
	}
}

// blockComment consumes a /* ... */ comment, already past its opening
// delimiter. Block comments nest.
func (s *Scanner) blockComment() {
	depth := 1
	for !s.atEnd() && depth > 0 {
		switch {
		case s.peek() == '*' && s.peekNext() == '/':
			s.advance()
			s.advance()
			depth--
		case s.peek() == '/' && s.peekNext() == '*':
			s.advance()
			s.advance()
			depth++
		default:
			s.advance()
		}
	}
}

// Scan recognizes and returns the next token. After the source is exhausted
// it returns an EOF token forever.
func (s *Scanner) Scan() token.Token {
	s.skipWhitespaceAndComments()

	s.start = s.off
	s.startLine = s.line
	s.startCol = s.col

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()
	switch {
	case isAlpha(c):
		return s.identifier()
	case isDigit(c):
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LEFT_PAREN)
	case ')':
		return s.make(token.RIGHT_PAREN)
	case '{':
		return s.make(token.LEFT_BRACE)
	case '}':
		return s.make(token.RIGHT_BRACE)
	case '[':
		return s.make(token.LEFT_BRACKET)
	case ']':
		return s.make(token.RIGHT_BRACKET)
	case ',':
		return s.make(token.COMMA)
	case '.':
		return s.make(token.DOT)
	case '-':
		return s.make(token.MINUS)
	case '+':
		return s.make(token.PLUS)
	case ';':
		return s.make(token.SEMICOLON)
	case ':':
		return s.make(token.COLON)
	case '?':
		return s.make(token.QUESTION)
	case '*':
		if s.match('*') {
			return s.make(token.STAR_STAR)
		}
		return s.make(token.STAR)
	case '/':
		return s.make(token.SLASH)
	case '!':
		if s.match('=') {
			return s.make(token.BANG_EQUAL)
		}
		return s.make(token.BANG)
	case '=':
		if s.match('=') {
			return s.make(token.EQUAL_EQUAL)
		}
		return s.make(token.EQUAL)
	case '<':
		if s.match('=') {
			return s.make(token.LESS_EQUAL)
		}
		return s.make(token.LESS)
	case '>':
		if s.match('=') {
			return s.make(token.GREATER_EQUAL)
		}
		return s.make(token.GREATER)
	case '"':
		return s.string()
	}

	return s.errorf("unexpected character %q", c)
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	lit := s.src[s.start:s.off]
	return s.make(token.LookupIdent(lit))
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance() // consume '.'
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.make(token.NUMBER)
}

// string scans a double-quoted string literal, already past the opening
// quote. Lox strings have no escape sequences; a backslash is a literal
// backslash. An unterminated string (reaching EOF or a newline) is an error.
func (s *Scanner) string() token.Token {
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\n' {
			break
		}
		s.advance()
	}
	if s.atEnd() || s.peek() != '"' {
		return s.errorf("unterminated string")
	}
	// lexeme excludes the surrounding quotes
	value := s.src[s.start+1 : s.off]
	s.advance() // closing quote
	tok := s.make(token.STRING)
	tok.Lexeme = value
	return tok
}

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (s *Scanner) make(k token.Kind) token.Token {
	return token.Token{
		Kind:   k,
		Lexeme: s.src[s.start:s.off],
		Pos:    token.MakePos(s.startLine, s.startCol),
	}
}

func (s *Scanner) errorf(format string, args ...any) token.Token {
	return token.Token{
		Kind:    token.ILLEGAL,
		Lexeme:  s.src[s.start:s.off],
		Pos:     token.MakePos(s.startLine, s.startCol),
		Message: fmt.Sprintf(format, args...),
	}
}
