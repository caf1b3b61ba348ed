package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStringCoversEveryKind(t *testing.T) {
	for k := ILLEGAL; k < maxKind; k++ {
		require.NotEmpty(t, k.String(), "Kind(%d).String()", k)
	}
}

func TestGoStringQuotesPunctuationOnly(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{IDENT, "identifier"},
		{PLUS, "'+'"},
		{LESS_EQUAL, "'<='"},
		{CLASS, "class"},
		{EOF, "end of file"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.k.GoString())
	}
}

func TestLookupIdentKeywords(t *testing.T) {
	for lit, want := range keywords {
		require.Equal(t, want, LookupIdent(lit))
	}
}

func TestLookupIdentNonKeyword(t *testing.T) {
	cases := []string{"x", "foo", "classy", "_private", "a", "printer"}
	for _, lit := range cases {
		require.Equal(t, IDENT, LookupIdent(lit))
	}
}

func TestTokenStringUsesLexemeForValueTokens(t *testing.T) {
	cases := []struct {
		tok  Token
		want string
	}{
		{Token{Kind: IDENT, Lexeme: "foo"}, "foo"},
		{Token{Kind: STRING, Lexeme: "hi"}, "hi"},
		{Token{Kind: NUMBER, Lexeme: "1.5"}, "1.5"},
		{Token{Kind: PLUS, Lexeme: "+"}, "+"},
		{Token{Kind: CLASS, Lexeme: "class"}, "class"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.tok.String())
	}
}
