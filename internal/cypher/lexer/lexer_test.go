package lexer

import (
	"testing"

	"github.com/sentinelgraph/cyquel/internal/cypher/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Kind)
	}
	return out
}

func TestTokenize_Basic(t *testing.T) {
	toks, err := Tokenize(`MATCH (u:User)-[:LOGGED_IN]->(d) WHERE u.id = 42 RETURN u.name`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{
		token.MATCH, token.LPAREN, token.IDENT, token.COLON, token.IDENT, token.RPAREN,
		token.DASH, token.LBRACKET, token.COLON, token.IDENT, token.RBRACKET, token.ARROWR,
		token.LPAREN, token.IDENT, token.RPAREN,
		token.WHERE, token.IDENT, token.DOT, token.IDENT, token.EQ, token.NUMBER,
		token.RETURN, token.IDENT, token.DOT, token.IDENT, token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTokenize_StringEscapes(t *testing.T) {
	toks, err := Tokenize(`RETURN 'it\'s a \n test'`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[1].Kind != token.STRING {
		t.Fatalf("expected STRING token, got %s", toks[1].Kind)
	}
	if toks[1].Literal != "it's a \n test" {
		t.Errorf("got %q", toks[1].Literal)
	}
}

func TestTokenize_UnterminatedString(t *testing.T) {
	_, err := Tokenize(`RETURN 'unterminated`, 0)
	lexErr, ok := err.(*Error)
	if !ok || lexErr.Kind != "UnterminatedString" {
		t.Fatalf("expected UnterminatedString, got %v", err)
	}
}

func TestTokenize_UnknownEscape(t *testing.T) {
	_, err := Tokenize(`RETURN 'bad \q escape'`, 0)
	lexErr, ok := err.(*Error)
	if !ok || lexErr.Kind != "UnknownEscape" {
		t.Fatalf("expected UnknownEscape, got %v", err)
	}
}

func TestTokenize_TooLarge(t *testing.T) {
	big := make([]byte, 10)
	for i := range big {
		big[i] = 'a'
	}
	_, err := Tokenize(string(big), 5)
	lexErr, ok := err.(*Error)
	if !ok || lexErr.Kind != "TooLarge" {
		t.Fatalf("expected TooLarge, got %v", err)
	}
}

func TestTokenize_CommentsStripped(t *testing.T) {
	toks, err := Tokenize("MATCH (a) // trailing comment\n/* block */ RETURN a", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{token.MATCH, token.LPAREN, token.IDENT, token.RPAREN, token.RETURN, token.IDENT, token.EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenize_VariableLengthStar(t *testing.T) {
	toks, err := Tokenize("[*1..3]", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{token.LBRACKET, token.STAR, token.NUMBER, token.DOTDOT, token.NUMBER, token.RBRACKET, token.EOF}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenize_Positions(t *testing.T) {
	toks, err := Tokenize("MATCH\n(a)", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// '(' is on the second line, column 0.
	lparen := toks[1]
	if lparen.Start.Line != 1 || lparen.Start.Column != 0 {
		t.Errorf("expected line 1 col 0, got %+v", lparen.Start)
	}
}
