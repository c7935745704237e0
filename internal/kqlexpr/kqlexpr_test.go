package kqlexpr

import (
	"testing"

	"github.com/sentinelgraph/cyquel/internal/cypher/ast"
)

func noopResolver(varName, property string) (string, bool, error) {
	return "", false, nil
}

func TestFormatStringEscapesQuotesAndBackslashes(t *testing.T) {
	got := FormatString(`O'Brien\path`)
	want := `'O\'Brien\\path'`
	if got != want {
		t.Fatalf("FormatString = %q, want %q", got, want)
	}
}

func TestFormatLiteralKinds(t *testing.T) {
	cases := []struct {
		lit  *ast.Literal
		want string
	}{
		{&ast.Literal{Kind: ast.LiteralString, Str: "x"}, "'x'"},
		{&ast.Literal{Kind: ast.LiteralNumber, Num: 42}, "42"},
		{&ast.Literal{Kind: ast.LiteralBoolean, Bool: true}, "true"},
		{&ast.Literal{Kind: ast.LiteralBoolean, Bool: false}, "false"},
		{&ast.Literal{Kind: ast.LiteralNull}, "dynamic(null)"},
	}
	for _, c := range cases {
		if got := FormatLiteral(c.lit); got != c.want {
			t.Fatalf("FormatLiteral(%+v) = %q, want %q", c.lit, got, c.want)
		}
	}
}

func TestQuoteIdentOnlyQuotesKeywordsUnlessAlways(t *testing.T) {
	if got := QuoteIdent("name", QuoteMinimal); got != "name" {
		t.Fatalf("expected an ordinary identifier to pass through unquoted, got %q", got)
	}
	if got := QuoteIdent("project", QuoteMinimal); got != "['project']" {
		t.Fatalf("expected a keyword-colliding identifier to be quoted, got %q", got)
	}
	if got := QuoteIdent("name", QuoteAlways); got != "['name']" {
		t.Fatalf("expected QuoteAlways to quote every identifier, got %q", got)
	}
}

func binaryEq(op ast.BinaryOp, left, right ast.Expression) *ast.Binary {
	return &ast.Binary{Op: op, Left: left, Right: right}
}

func strLit(s string) *ast.Literal { return &ast.Literal{Kind: ast.LiteralString, Str: s} }

func TestFormatContainsUsesHasFamilyForBothCaseModes(t *testing.T) {
	expr := binaryEq(ast.OpContains, &ast.Variable{Name: "name"}, strLit("x"))

	ciOut, err := Format(expr, noopResolver, true)
	if err != nil {
		t.Fatalf("Format (case-insensitive): %v", err)
	}
	if ciOut != "name has 'x'" {
		t.Fatalf("case-insensitive CONTAINS = %q, want %q", ciOut, "name has 'x'")
	}

	csOut, err := Format(expr, noopResolver, false)
	if err != nil {
		t.Fatalf("Format (case-sensitive): %v", err)
	}
	if csOut != "name has_cs 'x'" {
		t.Fatalf("case-sensitive CONTAINS = %q, want %q", csOut, "name has_cs 'x'")
	}
}

func TestFormatStartsWithAndEndsWith(t *testing.T) {
	starts := binaryEq(ast.OpStartsWith, &ast.Variable{Name: "name"}, strLit("A"))
	ends := binaryEq(ast.OpEndsWith, &ast.Variable{Name: "name"}, strLit("Z"))

	if got, _ := Format(starts, noopResolver, false); got != "name startswith_cs 'A'" {
		t.Fatalf("STARTS WITH (cs) = %q", got)
	}
	if got, _ := Format(starts, noopResolver, true); got != "name startswith 'A'" {
		t.Fatalf("STARTS WITH (ci) = %q", got)
	}
	if got, _ := Format(ends, noopResolver, false); got != "name endswith_cs 'Z'" {
		t.Fatalf("ENDS WITH (cs) = %q", got)
	}
}

func TestFormatInUnwrapsDynamicList(t *testing.T) {
	expr := binaryEq(ast.OpIn, &ast.Variable{Name: "id"}, &ast.ListLiteral{
		Items: []ast.Expression{&ast.Literal{Kind: ast.LiteralNumber, Num: 1}, &ast.Literal{Kind: ast.LiteralNumber, Num: 2}},
	})
	got, err := Format(expr, noopResolver, false)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != "id in (1, 2)" {
		t.Fatalf("IN formatting = %q, want %q", got, "id in (1, 2)")
	}
}

func TestFormatPropertyAccessResolvesThroughColumnResolver(t *testing.T) {
	resolve := func(varName, property string) (string, bool, error) {
		if varName == "u" && property == "id" {
			return "AccountUpc", true, nil
		}
		return "", false, nil
	}
	expr := &ast.PropertyAccess{Target: &ast.Variable{Name: "u"}, Property: "id"}
	got, err := Format(expr, resolve, false)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != "AccountUpc" {
		t.Fatalf("PropertyAccess = %q, want %q", got, "AccountUpc")
	}
}

func TestFormatAggregateFunctionCall(t *testing.T) {
	expr := &ast.FunctionCall{Name: "count", Args: nil}
	got, err := Format(expr, noopResolver, false)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != "count()" {
		t.Fatalf("FunctionCall = %q, want %q", got, "count()")
	}
	if !IsAggregate("COUNT") {
		t.Fatalf("expected IsAggregate to be case-insensitive")
	}
	if IsAggregate("toupper") {
		t.Fatalf("expected toupper not to be classified as an aggregate")
	}
}

func TestFormatUnsupportedFunctionErrors(t *testing.T) {
	expr := &ast.FunctionCall{Name: "notarealfunction"}
	if _, err := Format(expr, noopResolver, false); err == nil {
		t.Fatalf("expected an error for an unsupported function name")
	}
}
