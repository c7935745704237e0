// Package kqlexpr formats Cypher expressions and literals as KQL text.
// It is shared by the plan builder (property filters, projections),
// the path translator, and the emitter, so operator mapping happens in
// exactly one place.
package kqlexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sentinelgraph/cyquel/internal/cypher/ast"
)

// ColumnResolver maps a pattern/result variable and property name to its
// backing KQL column, per §4.C's resolve_property. ok is false when the
// variable is not a schema-bound pattern variable (e.g. a WITH alias),
// in which case callers fall back to treating the access as an opaque
// identifier.
type ColumnResolver func(varName, property string) (column string, ok bool, err error)

// QuotePolicy controls identifier quoting (§6 emitter.quote_policy).
type QuotePolicy int

const (
	QuoteMinimal QuotePolicy = iota
	QuoteAlways
)

var kqlKeywords = map[string]bool{
	"project": true, "where": true, "extend": true, "summarize": true,
	"join": true, "union": true, "sort": true, "order": true, "take": true,
	"limit": true, "count": true, "distinct": true, "by": true, "on": true,
	"let": true, "print": true, "render": true,
}

// QuoteIdent quotes an identifier with ['...'] only if it collides with a
// KQL keyword, or always, per policy.
func QuoteIdent(name string, policy QuotePolicy) string {
	if policy == QuoteAlways || kqlKeywords[strings.ToLower(name)] {
		return fmt.Sprintf("['%s']", name)
	}
	return name
}

// FormatString renders a Cypher string literal as a single-quoted,
// backslash-escaped KQL string literal (§4.F).
func FormatString(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString("\\'")
		case '\\':
			sb.WriteString("\\\\")
		case '\n':
			sb.WriteString("\\n")
		case '\t':
			sb.WriteString("\\t")
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// FormatLiteral renders a literal node as KQL text.
func FormatLiteral(l *ast.Literal) string {
	switch l.Kind {
	case ast.LiteralString:
		return FormatString(l.Str)
	case ast.LiteralNumber:
		return strconv.FormatFloat(l.Num, 'g', -1, 64)
	case ast.LiteralBoolean:
		if l.Bool {
			return "true"
		}
		return "false"
	case ast.LiteralNull:
		return "dynamic(null)"
	}
	return ""
}

var binaryOpText = map[ast.BinaryOp]string{
	ast.OpEQ:  "==",
	ast.OpNEQ: "!=",
	ast.OpLT:  "<",
	ast.OpLE:  "<=",
	ast.OpGT:  ">",
	ast.OpGE:  ">=",
	ast.OpAnd: "and",
	ast.OpOr:  "or",
	ast.OpAdd: "+",
	ast.OpSub: "-",
	ast.OpMul: "*",
	ast.OpDiv: "/",
	ast.OpMod: "%",
}

// Format renders an arbitrary expression as KQL text, resolving property
// accesses through resolve. caseInsensitiveText selects the
// has/startswith/endswith case sensitivity per §4.D.
func Format(e ast.Expression, resolve ColumnResolver, caseInsensitiveText bool) (string, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return FormatLiteral(n), nil
	case *ast.Parameter:
		return "param_" + n.Name, nil
	case *ast.Variable:
		return n.Name, nil
	case *ast.PropertyAccess:
		v, ok := n.Target.(*ast.Variable)
		if !ok {
			inner, err := Format(n.Target, resolve, caseInsensitiveText)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s.%s", inner, n.Property), nil
		}
		col, ok, err := resolve(v.Name, n.Property)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("%s.%s", v.Name, n.Property), nil
		}
		return col, nil
	case *ast.Unary:
		operand, err := Format(n.Operand, resolve, caseInsensitiveText)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case ast.OpNot:
			return fmt.Sprintf("not(%s)", operand), nil
		case ast.OpNeg:
			return fmt.Sprintf("-%s", operand), nil
		}
	case *ast.Binary:
		return formatBinary(n, resolve, caseInsensitiveText)
	case *ast.FunctionCall:
		return formatFunctionCall(n, resolve, caseInsensitiveText)
	case *ast.ListLiteral:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			s, err := Format(item, resolve, caseInsensitiveText)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return fmt.Sprintf("dynamic([%s])", strings.Join(parts, ", ")), nil
	}
	return "", fmt.Errorf("kqlexpr: unsupported expression %T", e)
}

func formatBinary(n *ast.Binary, resolve ColumnResolver, ci bool) (string, error) {
	left, err := Format(n.Left, resolve, ci)
	if err != nil {
		return "", err
	}
	right, err := Format(n.Right, resolve, ci)
	if err != nil {
		return "", err
	}

	switch n.Op {
	case ast.OpIn:
		return fmt.Sprintf("%s in (%s)", left, stripDynamic(right)), nil
	case ast.OpContains:
		if ci {
			return fmt.Sprintf("%s has %s", left, right), nil
		}
		return fmt.Sprintf("%s has_cs %s", left, right), nil
	case ast.OpStartsWith:
		if ci {
			return fmt.Sprintf("%s startswith %s", left, right), nil
		}
		return fmt.Sprintf("%s startswith_cs %s", left, right), nil
	case ast.OpEndsWith:
		if ci {
			return fmt.Sprintf("%s endswith %s", left, right), nil
		}
		return fmt.Sprintf("%s endswith_cs %s", left, right), nil
	}

	op, ok := binaryOpText[n.Op]
	if !ok {
		return "", fmt.Errorf("kqlexpr: unsupported operator %v", n.Op)
	}
	return fmt.Sprintf("%s %s %s", left, op, right), nil
}

// stripDynamic unwraps a `dynamic([...])` wrapper for use inside `in (...)`.
func stripDynamic(s string) string {
	if strings.HasPrefix(s, "dynamic([") && strings.HasSuffix(s, "])") {
		return s[len("dynamic(["):len(s)-2]
	}
	return s
}

var functionNames = map[string]string{
	"count":     "count",
	"sum":       "sum",
	"avg":       "avg",
	"min":       "min",
	"max":       "max",
	"toupper":   "toupper",
	"tolower":   "tolower",
	"size":      "array_length",
}

func formatFunctionCall(n *ast.FunctionCall, resolve ColumnResolver, ci bool) (string, error) {
	kql, ok := functionNames[strings.ToLower(n.Name)]
	if !ok {
		return "", fmt.Errorf("kqlexpr: unsupported function %q", n.Name)
	}
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		s, err := Format(a, resolve, ci)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return fmt.Sprintf("%s(%s)", kql, strings.Join(args, ", ")), nil
}

// IsAggregate reports whether a function name is one of the supported
// aggregate functions, used by the plan builder's result-shaping pass to
// decide whether a RETURN/WITH needs an Aggregate node.
func IsAggregate(name string) bool {
	switch strings.ToLower(name) {
	case "count", "sum", "avg", "min", "max":
		return true
	}
	return false
}
