// Package validator implements the five static checks of §4.G against a
// candidate KQL string: syntactic well-formedness, table/column
// resolution, operator/type matching, symbol alignment, and
// aggregation/projection arity. Each check contributes a weighted
// confidence score; strict mode requires every check to pass outright.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sentinelgraph/cyquel/internal/cypher/parser"
	"github.com/sentinelgraph/cyquel/internal/diagnostics"
	"github.com/sentinelgraph/cyquel/internal/pathtranslator"
	"github.com/sentinelgraph/cyquel/internal/plan"
	"github.com/sentinelgraph/cyquel/internal/schema"
)

// Config controls validation strictness (§6).
type Config struct {
	StrictMode    bool
	MinConfidence float64 // overall score threshold in non-strict mode, default 0.7
}

// DefaultConfig returns the spec's default validator settings.
func DefaultConfig() Config {
	return Config{StrictMode: false, MinConfidence: 0.7}
}

// CheckResult is one named check's outcome.
type CheckResult struct {
	Name       string
	Passed     bool
	Weight     float64
	Detail     string
}

// Result is the overall validation verdict.
type Result struct {
	Valid       bool
	Score       float64
	Checks      []CheckResult
	Diagnostics []diagnostics.Diagnostic
}

// Validate checks candidateKQL against the plan built from source under
// sm. The candidate is typically the output of Translate, re-validated
// after manual edits, or a hand-written query being sanity-checked
// against the schema.
func Validate(source, candidateKQL string, sm *schema.Map, cfg Config) (Result, error) {
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 0.7
	}

	query, err := parser.Parse(source, parser.DefaultConfig())
	if err != nil {
		return Result{}, fmt.Errorf("validator: source does not parse: %w", err)
	}
	root, _, err := plan.Build(query, sm, plan.BuildConfig{PathLowerer: pathtranslator.Translate})
	if err != nil {
		return Result{}, fmt.Errorf("validator: source does not build a plan: %w", err)
	}

	checks := []CheckResult{
		checkWellFormed(candidateKQL),
		checkTableColumnResolution(root, candidateKQL),
		checkOperatorTypeMatch(sm, candidateKQL),
		checkSymbolAlignment(root, candidateKQL),
		checkAggregationProjectionArity(root, candidateKQL),
	}

	var score, totalWeight float64
	var diags []diagnostics.Diagnostic
	allPassed := true
	for _, c := range checks {
		totalWeight += c.Weight
		if c.Passed {
			score += c.Weight
		} else {
			allPassed = false
			diags = append(diags, diagnostics.Diagnostic{
				Severity: diagnostics.SeverityWarning,
				Code:     "validator." + c.Name,
				Message:  c.Detail,
			})
		}
	}
	if totalWeight > 0 {
		score /= totalWeight
	}

	valid := score >= cfg.MinConfidence
	if cfg.StrictMode {
		valid = allPassed
	}

	return Result{Valid: valid, Score: score, Checks: checks, Diagnostics: diags}, nil
}

func checkWellFormed(kql string) CheckResult {
	name := "SyntacticWellFormedness"
	trimmed := strings.TrimSpace(kql)
	if trimmed == "" {
		return CheckResult{Name: name, Weight: 0.15, Detail: "candidate KQL is empty"}
	}
	if balance := bracketBalance(trimmed); balance != 0 {
		return CheckResult{Name: name, Weight: 0.15, Detail: "unbalanced parentheses/brackets in candidate KQL"}
	}
	return CheckResult{Name: name, Passed: true, Weight: 0.15}
}

func bracketBalance(s string) int {
	balance := 0
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			balance++
		case ')', ']', '}':
			balance--
		}
	}
	return balance
}

func checkTableColumnResolution(root plan.Node, kql string) CheckResult {
	name := "TableColumnResolution"
	var missing []string
	walkTables(root, func(table string) {
		if table != "" && !strings.Contains(kql, table) {
			missing = append(missing, table)
		}
	})
	if len(missing) > 0 {
		return CheckResult{Name: name, Weight: 0.3, Detail: "candidate KQL does not reference table(s): " + strings.Join(missing, ", ")}
	}
	return CheckResult{Name: name, Passed: true, Weight: 0.3}
}

func walkTables(n plan.Node, visit func(table string)) {
	if n == nil {
		return
	}
	switch t := n.(type) {
	case *plan.Scan:
		visit(t.Table)
	case *plan.GraphMatch:
		for _, nt := range t.Def.NodeTables {
			visit(nt.Table)
		}
		for _, et := range t.Def.EdgeTables {
			visit(et.Table)
		}
	case *plan.ShortestPaths:
		for _, nt := range t.Def.NodeTables {
			visit(nt.Table)
		}
		for _, et := range t.Def.EdgeTables {
			visit(et.Table)
		}
	case *plan.AllPaths:
		for _, nt := range t.Def.NodeTables {
			visit(nt.Table)
		}
		for _, et := range t.Def.EdgeTables {
			visit(et.Table)
		}
	}
	for _, c := range n.Children() {
		walkTables(c, visit)
	}
}

// operatorLiteralPattern matches "<column> <operator> <literal>" comparisons
// in emitted KQL text: a bare identifier, a comparison or KQL string
// operator, and a quoted string, numeric, or boolean literal.
var operatorLiteralPattern = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=|<=|>=|<|>|has_cs|has|contains_cs|contains|startswith|endswith)\s*('(?:[^'\\]|\\.)*'|-?\d+(?:\.\d+)?|true|false)`)

func checkOperatorTypeMatch(sm *schema.Map, kql string) CheckResult {
	name := "OperatorTypeMatch"
	types := sm.ColumnTypes()
	if len(types) == 0 {
		// The schema declares no property_types, so there is nothing to
		// check a literal's type against; the check trivially passes
		// rather than guessing from KQL punctuation alone.
		return CheckResult{Name: name, Passed: true, Weight: 0.2}
	}

	var mismatches []string
	for _, m := range operatorLiteralPattern.FindAllStringSubmatch(kql, -1) {
		column, op, literal := m[1], strings.ToLower(m[2]), m[3]
		declared, ok := types[column]
		if !ok {
			continue
		}
		if !operatorMatchesType(declared, op, literal) {
			mismatches = append(mismatches, fmt.Sprintf("%s %s %s (declared type %s)", column, op, literal, declared))
		}
	}
	if len(mismatches) > 0 {
		return CheckResult{Name: name, Weight: 0.2, Detail: "operator/type mismatch: " + strings.Join(mismatches, "; ")}
	}
	return CheckResult{Name: name, Passed: true, Weight: 0.2}
}

// operatorMatchesType reports whether op/literal is a sound comparison
// against a column declared as declaredType ("string", "int", "float",
// "bool", or "datetime"; any other value is treated as untyped and always
// matches).
func operatorMatchesType(declaredType, op, literal string) bool {
	quoted := strings.HasPrefix(literal, "'")
	boolLiteral := literal == "true" || literal == "false"
	numericLiteral := !quoted && !boolLiteral

	switch declaredType {
	case "string":
		return quoted
	case "int", "float", "long", "number":
		switch op {
		case "has", "has_cs", "contains", "contains_cs", "startswith", "endswith":
			return false
		}
		return numericLiteral
	case "bool", "boolean":
		return boolLiteral && (op == "==" || op == "!=")
	default:
		return true
	}
}

func checkSymbolAlignment(root plan.Node, kql string) CheckResult {
	name := "SymbolAlignment"
	var missing []string
	for _, v := range patternVariables(root) {
		if !strings.Contains(kql, v) {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return CheckResult{Name: name, Weight: 0.2, Detail: "pattern variable(s) not found in candidate KQL: " + strings.Join(missing, ", ")}
	}
	return CheckResult{Name: name, Passed: true, Weight: 0.2}
}

func patternVariables(n plan.Node) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	var walk func(plan.Node)
	walk = func(n plan.Node) {
		if n == nil {
			return
		}
		switch t := n.(type) {
		case *plan.GraphMatch:
			for _, mn := range t.Pattern.Nodes {
				add(mn.Var)
			}
			for _, mr := range t.Pattern.Rels {
				add(mr.Var)
			}
		case *plan.ShortestPaths:
			add(t.Src.Var)
			add(t.Dst.Var)
			add(t.Rel.Var)
		case *plan.AllPaths:
			add(t.Src.Var)
			add(t.Dst.Var)
			add(t.Rel.Var)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

func checkAggregationProjectionArity(root plan.Node, kql string) CheckResult {
	name := "AggregationProjectionArity"
	switch t := findTopmost(root).(type) {
	case *plan.Project:
		expected := len(t.Items)
		got := countTopLevelCommaItems(lastLineStartingWith(kql, "| project "))
		if got >= 0 && got != expected {
			return CheckResult{Name: name, Weight: 0.15, Detail: fmt.Sprintf("expected %d projected column(s), candidate KQL has %d", expected, got)}
		}
	case *plan.Aggregate:
		expected := len(t.Aggs) + len(t.GroupKeys)
		line := lastLineStartingWith(kql, "| summarize ")
		got := countTopLevelCommaItems(strings.SplitN(line, " by ", 2)[0])
		if len(t.GroupKeys) > 0 {
			got++
		}
		if got >= 0 && got != expected {
			return CheckResult{Name: name, Weight: 0.15, Detail: fmt.Sprintf("expected %d aggregate/group column(s), candidate KQL has %d", expected, got)}
		}
	}
	return CheckResult{Name: name, Passed: true, Weight: 0.15}
}

func findTopmost(n plan.Node) plan.Node {
	for {
		switch t := n.(type) {
		case *plan.Sort:
			n = t.Child
		case *plan.Limit:
			n = t.Child
		case *plan.Filter:
			n = t.Child
		default:
			return n
		}
	}
}

func lastLineStartingWith(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), strings.TrimSpace(prefix)) {
			return strings.TrimPrefix(strings.TrimSpace(lines[i]), strings.TrimSpace(prefix))
		}
	}
	return ""
}

func countTopLevelCommaItems(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1
	}
	depth := 0
	count := 1
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}
