// Package emitter serializes an optimized plan tree into KQL source text
// (§4.F): one pipe operator per line, deterministic column and table
// ordering, and the canonical make-graph/graph-match/graph-shortest-paths
// shapes Sentinel expects.
//
// Grounded on pkg/server/results/formatter.go's strings.Builder-based,
// one-helper-per-node-kind serialization style, generalized from N-Triples
// terms to KQL pipe stages.
package emitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sentinelgraph/cyquel/internal/kqlexpr"
	"github.com/sentinelgraph/cyquel/internal/plan"
)

// Config carries the emitter-relevant subset of the top-level translation
// Config (§6).
type Config struct {
	QuotePolicy kqlexpr.QuotePolicy
}

// Emit renders a plan tree as KQL source text.
func Emit(root plan.Node, cfg Config) (string, error) {
	return emit(root, cfg)
}

func emit(n plan.Node, cfg Config) (string, error) {
	switch t := n.(type) {
	case *plan.Scan:
		return emitScan(t, cfg), nil
	case *plan.GraphMatch:
		return emitGraphMatch(t, cfg)
	case *plan.Filter:
		child, err := emit(t.Child, cfg)
		if err != nil {
			return "", err
		}
		return child + "\n| where " + t.Predicate.Text, nil
	case *plan.Join:
		return emitJoin(t, cfg)
	case *plan.Project:
		child, err := emit(t.Child, cfg)
		if err != nil {
			return "", err
		}
		return child + "\n| project " + emitProjectItems(t.Items, t.Distinct, cfg), nil
	case *plan.Aggregate:
		child, err := emit(t.Child, cfg)
		if err != nil {
			return "", err
		}
		return child + "\n| summarize " + emitAggregate(t, cfg), nil
	case *plan.Sort:
		child, err := emit(t.Child, cfg)
		if err != nil {
			return "", err
		}
		return child + "\n| sort by " + emitSortKeys(t.Keys), nil
	case *plan.Limit:
		child, err := emit(t.Child, cfg)
		if err != nil {
			return "", err
		}
		s := child
		if t.Skip > 0 {
			s += fmt.Sprintf("\n| serialize __rn = row_number()\n| where __rn > %d", t.Skip)
		}
		if t.N >= 0 {
			s += fmt.Sprintf("\n| take %d", t.N)
		}
		return s, nil
	case *plan.Unwind:
		child, err := emit(t.Child, cfg)
		if err != nil {
			return "", err
		}
		return child + fmt.Sprintf("\n| mv-expand %s = %s", t.Alias, t.Expr), nil
	case *plan.ShortestPaths:
		return emitShortestPaths(t, cfg), nil
	case *plan.AllPaths:
		return emitAllPaths(t, cfg), nil
	}
	return "", fmt.Errorf("emitter: unsupported plan node %T", n)
}

func emitScan(s *plan.Scan, cfg Config) string {
	text := kqlexpr.QuoteIdent(s.Table, cfg.QuotePolicy)
	if s.TimeColumn != "" && s.TimeWindow != "" {
		text += fmt.Sprintf("\n| where %s >= ago(%s)", s.TimeColumn, s.TimeWindow)
	}
	if s.Filter != "" {
		text += "\n| where " + s.Filter
	}
	return text
}

func emitMakeGraph(gd plan.GraphDef) string {
	if len(gd.EdgeTables) == 0 {
		return kqlexpr.QuoteIdent(firstTable(gd), kqlexpr.QuoteMinimal)
	}
	edge := gd.EdgeTables[0]
	var with []string
	for _, nt := range gd.NodeTables {
		with = append(with, fmt.Sprintf("%s on %s", nt.Table, nt.Key))
	}
	with = append(with, fmt.Sprintf("%s on (%s, %s)", edge.Table, edge.SourceKey, edge.TargetKey))
	return fmt.Sprintf("make-graph %s --> %s with %s", edge.SourceKey, edge.TargetKey, strings.Join(with, ", "))
}

func firstTable(gd plan.GraphDef) string {
	if len(gd.NodeTables) > 0 {
		return gd.NodeTables[0].Table
	}
	return ""
}

// primarySource names the table piped into make-graph: the edge table.
// Callers only reach for this once they've confirmed EdgeTables is
// non-empty — the label-only case never emits a real make-graph stage
// to begin with (see emitMakeGraph).
func primarySource(gd plan.GraphDef) string {
	return gd.EdgeTables[0].Table
}

func emitGraphMatch(gm *plan.GraphMatch, cfg Config) (string, error) {
	var sb strings.Builder
	for _, h := range gm.IndexHints {
		sb.WriteString(fmt.Sprintf("// index hint: %s\n", h))
	}
	if len(gm.Def.EdgeTables) > 0 {
		sb.WriteString(kqlexpr.QuoteIdent(primarySource(gm.Def), kqlexpr.QuoteMinimal))
		sb.WriteString("\n| ")
	}
	sb.WriteString(emitMakeGraph(gm.Def))
	sb.WriteString("\n| graph-match ")
	sb.WriteString(emitPattern(gm.Pattern))
	if gm.Where.Text != "" {
		sb.WriteString("\n    where ")
		sb.WriteString(gm.Where.Text)
	}
	block := sb.String()

	if gm.LeftJoin && gm.Input != nil {
		left, err := emit(gm.Input, cfg)
		if err != nil {
			return "", err
		}
		hinge := hingeVariable(gm)
		return fmt.Sprintf("%s\n| join kind=leftouter (\n%s\n) on %s", left, indent(block, "    "), hinge), nil
	}
	return block, nil
}

// hingeVariable names the column a LeftJoin'd GraphMatch would join on.
// Exact key resolution is outside this package's scope (it depends on
// the preceding plan's projected columns); the emitted placeholder
// documents intent for a human reviewer to finish wiring.
func hingeVariable(gm *plan.GraphMatch) string {
	if len(gm.Pattern.Nodes) > 0 {
		return "$left." + gm.Pattern.Nodes[0].Var + " == $right." + gm.Pattern.Nodes[0].Var
	}
	return "$left.id == $right.id"
}

func emitPattern(p *plan.MatchPattern) string {
	var sb strings.Builder
	for i, n := range p.Nodes {
		sb.WriteString(emitMatchNode(n))
		if i < len(p.Rels) {
			sb.WriteString(emitMatchRel(p.Rels[i]))
		}
	}
	return sb.String()
}

func emitMatchNode(n plan.MatchNode) string {
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(n.Var)
	for _, l := range n.Labels {
		sb.WriteByte(':')
		sb.WriteString(l)
	}
	if len(n.InlineEq) > 0 {
		sb.WriteString(" {")
		sb.WriteString(emitInlineEq(n.InlineEq))
		sb.WriteString("}")
	}
	sb.WriteByte(')')
	return sb.String()
}

func emitMatchRel(r plan.MatchRel) string {
	var sb strings.Builder
	left, right := "-", "-"
	switch r.Direction {
	case "->":
		right = "->"
	case "<-":
		left = "<-"
	}
	sb.WriteString(left)
	sb.WriteByte('[')
	sb.WriteString(r.Var)
	for i, t := range r.Types {
		if i == 0 {
			sb.WriteByte(':')
		} else {
			sb.WriteByte('|')
		}
		sb.WriteString(t)
	}
	sb.WriteString(emitHopRange(r.MinHops, r.MaxHops))
	if len(r.InlineEq) > 0 {
		sb.WriteString(" {")
		sb.WriteString(emitInlineEq(r.InlineEq))
		sb.WriteString("}")
	}
	sb.WriteByte(']')
	sb.WriteString(right)
	return sb.String()
}

func emitHopRange(min int, max *int) string {
	if min == 1 && max != nil && *max == 1 {
		return ""
	}
	switch {
	case max == nil:
		return fmt.Sprintf("*%d..", min)
	case min == max0(max):
		return fmt.Sprintf("*%d", min)
	default:
		return fmt.Sprintf("*%d..%d", min, *max)
	}
}

func max0(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func emitInlineEq(eqs []plan.InlineEquality) string {
	parts := make([]string, len(eqs))
	for i, e := range eqs {
		parts[i] = fmt.Sprintf("%s: %s", e.Column, e.Value)
	}
	return strings.Join(parts, ", ")
}

func emitJoin(j *plan.Join, cfg Config) (string, error) {
	left, err := emit(j.Left, cfg)
	if err != nil {
		return "", err
	}
	right, err := emit(j.Right, cfg)
	if err != nil {
		return "", err
	}
	kind := "inner"
	if j.Kind == plan.LeftOuterJoin {
		kind = "leftouter"
	}
	if len(j.Keys) == 0 {
		return fmt.Sprintf("%s\n| join kind=%s (\n%s\n)", left, kind, indent(right, "    ")), nil
	}
	var on []string
	for _, k := range j.Keys {
		on = append(on, fmt.Sprintf("$left.%s == $right.%s", k.LeftColumn, k.RightColumn))
	}
	return fmt.Sprintf("%s\n| join kind=%s (\n%s\n) on %s", left, kind, indent(right, "    "), strings.Join(on, ", ")), nil
}

func emitProjectItems(items []plan.ProjectItem, distinct bool, cfg Config) string {
	parts := make([]string, len(items))
	for i, it := range items {
		if it.Alias != "" {
			parts[i] = fmt.Sprintf("%s = %s", kqlexpr.QuoteIdent(it.Alias, cfg.QuotePolicy), it.Expr)
		} else {
			parts[i] = it.Expr
		}
	}
	text := strings.Join(parts, ", ")
	if distinct {
		return "distinct " + text
	}
	return text
}

func emitAggregate(a *plan.Aggregate, cfg Config) string {
	var aggParts []string
	for _, agg := range a.Aggs {
		call := agg.Func + "(" + agg.Arg + ")"
		if agg.Func == "count" && agg.Arg == "" {
			call = "count()"
		}
		aggParts = append(aggParts, fmt.Sprintf("%s = %s", kqlexpr.QuoteIdent(agg.Alias, cfg.QuotePolicy), call))
	}
	text := strings.Join(aggParts, ", ")
	if len(a.GroupKeys) > 0 {
		text += " by " + strings.Join(a.GroupKeys, ", ")
	}
	return text
}

func emitSortKeys(keys []plan.SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k.Descending {
			parts[i] = k.Expr + " desc"
		} else {
			parts[i] = k.Expr + " asc"
		}
	}
	return strings.Join(parts, ", ")
}

func emitShortestPaths(s *plan.ShortestPaths, cfg Config) string {
	var sb strings.Builder
	if len(s.Def.EdgeTables) > 0 {
		sb.WriteString(kqlexpr.QuoteIdent(primarySource(s.Def), kqlexpr.QuoteMinimal))
		sb.WriteString("\n| ")
	}
	sb.WriteString(emitMakeGraph(s.Def))
	sb.WriteString("\n| graph-shortest-paths ")
	sb.WriteString(emitMatchNode(s.Src))
	sb.WriteString(emitMatchRel(s.Rel))
	sb.WriteString(emitMatchNode(s.Dst))
	var opts []string
	if s.Weight != "" {
		opts = append(opts, "weight="+s.Weight)
	}
	if s.Bidirectional {
		opts = append(opts, "bidirectional=true")
	}
	if s.MaxLen != nil {
		opts = append(opts, "max_length="+strconv.Itoa(*s.MaxLen))
	}
	if len(opts) > 0 {
		sb.WriteString(" with (" + strings.Join(opts, ", ") + ")")
	}
	if s.Where.Text != "" {
		sb.WriteString("\n    where ")
		sb.WriteString(s.Where.Text)
	}
	return sb.String()
}

func emitAllPaths(a *plan.AllPaths, cfg Config) string {
	var sb strings.Builder
	if len(a.Def.EdgeTables) > 0 {
		sb.WriteString(kqlexpr.QuoteIdent(primarySource(a.Def), kqlexpr.QuoteMinimal))
		sb.WriteString("\n| ")
	}
	sb.WriteString(emitMakeGraph(a.Def))
	op := "all_paths"
	if !a.All {
		op = "all_shortest_paths"
	}
	sb.WriteString("\n| " + op + " (")
	sb.WriteString(emitMatchNode(a.Src))
	rel := a.Rel
	rel.MinHops, rel.MaxHops = a.MinLen, &a.MaxLen
	sb.WriteString(emitMatchRel(rel))
	sb.WriteString(emitMatchNode(a.Dst))
	sb.WriteString(")")
	if a.All {
		sb.WriteString(fmt.Sprintf(" with (all=true, max_length=%d)", a.MaxLen))
	} else {
		sb.WriteString(fmt.Sprintf(" with (max_length=%d)", a.MaxLen))
	}
	if a.CycleDetect {
		sb.WriteString(" // cycle-detection guard: each node visited at most once per path")
	}
	if a.Where.Text != "" {
		sb.WriteString("\n    where ")
		sb.WriteString(a.Where.Text)
	}
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
