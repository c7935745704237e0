package optimizer

import (
	"fmt"
	"strings"

	"github.com/sentinelgraph/cyquel/internal/plan"
)

// Rule is one named rewrite of §4.E's closed rule set. AppliesTo is
// checked before Apply so Optimize can skip a node without mutating
// anything; only rules that fire are logged.
type Rule struct {
	Name      string
	AppliesTo func(plan.Node) bool
	Apply     func(plan.Node) (plan.Node, string) // returns the rewritten node and a human-readable description
}

// DefaultRules returns the rules of §4.E that cfg's Enable* flags leave
// enabled, in application order.
func DefaultRules(cfg Config) []Rule {
	var rules []Rule
	if ruleEnabled(cfg.EnablePredicatePushdown) {
		rules = append(rules, predicatePushdownRule())
	}
	if ruleEnabled(cfg.EnableFilterPushdown) {
		rules = append(rules, filterPushdownRule())
	}
	if ruleEnabled(cfg.EnableTimeRangeInjection) {
		rules = append(rules, timeRangeInjectionRule(cfg))
	}
	if ruleEnabled(cfg.EnableJoinReorder) {
		rules = append(rules, joinReorderRule())
	}
	if ruleEnabled(cfg.EnableIndexHints) {
		rules = append(rules, indexHintRule())
	}
	return rules
}

// predicatePushdownRule absorbs a single-variable equality/IN filter
// sitting directly above a GraphMatch into the GraphMatch's own where
// clause, eliminating the separate plan-level Filter.
func predicatePushdownRule() Rule {
	return Rule{
		Name: "PredicatePushdown",
		AppliesTo: func(n plan.Node) bool {
			f, ok := n.(*plan.Filter)
			if !ok {
				return false
			}
			gm, ok := f.Child.(*plan.GraphMatch)
			if !ok {
				return false
			}
			return len(f.Predicate.Vars) == 1 && subsetOf(f.Predicate.Vars, boundVars(gm))
		},
		Apply: func(n plan.Node) (plan.Node, string) {
			f := n.(*plan.Filter)
			gm := *f.Child.(*plan.GraphMatch)
			if gm.Where.Text == "" {
				gm.Where = plan.Predicate{Text: f.Predicate.Text, Vars: f.Predicate.Vars}
			} else {
				gm.Where = plan.Predicate{Text: gm.Where.Text + " and " + f.Predicate.Text, Vars: append(gm.Where.Vars, f.Predicate.Vars...)}
			}
			return &gm, fmt.Sprintf("absorbed filter %q into graph-match where clause", f.Predicate.Text)
		},
	}
}

// filterPushdownRule moves a Filter below a Join when its free variables
// are all bound by one side (the left side when both bind them), so the
// predicate narrows rows before the join rather than after.
func filterPushdownRule() Rule {
	return Rule{
		Name: "FilterPushdown",
		AppliesTo: func(n plan.Node) bool {
			f, ok := n.(*plan.Filter)
			if !ok {
				return false
			}
			j, ok := f.Child.(*plan.Join)
			if !ok {
				return false
			}
			return subsetOf(f.Predicate.Vars, boundVars(j.Left)) || subsetOf(f.Predicate.Vars, boundVars(j.Right))
		},
		Apply: func(n plan.Node) (plan.Node, string) {
			f := n.(*plan.Filter)
			j := *f.Child.(*plan.Join)
			if subsetOf(f.Predicate.Vars, boundVars(j.Left)) {
				j.Left = &plan.Filter{Child: j.Left, Predicate: f.Predicate}
				return &j, fmt.Sprintf("pushed filter %q below join onto its left input", f.Predicate.Text)
			}
			j.Right = &plan.Filter{Child: j.Right, Predicate: f.Predicate}
			return &j, fmt.Sprintf("pushed filter %q below join onto its right input", f.Predicate.Text)
		},
	}
}

// timeRangeInjectionRule adds a default time-window bound to any
// GraphMatch whose backing table has a time column and no bound yet, per
// §6's default_time_window. Guarded by TimeWindowApplied so it fires at
// most once per node across the bounded fixed point.
func timeRangeInjectionRule(cfg Config) Rule {
	return Rule{
		Name: "TimeRangeInjection",
		AppliesTo: func(n plan.Node) bool {
			gm, ok := n.(*plan.GraphMatch)
			if !ok || gm.TimeWindowApplied || cfg.DefaultTimeWindow == "" {
				return false
			}
			return timeColumnOf(gm.Def) != ""
		},
		Apply: func(n plan.Node) (plan.Node, string) {
			gm := *n.(*plan.GraphMatch)
			col := timeColumnOf(gm.Def)
			cond := fmt.Sprintf("%s >= ago(%s)", col, cfg.DefaultTimeWindow)
			if gm.Where.Text == "" {
				gm.Where = plan.Predicate{Text: cond}
			} else {
				gm.Where = plan.Predicate{Text: gm.Where.Text + " and " + cond, Vars: gm.Where.Vars}
			}
			gm.TimeWindowApplied = true
			return &gm, fmt.Sprintf("injected default time window %s on %s", cfg.DefaultTimeWindow, col)
		},
	}
}

func timeColumnOf(gd plan.GraphDef) string {
	for _, nt := range gd.NodeTables {
		if nt.TimeColumn != "" {
			return nt.TimeColumn
		}
	}
	return ""
}

// joinReorderRule swaps a Join's inputs so the more selective (lower
// estimated row count) side is evaluated first, mirroring the teacher's
// reorderBySelectivity but driven by the cost model instead of a static
// bound-term count.
func joinReorderRule() Rule {
	return Rule{
		Name: "JoinReorder",
		AppliesTo: func(n plan.Node) bool {
			j, ok := n.(*plan.Join)
			if !ok {
				return false
			}
			le, re := j.Left.Estimate(), j.Right.Estimate()
			return le.Rows > 0 && re.Rows > 0 && re.Rows < le.Rows
		},
		Apply: func(n plan.Node) (plan.Node, string) {
			j := *n.(*plan.Join)
			j.Left, j.Right = j.Right, j.Left
			for i, k := range j.Keys {
				j.Keys[i] = plan.JoinKey{LeftColumn: k.RightColumn, RightColumn: k.LeftColumn}
			}
			return &j, "reordered join to evaluate the more selective side first"
		},
	}
}

// indexHintRule surfaces schema-declared indexed columns used in a
// GraphMatch's inline equality filters as IndexHints, for the emitter to
// annotate.
func indexHintRule() Rule {
	return Rule{
		Name: "IndexHint",
		AppliesTo: func(n plan.Node) bool {
			gm, ok := n.(*plan.GraphMatch)
			if !ok {
				return false
			}
			return len(pendingIndexHints(gm)) > 0
		},
		Apply: func(n plan.Node) (plan.Node, string) {
			gm := *n.(*plan.GraphMatch)
			hints := pendingIndexHints(&gm)
			gm.IndexHints = append(gm.IndexHints, hints...)
			return &gm, fmt.Sprintf("annotated indexed column(s): %s", strings.Join(hints, ", "))
		},
	}
}

func pendingIndexHints(gm *plan.GraphMatch) []string {
	have := map[string]bool{}
	for _, h := range gm.IndexHints {
		have[h] = true
	}
	var pending []string
	for _, mn := range gm.Pattern.Nodes {
		for _, eq := range mn.InlineEq {
			if eq.Indexed && !have[eq.Column] {
				pending = append(pending, eq.Column)
				have[eq.Column] = true
			}
		}
	}
	return pending
}
