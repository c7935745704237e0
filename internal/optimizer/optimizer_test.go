package optimizer

import (
	"strings"
	"testing"

	"github.com/sentinelgraph/cyquel/internal/plan"
)

func deviceGraphDef() plan.GraphDef {
	return plan.GraphDef{
		NodeTables: []plan.GraphNodeTable{
			{Label: "User", Table: "IdentityInfo", Key: "AccountUpc"},
			{Label: "Device", Table: "DeviceInfo", Key: "DeviceId", TimeColumn: "TimeGenerated"},
		},
		EdgeTables: []plan.GraphEdgeTable{
			{Type: "LOGGED_INTO", Table: "DeviceLogonEvents", SourceKey: "AccountUpc", TargetKey: "DeviceId"},
		},
	}
}

func TestOptimizeIndexHintRuleSurfacesIndexedColumn(t *testing.T) {
	gm := &plan.GraphMatch{
		Def: deviceGraphDef(),
		Pattern: &plan.MatchPattern{
			Nodes: []plan.MatchNode{
				{Var: "u", Labels: []string{"User"}, InlineEq: []plan.InlineEquality{{Column: "AccountUpc", Value: "42", Indexed: true}}},
			},
		},
	}

	out, log := New(DefaultConfig()).Optimize(gm)

	result := out.(*plan.GraphMatch)
	if len(result.IndexHints) != 1 || result.IndexHints[0] != "AccountUpc" {
		t.Fatalf("expected IndexHints=[AccountUpc], got %v", result.IndexHints)
	}
	found := false
	for _, r := range log {
		if r.Rule == "IndexHint" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected IndexHint rule to appear in the rule log, got %+v", log)
	}
}

func TestOptimizeTimeRangeInjectionAppliesOnce(t *testing.T) {
	gm := &plan.GraphMatch{Def: deviceGraphDef(), Pattern: &plan.MatchPattern{}}

	cfg := DefaultConfig()
	cfg.DefaultTimeWindow = "7d"
	out, log := New(cfg).Optimize(gm)

	result := out.(*plan.GraphMatch)
	if !result.TimeWindowApplied {
		t.Fatalf("expected TimeWindowApplied=true")
	}
	if !strings.Contains(result.Where.Text, "ago(7d)") {
		t.Fatalf("expected where clause to mention ago(7d), got %q", result.Where.Text)
	}

	count := 0
	for _, r := range log {
		if r.Rule == "TimeRangeInjection" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected TimeRangeInjection to fire exactly once, fired %d times", count)
	}
}

func TestOptimizeJoinReorderFavorsSmallerSide(t *testing.T) {
	small := &plan.Scan{Table: "SmallTable"}
	small.SetEstimate(plan.Estimate{Rows: 10})
	big := &plan.Scan{Table: "BigTable"}
	big.SetEstimate(plan.Estimate{Rows: 100000})

	j := &plan.Join{
		Left:  big,
		Right: small,
		Keys:  []plan.JoinKey{{LeftColumn: "BigKey", RightColumn: "SmallKey"}},
	}

	stats := DefaultStatistics()
	stats.TableRows["SmallTable"] = 10
	stats.TableRows["BigTable"] = 100000
	cfg := Config{MaxIterations: 16, Stats: stats}

	out, _ := New(cfg).Optimize(j)

	result := out.(*plan.Join)
	leftScan, ok := result.Left.(*plan.Scan)
	if !ok || leftScan.Table != "SmallTable" {
		t.Fatalf("expected the smaller table to be reordered to the left, got %+v", result.Left)
	}
}

func TestOptimizeDisabledRuleDoesNotFire(t *testing.T) {
	gm := &plan.GraphMatch{Def: deviceGraphDef(), Pattern: &plan.MatchPattern{}}

	disabled := false
	cfg := DefaultConfig()
	cfg.DefaultTimeWindow = "7d"
	cfg.EnableTimeRangeInjection = &disabled
	out, log := New(cfg).Optimize(gm)

	result := out.(*plan.GraphMatch)
	if result.TimeWindowApplied {
		t.Fatalf("expected TimeWindowApplied=false with the rule disabled")
	}
	for _, r := range log {
		if r.Rule == "TimeRangeInjection" {
			t.Fatalf("expected no TimeRangeInjection entries with the rule disabled, got %+v", log)
		}
	}
}

func TestOptimizeFilterPushdownDeclinesWithoutBoundVars(t *testing.T) {
	left := &plan.Scan{Table: "Users"}
	right := &plan.Scan{Table: "Devices"}
	j := &plan.Join{Left: left, Right: right}
	f := &plan.Filter{Child: j, Predicate: plan.Predicate{Text: "Users_DeviceId == 1", Vars: []string{"u"}}}

	// boundVars for a bare Scan defaults to recursing into Children (none),
	// so this exercises the GraphMatch-free fallback path in boundVars by
	// using Join/Filter directly and checking the rule simply declines to
	// apply when it cannot prove a subset relationship via pattern vars.
	out, _ := New(DefaultConfig()).Optimize(f)
	if _, ok := out.(*plan.Filter); !ok {
		t.Fatalf("expected Filter to remain when scan nodes expose no bound vars, got %T", out)
	}
}
