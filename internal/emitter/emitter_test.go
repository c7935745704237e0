package emitter

import (
	"strconv"
	"strings"
	"testing"

	"github.com/sentinelgraph/cyquel/internal/plan"
)

func sampleGraphDef() plan.GraphDef {
	return plan.GraphDef{
		NodeTables: []plan.GraphNodeTable{
			{Label: "User", Table: "IdentityInfo", Key: "AccountUpc"},
			{Label: "Device", Table: "DeviceInfo", Key: "DeviceId"},
		},
		EdgeTables: []plan.GraphEdgeTable{
			{Type: "LOGGED_INTO", Table: "DeviceLogonEvents", SourceKey: "AccountUpc", TargetKey: "DeviceId"},
		},
	}
}

func TestEmitGraphMatchBasicShape(t *testing.T) {
	gm := &plan.GraphMatch{
		Def: sampleGraphDef(),
		Pattern: &plan.MatchPattern{
			Nodes: []plan.MatchNode{
				{Var: "u", Labels: []string{"User"}},
				{Var: "d", Labels: []string{"Device"}},
			},
			Rels: []plan.MatchRel{
				{Var: "r", Types: []string{"LOGGED_INTO"}, Direction: "->", MinHops: 1, MaxHops: intP(1)},
			},
		},
		Where: plan.Predicate{Text: "AccountUpc == 42"},
	}

	out, err := Emit(gm, Config{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(out, "make-graph") {
		t.Fatalf("expected make-graph in output, got %q", out)
	}
	if !strings.Contains(out, "| graph-match ") {
		t.Fatalf("expected graph-match stage, got %q", out)
	}
	if !strings.Contains(out, "where AccountUpc == 42") {
		t.Fatalf("expected inline where clause, got %q", out)
	}
	if !strings.Contains(out, "DeviceLogonEvents on (AccountUpc, DeviceId)") {
		t.Fatalf("expected the edge table to appear in the make-graph with clause, got %q", out)
	}
	if !strings.HasPrefix(out, "DeviceLogonEvents\n| make-graph") {
		t.Fatalf("expected the pipeline to start from the primary source table, got %q", out)
	}
}

func TestEmitLimitAndSkip(t *testing.T) {
	scan := &plan.Scan{Table: "Devices"}
	lim := &plan.Limit{Child: scan, N: 10, Skip: 5}

	out, err := Emit(lim, Config{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(out, "row_number()") {
		t.Fatalf("expected SKIP to emit row_number() serialize, got %q", out)
	}
	if !strings.Contains(out, "| take 10") {
		t.Fatalf("expected LIMIT to emit take 10, got %q", out)
	}
}

func TestEmitShortestPathsWithOptions(t *testing.T) {
	sp := &plan.ShortestPaths{
		Def:           sampleGraphDef(),
		Src:           plan.MatchNode{Var: "a", Labels: []string{"User"}},
		Dst:           plan.MatchNode{Var: "b", Labels: []string{"Device"}},
		Rel:           plan.MatchRel{Var: "r", Types: []string{"LOGGED_INTO"}, Direction: "->"},
		Weight:        "Cost",
		Bidirectional: true,
		MaxLen:        intP(5),
	}

	out := emitShortestPaths(sp, Config{})
	if !strings.Contains(out, "graph-shortest-paths") {
		t.Fatalf("expected graph-shortest-paths operator, got %q", out)
	}
	for _, want := range []string{"weight=Cost", "bidirectional=true", "max_length=" + strconv.Itoa(5)} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestEmitAllPathsUsesAllPathsOperatorAndAllTrue(t *testing.T) {
	maxLen := 4
	ap := &plan.AllPaths{
		Def:    sampleGraphDef(),
		Src:    plan.MatchNode{Var: "a", Labels: []string{"User"}},
		Dst:    plan.MatchNode{Var: "b", Labels: []string{"Device"}},
		Rel:    plan.MatchRel{Var: "r", Types: []string{"LOGGED_INTO"}, Direction: "->"},
		MinLen: 1,
		MaxLen: maxLen,
		All:    true,
	}

	out := emitAllPaths(ap, Config{})
	if !strings.Contains(out, "| all_paths (") {
		t.Fatalf("expected the all_paths operator for an allPaths() pattern, got %q", out)
	}
	if strings.Contains(out, "all_shortest_paths") {
		t.Fatalf("did not expect all_shortest_paths for an allPaths() pattern, got %q", out)
	}
	if !strings.Contains(out, "with (all=true, max_length=4)") {
		t.Fatalf("expected all=true for an allPaths() pattern, got %q", out)
	}
}

func TestEmitAllPathsAllShortestPathsOmitsAllTrue(t *testing.T) {
	maxLen := 4
	ap := &plan.AllPaths{
		Def:         sampleGraphDef(),
		Src:         plan.MatchNode{Var: "a", Labels: []string{"User"}},
		Dst:         plan.MatchNode{Var: "b", Labels: []string{"Device"}},
		Rel:         plan.MatchRel{Var: "r", Types: []string{"LOGGED_INTO"}, Direction: "->"},
		MinLen:      1,
		MaxLen:      maxLen,
		All:         false,
		CycleDetect: true,
	}

	out := emitAllPaths(ap, Config{})
	if !strings.Contains(out, "| all_shortest_paths (") {
		t.Fatalf("expected the all_shortest_paths operator for an allShortestPaths() pattern, got %q", out)
	}
	if strings.Contains(out, "all=true") {
		t.Fatalf("did not expect all=true for an allShortestPaths() pattern, got %q", out)
	}
	if !strings.Contains(out, "with (max_length=4)") {
		t.Fatalf("expected max_length to still be present, got %q", out)
	}
}

func TestEmitProjectWithAlias(t *testing.T) {
	scan := &plan.Scan{Table: "Devices"}
	proj := &plan.Project{Child: scan, Items: []plan.ProjectItem{{Expr: "DeviceName", Alias: "name"}}}

	out, err := Emit(proj, Config{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(out, "| project name = DeviceName") {
		t.Fatalf("expected aliased projection, got %q", out)
	}
}

func intP(n int) *int { return &n }
