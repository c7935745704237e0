package plan

import (
	"strings"
	"testing"

	"github.com/sentinelgraph/cyquel/internal/cypher/parser"
	"github.com/sentinelgraph/cyquel/internal/schema"
)

const builderTestSchema = `
node_mappings:
  User:
    table: IdentityInfo
    key: AccountUpc
    properties:
      id: AccountUpc
      name: AccountDisplayName
    indexed: [id]
  Device:
    table: DeviceInfo
    key: DeviceId
    time_column: TimeGenerated
    properties:
      id: DeviceId
      name: DeviceName
relationship_mappings:
  LOGGED_INTO:
    table: DeviceLogonEvents
    source: AccountUpc
    target: DeviceId
    properties:
      timestamp: TimeGenerated
options:
  default_time_window: 7d
  case_insensitive_text_ops: false
  unmapped_property_policy: error
`

func testSchema(t *testing.T) *schema.Map {
	t.Helper()
	sm, err := schema.Load([]byte(builderTestSchema))
	if err != nil {
		t.Fatalf("schema.Load: %v", err)
	}
	return sm
}

func buildPlan(t *testing.T, query string) Node {
	t.Helper()
	sm := testSchema(t)
	q, err := parser.Parse(query, parser.DefaultConfig())
	if err != nil {
		t.Fatalf("parser.Parse: %v", err)
	}
	root, _, err := Build(q, sm, BuildConfig{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return root
}

func TestBuildSingleHopFilterGoesInPattern(t *testing.T) {
	root := buildPlan(t, `MATCH (u:User)-[r:LOGGED_INTO]->(d:Device) WHERE u.id = 42 RETURN d.name`)

	proj, ok := root.(*Project)
	if !ok {
		t.Fatalf("expected root *Project, got %T", root)
	}
	gm, ok := proj.Child.(*GraphMatch)
	if !ok {
		t.Fatalf("expected *GraphMatch under Project, got %T", proj.Child)
	}
	if gm.Where.Text == "" {
		t.Fatalf("expected u.id == 42 to be absorbed into GraphMatch.Where, got empty")
	}
	if !strings.Contains(gm.Where.Text, "42") {
		t.Fatalf("GraphMatch.Where = %q, want it to mention 42", gm.Where.Text)
	}
}

func TestBuildOptionalMatchProducesLeftJoin(t *testing.T) {
	root := buildPlan(t, `MATCH (u:User) OPTIONAL MATCH (u)-[r:LOGGED_INTO]->(d:Device) RETURN u.name`)

	proj, ok := root.(*Project)
	if !ok {
		t.Fatalf("expected root *Project, got %T", root)
	}
	gm, ok := proj.Child.(*GraphMatch)
	if !ok {
		t.Fatalf("expected *GraphMatch under Project, got %T", proj.Child)
	}
	if !gm.LeftJoin {
		t.Fatalf("expected OPTIONAL MATCH to produce LeftJoin=true")
	}
	if gm.Input == nil {
		t.Fatalf("expected OPTIONAL MATCH GraphMatch to carry its preceding Input")
	}
}

func TestBuildAggregationProducesAggregateNode(t *testing.T) {
	root := buildPlan(t, `MATCH (u:User)-[r:LOGGED_INTO]->(d:Device) RETURN d.name, count(u) AS logins`)

	agg, ok := root.(*Aggregate)
	if !ok {
		t.Fatalf("expected root *Aggregate, got %T", root)
	}
	if len(agg.GroupKeys) != 1 {
		t.Fatalf("expected 1 group key, got %d: %v", len(agg.GroupKeys), agg.GroupKeys)
	}
	if len(agg.Aggs) != 1 || agg.Aggs[0].Func != "count" || agg.Aggs[0].Alias != "logins" {
		t.Fatalf("unexpected aggs: %+v", agg.Aggs)
	}
}

func TestBuildLimitAndSkip(t *testing.T) {
	root := buildPlan(t, `MATCH (u:User) RETURN u.name SKIP 5 LIMIT 10`)

	lim, ok := root.(*Limit)
	if !ok {
		t.Fatalf("expected root *Limit, got %T", root)
	}
	if lim.N != 10 || lim.Skip != 5 {
		t.Fatalf("expected N=10 Skip=5, got N=%d Skip=%d", lim.N, lim.Skip)
	}
}

func TestBuildSkipOnlyUsesSentinel(t *testing.T) {
	root := buildPlan(t, `MATCH (u:User) RETURN u.name SKIP 5`)

	lim, ok := root.(*Limit)
	if !ok {
		t.Fatalf("expected root *Limit, got %T", root)
	}
	if lim.N != -1 {
		t.Fatalf("expected N=-1 sentinel for SKIP-only, got %d", lim.N)
	}
	if lim.Skip != 5 {
		t.Fatalf("expected Skip=5, got %d", lim.Skip)
	}
}

func TestBuildUnboundLabelErrors(t *testing.T) {
	sm := testSchema(t)
	q, err := parser.Parse(`MATCH (x:Nonexistent) RETURN x.name`, parser.DefaultConfig())
	if err != nil {
		t.Fatalf("parser.Parse: %v", err)
	}
	_, _, err = Build(q, sm, BuildConfig{})
	if err == nil {
		t.Fatalf("expected an UnboundLabel error, got nil")
	}
}

func TestBuildCrossClauseFilterAfterWith(t *testing.T) {
	root := buildPlan(t, `MATCH (u:User)-[r:LOGGED_INTO]->(d:Device) WITH d WHERE d.name = 'x' RETURN d.name`)

	if _, ok := root.(*Project); !ok {
		t.Fatalf("expected root *Project, got %T", root)
	}
}
