package pathtranslator

import (
	"testing"

	"github.com/sentinelgraph/cyquel/internal/cypher/parser"
	"github.com/sentinelgraph/cyquel/internal/plan"
	"github.com/sentinelgraph/cyquel/internal/schema"
)

const pathTestSchema = `
node_mappings:
  Host:
    table: DeviceInfo
    key: DeviceId
    properties:
      id: DeviceId
relationship_mappings:
  CONNECTED_TO:
    table: DeviceNetworkEvents
    source: SourceDeviceId
    target: RemoteDeviceId
    weight_property: LatencyMs
    properties:
      latency: LatencyMs
options:
  default_time_window: ""
  case_insensitive_text_ops: false
  unmapped_property_policy: error
`

func pathTestSchemaMap(t *testing.T) *schema.Map {
	t.Helper()
	sm, err := schema.Load([]byte(pathTestSchema))
	if err != nil {
		t.Fatalf("schema.Load: %v", err)
	}
	return sm
}

func TestTranslateShortestPathWeighted(t *testing.T) {
	sm := pathTestSchemaMap(t)
	q, err := parser.Parse(`MATCH p = shortestPath((a:Host)-[r:CONNECTED_TO*..5]->(b:Host)) RETURN p`, parser.DefaultConfig())
	if err != nil {
		t.Fatalf("parser.Parse: %v", err)
	}

	root, _, err := plan.Build(q, sm, plan.BuildConfig{PathLowerer: Translate})
	if err != nil {
		t.Fatalf("plan.Build: %v", err)
	}

	proj, ok := root.(*plan.Project)
	if !ok {
		t.Fatalf("expected root *Project, got %T", root)
	}
	sp, ok := proj.Child.(*plan.ShortestPaths)
	if !ok {
		t.Fatalf("expected *ShortestPaths under Project, got %T", proj.Child)
	}
	if sp.Weight != "LatencyMs" {
		t.Fatalf("expected weight column LatencyMs, got %q", sp.Weight)
	}
	if sp.MaxLen == nil || *sp.MaxLen != 5 {
		t.Fatalf("expected MaxLen=5, got %v", sp.MaxLen)
	}
}

func TestTranslateAllPathsRequiresMaxBound(t *testing.T) {
	sm := pathTestSchemaMap(t)
	q, err := parser.Parse(`MATCH p = allShortestPaths((a:Host)-[r:CONNECTED_TO*]->(b:Host)) RETURN p`, parser.DefaultConfig())
	if err != nil {
		t.Fatalf("parser.Parse: %v", err)
	}

	_, _, err = plan.Build(q, sm, plan.BuildConfig{PathLowerer: Translate})
	if err == nil {
		t.Fatalf("expected an error for unbounded allShortestPaths, got nil")
	}
}

func TestTranslateBidirectional(t *testing.T) {
	sm := pathTestSchemaMap(t)
	q, err := parser.Parse(`MATCH p = shortestPath((a:Host)-[r:CONNECTED_TO*..3]-(b:Host)) RETURN p`, parser.DefaultConfig())
	if err != nil {
		t.Fatalf("parser.Parse: %v", err)
	}

	root, _, err := plan.Build(q, sm, plan.BuildConfig{PathLowerer: Translate})
	if err != nil {
		t.Fatalf("plan.Build: %v", err)
	}
	proj := root.(*plan.Project)
	sp := proj.Child.(*plan.ShortestPaths)
	if !sp.Bidirectional {
		t.Fatalf("expected Bidirectional=true for an undirected relationship pattern")
	}
}
