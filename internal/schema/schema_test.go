package schema

import "testing"

const testDoc = `
node_mappings:
  User:
    table: Users
    key: userId
    properties:
      name: DisplayName
      department: Department
  Device:
    table: Devices
    key: deviceId
    time_column: TimeGenerated
    properties:
      hostname: Hostname
    indexed: [hostname]
relationship_mappings:
  LOGGED_IN:
    table: SignInLogs
    source: userId
    target: deviceId
    properties: {}
  EDGE:
    table: Edges
    source: srcId
    target: dstId
    weight_property: cost
    properties:
      cost: Cost
options:
  default_time_window: 7d
  case_insensitive_text_ops: false
  unmapped_property_policy: error
`

func loadTestSchema(t *testing.T) *Map {
	t.Helper()
	m, err := Load([]byte(testDoc))
	if err != nil {
		t.Fatalf("unexpected error loading schema: %v", err)
	}
	return m
}

func TestResolveLabel(t *testing.T) {
	m := loadTestSchema(t)
	b, err := m.ResolveLabel("User")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Table != "Users" || b.Key != "userId" {
		t.Errorf("unexpected binding: %+v", b)
	}
}

func TestResolveLabel_Unbound(t *testing.T) {
	m := loadTestSchema(t)
	_, err := m.ResolveLabel("Unknown")
	serr, ok := err.(*Error)
	if !ok || serr.Kind != "UnboundLabel" {
		t.Fatalf("expected UnboundLabel, got %v", err)
	}
}

func TestResolveRel(t *testing.T) {
	m := loadTestSchema(t)
	b, err := m.ResolveRel("LOGGED_IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Table != "SignInLogs" || b.Source != "userId" || b.Target != "deviceId" {
		t.Errorf("unexpected binding: %+v", b)
	}
}

func TestResolveNodeProperty(t *testing.T) {
	m := loadTestSchema(t)
	b, _ := m.ResolveLabel("User")
	col, err := m.ResolveNodeProperty(b, "department")
	if err != nil || col != "Department" {
		t.Fatalf("got %q, %v", col, err)
	}
}

func TestResolveNodeProperty_UnmappedErrorsByDefault(t *testing.T) {
	m := loadTestSchema(t)
	b, _ := m.ResolveLabel("User")
	_, err := m.ResolveNodeProperty(b, "nonexistent")
	serr, ok := err.(*Error)
	if !ok || serr.Kind != "UnmappedProperty" {
		t.Fatalf("expected UnmappedProperty, got %v", err)
	}
}

const passthroughDoc = `
node_mappings:
  User:
    table: Users
    key: userId
    properties:
      name: DisplayName
relationship_mappings: {}
options:
  unmapped_property_policy: passthrough
`

func TestResolveNodeProperty_PassthroughPolicy(t *testing.T) {
	m, err := Load([]byte(passthroughDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := m.ResolveLabel("User")
	col, err := m.ResolveNodeProperty(b, "nonexistent")
	if err != nil || col != "nonexistent" {
		t.Fatalf("expected passthrough, got %q, %v", col, err)
	}
}

func TestWeightProperty(t *testing.T) {
	m := loadTestSchema(t)
	b, err := m.ResolveRel("EDGE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.WeightProperty != "cost" {
		t.Errorf("expected weight_property cost, got %q", b.WeightProperty)
	}
}

func TestIsIndexed(t *testing.T) {
	m := loadTestSchema(t)
	b, _ := m.ResolveLabel("Device")
	if !b.IsIndexed("hostname") {
		t.Errorf("expected hostname to be indexed")
	}
	if b.IsIndexed("deviceId") {
		t.Errorf("did not expect deviceId to be indexed")
	}
}

func TestDeterministicResolution(t *testing.T) {
	m1 := loadTestSchema(t)
	m2 := loadTestSchema(t)
	b1, _ := m1.ResolveLabel("User")
	b2, _ := m2.ResolveLabel("User")
	if b1.Table != b2.Table || b1.Key != b2.Key {
		t.Fatalf("two loads of the same document produced different bindings")
	}
}
