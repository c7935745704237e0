// Package schema binds abstract graph labels and relationship types to
// concrete Sentinel tables, columns, and join keys (§3, §4.C). A Map is
// built once from a declarative YAML document and never mutated again —
// resolution is pure and deterministic, per the invariant in §4.C.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmappedPropertyPolicy controls resolve_property's fallback behavior.
type UnmappedPropertyPolicy string

const (
	PolicyError       UnmappedPropertyPolicy = "error"
	PolicyPassthrough UnmappedPropertyPolicy = "passthrough"
)

// LabelBinding maps one node label to its backing table.
type LabelBinding struct {
	Label         string
	Table         string
	Key           string
	TimeColumn    string // "" if none
	Properties    map[string]string
	Indexed       map[string]bool
	PropertyTypes map[string]string // property name -> declared type, absent entries are untyped
}

// RelBinding maps one relationship type to its backing table and join keys.
type RelBinding struct {
	Type           string
	Table          string
	Source         string
	Target         string
	Properties     map[string]string
	WeightProperty string // "" if none
	PropertyTypes  map[string]string
}

// Options carries the global settings of §6.
type Options struct {
	DefaultTimeWindow      string
	CaseInsensitiveTextOps bool
	UnmappedPropertyPolicy UnmappedPropertyPolicy
}

// Map is an immutable, resolved schema snapshot.
type Map struct {
	nodes   map[string]LabelBinding
	rels    map[string]RelBinding
	options Options
}

// Error is a schema resolution failure (§7, category 2).
type Error struct {
	Kind    string // UnboundLabel | UnboundRelType | UnmappedProperty | InvalidBinding
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Message)
}

// ErrorKind reports the failure category for diagnostics conversion.
func (e *Error) ErrorKind() string { return e.Kind }

// document mirrors the on-disk YAML shape of §6.
type document struct {
	NodeMappings map[string]struct {
		Table         string            `yaml:"table"`
		Key           string            `yaml:"key"`
		TimeColumn    string            `yaml:"time_column"`
		Properties    map[string]string `yaml:"properties"`
		Indexed       []string          `yaml:"indexed"`
		PropertyTypes map[string]string `yaml:"property_types"`
	} `yaml:"node_mappings"`
	RelationshipMappings map[string]struct {
		Table          string            `yaml:"table"`
		Source         string            `yaml:"source"`
		Target         string            `yaml:"target"`
		Properties     map[string]string `yaml:"properties"`
		WeightProperty string            `yaml:"weight_property"`
		PropertyTypes  map[string]string `yaml:"property_types"`
	} `yaml:"relationship_mappings"`
	Options struct {
		DefaultTimeWindow      string `yaml:"default_time_window"`
		CaseInsensitiveTextOps bool   `yaml:"case_insensitive_text_ops"`
		UnmappedPropertyPolicy string `yaml:"unmapped_property_policy"`
	} `yaml:"options"`
}

// Load parses a schema document (§6 YAML format) into an immutable Map.
func Load(data []byte) (*Map, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Kind: "InvalidBinding", Name: "", Message: fmt.Sprintf("invalid schema document: %v", err)}
	}

	nodes := make(map[string]LabelBinding, len(doc.NodeMappings))
	for label, n := range doc.NodeMappings {
		if n.Table == "" || n.Key == "" {
			return nil, &Error{Kind: "InvalidBinding", Name: label, Message: "node mapping requires table and key"}
		}
		indexed := make(map[string]bool, len(n.Indexed))
		for _, p := range n.Indexed {
			indexed[p] = true
		}
		nodes[label] = LabelBinding{
			Label:         label,
			Table:         n.Table,
			Key:           n.Key,
			TimeColumn:    n.TimeColumn,
			Properties:    n.Properties,
			Indexed:       indexed,
			PropertyTypes: n.PropertyTypes,
		}
	}

	rels := make(map[string]RelBinding, len(doc.RelationshipMappings))
	for relType, r := range doc.RelationshipMappings {
		if r.Table == "" || r.Source == "" || r.Target == "" {
			return nil, &Error{Kind: "InvalidBinding", Name: relType, Message: "relationship mapping requires table, source, and target"}
		}
		rels[relType] = RelBinding{
			Type:           relType,
			Table:          r.Table,
			Source:         r.Source,
			Target:         r.Target,
			Properties:     r.Properties,
			WeightProperty: r.WeightProperty,
			PropertyTypes:  r.PropertyTypes,
		}
	}

	policy := PolicyError
	if doc.Options.UnmappedPropertyPolicy == string(PolicyPassthrough) {
		policy = PolicyPassthrough
	}

	return &Map{
		nodes: nodes,
		rels:  rels,
		options: Options{
			DefaultTimeWindow:      doc.Options.DefaultTimeWindow,
			CaseInsensitiveTextOps: doc.Options.CaseInsensitiveTextOps,
			UnmappedPropertyPolicy: policy,
		},
	}, nil
}

// Options returns the schema's global settings.
func (m *Map) Options() Options { return m.options }

// ResolveLabel implements resolve_label (§4.C).
func (m *Map) ResolveLabel(label string) (LabelBinding, error) {
	b, ok := m.nodes[label]
	if !ok {
		return LabelBinding{}, &Error{Kind: "UnboundLabel", Name: label, Message: "label has no binding in the schema map"}
	}
	return b, nil
}

// ResolveRel implements resolve_rel (§4.C).
func (m *Map) ResolveRel(relType string) (RelBinding, error) {
	b, ok := m.rels[relType]
	if !ok {
		return RelBinding{}, &Error{Kind: "UnboundRelType", Name: relType, Message: "relationship type has no binding in the schema map"}
	}
	return b, nil
}

// ResolveNodeProperty implements resolve_property for a node binding,
// honoring the global unmapped-property fallback policy.
func (m *Map) ResolveNodeProperty(b LabelBinding, prop string) (string, error) {
	if col, ok := b.Properties[prop]; ok {
		return col, nil
	}
	if m.options.UnmappedPropertyPolicy == PolicyPassthrough {
		return prop, nil
	}
	return "", &Error{Kind: "UnmappedProperty", Name: prop, Message: fmt.Sprintf("label %q has no column mapping for property %q", b.Label, prop)}
}

// ResolveRelProperty implements resolve_property for a relationship binding.
func (m *Map) ResolveRelProperty(b RelBinding, prop string) (string, error) {
	if col, ok := b.Properties[prop]; ok {
		return col, nil
	}
	if m.options.UnmappedPropertyPolicy == PolicyPassthrough {
		return prop, nil
	}
	return "", &Error{Kind: "UnmappedProperty", Name: prop, Message: fmt.Sprintf("relationship type %q has no column mapping for property %q", b.Type, prop)}
}

// IsIndexed reports whether a node property is declared indexed.
func (b LabelBinding) IsIndexed(prop string) bool {
	return b.Indexed[prop]
}

// ColumnTypes aggregates every node and relationship property_types entry
// into a single column-name -> declared-type map, for components (the
// operator/type validator check) that only see emitted column names, not
// the node/relationship property names they came from. A column left
// untyped in every binding that maps to it is simply absent from the
// result.
func (m *Map) ColumnTypes() map[string]string {
	out := make(map[string]string)
	for _, b := range m.nodes {
		for prop, typ := range b.PropertyTypes {
			if col, ok := b.Properties[prop]; ok {
				out[col] = typ
			}
		}
	}
	for _, b := range m.rels {
		for prop, typ := range b.PropertyTypes {
			if col, ok := b.Properties[prop]; ok {
				out[col] = typ
			}
		}
	}
	return out
}
