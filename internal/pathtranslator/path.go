// Package pathtranslator lowers shortestPath(), allShortestPaths(), and
// allPaths()-wrapped patterns (§4.H) into plan.ShortestPaths/plan.AllPaths
// nodes. It is invoked by the plan builder as an injected hook rather than
// a direct call, since it depends on internal/plan for node types and the
// builder must not import it back.
package pathtranslator

import (
	"fmt"

	"github.com/sentinelgraph/cyquel/internal/cypher/ast"
	"github.com/sentinelgraph/cyquel/internal/kqlexpr"
	"github.com/sentinelgraph/cyquel/internal/plan"
	"github.com/sentinelgraph/cyquel/internal/schema"
)

// Error is a path-lowering failure (§7, category 3 analog for H-specific
// constraints: malformed endpoints or an invalid hop bound).
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Kind + ": " + e.Message }

// ErrorKind reports the failure category for diagnostics conversion.
func (e *Error) ErrorKind() string { return e.Kind }

// Translate lowers one shortestPath/allShortestPaths/allPaths pattern.
// Matches the plan.BuildConfig.PathLowerer signature exactly so it can be
// wired in without an adapter.
func Translate(pat *ast.Pattern, where *ast.Where, sm *schema.Map, ci bool) (plan.Node, error) {
	if len(pat.Nodes) != 2 || len(pat.Rels) != 1 {
		return nil, &Error{Kind: "PatternMalformed", Message: "shortestPath/allShortestPaths/allPaths requires exactly two endpoints and one relationship"}
	}

	gd, err := plan.BuildGraphDef([]*ast.Pattern{pat}, sm)
	if err != nil {
		return nil, err
	}

	srcPat, dstPat, relPat := pat.Nodes[0], pat.Nodes[1], pat.Rels[0]

	resolve := func(varName, prop string) (string, bool, error) {
		switch varName {
		case srcPat.Var:
			return resolveNodeProp(sm, srcPat.Labels, prop)
		case dstPat.Var:
			return resolveNodeProp(sm, dstPat.Labels, prop)
		case relPat.Var:
			return resolveRelProp(sm, relPat.Types, prop)
		}
		return "", false, nil
	}

	src, err := lowerEndpoint(srcPat, resolve, ci)
	if err != nil {
		return nil, err
	}
	dst, err := lowerEndpoint(dstPat, resolve, ci)
	if err != nil {
		return nil, err
	}
	rel, err := lowerRel(relPat, resolve, ci)
	if err != nil {
		return nil, err
	}

	var wherePred plan.Predicate
	if where != nil {
		text, err := kqlexpr.Format(where.Expr, resolve, ci)
		if err != nil {
			return nil, err
		}
		wherePred = plan.Predicate{Text: text}
	}

	weight := ""
	if len(relPat.Types) > 0 {
		if binding, err := sm.ResolveRel(relPat.Types[0]); err == nil {
			weight = binding.WeightProperty
		}
	}

	if relPat.Length.Max != nil && *relPat.Length.Max <= 0 {
		return nil, &Error{Kind: "PathConstraintInvalid", Message: "max_length must be positive"}
	}

	bidirectional := relPat.Direction == ast.DirEither

	if pat.ShortestPath {
		return &plan.ShortestPaths{
			Def:           gd,
			Src:           src,
			Dst:           dst,
			Rel:           rel,
			Weight:        weight,
			MaxLen:        relPat.Length.Max,
			Bidirectional: bidirectional,
			Where:         wherePred,
		}, nil
	}

	// allShortestPaths / allPaths both enumerate rather than pick one
	// path, so both require an explicit upper hop bound: unbounded
	// enumeration has no safe default cost estimate.
	if relPat.Length.Max == nil {
		return nil, &Error{Kind: "PathConstraintInvalid", Message: "allShortestPaths/allPaths requires an explicit maximum hop bound"}
	}
	minLen := relPat.Length.Min
	if minLen <= 0 {
		minLen = 1
	}

	return &plan.AllPaths{
		Def:         gd,
		Src:         src,
		Dst:         dst,
		Rel:         rel,
		MinLen:      minLen,
		MaxLen:      *relPat.Length.Max,
		CycleDetect: pat.AllPaths, // allShortestPaths never revisits a node by construction
		All:         pat.AllPaths,
		Where:       wherePred,
	}, nil
}

func resolveNodeProp(sm *schema.Map, labels []string, prop string) (string, bool, error) {
	if len(labels) == 0 {
		return "", false, nil
	}
	binding, err := sm.ResolveLabel(labels[0])
	if err != nil {
		return "", false, err
	}
	col, err := sm.ResolveNodeProperty(binding, prop)
	if err != nil {
		return "", false, err
	}
	return col, true, nil
}

func resolveRelProp(sm *schema.Map, types []string, prop string) (string, bool, error) {
	if len(types) == 0 {
		return "", false, nil
	}
	binding, err := sm.ResolveRel(types[0])
	if err != nil {
		return "", false, err
	}
	col, err := sm.ResolveRelProperty(binding, prop)
	if err != nil {
		return "", false, err
	}
	return col, true, nil
}

func lowerEndpoint(n *ast.NodePattern, resolve kqlexpr.ColumnResolver, ci bool) (plan.MatchNode, error) {
	mn := plan.MatchNode{Var: n.Var, Labels: n.Labels}
	for _, pe := range n.Properties {
		eq, err := formatInlineEquality(n.Var, pe, resolve, ci)
		if err != nil {
			return plan.MatchNode{}, err
		}
		mn.InlineEq = append(mn.InlineEq, eq)
	}
	return mn, nil
}

func lowerRel(r *ast.RelPattern, resolve kqlexpr.ColumnResolver, ci bool) (plan.MatchRel, error) {
	mr := plan.MatchRel{
		Var:     r.Var,
		Types:   r.Types,
		MinHops: r.Length.Min,
		MaxHops: r.Length.Max,
	}
	switch r.Direction {
	case ast.DirRight:
		mr.Direction = "->"
	case ast.DirLeft:
		mr.Direction = "<-"
	default:
		mr.Direction = "-"
	}
	if r.Length.Kind == ast.LengthFixedOne {
		one := 1
		mr.MinHops, mr.MaxHops = 1, &one
	}
	for _, pe := range r.Properties {
		eq, err := formatInlineEquality(r.Var, pe, resolve, ci)
		if err != nil {
			return plan.MatchRel{}, err
		}
		mr.InlineEq = append(mr.InlineEq, eq)
	}
	return mr, nil
}

func formatInlineEquality(varName string, pe ast.PropertyEquality, resolve kqlexpr.ColumnResolver, ci bool) (plan.InlineEquality, error) {
	col, ok, err := resolve(varName, pe.Key)
	if err != nil {
		return plan.InlineEquality{}, err
	}
	if !ok {
		col = pe.Key
	}
	val, err := kqlexpr.Format(pe.Value, resolve, ci)
	if err != nil {
		return plan.InlineEquality{}, fmt.Errorf("pathtranslator: %w", err)
	}
	return plan.InlineEquality{Column: col, Value: val}, nil
}
