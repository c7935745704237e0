package plan

import (
	"fmt"
	"strings"

	"github.com/sentinelgraph/cyquel/internal/cypher/ast"
	"github.com/sentinelgraph/cyquel/internal/kqlexpr"
	"github.com/sentinelgraph/cyquel/internal/schema"
)

// BuildConfig carries the plan-builder-relevant subset of the top-level
// translation Config (§6).
type BuildConfig struct {
	// CaseInsensitiveText overrides the schema's case_insensitive_text_ops
	// default when non-nil (§4.D: "overridable via a config flag").
	CaseInsensitiveText *bool

	// PathLowerer lowers a shortestPath()/allShortestPaths()/allPaths()
	// wrapped pattern (component H). Patterns bypass the general builder
	// and go straight to this hook, kept as an injected function rather
	// than a direct import to avoid a plan<->pathtranslator import cycle
	// (pathtranslator builds plan.ShortestPaths/AllPaths nodes, so plan
	// cannot import it back).
	PathLowerer func(pat *ast.Pattern, where *ast.Where, sm *schema.Map, caseInsensitiveText bool) (Node, error)
}

// Warning is a non-fatal plan-builder diagnostic (§7, category 4 analog
// at build time — e.g. a Match whose variables are never referenced).
type Warning struct {
	Code    string
	Message string
}

type scope struct {
	nodeLabel map[string]string // pattern variable -> its first label
	relType   map[string]string // pattern variable -> its first rel type
}

func newScope() *scope {
	return &scope{nodeLabel: map[string]string{}, relType: map[string]string{}}
}

func (s *scope) reset() {
	s.nodeLabel = map[string]string{}
	s.relType = map[string]string{}
}

// Build lowers an AST query into a plan tree via the three passes of §4.D:
// pattern lowering, filter placement, and result shaping.
func Build(q *ast.Query, sm *schema.Map, cfg BuildConfig) (Node, []Warning, error) {
	ci := sm.Options().CaseInsensitiveTextOps
	if cfg.CaseInsensitiveText != nil {
		ci = *cfg.CaseInsensitiveText
	}

	b := &builder{sm: sm, ci: ci, scope: newScope(), pathLowerer: cfg.PathLowerer}

	var current Node
	var warnings []Warning

	for _, clause := range q.Clauses {
		switch c := clause.(type) {
		case *ast.Match:
			next, err := b.lowerMatch(c, current)
			if err != nil {
				return nil, warnings, err
			}
			current = next
		case *ast.Where:
			next, err := b.lowerStandaloneWhere(c, current)
			if err != nil {
				return nil, warnings, err
			}
			current = next
		case *ast.With:
			next, err := b.lowerResultShaping(current, c.Items, c.Distinct, c.Where, c.OrderBy, c.Skip, c.Limit)
			if err != nil {
				return nil, warnings, err
			}
			current = next
			b.scope.reset() // With is the sole re-scoping boundary
		case *ast.Return:
			next, err := b.lowerResultShaping(current, c.Items, c.Distinct, nil, c.OrderBy, c.Skip, c.Limit)
			if err != nil {
				return nil, warnings, err
			}
			current = next
		case *ast.Unwind:
			current = &Unwind{Child: current, Expr: mustFormat(c.Expr, b.resolver(), b.ci), Alias: c.Alias}
		default:
			return nil, warnings, &Error{Kind: "UnsupportedConstruct", Message: fmt.Sprintf("clause type %T is not supported", clause)}
		}
	}

	if current == nil {
		return nil, warnings, &Error{Kind: "UnsupportedConstruct", Message: "query produced no plan"}
	}
	return current, warnings, nil
}

func mustFormat(e ast.Expression, resolve kqlexpr.ColumnResolver, ci bool) string {
	s, err := kqlexpr.Format(e, resolve, ci)
	if err != nil {
		return ""
	}
	return s
}

type builder struct {
	sm          *schema.Map
	ci          bool
	scope       *scope
	pathLowerer func(pat *ast.Pattern, where *ast.Where, sm *schema.Map, caseInsensitiveText bool) (Node, error)
}

func (b *builder) resolver() kqlexpr.ColumnResolver {
	return func(varName, prop string) (string, bool, error) {
		if label, ok := b.scope.nodeLabel[varName]; ok {
			binding, err := b.sm.ResolveLabel(label)
			if err != nil {
				return "", false, err
			}
			col, err := b.sm.ResolveNodeProperty(binding, prop)
			if err != nil {
				return "", false, err
			}
			return col, true, nil
		}
		if relType, ok := b.scope.relType[varName]; ok {
			binding, err := b.sm.ResolveRel(relType)
			if err != nil {
				return "", false, err
			}
			col, err := b.sm.ResolveRelProperty(binding, prop)
			if err != nil {
				return "", false, err
			}
			return col, true, nil
		}
		return "", false, nil
	}
}

// lowerMatch implements pattern-lowering pass 1 and filter-placement
// pass 2 for a single MATCH/OPTIONAL MATCH clause.
func (b *builder) lowerMatch(m *ast.Match, input Node) (Node, error) {
	if len(m.Patterns) == 1 && (m.Patterns[0].ShortestPath || m.Patterns[0].AllShortestPaths || m.Patterns[0].AllPaths) {
		return b.lowerPathPattern(m, input)
	}

	gd, err := BuildGraphDef(m.Patterns, b.sm)
	if err != nil {
		return nil, err
	}

	mp := &MatchPattern{}
	knownVars := map[string]bool{}
	for _, pat := range m.Patterns {
		for _, n := range pat.Nodes {
			if n.Var != "" {
				knownVars[n.Var] = true
				if len(n.Labels) > 0 {
					b.scope.nodeLabel[n.Var] = n.Labels[0]
				}
			}
			mn := MatchNode{Var: n.Var, Labels: n.Labels}
			for _, pe := range n.Properties {
				eq, err := b.formatInlineEquality(n.Var, pe)
				if err != nil {
					return nil, err
				}
				if len(n.Labels) > 0 {
					if binding, berr := b.sm.ResolveLabel(n.Labels[0]); berr == nil {
						eq.Indexed = binding.IsIndexed(pe.Key)
					}
				}
				mn.InlineEq = append(mn.InlineEq, eq)
			}
			mp.Nodes = append(mp.Nodes, mn)
		}
		for _, r := range pat.Rels {
			if r.Var != "" {
				knownVars[r.Var] = true
				if len(r.Types) > 0 {
					b.scope.relType[r.Var] = r.Types[0]
				}
			}
			mr := MatchRel{
				Var:       r.Var,
				Types:     r.Types,
				Direction: directionText(r.Direction),
				MinHops:   r.Length.Min,
				MaxHops:   r.Length.Max,
			}
			if r.Length.Kind == ast.LengthFixedOne {
				mr.MinHops, mr.MaxHops = 1, intPtr(1)
			}
			for _, pe := range r.Properties {
				eq, err := b.formatInlineEquality(r.Var, pe)
				if err != nil {
					return nil, err
				}
				mr.InlineEq = append(mr.InlineEq, eq)
			}
			mp.Rels = append(mp.Rels, mr)
		}
	}

	gm := &GraphMatch{Def: gd, Pattern: mp}

	if m.Where != nil {
		inPattern, above, aboveVars, err := b.routeWherePredicate(m.Where.Expr, knownVars)
		if err != nil {
			return nil, err
		}
		if len(inPattern) > 0 {
			gm.Where = Predicate{Text: strings.Join(inPattern, " and ")}
		}
		if m.Optional {
			gm.LeftJoin = true
			gm.Input = input
			if len(above) > 0 {
				return &Filter{Child: gm, Predicate: Predicate{Text: strings.Join(above, " and "), Vars: aboveVars}}, nil
			}
			return gm, nil
		}
		var result Node = gm
		if input != nil {
			result = &Join{Left: input, Right: gm, Kind: InnerJoin}
		}
		if len(above) > 0 {
			result = &Filter{Child: result, Predicate: Predicate{Text: strings.Join(above, " and "), Vars: aboveVars}}
		}
		return result, nil
	}

	if m.Optional {
		gm.LeftJoin = true
		gm.Input = input
		return gm, nil
	}
	if input != nil {
		return &Join{Left: input, Right: gm, Kind: InnerJoin}, nil
	}
	return gm, nil
}

// lowerPathPattern delegates a shortestPath()/allShortestPaths()/
// allPaths()-wrapped MATCH to the injected path lowerer (component H),
// then joins the result against any preceding plan exactly as a regular
// GraphMatch would (§2: "Path queries bypass the general plan builder and
// use H directly, then rejoin at E").
func (b *builder) lowerPathPattern(m *ast.Match, input Node) (Node, error) {
	if b.pathLowerer == nil {
		return nil, &Error{Kind: "UnsupportedConstruct", Message: "shortestPath/allShortestPaths/allPaths lowering is not configured"}
	}
	node, err := b.pathLowerer(m.Patterns[0], m.Where, b.sm, b.ci)
	if err != nil {
		return nil, err
	}
	if input == nil {
		return node, nil
	}
	kind := InnerJoin
	if m.Optional {
		kind = LeftOuterJoin
	}
	return &Join{Left: input, Right: node, Kind: kind}, nil
}

func directionText(d ast.Direction) string {
	switch d {
	case ast.DirRight:
		return "->"
	case ast.DirLeft:
		return "<-"
	default:
		return "-"
	}
}

func intPtr(n int) *int { return &n }

func (b *builder) formatInlineEquality(varName string, pe ast.PropertyEquality) (InlineEquality, error) {
	col, ok, err := b.resolver()(varName, pe.Key)
	if err != nil {
		return InlineEquality{}, err
	}
	if !ok {
		col = pe.Key
	}
	val, err := kqlexpr.Format(pe.Value, b.resolver(), b.ci)
	if err != nil {
		return InlineEquality{}, err
	}
	return InlineEquality{Column: col, Value: val}, nil
}

// BuildGraphDef implements the synthesis rule of §4.D pass 1: one node
// table per distinct label, one edge table per distinct rel-type. Shared
// with internal/pathtranslator, which lowers shortestPath/allShortestPaths/
// allPaths patterns outside the general builder.
func BuildGraphDef(patterns []*ast.Pattern, sm *schema.Map) (GraphDef, error) {
	var gd GraphDef
	seenNode := map[string]bool{}
	seenEdge := map[string]bool{}

	for _, pat := range patterns {
		for _, n := range pat.Nodes {
			for _, label := range n.Labels {
				if seenNode[label] {
					continue
				}
				binding, err := sm.ResolveLabel(label)
				if err != nil {
					return GraphDef{}, err
				}
				gd.NodeTables = append(gd.NodeTables, GraphNodeTable{Label: label, Table: binding.Table, Key: binding.Key, TimeColumn: binding.TimeColumn})
				seenNode[label] = true
			}
		}
		for _, r := range pat.Rels {
			for _, relType := range r.Types {
				if seenEdge[relType] {
					continue
				}
				binding, err := sm.ResolveRel(relType)
				if err != nil {
					return GraphDef{}, err
				}
				gd.EdgeTables = append(gd.EdgeTables, GraphEdgeTable{Type: relType, Table: binding.Table, SourceKey: binding.Source, TargetKey: binding.Target})
				seenEdge[relType] = true
			}
		}
	}
	return gd, nil
}

// routeWherePredicate implements filter-placement pass 2: split at
// top-level conjunctions, route single-pattern-variable conjuncts into
// the GraphMatch's own where clause, and everything else into a Filter
// placed above it.
func (b *builder) routeWherePredicate(expr ast.Expression, knownVars map[string]bool) (inPattern, above, aboveVars []string, err error) {
	seenAboveVar := map[string]bool{}
	for _, conjunct := range splitConjuncts(expr) {
		vars := freeVariables(conjunct)
		text, ferr := kqlexpr.Format(conjunct, b.resolver(), b.ci)
		if ferr != nil {
			return nil, nil, nil, ferr
		}
		if len(vars) == 1 && knownVars[vars[0]] {
			inPattern = append(inPattern, text)
			continue
		}
		above = append(above, text)
		for _, v := range vars {
			if !seenAboveVar[v] {
				seenAboveVar[v] = true
				aboveVars = append(aboveVars, v)
			}
		}
	}
	return inPattern, above, aboveVars, nil
}

func splitConjuncts(e ast.Expression) []ast.Expression {
	if b, ok := e.(*ast.Binary); ok && b.Op == ast.OpAnd {
		return append(splitConjuncts(b.Left), splitConjuncts(b.Right)...)
	}
	return []ast.Expression{e}
}

func freeVariables(e ast.Expression) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		switch n := e.(type) {
		case *ast.Variable:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *ast.PropertyAccess:
			walk(n.Target)
		case *ast.Binary:
			walk(n.Left)
			walk(n.Right)
		case *ast.Unary:
			walk(n.Operand)
		case *ast.FunctionCall:
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.ListLiteral:
			for _, i := range n.Items {
				walk(i)
			}
		}
	}
	walk(e)
	return out
}

// lowerStandaloneWhere handles the rare case of a bare WHERE clause not
// already attached to the preceding MATCH/WITH by the parser.
func (b *builder) lowerStandaloneWhere(w *ast.Where, input Node) (Node, error) {
	text, err := kqlexpr.Format(w.Expr, b.resolver(), b.ci)
	if err != nil {
		return nil, err
	}
	return &Filter{Child: input, Predicate: Predicate{Text: text, Vars: freeVariables(w.Expr)}}, nil
}

// lowerResultShaping implements pass 3: WITH/RETURN become Project (or
// Aggregate instead, when any item is an aggregation), then Sort, then
// Limit.
func (b *builder) lowerResultShaping(input Node, items []ast.WithItem, distinct bool, where *ast.Where, orderBy []ast.OrderItem, skip, limit ast.Expression) (Node, error) {
	hasAgg := false
	for _, it := range items {
		if fc, ok := it.Expr.(*ast.FunctionCall); ok && kqlexpr.IsAggregate(fc.Name) {
			hasAgg = true
		}
	}

	current := input

	if hasAgg {
		var groupKeys []string
		var aggs []AggExpr
		for _, it := range items {
			if fc, ok := it.Expr.(*ast.FunctionCall); ok && kqlexpr.IsAggregate(fc.Name) {
				arg := ""
				if len(fc.Args) > 0 {
					a, err := kqlexpr.Format(fc.Args[0], b.resolver(), b.ci)
					if err != nil {
						return nil, err
					}
					arg = a
				}
				alias := it.Alias
				if alias == "" {
					alias = strings.ToLower(fc.Name) + "_" + sanitize(arg)
				}
				aggs = append(aggs, AggExpr{Func: strings.ToLower(fc.Name), Arg: arg, Alias: alias})
				continue
			}
			text, err := kqlexpr.Format(it.Expr, b.resolver(), b.ci)
			if err != nil {
				return nil, err
			}
			groupKeys = append(groupKeys, text)
		}
		current = &Aggregate{Child: current, GroupKeys: groupKeys, Aggs: aggs}
	}

	if where != nil {
		text, err := kqlexpr.Format(where.Expr, b.resolver(), b.ci)
		if err != nil {
			return nil, err
		}
		current = &Filter{Child: current, Predicate: Predicate{Text: text, Vars: freeVariables(where.Expr)}}
	}

	if !hasAgg {
		var projItems []ProjectItem
		for _, it := range items {
			text, err := kqlexpr.Format(it.Expr, b.resolver(), b.ci)
			if err != nil {
				return nil, err
			}
			projItems = append(projItems, ProjectItem{Expr: text, Alias: it.Alias})
		}
		current = &Project{Child: current, Items: projItems, Distinct: distinct}
	}
	// DISTINCT on an aggregating WITH/RETURN is a no-op: grouping already
	// collapses duplicate keys.

	if len(orderBy) > 0 {
		var keys []SortKey
		for _, o := range orderBy {
			text, err := kqlexpr.Format(o.Expr, b.resolver(), b.ci)
			if err != nil {
				return nil, err
			}
			keys = append(keys, SortKey{Expr: text, Descending: o.Descending})
		}
		current = &Sort{Child: current, Keys: keys}
	}

	if limit != nil || skip != nil {
		n := int64(-1)
		if limit != nil {
			lit, ok := limit.(*ast.Literal)
			if !ok || lit.Kind != ast.LiteralNumber {
				return nil, &Error{Kind: "UnsupportedConstruct", Message: "LIMIT requires a numeric literal"}
			}
			n = int64(lit.Num)
		}
		var sk int64
		if skip != nil {
			lit, ok := skip.(*ast.Literal)
			if !ok || lit.Kind != ast.LiteralNumber {
				return nil, &Error{Kind: "UnsupportedConstruct", Message: "SKIP requires a numeric literal"}
			}
			sk = int64(lit.Num)
		}
		current = &Limit{Child: current, N: n, Skip: sk}
	}

	return current, nil
}

func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" {
		return "all"
	}
	return out
}
