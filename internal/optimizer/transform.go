package optimizer

import "github.com/sentinelgraph/cyquel/internal/plan"

// withChildren rebuilds n with its children replaced, preserving every
// other field. Scan, ShortestPaths, and AllPaths have no children and are
// returned unchanged.
func withChildren(n plan.Node, children []plan.Node) plan.Node {
	switch t := n.(type) {
	case *plan.Filter:
		c := *t
		c.Child = children[0]
		return &c
	case *plan.Join:
		c := *t
		c.Left = children[0]
		c.Right = children[1]
		return &c
	case *plan.Project:
		c := *t
		c.Child = children[0]
		return &c
	case *plan.Aggregate:
		c := *t
		c.Child = children[0]
		return &c
	case *plan.Sort:
		c := *t
		c.Child = children[0]
		return &c
	case *plan.Limit:
		c := *t
		c.Child = children[0]
		return &c
	case *plan.Unwind:
		c := *t
		c.Child = children[0]
		return &c
	case *plan.GraphMatch:
		if len(children) == 0 {
			return t
		}
		c := *t
		c.Input = children[0]
		return &c
	default:
		return n
	}
}

// transform walks n post-order, rewriting children before visiting the
// node itself, and reports whether anything changed anywhere in the tree.
func transform(n plan.Node, visit func(plan.Node) (plan.Node, bool)) (plan.Node, bool) {
	if n == nil {
		return nil, false
	}
	children := n.Children()
	if len(children) > 0 {
		newChildren := make([]plan.Node, len(children))
		childChanged := false
		for i, c := range children {
			nc, ch := transform(c, visit)
			newChildren[i] = nc
			if ch {
				childChanged = true
			}
		}
		if childChanged {
			n = withChildren(n, newChildren)
		}
		result, changed := visit(n)
		return result, changed || childChanged
	}
	return visit(n)
}

// boundVars approximates the set of pattern/result variables visible at a
// plan node, used by FilterPushdown/PredicatePushdown to decide which
// side of a Join or which GraphMatch a predicate can be pushed into.
func boundVars(n plan.Node) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	var walk func(plan.Node)
	walk = func(n plan.Node) {
		switch t := n.(type) {
		case *plan.GraphMatch:
			for _, mn := range t.Pattern.Nodes {
				add(mn.Var)
			}
			for _, mr := range t.Pattern.Rels {
				add(mr.Var)
			}
			if t.Input != nil {
				walk(t.Input)
			}
		case *plan.ShortestPaths:
			add(t.Src.Var)
			add(t.Dst.Var)
			add(t.Rel.Var)
		case *plan.AllPaths:
			add(t.Src.Var)
			add(t.Dst.Var)
			add(t.Rel.Var)
		case *plan.Unwind:
			add(t.Alias)
			walk(t.Child)
		case *plan.Project:
			for _, it := range t.Items {
				add(it.Alias)
			}
			walk(t.Child)
		case *plan.Aggregate:
			for _, a := range t.Aggs {
				add(a.Alias)
			}
			walk(t.Child)
		default:
			for _, c := range n.Children() {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

func subsetOf(vars, universe []string) bool {
	set := map[string]bool{}
	for _, v := range universe {
		set[v] = true
	}
	for _, v := range vars {
		if !set[v] {
			return false
		}
	}
	return true
}
