// Package plan defines the algebra of §3: a small set of node kinds with
// estimated cardinality, selectivity, and cost, assembled into an acyclic
// tree by the plan builder and rewritten in place by the optimizer.
//
// Grounded on internal/sparql/optimizer/optimizer.go's QueryPlan interface
// (a marker method plus one struct per node kind) — the same shape, but
// generalized from SPARQL's scan/join/filter/bind/graph set to the KQL
// target algebra spec.md names (Scan, Filter, Join, GraphMatch, Project,
// Aggregate, Sort, Limit, ShortestPaths, AllPaths).
package plan

// Node is any plan tree node. Unlike the teacher's SPARQL plan, there are
// no parent pointers — traversals carry context explicitly on the call
// stack (spec §9's "cyclic references" redesign note).
type Node interface {
	planNode()
	Children() []Node
	// Estimate returns this node's own cost estimate, populated by the
	// optimizer's cost model (the plan builder leaves it zero).
	Estimate() Estimate
	SetEstimate(Estimate)
}

// Estimate is the per-node cost-model output of §4.E.
type Estimate struct {
	Rows        float64
	TimeMS      float64
	Selectivity float64
	Confidence  float64
}

type base struct {
	est Estimate
}

func (b *base) Estimate() Estimate     { return b.est }
func (b *base) SetEstimate(e Estimate) { b.est = e }

// JoinKind distinguishes inner from left-outer joins (§3).
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// Scan reads rows from one table, optionally filtered and time-bounded.
type Scan struct {
	base
	Table       string
	Filter      string // raw KQL predicate fragment, "" if none
	TimeColumn  string // "" if the table has no time column
	TimeWindow  string // e.g. "7d"; "" if no time-range filter applied
	IndexHint   string // property name annotated as indexed, "" if none
}

func (s *Scan) planNode()         {}
func (s *Scan) Children() []Node  { return nil }

// Filter restricts its child's rows by predicate.
type Filter struct {
	base
	Child     Node
	Predicate Predicate
}

func (f *Filter) planNode()        {}
func (f *Filter) Children() []Node { return []Node{f.Child} }

// Join combines two children on equality keys.
type Join struct {
	base
	Left, Right Node
	Keys        []JoinKey
	Kind        JoinKind
}

// JoinKey is one equality key pair.
type JoinKey struct {
	LeftColumn  string
	RightColumn string
}

func (j *Join) planNode()        {}
func (j *Join) Children() []Node { return []Node{j.Left, j.Right} }

// GraphDef synthesizes the `make-graph` definition for one GraphMatch —
// the node/edge tables and join keys the pattern's labels and
// relationship types resolve to (§4.D, pattern lowering rule 1).
type GraphDef struct {
	NodeTables []GraphNodeTable
	EdgeTables []GraphEdgeTable
}

// GraphNodeTable is one node table entry in a `make-graph` definition.
type GraphNodeTable struct {
	Label      string
	Table      string
	Key        string
	TimeColumn string // "" if the table has no time column
}

// GraphEdgeTable is one edge table entry in a `make-graph` definition.
type GraphEdgeTable struct {
	Type        string
	Table       string
	SourceKey   string
	TargetKey   string
}

// GraphMatch is an opaque KQL graph block: `make-graph ... | graph-match ...`.
type GraphMatch struct {
	base
	Def      GraphDef
	Pattern  *MatchPattern
	Where    Predicate // additional where clause inside graph-match, empty Text if none
	LeftJoin bool      // true for OPTIONAL MATCH lowered against a preceding plan
	Input    Node      // the preceding plan for a left-outer join; nil otherwise

	// TimeWindowApplied guards TimeRangeInjection idempotency across
	// optimizer iterations.
	TimeWindowApplied bool
	// IndexHints lists columns the IndexHint rule found backed by a
	// schema-declared index, annotated onto the emitted make-graph block.
	IndexHints []string
}

func (g *GraphMatch) planNode() {}
func (g *GraphMatch) Children() []Node {
	if g.Input != nil {
		return []Node{g.Input}
	}
	return nil
}

// MatchPattern is the graph-match pattern text plus per-variable inline
// property filters taken from the pattern's `{key: value}` maps.
type MatchPattern struct {
	Nodes []MatchNode
	Rels  []MatchRel
}

// MatchNode is one pattern node with its variable, labels, and any
// in-pattern property filters from its `{key: value}` map.
type MatchNode struct {
	Var        string
	Labels     []string
	InlineEq   []InlineEquality
}

// MatchRel is one pattern relationship with direction and hop range.
type MatchRel struct {
	Var       string
	Types     []string
	Direction string // "->" | "<-" | "-"
	MinHops   int
	MaxHops   *int // nil means unbounded
	InlineEq  []InlineEquality
}

// InlineEquality is one property filter written inline on a pattern
// element, e.g. `{Department: 'Finance'}`.
type InlineEquality struct {
	Column  string
	Value   string // already KQL-literal-formatted
	Indexed bool   // true if the schema declares Column as indexed
}

// Predicate is a raw KQL boolean expression fragment used above a
// GraphMatch/Join. Kept as formatted text rather than a sub-algebra: the
// emitter only ever needs to print it, and the optimizer only ever needs
// to know its free variables (tracked alongside the text).
type Predicate struct {
	Text string
	Vars []string // pattern/result variables the predicate references
}

// Project selects/renames columns, optionally de-duplicating rows.
type Project struct {
	base
	Child    Node
	Items    []ProjectItem
	Distinct bool
}

// ProjectItem is one projected column.
type ProjectItem struct {
	Expr  string // formatted KQL expression
	Alias string // "" keeps the expression's natural name
}

func (p *Project) planNode()        {}
func (p *Project) Children() []Node { return []Node{p.Child} }

// Aggregate groups rows and computes aggregate expressions.
type Aggregate struct {
	base
	Child     Node
	GroupKeys []string
	Aggs      []AggExpr
}

// AggExpr is one aggregate projection, e.g. `count(d) AS deviceCount`.
type AggExpr struct {
	Func  string // count, sum, avg, min, max
	Arg   string // "" for count(*)
	Alias string
}

func (a *Aggregate) planNode()        {}
func (a *Aggregate) Children() []Node { return []Node{a.Child} }

// Sort orders rows by one or more keys.
type Sort struct {
	base
	Child Node
	Keys  []SortKey
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr       string
	Descending bool
}

func (s *Sort) planNode()        {}
func (s *Sort) Children() []Node { return []Node{s.Child} }

// Limit caps row count, optionally skipping a prefix.
type Limit struct {
	base
	Child Node
	N     int64 // -1 means no LIMIT, only SKIP
	Skip  int64 // 0 if no SKIP
}

func (l *Limit) planNode()        {}
func (l *Limit) Children() []Node { return []Node{l.Child} }

// ShortestPaths lowers shortestPath()/weighted/bidirectional patterns.
type ShortestPaths struct {
	base
	Def           GraphDef
	Src, Dst      MatchNode
	Rel           MatchRel
	Weight        string // column name, "" if unweighted
	MaxLen        *int
	Bidirectional bool
	Where         Predicate
}

func (s *ShortestPaths) planNode()        {}
func (s *ShortestPaths) Children() []Node { return nil }

// AllPaths lowers allShortestPaths()/allPaths() bounded patterns.
type AllPaths struct {
	base
	Def          GraphDef
	Src, Dst     MatchNode
	Rel          MatchRel
	MinLen       int
	MaxLen       int
	CycleDetect  bool
	All          bool // true for allPaths, false for allShortestPaths
	Where        Predicate
}

func (a *AllPaths) planNode()        {}
func (a *AllPaths) Children() []Node { return nil }

// Unwind expands a dynamic array expression into one row per element,
// binding each to Alias. Not part of spec.md's closed node set; added to
// carry UNWIND's native `mv-expand` translation through the same tree
// instead of special-casing it in the emitter.
type Unwind struct {
	base
	Child Node
	Expr  string
	Alias string
}

func (u *Unwind) planNode()        {}
func (u *Unwind) Children() []Node { return []Node{u.Child} }

// Error is a plan-builder failure (§7, category 3: unsupported construct
// or unresolved schema reference surfaced during lowering).
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Kind + ": " + e.Message }

// ErrorKind reports the failure category for diagnostics conversion.
func (e *Error) ErrorKind() string { return e.Kind }

// CountNodes returns the total node count of the tree rooted at n,
// enforcing the §5 bound (plan node count ≤ 10,000) is the caller's job;
// this just counts.
func CountNodes(n Node) int {
	if n == nil {
		return 0
	}
	count := 1
	for _, c := range n.Children() {
		count += CountNodes(c)
	}
	return count
}
