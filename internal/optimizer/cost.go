package optimizer

import (
	"math"
	"strings"

	"github.com/sentinelgraph/cyquel/internal/plan"
)

// Statistics carries table-level row-count estimates for the cost model.
// Grounded on the teacher's Statistics{TotalTriples}, generalized from a
// single store-wide count to one per backing table.
type Statistics struct {
	TableRows map[string]float64
	// DefaultRows is used for any table with no entry in TableRows.
	DefaultRows float64
}

// DefaultStatistics returns a Statistics with no table-specific knowledge,
// so every estimate falls back to DefaultRows with reduced confidence.
func DefaultStatistics() *Statistics {
	return &Statistics{TableRows: map[string]float64{}, DefaultRows: 100000}
}

func (s *Statistics) rowsFor(table string) (rows float64, confident bool) {
	if r, ok := s.TableRows[table]; ok {
		return r, true
	}
	return s.DefaultRows, false
}

// EstimateCost populates Estimate on every node of the tree, bottom-up,
// with this package's own per-kind heuristics: simple multiplicative
// selectivity factors in the teacher's reorderBySelectivity style,
// generalized from SPARQL's bound-term heuristic to graph-match hop counts
// and join fan-out. For example, a Scan costs rows*0.001 ms, a GraphMatch
// multiplies its edge
// table's rows by each relationship's hop-range width (3 when unbounded),
// and a Join costs left*right*0.0001 ms on top of its inputs.
func EstimateCost(n plan.Node, stats *Statistics) plan.Node {
	if n == nil {
		return nil
	}
	children := n.Children()
	newChildren := make([]plan.Node, len(children))
	for i, c := range children {
		newChildren[i] = EstimateCost(c, stats)
	}
	if len(children) > 0 {
		n = withChildren(n, newChildren)
	}

	switch t := n.(type) {
	case *plan.Scan:
		rows, confident := stats.rowsFor(t.Table)
		if t.Filter != "" {
			rows *= 0.3
		}
		conf := 0.5
		if confident {
			conf = 0.9
		}
		t.SetEstimate(plan.Estimate{Rows: rows, TimeMS: rows * 0.001, Selectivity: 1, Confidence: conf})
	case *plan.GraphMatch:
		rows, confident := estimateGraphMatchRows(t, stats)
		conf := 0.6
		if confident {
			conf = 0.85
		}
		if t.LeftJoin && t.Input != nil {
			rows += t.Input.Estimate().Rows
		}
		t.SetEstimate(plan.Estimate{Rows: rows, TimeMS: rows * 0.003, Selectivity: 1, Confidence: conf})
	case *plan.Filter:
		child := t.Child.Estimate()
		sel := filterSelectivity(t.Predicate.Text)
		rows := child.Rows * sel
		t.SetEstimate(plan.Estimate{Rows: rows, TimeMS: child.TimeMS + child.Rows*0.0005, Selectivity: sel, Confidence: child.Confidence * 0.9})
	case *plan.Join:
		left, right := t.Left.Estimate(), t.Right.Estimate()
		sel := 0.1
		if len(t.Keys) > 0 {
			sel = 1 / math.Max(left.Rows, right.Rows)
		}
		rows := left.Rows * right.Rows * sel
		t.SetEstimate(plan.Estimate{
			Rows:        rows,
			TimeMS:      left.TimeMS + right.TimeMS + left.Rows*right.Rows*0.0001,
			Selectivity: sel,
			Confidence:  math.Min(left.Confidence, right.Confidence),
		})
	case *plan.Project:
		child := t.Child.Estimate()
		rows := child.Rows
		if t.Distinct {
			rows *= 0.5
		}
		t.SetEstimate(plan.Estimate{Rows: rows, TimeMS: child.TimeMS + child.Rows*0.0002, Selectivity: child.Selectivity, Confidence: child.Confidence})
	case *plan.Aggregate:
		child := t.Child.Estimate()
		rows := child.Rows
		if len(t.GroupKeys) > 0 {
			rows = math.Max(1, child.Rows*0.1)
		} else {
			rows = 1
		}
		t.SetEstimate(plan.Estimate{Rows: rows, TimeMS: child.TimeMS + child.Rows*0.001, Selectivity: rows / math.Max(child.Rows, 1), Confidence: child.Confidence * 0.8})
	case *plan.Sort:
		child := t.Child.Estimate()
		n := math.Max(child.Rows, 1)
		t.SetEstimate(plan.Estimate{Rows: child.Rows, TimeMS: child.TimeMS + n*math.Log2(n+1)*0.0002, Selectivity: child.Selectivity, Confidence: child.Confidence})
	case *plan.Limit:
		child := t.Child.Estimate()
		rows := child.Rows
		if t.N >= 0 && float64(t.N) < rows {
			rows = float64(t.N)
		}
		t.SetEstimate(plan.Estimate{Rows: rows, TimeMS: child.TimeMS * 0.2, Selectivity: rows / math.Max(child.Rows, 1), Confidence: child.Confidence})
	case *plan.Unwind:
		child := t.Child.Estimate()
		t.SetEstimate(plan.Estimate{Rows: child.Rows * 4, TimeMS: child.TimeMS + child.Rows*0.0008, Selectivity: 4, Confidence: child.Confidence * 0.7})
	case *plan.ShortestPaths:
		rows, _ := stats.rowsFor(firstEdgeTable(t.Def))
		hops := 6.0
		if t.MaxLen != nil {
			hops = float64(*t.MaxLen)
		}
		cost := rows * hops * 0.01
		t.SetEstimate(plan.Estimate{Rows: 1, TimeMS: cost, Selectivity: 1 / math.Max(rows, 1), Confidence: 0.5})
	case *plan.AllPaths:
		rows, _ := stats.rowsFor(firstEdgeTable(t.Def))
		hops := float64(t.MaxLen)
		branching := 4.0
		estimated := math.Min(math.Pow(branching, hops), rows)
		cost := estimated * 0.02
		t.SetEstimate(plan.Estimate{Rows: estimated, TimeMS: cost, Selectivity: estimated / math.Max(rows, 1), Confidence: 0.4})
	}

	return n
}

func estimateGraphMatchRows(gm *plan.GraphMatch, stats *Statistics) (float64, bool) {
	if len(gm.Def.EdgeTables) == 0 {
		rows, confident := stats.rowsFor(firstNodeTable(gm.Def))
		return rows, confident
	}
	rows, confident := stats.rowsFor(gm.Def.EdgeTables[0].Table)
	hopFactor := 1.0
	for _, r := range gm.Pattern.Rels {
		if r.MaxHops != nil {
			hopFactor *= math.Max(1, float64(*r.MaxHops-r.MinHops+1))
		} else {
			hopFactor *= 3 // unbounded variable-length: heuristic fan-out
		}
	}
	if gm.Where.Text != "" {
		rows *= filterSelectivity(gm.Where.Text)
	}
	return rows * hopFactor, confident
}

func firstEdgeTable(gd plan.GraphDef) string {
	if len(gd.EdgeTables) > 0 {
		return gd.EdgeTables[0].Table
	}
	return ""
}

func firstNodeTable(gd plan.GraphDef) string {
	if len(gd.NodeTables) > 0 {
		return gd.NodeTables[0].Table
	}
	return ""
}

// filterSelectivity heuristically scores a formatted KQL predicate:
// equality on a literal is assumed highly selective, everything else
// moderately so. Mirrors the teacher's estimateSelectivity multipliers.
func filterSelectivity(text string) float64 {
	switch {
	case strings.Contains(text, "=="):
		return 0.1
	case strings.Contains(text, " in ("):
		return 0.2
	case strings.Contains(text, "contains") || strings.Contains(text, "startswith") || strings.Contains(text, "endswith") || strings.Contains(text, "has "):
		return 0.25
	default:
		return 0.3
	}
}
