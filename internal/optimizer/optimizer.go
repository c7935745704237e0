// Package optimizer applies the bounded fixed-point rewrite pass of §4.E
// to a plan tree: a small closed set of named rules, each checked and
// applied at every node until a pass makes no further changes or the
// iteration cap is reached.
//
// Grounded on internal/sparql/optimizer/optimizer.go's Optimizer/
// Statistics pair, generalized from its single fixed optimizeSelect
// pipeline to a rule table driven by AppliesTo/Apply closures so new
// rules compose instead of requiring a new pipeline stage each time.
package optimizer

import "github.com/sentinelgraph/cyquel/internal/plan"

// Config carries the optimizer-relevant subset of the top-level
// translation Config (§6).
type Config struct {
	// MaxIterations bounds the fixed point; spec default is 16.
	MaxIterations int
	// DefaultTimeWindow feeds TimeRangeInjection, e.g. "7d".
	DefaultTimeWindow string
	Stats             *Statistics

	// EnableFilterPushdown, EnablePredicatePushdown, EnableTimeRangeInjection,
	// EnableJoinReorder, and EnableIndexHints toggle individual rules off the
	// default rule table. nil means enabled (the spec default for all five).
	EnableFilterPushdown     *bool
	EnablePredicatePushdown  *bool
	EnableTimeRangeInjection *bool
	EnableJoinReorder        *bool
	EnableIndexHints         *bool
}

// DefaultConfig returns the spec's default iteration bound with no known
// table statistics.
func DefaultConfig() Config {
	return Config{MaxIterations: 16, Stats: DefaultStatistics()}
}

func ruleEnabled(flag *bool) bool {
	return flag == nil || *flag
}

// RuleApplication is one fired rewrite, recorded in application order for
// the optimizer_log returned alongside the translated query (§6).
type RuleApplication struct {
	Iteration   int
	Rule        string
	Description string
}

// Optimizer runs the rule table to a fixed point over a plan tree.
type Optimizer struct {
	cfg   Config
	rules []Rule
}

// New builds an Optimizer over the default rule set.
func New(cfg Config) *Optimizer {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 16
	}
	if cfg.Stats == nil {
		cfg.Stats = DefaultStatistics()
	}
	return &Optimizer{cfg: cfg, rules: DefaultRules(cfg)}
}

// Optimize rewrites root to a fixed point (or until MaxIterations is
// reached) and returns the rewritten tree with refreshed cost estimates,
// plus the ordered log of every rule application.
func (o *Optimizer) Optimize(root plan.Node) (plan.Node, []RuleApplication) {
	var log []RuleApplication
	current := EstimateCost(root, o.cfg.Stats)

	for iter := 0; iter < o.cfg.MaxIterations; iter++ {
		changed := false
		for _, rule := range o.rules {
			rule := rule
			next, fired := transform(current, func(n plan.Node) (plan.Node, bool) {
				if !rule.AppliesTo(n) {
					return n, false
				}
				rewritten, desc := rule.Apply(n)
				log = append(log, RuleApplication{Iteration: iter, Rule: rule.Name, Description: desc})
				return rewritten, true
			})
			if fired {
				current = EstimateCost(next, o.cfg.Stats)
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return current, log
}
