// Package cyquel is the public entry point of the translator: Translate
// compiles a Cypher query into Sentinel KQL against a schema map, and
// Validate checks a candidate KQL string for structural consistency with
// a source query. Grounded on pkg/server/results/formatter.go's role in
// trigo — the thin façade a caller imports, wiring the internal stages
// together and converting their typed errors at the boundary.
package cyquel

import (
	"fmt"

	"github.com/sentinelgraph/cyquel/internal/cypher/parser"
	"github.com/sentinelgraph/cyquel/internal/diagnostics"
	"github.com/sentinelgraph/cyquel/internal/emitter"
	"github.com/sentinelgraph/cyquel/internal/kqlexpr"
	"github.com/sentinelgraph/cyquel/internal/optimizer"
	"github.com/sentinelgraph/cyquel/internal/pathtranslator"
	"github.com/sentinelgraph/cyquel/internal/plan"
	"github.com/sentinelgraph/cyquel/internal/schema"
	"github.com/sentinelgraph/cyquel/internal/validator"
)

// Config controls one translation run (§6).
type Config struct {
	CaseInsensitiveText bool
	DefaultTimeWindow   string
	MaxOptimizerPasses  int
	QuoteIdentifiers    bool // true forces QuoteAlways instead of QuoteMinimal

	// EnableFilterPushdown, EnablePredicatePushdown, EnableTimeRangeInjection,
	// EnableJoinReorder, and EnableIndexHints toggle individual optimizer
	// rules; nil leaves a rule at its spec default (enabled).
	EnableFilterPushdown     *bool
	EnablePredicatePushdown  *bool
	EnableTimeRangeInjection *bool
	EnableJoinReorder        *bool
	EnableIndexHints         *bool

	// ParserMaxDepth bounds expression recursion; 0 uses parser.DefaultMaxDepth.
	ParserMaxDepth int
	// ValidatorStrict controls Validate's strict-mode behavior.
	ValidatorStrict bool
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		CaseInsensitiveText: false,
		DefaultTimeWindow:   "",
		MaxOptimizerPasses:  optimizer.DefaultConfig().MaxIterations,
		ParserMaxDepth:      parser.DefaultMaxDepth,
		ValidatorStrict:     validator.DefaultConfig().StrictMode,
	}
}

// Result is everything Translate produces for one query.
type Result struct {
	KQL         string
	Warnings    []diagnostics.Diagnostic
	RuleLog     []optimizer.RuleApplication
	PlanNodes   int
}

// Translate compiles source under sm into Sentinel KQL. Any typed
// failure from the parser, schema resolver, plan builder, or path
// translator is converted to a diagnostics.Diagnostic and returned as
// the error's message; callers needing the structured form should
// inspect err via diagnostics.FromError themselves if they caught it
// from a lower layer directly.
func Translate(source string, sm *schema.Map, cfg Config) (Result, error) {
	parserCfg := parser.DefaultConfig()
	if cfg.ParserMaxDepth > 0 {
		parserCfg.MaxDepth = cfg.ParserMaxDepth
	}
	query, err := parser.Parse(source, parserCfg)
	if err != nil {
		return Result{}, wrap("parser", err)
	}

	ci := cfg.CaseInsensitiveText || sm.Options().CaseInsensitiveTextOps
	buildCfg := plan.BuildConfig{
		CaseInsensitiveText: &ci,
		PathLowerer:         pathtranslator.Translate,
	}

	root, warnings, err := plan.Build(query, sm, buildCfg)
	if err != nil {
		return Result{}, wrap("plan", err)
	}

	window := cfg.DefaultTimeWindow
	if window == "" {
		window = sm.Options().DefaultTimeWindow
	}
	optCfg := optimizer.DefaultConfig()
	if cfg.MaxOptimizerPasses > 0 {
		optCfg.MaxIterations = cfg.MaxOptimizerPasses
	}
	optCfg.DefaultTimeWindow = window
	optCfg.EnableFilterPushdown = cfg.EnableFilterPushdown
	optCfg.EnablePredicatePushdown = cfg.EnablePredicatePushdown
	optCfg.EnableTimeRangeInjection = cfg.EnableTimeRangeInjection
	optCfg.EnableJoinReorder = cfg.EnableJoinReorder
	optCfg.EnableIndexHints = cfg.EnableIndexHints

	optimized, ruleLog := optimizer.New(optCfg).Optimize(root)

	quote := kqlexpr.QuoteMinimal
	if cfg.QuoteIdentifiers {
		quote = kqlexpr.QuoteAlways
	}
	kql, err := emitter.Emit(optimized, emitter.Config{QuotePolicy: quote})
	if err != nil {
		return Result{}, wrap("emitter", err)
	}

	diags := make([]diagnostics.Diagnostic, 0, len(warnings))
	for _, w := range warnings {
		diags = append(diags, diagnostics.Diagnostic{
			Severity: diagnostics.SeverityWarning,
			Code:     "plan." + w.Code,
			Message:  w.Message,
		})
	}

	return Result{
		KQL:       kql,
		Warnings:  diags,
		RuleLog:   ruleLog,
		PlanNodes: plan.CountNodes(optimized),
	}, nil
}

// ValidationResult is the outcome of validating a candidate KQL string.
type ValidationResult = validator.Result

// Validate checks candidateKQL for structural consistency against the
// plan that source/sm would build (§4.G): table/column resolution,
// operator/type matching, symbol alignment, and projection arity.
func Validate(source, candidateKQL string, sm *schema.Map, cfg Config) (ValidationResult, error) {
	vcfg := validator.DefaultConfig()
	vcfg.StrictMode = cfg.ValidatorStrict
	return validator.Validate(source, candidateKQL, sm, vcfg)
}

func wrap(category string, err error) error {
	d := diagnostics.FromError(category, err)
	return fmt.Errorf("%s: %s", d.Code, d.Message)
}
