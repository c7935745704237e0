// Package diagnostics defines the uniform failure/warning shape (§6, §7)
// that every pipeline stage's typed error converts into at the
// pkg/cyquel boundary, so callers see one Diagnostic shape regardless of
// which component raised it.
package diagnostics

import (
	"github.com/sentinelgraph/cyquel/internal/cypher/ast"
)

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one reportable condition surfaced by the translator or
// validator, carrying an optional source span and remediation hint.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Span     *ast.Span `json:"span,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// FromError converts a typed component error into a Diagnostic. Callers
// pass the originating category so the Code carries its pipeline stage
// (e.g. "parser.UnterminatedString", "plan.UnboundLabel"), per §7's
// category taxonomy.
func FromError(category string, err error) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Code:     category + "." + errorKind(err),
		Message:  err.Error(),
	}
}

// errorKind extracts a short kind tag from a typed error when it exposes
// one via an ErrorKind() method, falling back to "Unknown" otherwise.
func errorKind(err error) string {
	type kinder interface{ ErrorKind() string }
	if k, ok := err.(kinder); ok {
		return k.ErrorKind()
	}
	return "Unknown"
}
