// Package parser implements a recursive-descent parser for the openCypher
// read-subset described in spec §4.A, built over internal/cypher/lexer's
// token stream. The shape (one method per grammar production, explicit
// error returns instead of panics) follows the teacher's
// internal/sparql/parser.Parser, generalized from a raw byte cursor to a
// token cursor so every error carries a precise span.
package parser

import (
	"fmt"
	"strconv"

	"github.com/sentinelgraph/cyquel/internal/cypher/ast"
	"github.com/sentinelgraph/cyquel/internal/cypher/lexer"
	"github.com/sentinelgraph/cyquel/internal/cypher/token"
)

// DefaultMaxDepth is the default expression recursion bound (§4.A).
const DefaultMaxDepth = 64

// ErrorKind enumerates the taxonomy of §4.A.
type ErrorKind string

const (
	ErrUnexpectedToken    ErrorKind = "UnexpectedToken"
	ErrUnterminatedString ErrorKind = "UnterminatedString"
	ErrUnknownEscape      ErrorKind = "UnknownEscape"
	ErrTrailingInput      ErrorKind = "TrailingInput"
	ErrExpressionTooDeep  ErrorKind = "ExpressionTooDeep"
	ErrPatternMalformed   ErrorKind = "PatternMalformed"
	ErrEmptyQuery         ErrorKind = "EmptyQuery"
	ErrTooLarge           ErrorKind = "TooLarge"
)

// ParseError is the structured failure result of §4.A.
type ParseError struct {
	Kind     ErrorKind
	Span     ast.Span
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s at %s: expected %s, found %s", e.Kind, e.Span.Start, e.Expected, e.Found)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Span.Start, e.Found)
}

// ErrorKind reports the failure category for diagnostics conversion.
func (e *ParseError) ErrorKind() string { return string(e.Kind) }

// Config controls parser resource limits.
type Config struct {
	MaxDepth int
	MaxBytes int
}

// DefaultConfig returns the spec's stated parser defaults.
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth, MaxBytes: lexer.MaxQueryBytes}
}

type parser struct {
	toks  []token.Token
	pos   int
	depth int
	cfg   Config
}

// Parse tokenizes and parses src into an AST, or returns a *ParseError.
func Parse(src string, cfg Config) (*ast.Query, error) {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = lexer.MaxQueryBytes
	}

	trimmed := isBlank(src)
	if trimmed {
		return nil, &ParseError{Kind: ErrEmptyQuery, Found: "empty input"}
	}

	toks, err := lexer.Tokenize(src, cfg.MaxBytes)
	if err != nil {
		if lexErr, ok := err.(*lexer.Error); ok {
			kind := ErrUnexpectedToken
			switch lexErr.Kind {
			case "TooLarge":
				kind = ErrTooLarge
			case "UnterminatedString", "UnterminatedComment":
				kind = ErrUnterminatedString
			case "UnknownEscape":
				kind = ErrUnknownEscape
			}
			return nil, &ParseError{
				Kind:  kind,
				Span:  ast.Span{Start: lexErr.At, End: lexErr.At},
				Found: lexErr.Message,
			}
		}
		return nil, &ParseError{Kind: ErrUnexpectedToken, Found: err.Error()}
	}

	p := &parser{toks: toks, cfg: cfg}
	q, perr := p.parseQuery()
	if perr != nil {
		return nil, perr
	}
	if !p.at(token.EOF) {
		return nil, &ParseError{
			Kind:     ErrTrailingInput,
			Span:     ast.Span{Start: p.cur().Start, End: p.cur().End},
			Expected: "end of input",
			Found:    p.cur().Literal,
		}
	}
	return q, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// ---- token cursor helpers ----

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) peek(offset int) token.Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k token.Kind, expected string) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, p.unexpected(expected)
	}
	return p.advance(), nil
}

func (p *parser) unexpected(expected string) error {
	return &ParseError{
		Kind:     ErrUnexpectedToken,
		Span:     ast.Span{Start: p.cur().Start, End: p.cur().End},
		Expected: expected,
		Found:    tokenDescription(p.cur()),
	}
}

func tokenDescription(t token.Token) string {
	if t.Kind == token.EOF {
		return "end of input"
	}
	if t.Literal != "" {
		return fmt.Sprintf("%s %q", t.Kind, t.Literal)
	}
	return t.Kind.String()
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.cfg.MaxDepth {
		return &ParseError{
			Kind:  ErrExpressionTooDeep,
			Span:  ast.Span{Start: p.cur().Start, End: p.cur().End},
			Found: fmt.Sprintf("recursion depth exceeds %d", p.cfg.MaxDepth),
		}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// ---- top level ----

func (p *parser) parseQuery() (*ast.Query, error) {
	start := p.cur().Start
	var clauses []ast.Clause
	for !p.at(token.EOF) {
		k := p.cur().Kind
		startsClause := k == token.OPTIONAL || k == token.MATCH || k == token.WHERE || k == token.WITH || k == token.RETURN || k == token.UNWIND
		if len(clauses) > 0 && !startsClause {
			break // Parse reports the leftover tokens as TrailingInput
		}
		c, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	if len(clauses) == 0 {
		return nil, &ParseError{Kind: ErrEmptyQuery, Found: "no clauses"}
	}
	return &ast.Query{Clauses: clauses, Span: ast.Span{Start: start, End: p.cur().End}}, nil
}

func (p *parser) parseClause() (ast.Clause, error) {
	switch p.cur().Kind {
	case token.OPTIONAL, token.MATCH:
		return p.parseMatch()
	case token.WHERE:
		return p.parseWhere()
	case token.WITH:
		return p.parseWith()
	case token.RETURN:
		return p.parseReturn()
	case token.UNWIND:
		return p.parseUnwind()
	default:
		return nil, p.unexpected("MATCH, OPTIONAL MATCH, WHERE, WITH, RETURN, or UNWIND")
	}
}

// ---- MATCH ----

func (p *parser) parseMatch() (*ast.Match, error) {
	start := p.cur().Start
	optional := false
	if p.at(token.OPTIONAL) {
		optional = true
		p.advance()
	}
	if _, err := p.expect(token.MATCH, "MATCH"); err != nil {
		return nil, err
	}

	var patterns []*ast.Pattern
	for {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}

	m := &ast.Match{Patterns: patterns, Optional: optional}
	if p.at(token.WHERE) {
		w, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		m.Where = w
	}
	m.Sp = ast.Span{Start: start, End: p.cur().Start}
	return m, nil
}

func (p *parser) parsePattern() (*ast.Pattern, error) {
	start := p.cur().Start
	pat := &ast.Pattern{}

	// Optional `var = ` path assignment, and optional
	// shortestPath(...)/allShortestPaths(...) wrapper.
	if p.at(token.IDENT) && p.peek(1).Kind == token.EQ {
		pat.PathVar = p.advance().Literal
		p.advance() // '='
	}

	wrapped := false
	if p.at(token.IDENT) {
		name := p.cur().Literal
		if (name == "shortestPath" || name == "allShortestPaths" || name == "allPaths") && p.peek(1).Kind == token.LPAREN {
			pat.ShortestPath = name == "shortestPath"
			pat.AllShortestPaths = name == "allShortestPaths"
			pat.AllPaths = name == "allPaths"
			p.advance() // name
			p.advance() // '('
			wrapped = true
		}
	}

	if err := p.parsePatternChain(pat); err != nil {
		return nil, err
	}

	if wrapped {
		if _, err := p.expect(token.RPAREN, ")"); err != nil {
			return nil, err
		}
	}

	pat.Sp = ast.Span{Start: start, End: p.cur().Start}
	return pat, nil
}

func (p *parser) parsePatternChain(pat *ast.Pattern) error {
	node, err := p.parseNodePattern()
	if err != nil {
		return err
	}
	pat.Nodes = append(pat.Nodes, node)

	for p.at(token.DASH) || p.at(token.ARROWL) {
		rel, err := p.parseRelPattern()
		if err != nil {
			return err
		}
		pat.Rels = append(pat.Rels, rel)

		node, err := p.parseNodePattern()
		if err != nil {
			return err
		}
		pat.Nodes = append(pat.Nodes, node)
	}
	return nil
}

func (p *parser) parseNodePattern() (*ast.NodePattern, error) {
	start := p.cur().Start
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	n := &ast.NodePattern{}
	if p.at(token.IDENT) {
		n.Var = p.advance().Literal
	}
	for p.at(token.COLON) {
		p.advance()
		lbl, err := p.expect(token.IDENT, "label")
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, lbl.Literal)
	}
	if p.at(token.LBRACE) {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		n.Properties = props
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	n.Sp = ast.Span{Start: start, End: p.cur().Start}
	return n, nil
}

func (p *parser) parseRelPattern() (*ast.RelPattern, error) {
	start := p.cur().Start
	r := &ast.RelPattern{Direction: ast.DirEither, Length: ast.Length{Kind: ast.LengthFixedOne}}

	leftArrow := false
	if p.at(token.ARROWL) {
		leftArrow = true
		p.advance()
	} else {
		if _, err := p.expect(token.DASH, "-"); err != nil {
			return nil, err
		}
	}

	hasBracket := p.at(token.LBRACKET)
	if hasBracket {
		p.advance()
		if p.at(token.IDENT) {
			r.Var = p.advance().Literal
		}
		if p.at(token.COLON) {
			p.advance()
			t, err := p.expect(token.IDENT, "relationship type")
			if err != nil {
				return nil, err
			}
			r.Types = append(r.Types, t.Literal)
			for p.at(token.PIPE) {
				p.advance()
				t, err := p.expect(token.IDENT, "relationship type")
				if err != nil {
					return nil, err
				}
				r.Types = append(r.Types, t.Literal)
			}
		}
		if p.at(token.STAR) {
			length, err := p.parseLength()
			if err != nil {
				return nil, err
			}
			r.Length = length
		}
		if p.at(token.LBRACE) {
			props, err := p.parsePropertyMap()
			if err != nil {
				return nil, err
			}
			r.Properties = props
		}
		if _, err := p.expect(token.RBRACKET, "]"); err != nil {
			return nil, err
		}
	}

	rightArrow := false
	if p.at(token.ARROWR) {
		rightArrow = true
		p.advance()
	} else {
		if _, err := p.expect(token.DASH, "-"); err != nil {
			return nil, err
		}
	}

	switch {
	case leftArrow && !rightArrow:
		r.Direction = ast.DirLeft
	case rightArrow && !leftArrow:
		r.Direction = ast.DirRight
	case !leftArrow && !rightArrow:
		r.Direction = ast.DirEither
	default:
		return nil, &ParseError{Kind: ErrPatternMalformed, Span: ast.Span{Start: start, End: p.cur().End}, Found: "relationship cannot point both directions"}
	}

	r.Sp = ast.Span{Start: start, End: p.cur().Start}
	return r, nil
}

// parseLength parses `*`, `*n`, `*..m`, `*n..`, `*n..m` following STAR.
func (p *parser) parseLength() (ast.Length, error) {
	start := p.cur().Start
	p.advance() // '*'

	if !p.at(token.NUMBER) && !p.at(token.DOTDOT) {
		return ast.Length{Kind: ast.LengthUnbounded, Min: 1}, nil
	}

	var min int
	hasMin := false
	if p.at(token.NUMBER) {
		n, err := strconv.Atoi(p.advance().Literal)
		if err != nil {
			return ast.Length{}, &ParseError{Kind: ErrPatternMalformed, Span: ast.Span{Start: start, End: p.cur().End}, Found: "malformed hop count"}
		}
		min = n
		hasMin = true
	}

	if !p.at(token.DOTDOT) {
		// `*n` — fixed range.
		if !hasMin {
			return ast.Length{}, &ParseError{Kind: ErrPatternMalformed, Span: ast.Span{Start: start, End: p.cur().End}, Found: "expected hop count or '..'"}
		}
		return ast.Length{Kind: ast.LengthRange, Min: min, Max: &min}, nil
	}
	p.advance() // '..'

	if !hasMin {
		min = 1
	}
	if p.at(token.NUMBER) {
		maxTok := p.advance()
		max, err := strconv.Atoi(maxTok.Literal)
		if err != nil {
			return ast.Length{}, &ParseError{Kind: ErrPatternMalformed, Span: ast.Span{Start: start, End: p.cur().End}, Found: "malformed hop count"}
		}
		if max < min {
			return ast.Length{}, &ParseError{Kind: ErrPatternMalformed, Span: ast.Span{Start: start, End: p.cur().End}, Found: fmt.Sprintf("max %d is less than min %d", max, min)}
		}
		return ast.Length{Kind: ast.LengthRange, Min: min, Max: &max}, nil
	}
	return ast.Length{Kind: ast.LengthUnbounded, Min: min}, nil
}

func (p *parser) parsePropertyMap() ([]ast.PropertyEquality, error) {
	if _, err := p.expect(token.LBRACE, "{"); err != nil {
		return nil, err
	}
	var props []ast.PropertyEquality
	if p.at(token.RBRACE) {
		p.advance()
		return props, nil
	}
	for {
		key, err := p.expect(token.IDENT, "property name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON, ":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		props = append(props, ast.PropertyEquality{Key: key.Literal, Value: val})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBRACE, "}"); err != nil {
		return nil, err
	}
	return props, nil
}

// ---- WHERE / WITH / RETURN / UNWIND ----

func (p *parser) parseWhere() (*ast.Where, error) {
	start := p.cur().Start
	if _, err := p.expect(token.WHERE, "WHERE"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Where{Expr: expr, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
}

func (p *parser) parseItemList() ([]ast.WithItem, error) {
	var items []ast.WithItem
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		alias := ""
		if p.at(token.AS) {
			p.advance()
			t, err := p.expect(token.IDENT, "alias")
			if err != nil {
				return nil, err
			}
			alias = t.Literal
		}
		items = append(items, ast.WithItem{Expr: expr, Alias: alias})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseOrderBy() ([]ast.OrderItem, error) {
	if _, err := p.expect(token.ORDER, "ORDER"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.BY, "BY"); err != nil {
		return nil, err
	}
	var items []ast.OrderItem
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.at(token.IDENT) {
			switch p.cur().Literal {
			case "ASC", "asc":
				p.advance()
			case "DESC", "desc":
				desc = true
				p.advance()
			}
		}
		items = append(items, ast.OrderItem{Expr: expr, Descending: desc})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseWith() (*ast.With, error) {
	start := p.cur().Start
	if _, err := p.expect(token.WITH, "WITH"); err != nil {
		return nil, err
	}
	w := &ast.With{}
	if p.at(token.DISTINCT) {
		w.Distinct = true
		p.advance()
	}
	items, err := p.parseItemList()
	if err != nil {
		return nil, err
	}
	w.Items = items

	if p.at(token.WHERE) {
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		w.Where = where
	}
	if p.at(token.ORDER) {
		items, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		w.OrderBy = items
	}
	if p.at(token.SKIP) {
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		w.Skip = e
	}
	if p.at(token.LIMIT) {
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		w.Limit = e
	}
	w.Sp = ast.Span{Start: start, End: p.cur().Start}
	return w, nil
}

func (p *parser) parseReturn() (*ast.Return, error) {
	start := p.cur().Start
	if _, err := p.expect(token.RETURN, "RETURN"); err != nil {
		return nil, err
	}
	r := &ast.Return{}
	if p.at(token.DISTINCT) {
		r.Distinct = true
		p.advance()
	}
	items, err := p.parseItemList()
	if err != nil {
		return nil, err
	}
	r.Items = items

	if p.at(token.ORDER) {
		items, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		r.OrderBy = items
	}
	if p.at(token.SKIP) {
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		r.Skip = e
	}
	if p.at(token.LIMIT) {
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		r.Limit = e
	}
	r.Sp = ast.Span{Start: start, End: p.cur().Start}
	return r, nil
}

func (p *parser) parseUnwind() (*ast.Unwind, error) {
	start := p.cur().Start
	if _, err := p.expect(token.UNWIND, "UNWIND"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.AS, "AS"); err != nil {
		return nil, err
	}
	alias, err := p.expect(token.IDENT, "alias")
	if err != nil {
		return nil, err
	}
	return &ast.Unwind{Expr: expr, Alias: alias.Literal, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
}

// ---- expressions (precedence climbing) ----

func (p *parser) parseExpression() (ast.Expression, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OR) {
		start := left.Span().Start
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: ast.OpOr, Left: left, Right: right, Sp: ast.Span{Start: start, End: p.cur().Start}}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at(token.AND) {
		start := left.Span().Start
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: ast.OpAnd, Left: left, Right: right, Sp: ast.Span{Start: start, End: p.cur().Start}}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expression, error) {
	if p.at(token.NOT) {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		start := p.cur().Start
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.OpNot, Operand: operand, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.comparisonOp()
	if !ok {
		return left, nil
	}
	start := left.Span().Start
	p.advance()
	if op == ast.OpStartsWith || op == ast.OpEndsWith {
		// consume the second keyword of STARTS WITH / ENDS WITH
		if _, err := p.expect(ifStartsThenWithElse(op), "WITH"); err != nil {
			return nil, err
		}
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Op: op, Left: left, Right: right, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
}

func ifStartsThenWithElse(op ast.BinaryOp) token.Kind {
	// both STARTS WITH and ENDS WITH are followed by a literal WITH
	// token, but WITH is also a clause keyword; the lexer classifies it
	// as token.WITH either way, so the expectation is always WITH.
	_ = op
	return token.WITH
}

func (p *parser) comparisonOp() (ast.BinaryOp, bool) {
	switch p.cur().Kind {
	case token.EQ:
		return ast.OpEQ, true
	case token.NEQ:
		return ast.OpNEQ, true
	case token.LT:
		return ast.OpLT, true
	case token.LE:
		return ast.OpLE, true
	case token.GT:
		return ast.OpGT, true
	case token.GE:
		return ast.OpGE, true
	case token.IN:
		return ast.OpIn, true
	case token.CONTAINS:
		return ast.OpContains, true
	case token.STARTS:
		return ast.OpStartsWith, true
	case token.ENDS:
		return ast.OpEndsWith, true
	}
	return 0, false
}

func (p *parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) || p.at(token.DASH) {
		op := ast.OpAdd
		if p.at(token.DASH) {
			op = ast.OpSub
		}
		start := left.Span().Start
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Sp: ast.Span{Start: start, End: p.cur().Start}}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.PERCENT) {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.STAR:
			op = ast.OpMul
		case token.SLASH:
			op = ast.OpDiv
		case token.PERCENT:
			op = ast.OpMod
		}
		start := left.Span().Start
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Sp: ast.Span{Start: start, End: p.cur().Start}}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expression, error) {
	if p.at(token.DASH) {
		start := p.cur().Start
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.OpNeg, Operand: operand, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at(token.DOT) {
		start := expr.Span().Start
		p.advance()
		prop, err := p.expect(token.IDENT, "property name")
		if err != nil {
			return nil, err
		}
		expr = &ast.PropertyAccess{Target: expr, Property: prop.Literal, Sp: ast.Span{Start: start, End: p.cur().Start}}
	}
	return expr, nil
}

func (p *parser) parsePrimary() (ast.Expression, error) {
	start := p.cur().Start
	switch p.cur().Kind {
	case token.LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN, ")"); err != nil {
			return nil, err
		}
		return expr, nil
	case token.LBRACKET:
		return p.parseListLiteral(start)
	case token.LBRACE:
		return p.parseMapLiteral(start)
	case token.STRING:
		t := p.advance()
		return &ast.Literal{Kind: ast.LiteralString, Str: t.Literal, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	case token.NUMBER:
		t := p.advance()
		n, err := strconv.ParseFloat(t.Literal, 64)
		if err != nil {
			return nil, &ParseError{Kind: ErrUnexpectedToken, Span: ast.Span{Start: start, End: p.cur().Start}, Found: "malformed number " + t.Literal}
		}
		return &ast.Literal{Kind: ast.LiteralNumber, Num: n, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	case token.BOOLEAN:
		t := p.advance()
		return &ast.Literal{Kind: ast.LiteralBoolean, Bool: t.Literal == "true" || t.Literal == "TRUE" || t.Literal == "True", Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	case token.NULLTOKEN:
		p.advance()
		return &ast.Literal{Kind: ast.LiteralNull, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	case token.PARAM:
		t := p.advance()
		return &ast.Parameter{Name: t.Literal, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	case token.IDENT:
		name := p.cur().Literal
		if p.peek(1).Kind == token.LPAREN {
			return p.parseFunctionCall(start)
		}
		p.advance()
		return &ast.Variable{Name: name, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
	default:
		return nil, p.unexpected("an expression")
	}
}

func (p *parser) parseFunctionCall(start token.Position) (ast.Expression, error) {
	name := p.advance().Literal
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	var args []ast.Expression
	if !p.at(token.RPAREN) {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	return &ast.FunctionCall{Name: name, Args: args, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
}

func (p *parser) parseListLiteral(start token.Position) (ast.Expression, error) {
	p.advance() // '['
	var items []ast.Expression
	if !p.at(token.RBRACKET) {
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, e)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBRACKET, "]"); err != nil {
		return nil, err
	}
	return &ast.ListLiteral{Items: items, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
}

func (p *parser) parseMapLiteral(start token.Position) (ast.Expression, error) {
	p.advance() // '{'
	var entries []ast.MapEntry
	if !p.at(token.RBRACE) {
		for {
			key, err := p.expect(token.IDENT, "map key")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON, ":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.MapEntry{Key: key.Literal, Value: val})
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBRACE, "}"); err != nil {
		return nil, err
	}
	return &ast.MapLiteral{Entries: entries, Sp: ast.Span{Start: start, End: p.cur().Start}}, nil
}
