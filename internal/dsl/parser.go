// parser.go turns the flat token stream lexAll produces into
// lhscompile.Rule ASTs, implementing this grammar:
//
//	rule = "rule" STRING "when" "{" lhs "}" "then" "{" stmts "}"
//	lhs  = (binding? pattern ";")+
//	pattern     = TypeName "(" (field_expr ("," field_expr)*)? ")"
//	field_expr  = Identifier ":" Identifier  // binding
//	            | Expression                  // constraint
//	binding     = Identifier ":"
//
// Expression parsing is a standard precedence-climbing descent (||, &&,
// equality, relational, additive, multiplicative, unary, primary), since
// the grammar's "Expression" nonterminal leaves ordinary arithmetic and
// boolean precedence to the reader, same as any C-family expression
// grammar. Operators compile straight to lhscompile.SurfaceExpr nodes,
// which lhscompile.Compile already knows how to lower.
package dsl

import (
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/lhscompile"
)

// ParseFile parses the whole contents of one .rule source file into its
// constituent rules, collecting every syntax error found rather than
// stopping at the first one.
func ParseFile(src string) ([]lhscompile.Rule, []error) {
	toks, err := newLexer(src).lexAll()
	if err != nil {
		return nil, []error{err}
	}
	p := &parser{toks: toks}
	var rules []lhscompile.Rule
	var errs []error
	for !p.atEOF() {
		rule, err := p.parseRule()
		if err != nil {
			errs = append(errs, err)
			p.recoverToNextRule()
			continue
		}
		rules = append(rules, rule)
		if p.cur().kind == tokPunct && p.cur().text == ";" {
			p.advance() // tolerate an optional trailing ";" after a rule block
		}
	}
	if len(errs) > 0 {
		return rules, errs
	}
	return rules, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expectPunct(s string) (token, error) {
	t := p.cur()
	if t.kind != tokPunct || t.text != s {
		return token{}, errf(t.line, "expected %q, got %q", s, t.text)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(s string) (token, error) {
	t := p.cur()
	if t.kind != tokKeyword || t.text != s {
		return token{}, errf(t.line, "expected keyword %q, got %q", s, t.text)
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (token, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return token{}, errf(t.line, "expected identifier, got %q", t.text)
	}
	return p.advance(), nil
}

// recoverToNextRule skips tokens until the start of the next "rule"
// keyword or EOF, so one malformed rule doesn't suppress diagnostics for
// the rest of the file.
func (p *parser) recoverToNextRule() {
	for !p.atEOF() {
		if p.cur().kind == tokKeyword && p.cur().text == "rule" {
			return
		}
		p.advance()
	}
}

func (p *parser) parseRule() (lhscompile.Rule, error) {
	if _, err := p.expectKeyword("rule"); err != nil {
		return lhscompile.Rule{}, err
	}
	nameTok := p.cur()
	if nameTok.kind != tokString {
		return lhscompile.Rule{}, errf(nameTok.line, "expected rule name string, got %q", nameTok.text)
	}
	p.advance()

	if _, err := p.expectKeyword("when"); err != nil {
		return lhscompile.Rule{}, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return lhscompile.Rule{}, err
	}
	patterns, err := p.parseLHS()
	if err != nil {
		return lhscompile.Rule{}, err
	}
	if _, err := p.expectPunct("}"); err != nil {
		return lhscompile.Rule{}, err
	}

	if _, err := p.expectKeyword("then"); err != nil {
		return lhscompile.Rule{}, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return lhscompile.Rule{}, err
	}
	stmts, err := p.parseStmts()
	if err != nil {
		return lhscompile.Rule{}, err
	}
	if _, err := p.expectPunct("}"); err != nil {
		return lhscompile.Rule{}, err
	}

	return lhscompile.Rule{Name: nameTok.text, Patterns: patterns, RHS: stmts}, nil
}

func (p *parser) parseLHS() ([]lhscompile.Pattern, error) {
	var patterns []lhscompile.Pattern
	for {
		if p.cur().kind == tokPunct && p.cur().text == "}" {
			break
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
	}
	if len(patterns) == 0 {
		return nil, errf(p.cur().line, "a rule's when-block must have at least one pattern")
	}
	return patterns, nil
}

// parsePattern parses one "binding? pattern" LHS clause. An outer binding
// is distinguished from a bare pattern by lookahead: Identifier ":"
// TypeName, versus TypeName directly.
func (p *parser) parsePattern() (lhscompile.Pattern, error) {
	var outer string
	if p.cur().kind == tokIdent && p.peekIsColon() {
		outer = p.advance().text
		if _, err := p.expectPunct(":"); err != nil {
			return lhscompile.Pattern{}, err
		}
	}

	typeTok, err := p.expectIdent()
	if err != nil {
		return lhscompile.Pattern{}, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return lhscompile.Pattern{}, err
	}

	var fields []lhscompile.FieldExpr
	for !(p.cur().kind == tokPunct && p.cur().text == ")") {
		fe, err := p.parseFieldExpr()
		if err != nil {
			return lhscompile.Pattern{}, err
		}
		fields = append(fields, fe)
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return lhscompile.Pattern{}, err
	}

	return lhscompile.Pattern{Outer: outer, Type: typeTok.text, Fields: fields}, nil
}

// peekIsColon reports whether the token after the current one is a bare
// ":" punct, used to disambiguate "name : field" bindings (both the outer
// pattern binding and the inner field_expr binding) from a plain
// constraint expression that happens to start with an identifier.
func (p *parser) peekIsColon() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	nxt := p.toks[p.pos+1]
	return nxt.kind == tokPunct && nxt.text == ":"
}

func (p *parser) parseFieldExpr() (lhscompile.FieldExpr, error) {
	if p.cur().kind == tokIdent && p.peekIsColon() {
		name := p.advance().text
		if _, err := p.expectPunct(":"); err != nil {
			return lhscompile.FieldExpr{}, err
		}
		fieldTok, err := p.expectIdent()
		if err != nil {
			return lhscompile.FieldExpr{}, err
		}
		return lhscompile.FieldExpr{Bind: &lhscompile.FieldBind{Name: name, Field: fieldTok.text}}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return lhscompile.FieldExpr{}, err
	}
	return lhscompile.FieldExpr{Constraint: expr}, nil
}

func (p *parser) parseStmts() ([]lhscompile.Stmt, error) {
	var stmts []lhscompile.Stmt
	for !(p.cur().kind == tokPunct && p.cur().text == "}") {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

func (p *parser) parseStmt() (lhscompile.Stmt, error) {
	t := p.cur()

	if t.kind == tokKeyword && t.text == "update" {
		p.advance()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return lhscompile.UpdateStmt{Name: nameTok.text}, nil
	}

	if t.kind == tokKeyword && t.text == "factDelete" {
		p.advance()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return lhscompile.FactDeleteStmt{Name: nameTok.text}, nil
	}

	// "name := factInsert TypeName{field: expr, ...}"
	if t.kind == tokIdent && p.peekIsAssign() {
		result := p.advance().text
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("factInsert"); err != nil {
			return nil, err
		}
		typeTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		fields, err := p.parseFactLiteralFields()
		if err != nil {
			return nil, err
		}
		return lhscompile.FactInsertStmt{Result: result, TypeName: typeTok.text, Fields: fields}, nil
	}

	// "name.field = expr"
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("."); err != nil {
		return nil, err
	}
	fieldTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return lhscompile.SetFieldStmt{Name: nameTok.text, Field: fieldTok.text, Value: val}, nil
}

// peekIsAssign reports whether the current identifier is immediately
// followed by ":=" (factInsert's result-binding form), distinguishing it
// from "name.field = expr".
func (p *parser) peekIsAssign() bool {
	if p.pos+2 >= len(p.toks) {
		return false
	}
	a, b := p.toks[p.pos+1], p.toks[p.pos+2]
	return a.kind == tokPunct && a.text == ":" && b.kind == tokPunct && b.text == "="
}

func (p *parser) parseFactLiteralFields() (map[string]lhscompile.SurfaceExpr, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	fields := make(map[string]lhscompile.SurfaceExpr)
	for !(p.cur().kind == tokPunct && p.cur().text == "}") {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields[nameTok.text] = val
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return fields, nil
}

// --- expression parsing: standard precedence climbing ---

func (p *parser) parseExpr() (lhscompile.SurfaceExpr, error) { return p.parseOr() }

func (p *parser) parseOr() (lhscompile.SurfaceExpr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && p.cur().text == "||" {
		p.advance()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = lhscompile.Bin{Op: lhscompile.OpOr, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (lhscompile.SurfaceExpr, error) {
	l, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && p.cur().text == "&&" {
		p.advance()
		r, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		l = lhscompile.Bin{Op: lhscompile.OpAnd, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseEquality() (lhscompile.SurfaceExpr, error) {
	l, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "==" || p.cur().text == "!=") {
		opTok := p.advance()
		r, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		op := lhscompile.OpEq
		if opTok.text == "!=" {
			op = lhscompile.OpNe
		}
		l = lhscompile.Bin{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseRelational() (lhscompile.SurfaceExpr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct {
		var op lhscompile.Op
		switch p.cur().text {
		case "<":
			op = lhscompile.OpLt
		case "<=":
			op = lhscompile.OpLe
		case ">":
			op = lhscompile.OpGt
		case ">=":
			op = lhscompile.OpGe
		default:
			return l, nil
		}
		p.advance()
		r, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		l = lhscompile.Bin{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAdditive() (lhscompile.SurfaceExpr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "+" || p.cur().text == "-") {
		opTok := p.advance()
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		op := lhscompile.OpAdd
		if opTok.text == "-" {
			op = lhscompile.OpSub
		}
		l = lhscompile.Bin{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseMultiplicative() (lhscompile.SurfaceExpr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "*" || p.cur().text == "/") {
		opTok := p.advance()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := lhscompile.OpMul
		if opTok.text == "/" {
			op = lhscompile.OpDiv
		}
		l = lhscompile.Bin{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (lhscompile.SurfaceExpr, error) {
	if p.cur().kind == tokPunct && p.cur().text == "!" {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return lhscompile.Un{Op: lhscompile.OpNot, X: x}, nil
	}
	if p.cur().kind == tokPunct && p.cur().text == "-" {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return lhscompile.Bin{Op: lhscompile.OpSub, L: lhscompile.Lit{Val: hostiface.Int(0)}, R: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (lhscompile.SurfaceExpr, error) {
	t := p.cur()
	switch {
	case t.kind == tokPunct && t.text == "(":
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil

	case t.kind == tokNumber:
		p.advance()
		n, err := parseNumberLiteral(t.text)
		if err != nil {
			return nil, errf(t.line, "invalid integer literal %q", t.text)
		}
		return lhscompile.Lit{Val: hostiface.Int(n)}, nil

	case t.kind == tokString:
		p.advance()
		return lhscompile.Lit{Val: hostiface.Str(t.text)}, nil

	case t.kind == tokKeyword && (t.text == "true" || t.text == "false"):
		p.advance()
		return lhscompile.Lit{Val: hostiface.Bool(t.text == "true")}, nil

	case t.kind == tokIdent:
		p.advance()
		if p.cur().kind == tokPunct && p.cur().text == "." {
			p.advance()
			fieldTok, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return lhscompile.FieldOf{Base: t.text, Field: fieldTok.text}, nil
		}
		return lhscompile.Ident{Name: t.text}, nil

	default:
		return nil, errf(t.line, "unexpected token %q in expression", t.text)
	}
}
