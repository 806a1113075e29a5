// Package lhscompile lowers a rule's LHS into a Rete sub-graph: it
// classifies every field expression as alpha or beta, builds the
// alpha/beta/terminal chain in pattern order, and produces the binding
// table the RHS reads bound identifiers through. It also compiles RHS
// statements into an internal/driver-executable Action, enforcing the
// mutation-without-update compile-time rule.
//
// Grounded on a recursive-descent-parsing-plus-declaration-validation
// style (declare-then-validate in two passes), adapted here to pattern
// and binding checks instead of atom/declaration checks.
package lhscompile

import (
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/rete"
)

// Op re-exports rete's compiled operator set so callers building surface
// ASTs (by hand or via internal/dsl) need only import this package.
type Op = rete.Op

const (
	OpEq  = rete.OpEq
	OpNe  = rete.OpNe
	OpLt  = rete.OpLt
	OpLe  = rete.OpLe
	OpGt  = rete.OpGt
	OpGe  = rete.OpGe
	OpAdd = rete.OpAdd
	OpSub = rete.OpSub
	OpMul = rete.OpMul
	OpDiv = rete.OpDiv
	OpAnd = rete.OpAnd
	OpOr  = rete.OpOr
	OpNot = rete.OpNot
)

// SurfaceExpr is a name-resolved-at-compile-time expression tree, as a
// host's typed AST would hand the LHS compiler a constraint or the RHS
// compiler a statement's right-hand side. It is shared between LHS
// constraints and RHS expressions; each compiler applies its own
// identifier-resolution rules to it.
type SurfaceExpr interface {
	sx()
}

// Ident is a bare identifier: either the current pattern's own field
// (when unqualified and not a known binding) or, in cross-pattern
// constraints and RHS code, a previously bound name used as a scalar
// value (an Inner binding) or as a whole-fact identity (an Outer
// binding).
type Ident struct{ Name string }

// FieldOf is an explicit "base.field" access into a bound fact, used to
// read a field of an Outer-bound pattern (own or earlier).
type FieldOf struct{ Base, Field string }

// Lit is a compile-time literal.
type Lit struct{ Val hostiface.Value }

// Bin is a binary surface expression.
type Bin struct {
	Op   Op
	L, R SurfaceExpr
}

// Un is a unary surface expression (logical not).
type Un struct {
	Op Op
	X  SurfaceExpr
}

func (Ident) sx()   {}
func (FieldOf) sx() {}
func (Lit) sx()     {}
func (Bin) sx()     {}
func (Un) sx()      {}

// FieldBind is an inner binding clause, "name : field": it names field
// of the pattern's own fact.
type FieldBind struct {
	Name  string
	Field string
}

// FieldExpr is one clause inside a pattern's parenthesized field list:
// either an inner binding or a boolean constraint, never both.
type FieldExpr struct {
	Bind       *FieldBind
	Constraint SurfaceExpr
}

// Pattern is one LHS clause: an optional outer binding naming the whole
// matched fact, a fact-type name, and an ordered list of field
// expressions.
type Pattern struct {
	Outer  string // "" if this pattern introduces no outer binding
	Type   string
	Fields []FieldExpr
}

// Rule is the compiler's input: a rule's name, its ordered patterns, and
// its RHS statement list.
type Rule struct {
	Name     string
	Patterns []Pattern
	RHS      []Stmt
}
