package lhscompile

import (
	"github.com/Alon769/lity/internal/binding"
	"github.com/Alon769/lity/internal/rete"
)

// scopeEntry is what a bound name resolves to while walking a rule's
// patterns left to right.
type scopeEntry struct {
	pos   int
	kind  binding.Kind
	field string
}

// resolveLeaf turns one Ident/FieldOf surface node into a compiled Rete
// leaf expressed in absolute tuple positions (0..curPattern). A
// constraint in pattern k may not reference an inner binding declared
// later in the same pattern's field list — evaluation within one
// pattern proceeds left to right, so a forward reference is rejected
// rather than silently accepted.
func resolveLeaf(rule string, curPattern, curFieldIndex int, known map[string]scopeEntry, localDecl map[string]int, node SurfaceExpr) (rete.Expr, int, error) {
	switch n := node.(type) {
	case Ident:
		if declIdx, ok := localDecl[n.Name]; ok {
			if declIdx >= curFieldIndex {
				return nil, 0, errf(rule, curPattern, "constraint references inner binding %q before it is declared", n.Name)
			}
			e := known[n.Name]
			return rete.FieldAt{Pos: curPattern, Field: e.field}, curPattern, nil
		}
		if e, ok := known[n.Name]; ok {
			if e.kind == binding.Inner {
				return rete.FieldAt{Pos: e.pos, Field: e.field}, e.pos, nil
			}
			return rete.HandleAt{Pos: e.pos}, e.pos, nil
		}
		// Unknown name: shorthand for a field of the current pattern's own
		// fact (the surface grammar permits bare field names).
		return rete.FieldAt{Pos: curPattern, Field: n.Name}, curPattern, nil

	case FieldOf:
		if _, ok := localDecl[n.Base]; ok {
			return nil, 0, errf(rule, curPattern, "%q is a value binding; it has no field %q", n.Base, n.Field)
		}
		e, ok := known[n.Base]
		if !ok {
			return nil, 0, errf(rule, curPattern, "unbound identifier %q", n.Base)
		}
		if e.kind != binding.Outer {
			return nil, 0, errf(rule, curPattern, "%q is a value binding; it has no field %q", n.Base, n.Field)
		}
		return rete.FieldAt{Pos: e.pos, Field: n.Field}, e.pos, nil

	default:
		return nil, 0, errf(rule, curPattern, "unresolvable leaf node %T", node)
	}
}

// compileAbs compiles a surface expression to a Rete expression in
// absolute tuple positions, along with every position any leaf
// referenced (used to classify the expression as alpha or beta).
func compileAbs(rule string, curPattern, curFieldIndex int, known map[string]scopeEntry, localDecl map[string]int, node SurfaceExpr) (rete.Expr, []int, error) {
	switch n := node.(type) {
	case Ident, FieldOf:
		leaf, pos, err := resolveLeaf(rule, curPattern, curFieldIndex, known, localDecl, n)
		if err != nil {
			return nil, nil, err
		}
		return leaf, []int{pos}, nil

	case Lit:
		return rete.Lit{Val: n.Val}, nil, nil

	case Bin:
		l, lp, err := compileAbs(rule, curPattern, curFieldIndex, known, localDecl, n.L)
		if err != nil {
			return nil, nil, err
		}
		r, rp, err := compileAbs(rule, curPattern, curFieldIndex, known, localDecl, n.R)
		if err != nil {
			return nil, nil, err
		}
		return rete.Bin{Op: n.Op, L: l, R: r}, append(lp, rp...), nil

	case Un:
		x, xp, err := compileAbs(rule, curPattern, curFieldIndex, known, localDecl, n.X)
		if err != nil {
			return nil, nil, err
		}
		return rete.Un{Op: n.Op, X: x}, xp, nil

	default:
		return nil, nil, errf(rule, curPattern, "unresolvable expression node %T", node)
	}
}

// isBeta reports whether any referenced position is strictly earlier
// than the owning pattern, which makes the whole expression a join
// (beta) predicate rather than an alpha constraint.
func isBeta(curPattern int, positions []int) bool {
	for _, p := range positions {
		if p < curPattern {
			return true
		}
	}
	return false
}

// remapToLocal rewrites every leaf at position from down to position 0,
// turning an alpha-classified expression (whose leaves all sit at the
// owning pattern's absolute position) into the locally-scoped form an
// alpha node evaluates a single candidate fact against.
func remapToLocal(e rete.Expr, from int) rete.Expr {
	switch n := e.(type) {
	case rete.FieldAt:
		if n.Pos == from {
			n.Pos = 0
		}
		return n
	case rete.HandleAt:
		if n.Pos == from {
			n.Pos = 0
		}
		return n
	case rete.Lit:
		return n
	case rete.Bin:
		n.L = remapToLocal(n.L, from)
		n.R = remapToLocal(n.R, from)
		return n
	case rete.Un:
		n.X = remapToLocal(n.X, from)
		return n
	default:
		return e
	}
}

// andAll folds a list of expressions into one conjunction, defaulting to
// an always-true literal when the list is empty: an unconstrained
// pattern, or a pattern with no join predicate, are both valid — a
// pattern may specify no field expressions at all.
func andAll(exprs []rete.Expr) rete.Expr {
	if len(exprs) == 0 {
		return rete.Lit{Val: trueVal}
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = rete.Bin{Op: rete.OpAnd, L: out, R: e}
	}
	return out
}
