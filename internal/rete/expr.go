package rete

import (
	"fmt"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
)

// Op is a compiled expression operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpNot
)

// Expr is a compiled constraint or join predicate: a small expression tree
// over tuple positions, resolved once at compile time by the LHS compiler
// (bindings as positions, not maps) so that runtime evaluation never does
// name lookups.
type Expr interface {
	expr()
}

// FieldAt reads field Field of the fact occupying tuple position Pos.
type FieldAt struct {
	Pos   int
	Field string
}

// HandleAt yields the raw handle at tuple position Pos, for constraints
// that compare fact identity rather than field values.
type HandleAt struct {
	Pos int
}

// Lit is a compile-time constant.
type Lit struct {
	Val hostiface.Value
}

// Bin is a binary operator expression.
type Bin struct {
	Op   Op
	L, R Expr
}

// Un is a unary operator expression (logical not).
type Un struct {
	Op Op
	X  Expr
}

func (FieldAt) expr()  {}
func (HandleAt) expr() {}
func (Lit) expr()      {}
func (Bin) expr()      {}
func (Un) expr()       {}

// EvalEnv supplies everything Eval needs to resolve a compiled expression
// against a candidate tuple: the fact table (to resolve a position's
// handle to a storage ref) and the host's storage (to read field values).
type EvalEnv struct {
	Table   *facts.Table
	Storage hostiface.Storage
	// Tuple holds the fact handles considered so far, indexed by pattern
	// position; Tuple[len(Tuple)-1] is the "current" fact when evaluating
	// an alpha constraint or the right-hand side of a join predicate.
	Tuple []facts.Handle
}

// Eval evaluates a compiled expression against env.
func Eval(e Expr, env EvalEnv) (hostiface.Value, error) {
	switch n := e.(type) {
	case FieldAt:
		return evalFieldAt(n, env)
	case HandleAt:
		if n.Pos < 0 || n.Pos >= len(env.Tuple) {
			return hostiface.Value{}, fmt.Errorf("rete: position %d out of range (tuple length %d)", n.Pos, len(env.Tuple))
		}
		return hostiface.Int(int64(env.Tuple[n.Pos])), nil
	case Lit:
		return n.Val, nil
	case Bin:
		return evalBin(n, env)
	case Un:
		return evalUn(n, env)
	default:
		return hostiface.Value{}, fmt.Errorf("rete: unknown expression node %T", e)
	}
}

func evalFieldAt(n FieldAt, env EvalEnv) (hostiface.Value, error) {
	if n.Pos < 0 || n.Pos >= len(env.Tuple) {
		return hostiface.Value{}, fmt.Errorf("rete: position %d out of range (tuple length %d)", n.Pos, len(env.Tuple))
	}
	h := env.Tuple[n.Pos]
	ref, ok := env.Table.Ref(h)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("rete: %w: handle %d", facts.ErrUnknownHandle, h)
	}
	rec, err := env.Storage.Load(ref)
	if err != nil {
		return hostiface.Value{}, fmt.Errorf("rete: load ref for field %q: %w", n.Field, err)
	}
	v, ok := rec.Get(n.Field)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("rete: fact %d has no field %q", h, n.Field)
	}
	return v, nil
}

func evalBin(n Bin, env EvalEnv) (hostiface.Value, error) {
	if n.Op == OpAnd || n.Op == OpOr {
		l, err := EvalBool(n.L, env)
		if err != nil {
			return hostiface.Value{}, err
		}
		if n.Op == OpAnd && !l {
			return hostiface.Bool(false), nil
		}
		if n.Op == OpOr && l {
			return hostiface.Bool(true), nil
		}
		r, err := EvalBool(n.R, env)
		if err != nil {
			return hostiface.Value{}, err
		}
		return hostiface.Bool(r), nil
	}

	l, err := Eval(n.L, env)
	if err != nil {
		return hostiface.Value{}, err
	}
	r, err := Eval(n.R, env)
	if err != nil {
		return hostiface.Value{}, err
	}

	switch n.Op {
	case OpEq:
		return hostiface.Bool(l.Equal(r)), nil
	case OpNe:
		return hostiface.Bool(!l.Equal(r)), nil
	}

	if l.Kind != hostiface.KindInt || r.Kind != hostiface.KindInt {
		return hostiface.Value{}, fmt.Errorf("rete: operator %v requires integer operands, got %v and %v", n.Op, l.Kind, r.Kind)
	}

	switch n.Op {
	case OpLt:
		return hostiface.Bool(l.Int < r.Int), nil
	case OpLe:
		return hostiface.Bool(l.Int <= r.Int), nil
	case OpGt:
		return hostiface.Bool(l.Int > r.Int), nil
	case OpGe:
		return hostiface.Bool(l.Int >= r.Int), nil
	case OpAdd:
		return hostiface.Int(l.Int + r.Int), nil
	case OpSub:
		return hostiface.Int(l.Int - r.Int), nil
	case OpMul:
		return hostiface.Int(l.Int * r.Int), nil
	case OpDiv:
		if r.Int == 0 {
			return hostiface.Value{}, fmt.Errorf("rete: division by zero")
		}
		return hostiface.Int(l.Int / r.Int), nil
	default:
		return hostiface.Value{}, fmt.Errorf("rete: unknown binary operator %v", n.Op)
	}
}

func evalUn(n Un, env EvalEnv) (hostiface.Value, error) {
	if n.Op != OpNot {
		return hostiface.Value{}, fmt.Errorf("rete: unknown unary operator %v", n.Op)
	}
	v, err := EvalBool(n.X, env)
	if err != nil {
		return hostiface.Value{}, err
	}
	return hostiface.Bool(!v), nil
}

// EvalBool evaluates e and requires a boolean result, as needed when e is
// used as an alpha constraint or beta join predicate.
func EvalBool(e Expr, env EvalEnv) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	if v.Kind != hostiface.KindBool {
		return false, fmt.Errorf("rete: expected boolean result, got %v", v.Kind)
	}
	return v.Bool, nil
}
