package lhscompile

import (
	"fmt"

	"github.com/Alon769/lity/internal/binding"
	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
)

// Stmt is one RHS statement. Unlike LHS constraints, RHS expressions
// resolve names through a runtime environment rather than compiled
// tuple positions, since RHS code also sees names introduced by its
// own factInsert statements.
type Stmt interface {
	stmt()
}

// SetFieldStmt assigns a field on a bound fact: "name.field = value".
type SetFieldStmt struct {
	Name  string
	Field string
	Value SurfaceExpr
}

// UpdateStmt marks name as updated, discharging the compile-time
// obligation SetFieldStmt on name creates. It compiles to nothing at
// runtime — a no-op under the full-recompute model.
type UpdateStmt struct {
	Name string
}

// FactInsertStmt creates a new fact instance and binds its handle to
// Result for the remainder of this RHS.
type FactInsertStmt struct {
	Result   string
	TypeName string
	Fields   map[string]SurfaceExpr
}

// FactDeleteStmt removes the fact bound to Name from the fact table.
type FactDeleteStmt struct {
	Name string
}

// AbortStmt invokes the host's Effects.Abort, ending the firing session.
type AbortStmt struct {
	Reason string
}

func (SetFieldStmt) stmt()   {}
func (UpdateStmt) stmt()     {}
func (FactInsertStmt) stmt() {}
func (FactDeleteStmt) stmt() {}
func (AbortStmt) stmt()      {}

// Action is a compiled RHS, ready for the firing driver to invoke once
// per chosen candidate tuple.
type Action func(ctx *ActionContext) error

// ActionContext supplies a compiled Action everything it needs to run.
type ActionContext struct {
	Env     binding.Env
	Alloc   hostiface.Allocator
	Effects hostiface.Effects
}

// runtime is the mutable state threaded through one Action invocation:
// the chosen tuple's binding environment plus any locals introduced by
// factInsert statements executed so far.
type runtime struct {
	env    binding.Env
	locals map[string]facts.Handle
}

type valueFn func(rt *runtime) (hostiface.Value, error)
type compiledStmt func(ctx *ActionContext, rt *runtime) error

// compileRHS compiles rule.RHS against table, the binding table its LHS
// produced, enforcing that every field mutation on a bound or locally
// created fact is followed somewhere by a matching update statement.
func compileRHS(rule Rule, table *binding.Table) (Action, []error) {
	var errs []error
	locals := make(map[string]bool)
	mutated := make(map[string]bool)
	updated := make(map[string]bool)
	var compiled []compiledStmt

	isBound := func(name string) bool {
		_, ok := table.Lookup(name)
		return ok || locals[name]
	}

	for _, raw := range rule.RHS {
		switch s := raw.(type) {
		case SetFieldStmt:
			if !isBound(s.Name) {
				errs = append(errs, errf(rule.Name, -1, "assignment to unbound name %q", s.Name))
				continue
			}
			valFn, err := compileRHSValue(rule.Name, s.Value, table, locals)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			mutated[s.Name] = true
			delete(updated, s.Name) // only an update after this mutation counts
			name, field := s.Name, s.Field
			compiled = append(compiled, func(ctx *ActionContext, rt *runtime) error {
				v, err := valFn(rt)
				if err != nil {
					return err
				}
				return setNamedField(rt, name, field, v)
			})

		case UpdateStmt:
			if !isBound(s.Name) {
				errs = append(errs, errf(rule.Name, -1, "update on unbound name %q", s.Name))
				continue
			}
			updated[s.Name] = true
			// No runtime effect: update is a compile-time obligation only.

		case FactInsertStmt:
			if _, exists := table.Lookup(s.Result); exists {
				errs = append(errs, errf(rule.Name, -1, "factInsert result %q shadows a pattern binding", s.Result))
				continue
			}
			if locals[s.Result] {
				errs = append(errs, errf(rule.Name, -1, "factInsert result %q already bound by an earlier factInsert", s.Result))
				continue
			}
			fieldFns := make(map[string]valueFn, len(s.Fields))
			ok := true
			for fname, fexpr := range s.Fields {
				fn, err := compileRHSValue(rule.Name, fexpr, table, locals)
				if err != nil {
					errs = append(errs, err)
					ok = false
					continue
				}
				fieldFns[fname] = fn
			}
			locals[s.Result] = true
			if !ok {
				continue
			}
			result, typeName := s.Result, s.TypeName
			compiled = append(compiled, func(ctx *ActionContext, rt *runtime) error {
				vals := make(map[string]hostiface.Value, len(fieldFns))
				for fname, fn := range fieldFns {
					v, err := fn(rt)
					if err != nil {
						return err
					}
					vals[fname] = v
				}
				ref, err := ctx.Alloc.New(typeName, vals)
				if err != nil {
					return fmt.Errorf("lhscompile: factInsert %s: %w", typeName, err)
				}
				h, err := rt.env.Facts.Insert(typeName, ref)
				if err != nil {
					return fmt.Errorf("lhscompile: factInsert %s: %w", typeName, err)
				}
				rt.locals[result] = h
				return nil
			})

		case FactDeleteStmt:
			if !isBound(s.Name) {
				errs = append(errs, errf(rule.Name, -1, "factDelete on unbound name %q", s.Name))
				continue
			}
			name := s.Name
			compiled = append(compiled, func(ctx *ActionContext, rt *runtime) error {
				h, err := resolveHandle(rt, name)
				if err != nil {
					return err
				}
				return rt.env.Facts.Delete(h, false)
			})

		case AbortStmt:
			reason := s.Reason
			compiled = append(compiled, func(ctx *ActionContext, rt *runtime) error {
				return ctx.Effects.Abort(reason)
			})

		default:
			errs = append(errs, errf(rule.Name, -1, "unknown RHS statement %T", raw))
		}
	}

	for name := range mutated {
		if !updated[name] {
			errs = append(errs, errf(rule.Name, -1, "field of %q mutated without a following update statement", name))
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	action := Action(func(ctx *ActionContext) error {
		rt := &runtime{env: ctx.Env, locals: make(map[string]facts.Handle)}
		for _, cs := range compiled {
			if err := cs(ctx, rt); err != nil {
				return err
			}
		}
		return nil
	})
	return action, nil
}

func resolveHandle(rt *runtime, name string) (facts.Handle, error) {
	if _, ok := rt.env.Table.Lookup(name); ok {
		return rt.env.Handle(name)
	}
	if h, ok := rt.locals[name]; ok {
		return h, nil
	}
	return facts.NullHandle, fmt.Errorf("lhscompile: %q is not bound", name)
}

func setNamedField(rt *runtime, name, field string, v hostiface.Value) error {
	h, err := resolveHandle(rt, name)
	if err != nil {
		return err
	}
	ref, ok := rt.env.Facts.Ref(h)
	if !ok {
		return fmt.Errorf("lhscompile: %w: handle %d", facts.ErrUnknownHandle, h)
	}
	rec, err := rt.env.Storage.Load(ref)
	if err != nil {
		return err
	}
	return rec.Set(field, v)
}

// compileRHSValue compiles a surface expression used on the right-hand
// side of a statement into a closure over the runtime environment,
// resolving names against both the pattern binding table and any locals
// introduced by earlier factInsert statements.
func compileRHSValue(rule string, node SurfaceExpr, table *binding.Table, locals map[string]bool) (valueFn, error) {
	switch n := node.(type) {
	case Ident:
		if entry, ok := table.Lookup(n.Name); ok {
			if entry.Kind == binding.Inner {
				name := n.Name
				return func(rt *runtime) (hostiface.Value, error) { return rt.env.Field(name) }, nil
			}
			name := n.Name
			return func(rt *runtime) (hostiface.Value, error) {
				h, err := rt.env.Handle(name)
				if err != nil {
					return hostiface.Value{}, err
				}
				return hostiface.Int(int64(h)), nil
			}, nil
		}
		if locals[n.Name] {
			name := n.Name
			return func(rt *runtime) (hostiface.Value, error) {
				h, ok := rt.locals[name]
				if !ok {
					return hostiface.Value{}, fmt.Errorf("lhscompile: local %q not yet created", name)
				}
				return hostiface.Int(int64(h)), nil
			}, nil
		}
		return nil, errf(rule, -1, "unbound identifier %q in RHS", n.Name)

	case FieldOf:
		if entry, ok := table.Lookup(n.Base); ok {
			if entry.Kind != binding.Outer {
				return nil, errf(rule, -1, "%q is a value binding; it has no field %q", n.Base, n.Field)
			}
			base, field := n.Base, n.Field
			return func(rt *runtime) (hostiface.Value, error) { return rt.env.FieldOnName(base, field) }, nil
		}
		if locals[n.Base] {
			base, field := n.Base, n.Field
			return func(rt *runtime) (hostiface.Value, error) {
				h, ok := rt.locals[base]
				if !ok {
					return hostiface.Value{}, fmt.Errorf("lhscompile: local %q not yet created", base)
				}
				ref, ok := rt.env.Facts.Ref(h)
				if !ok {
					return hostiface.Value{}, fmt.Errorf("lhscompile: %w: handle %d", facts.ErrUnknownHandle, h)
				}
				rec, err := rt.env.Storage.Load(ref)
				if err != nil {
					return hostiface.Value{}, err
				}
				v, ok := rec.Get(field)
				if !ok {
					return hostiface.Value{}, fmt.Errorf("lhscompile: fact bound to %q has no field %q", base, field)
				}
				return v, nil
			}, nil
		}
		return nil, errf(rule, -1, "unbound identifier %q in RHS", n.Base)

	case Lit:
		val := n.Val
		return func(rt *runtime) (hostiface.Value, error) { return val, nil }, nil

	case Bin:
		l, err := compileRHSValue(rule, n.L, table, locals)
		if err != nil {
			return nil, err
		}
		r, err := compileRHSValue(rule, n.R, table, locals)
		if err != nil {
			return nil, err
		}
		op := n.Op
		return func(rt *runtime) (hostiface.Value, error) {
			lv, err := l(rt)
			if err != nil {
				return hostiface.Value{}, err
			}
			rv, err := r(rt)
			if err != nil {
				return hostiface.Value{}, err
			}
			return combineBin(op, lv, rv)
		}, nil

	case Un:
		x, err := compileRHSValue(rule, n.X, table, locals)
		if err != nil {
			return nil, err
		}
		op := n.Op
		return func(rt *runtime) (hostiface.Value, error) {
			xv, err := x(rt)
			if err != nil {
				return hostiface.Value{}, err
			}
			return combineUn(op, xv)
		}, nil

	default:
		return nil, errf(rule, -1, "unresolvable RHS expression node %T", node)
	}
}

func combineBin(op Op, l, r hostiface.Value) (hostiface.Value, error) {
	switch op {
	case OpAnd:
		return hostiface.Bool(l.Bool && r.Bool), nil
	case OpOr:
		return hostiface.Bool(l.Bool || r.Bool), nil
	case OpEq:
		return hostiface.Bool(l.Equal(r)), nil
	case OpNe:
		return hostiface.Bool(!l.Equal(r)), nil
	}
	if l.Kind != hostiface.KindInt || r.Kind != hostiface.KindInt {
		return hostiface.Value{}, fmt.Errorf("lhscompile: operator requires integer operands, got %v and %v", l.Kind, r.Kind)
	}
	switch op {
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
			return hostiface.Value{}, fmt.Errorf("lhscompile: division by zero")
		}
		return hostiface.Int(l.Int / r.Int), nil
	default:
		return hostiface.Value{}, fmt.Errorf("lhscompile: unknown binary operator %v", op)
	}
}

func combineUn(op Op, x hostiface.Value) (hostiface.Value, error) {
	if op != OpNot {
		return hostiface.Value{}, fmt.Errorf("lhscompile: unknown unary operator %v", op)
	}
	return hostiface.Bool(!x.Bool), nil
}
