package binding

import (
	"fmt"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
)

// Env is the runtime binding environment exposed to RHS execution: an
// array of fact handles indexed by pattern position, plus the binding
// table needed to resolve a surface identifier (e.g. "p", "i1") to a
// position and, for Inner bindings, a field.
type Env struct {
	Table   *Table
	Tuple   []facts.Handle
	Facts   *facts.Table
	Storage hostiface.Storage
}

// Handle resolves an Outer-bound identifier to the fact handle it names.
func (e Env) Handle(name string) (facts.Handle, error) {
	entry, ok := e.Table.Lookup(name)
	if !ok {
		return facts.NullHandle, fmt.Errorf("binding: %q is not bound in this rule", name)
	}
	if entry.Pos < 0 || entry.Pos >= len(e.Tuple) {
		return facts.NullHandle, fmt.Errorf("binding: %q resolves to out-of-range position %d", name, entry.Pos)
	}
	return e.Tuple[entry.Pos], nil
}

// Field resolves an Inner-bound identifier to its captured field value.
// An Outer binding returns an error; use FieldOnName for those.
func (e Env) Field(name string) (hostiface.Value, error) {
	entry, ok := e.Table.Lookup(name)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("binding: %q is not bound in this rule", name)
	}
	if entry.Pos < 0 || entry.Pos >= len(e.Tuple) {
		return hostiface.Value{}, fmt.Errorf("binding: %q resolves to out-of-range position %d", name, entry.Pos)
	}
	h := e.Tuple[entry.Pos]
	ref, ok := e.Facts.Ref(h)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("binding: %w: handle %d (bound to %q)", facts.ErrUnknownHandle, h, name)
	}
	rec, err := e.Storage.Load(ref)
	if err != nil {
		return hostiface.Value{}, fmt.Errorf("binding: load %q: %w", name, err)
	}
	field := entry.Field
	if entry.Kind == Outer {
		// An outer binding used as a field source (e.g. "p.age" compiled
		// down to Field("p") for field "age") is only reachable through
		// FieldOnName below; Field on a bare outer name without a field
		// is a caller error.
		return hostiface.Value{}, fmt.Errorf("binding: %q is an outer (whole-fact) binding; use FieldOnName", name)
	}
	v, ok := rec.Get(field)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("binding: fact bound to %q has no field %q", name, field)
	}
	return v, nil
}

// FieldOnName reads field off the fact bound (outer or inner-originating)
// to name, regardless of whether name itself is an Inner or Outer entry.
func (e Env) FieldOnName(name, field string) (hostiface.Value, error) {
	entry, ok := e.Table.Lookup(name)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("binding: %q is not bound in this rule", name)
	}
	h, err := e.Handle(entry.Name)
	if err != nil {
		return hostiface.Value{}, err
	}
	ref, ok := e.Facts.Ref(h)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("binding: %w: handle %d", facts.ErrUnknownHandle, h)
	}
	rec, err := e.Storage.Load(ref)
	if err != nil {
		return hostiface.Value{}, err
	}
	v, ok := rec.Get(field)
	if !ok {
		return hostiface.Value{}, fmt.Errorf("binding: fact bound to %q has no field %q", name, field)
	}
	return v, nil
}

// SetFieldOnName writes field on the fact bound to name. The RHS compiler
// is responsible for ensuring a subsequent Update call follows any such
// mutation.
func (e Env) SetFieldOnName(name, field string, v hostiface.Value) error {
	h, err := e.Handle(name)
	if err != nil {
		return err
	}
	ref, ok := e.Facts.Ref(h)
	if !ok {
		return fmt.Errorf("binding: %w: handle %d", facts.ErrUnknownHandle, h)
	}
	rec, err := e.Storage.Load(ref)
	if err != nil {
		return err
	}
	return rec.Set(field, v)
}
