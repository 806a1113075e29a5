// Package binding implements the compile-time binding table and the
// runtime binding environment: pattern-bound identifiers resolve to
// tuple positions once, at compile time; RHS codegen and the firing
// driver then read a chosen tuple through that table without further
// name lookups.
//
// Bindings as positions, not maps: grounded on the same positional
// parent/child-index bookkeeping a derivation tree uses for its own
// provenance, repurposed here from proof-tree provenance to
// pattern-position provenance.
package binding

import "fmt"

// Kind distinguishes what a name is bound to.
type Kind int

const (
	// Outer names the fact handle matched by a whole pattern (e.g. the
	// "p" in "p: Person(...)").
	Outer Kind = iota
	// Inner names the value of one field of the fact matched by a
	// pattern (e.g. the "i1" in "E(i1: index)").
	Inner
)

// Entry is one binding table row: where a name came from and, for Inner
// bindings, which field it captured.
type Entry struct {
	Name  string
	Kind  Kind
	Pos   int    // pattern index that introduced this name
	Field string // meaningful only when Kind == Inner
}

// Table maps pattern-bound identifiers to tuple positions. It is built
// once by the LHS compiler and is immutable thereafter; the RHS compiler
// and the firing driver both read it to resolve names against a chosen
// tuple.
type Table struct {
	byName map[string]Entry
	order  []string
}

// NewTable constructs an empty binding table.
func NewTable() *Table {
	return &Table{byName: make(map[string]Entry)}
}

// Bind registers name, rejecting a duplicate binding of the same name
// within one rule's LHS (the host's type checker would normally catch
// shadowing; the engine itself only guards against exact redefinition).
func (t *Table) Bind(name string, kind Kind, pos int, field string) error {
	if _, exists := t.byName[name]; exists {
		return fmt.Errorf("binding: %q already bound", name)
	}
	t.byName[name] = Entry{Name: name, Kind: kind, Pos: pos, Field: field}
	t.order = append(t.order, name)
	return nil
}

// Lookup resolves name to its binding table entry.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

// Names returns every bound identifier in binding order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len reports how many names are bound.
func (t *Table) Len() int { return len(t.order) }
