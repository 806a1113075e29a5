// Package facts implements the engine's fact table: the mapping from a
// dense fact handle to a (type tag, storage reference) pair,
// partitioned by type and ordered by insertion.
//
// Type-tagged fact bookkeeping adapted from an atom-store style into
// dense-handle bookkeeping over opaque storage references.
package facts

import (
	"errors"
	"fmt"

	"github.com/Alon769/lity/internal/hostiface"
)

// Handle is a dense, injective fact identifier. 0 is the reserved "null
// handle"; real handles start at 1.
type Handle uint64

const NullHandle Handle = 0

// ErrDuplicateFact is returned by Insert when the storage reference is
// already registered under a live handle.
var ErrDuplicateFact = errors.New("facts: duplicate fact reference")

// ErrUnknownHandle is returned by Delete in strict mode for a handle that
// is not currently live. Lookup and Ref report such a handle with ok ==
// false; callers that need an error wrap this one.
var ErrUnknownHandle = errors.New("facts: unknown handle")

// entry is one live fact: its type tag and the storage reference the host
// uses to locate its field data.
type entry struct {
	typeTag string
	ref     hostiface.Ref
	seq     uint64 // insertion sequence number; defines iteration order
}

// Table is the per-contract working memory: a handle -> (type, ref)
// mapping, partitioned by type tag. It owns no field data itself; it is
// pure bookkeeping over opaque storage references.
//
// Table is not safe for concurrent use from multiple goroutines; a
// contract instance's fact table is owned exclusively by its firing
// session for the session's duration.
type Table struct {
	entries   map[Handle]*entry
	byType    map[string][]Handle // insertion order per type, may contain deleted handles (lazily compacted)
	byRef     map[hostiface.Ref]Handle
	nextSeq   uint64
	nextHandle Handle
}

// NewTable constructs an empty fact table.
func NewTable() *Table {
	return &Table{
		entries:    make(map[Handle]*entry),
		byType:     make(map[string][]Handle),
		byRef:      make(map[hostiface.Ref]Handle),
		nextHandle: 1,
	}
}

// Insert allocates a fresh handle for (typeTag, ref) and registers it.
// Fails with ErrDuplicateFact if ref is already registered under a live
// handle.
func (t *Table) Insert(typeTag string, ref hostiface.Ref) (Handle, error) {
	if _, exists := t.byRef[ref]; exists {
		return NullHandle, fmt.Errorf("%w: ref=%v", ErrDuplicateFact, ref)
	}

	h := t.nextHandle
	t.nextHandle++

	e := &entry{typeTag: typeTag, ref: ref, seq: t.nextSeq}
	t.nextSeq++

	t.entries[h] = e
	t.byRef[ref] = h
	t.byType[typeTag] = append(t.byType[typeTag], h)

	return h, nil
}

// Delete removes handle h. In permissive mode (strict=false, the default
// surfaced by the factDelete operator) deleting an unknown handle is a
// silent no-op; strict mode returns ErrUnknownHandle (a host decision).
func (t *Table) Delete(h Handle, strict bool) error {
	e, ok := t.entries[h]
	if !ok {
		if strict {
			return fmt.Errorf("%w: handle=%d", ErrUnknownHandle, h)
		}
		return nil
	}
	delete(t.entries, h)
	delete(t.byRef, e.ref)
	// byType slices are compacted lazily by Iter; leaving the stale handle
	// there is safe because Iter always re-checks entries for liveness.
	return nil
}

// Lookup returns the (typeTag, ref) pair for a live handle.
func (t *Table) Lookup(h Handle) (typeTag string, ref hostiface.Ref, ok bool) {
	e, ok := t.entries[h]
	if !ok {
		return "", 0, false
	}
	return e.typeTag, e.ref, true
}

// Ref is a convenience accessor returning just the storage reference.
func (t *Table) Ref(h Handle) (hostiface.Ref, bool) {
	e, ok := t.entries[h]
	if !ok {
		return 0, false
	}
	return e.ref, true
}

// Exists reports whether h currently names a live fact.
func (t *Table) Exists(h Handle) bool {
	_, ok := t.entries[h]
	return ok
}

// Iter enumerates the (handle, ref) pairs of type typeTag in insertion
// order. This order is observable: it is the alpha-node refresh order and
// ultimately the tie-breaker for conflict resolution.
func (t *Table) Iter(typeTag string) []HandleRef {
	handles := t.byType[typeTag]
	out := make([]HandleRef, 0, len(handles))
	kept := handles[:0]
	for _, h := range handles {
		e, ok := t.entries[h]
		if !ok {
			continue // deleted; drop from the compacted slice
		}
		kept = append(kept, h)
		out = append(out, HandleRef{Handle: h, Ref: e.ref})
	}
	t.byType[typeTag] = kept
	return out
}

// HandleRef pairs a live handle with its storage reference.
type HandleRef struct {
	Handle Handle
	Ref    hostiface.Ref
}
