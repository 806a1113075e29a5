// Package mockhost is a minimal in-memory implementation of
// hostiface.Storage and hostiface.Effects, used to unit-test the engine
// against a host stand-in: host services are reached only through an
// injected interface, so the engine can be unit-tested against a mock
// host instead of a real contract storage backend.
package mockhost

import (
	"fmt"
	"sync"

	"github.com/Alon769/lity/internal/hostiface"
)

// Host is an in-memory storage backend plus an effects surface whose
// Abort fails by default, suitable for unit and integration tests.
type Host struct {
	mu      sync.Mutex
	records map[hostiface.Ref]*record
	nextRef hostiface.Ref

	AbortOn map[string]error // reason -> error to return from Abort
}

// New constructs an empty mock host. Ref 0 is never allocated so it can
// double as a "no reference" sentinel in tests.
func New() *Host {
	return &Host{
		records: make(map[hostiface.Ref]*record),
		nextRef: 1,
		AbortOn: make(map[string]error),
	}
}

type record struct {
	mu       sync.Mutex
	typeName string
	fields   map[string]hostiface.Value
}

func (r *record) TypeName() string { return r.typeName }

func (r *record) Get(field string) (hostiface.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[field]
	return v, ok
}

func (r *record) Set(field string, v hostiface.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[field] = v
	return nil
}

// NewRecord allocates a fresh storage slot for a fact of the given type
// and initial field values, returning the reference the host would hand
// to factInsert. Mutations through the returned reference's Record are
// visible to every later Load of the same ref (no caching, no
// bookkeeping).
func (h *Host) NewRecord(typeName string, fields map[string]hostiface.Value) hostiface.Ref {
	h.mu.Lock()
	defer h.mu.Unlock()
	ref := h.nextRef
	h.nextRef++
	cp := make(map[string]hostiface.Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	h.records[ref] = &record{typeName: typeName, fields: cp}
	return ref
}

// New implements hostiface.Allocator in terms of NewRecord.
func (h *Host) New(typeName string, fields map[string]hostiface.Value) (hostiface.Ref, error) {
	return h.NewRecord(typeName, fields), nil
}

// Load implements hostiface.Storage.
func (h *Host) Load(ref hostiface.Ref) (hostiface.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.records[ref]
	if !ok {
		return nil, fmt.Errorf("mockhost: no record at ref %v", ref)
	}
	return r, nil
}

// Abort implements hostiface.Effects. By default it returns an error
// naming the reason, so the firing session aborts; tests can pre-seed
// AbortOn to choose the error (or nil) returned for a specific reason.
func (h *Host) Abort(reason string) error {
	if err, ok := h.AbortOn[reason]; ok {
		return err
	}
	return fmt.Errorf("mockhost: aborted: %s", reason)
}
