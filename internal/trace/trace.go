// Package trace records firing-session history: which rule fired, on
// which tuple of fact handles, and when. It is consumed by the Rete
// inspector TUI (internal/trace/tui).
//
// A flat-event-list-plus-bounded-cache shape, the same kind of
// structure a derivation tracer uses for its own provenance, repurposed
// here from derivation provenance (why a fact holds) to rule-firing
// provenance (why a rule fired, and on what).
package trace

import (
	"sync"
	"time"

	"github.com/Alon769/lity/internal/facts"
)

// Event is one fireAllRules iteration: the rule selected by conflict
// resolution and the tuple of handles it fired on.
type Event struct {
	SessionID string
	Sequence  int // 0-based position within the firing session
	RuleName  string
	Tuple     []facts.Handle
	Timestamp time.Time
}

// NodeSnapshot captures one Rete node's buffer at the moment of a
// refresh, for the inspector TUI to render.
type NodeSnapshot struct {
	Label   string // e.g. "alpha(Person)" or "terminal(GrantPension)"
	Tuples  [][]facts.Handle
	Refresh int // which refresh pass produced this snapshot
}

// Recorder accumulates firing Events and node snapshots across one or
// more sessions, bounded by MaxEvents so a non-terminating rule set
// (firing has no general termination guarantee) can't grow the recorder
// without bound; older events are evicted first.
type Recorder struct {
	mu        sync.Mutex
	maxEvents int
	events    []Event
	snapshots map[string][]NodeSnapshot // keyed by session id
}

// NewRecorder constructs a Recorder retaining at most maxEvents events.
// maxEvents <= 0 means unbounded (suitable for short-lived test runs
// only; a host embedding the CLI should always pass a positive bound).
func NewRecorder(maxEvents int) *Recorder {
	return &Recorder{maxEvents: maxEvents, snapshots: make(map[string][]NodeSnapshot)}
}

// Record appends one firing event.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.maxEvents > 0 && len(r.events) > r.maxEvents {
		drop := len(r.events) - r.maxEvents
		r.events = append([]Event(nil), r.events[drop:]...)
	}
}

// Snapshot records one node's buffer contents under sessionID, for the
// inspector TUI's live view.
func (r *Recorder) Snapshot(sessionID string, snap NodeSnapshot) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[sessionID] = append(r.snapshots[sessionID], snap)
}

// Events returns a copy of every recorded event, oldest first.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Session returns only the events recorded under sessionID, in firing
// order.
func (r *Recorder) Session(sessionID string) []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// Snapshots returns the node snapshots recorded under sessionID.
func (r *Recorder) Snapshots(sessionID string) []NodeSnapshot {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NodeSnapshot, len(r.snapshots[sessionID]))
	copy(out, r.snapshots[sessionID])
	return out
}

// RuleFiringCounts tallies how many times each rule fired across every
// recorded event, handy for asserting the Exhaustion property in tests:
// a rule with no self-re-triggering RHS should fire at most once per
// distinct tuple.
func (r *Recorder) RuleFiringCounts() map[string]int {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.events {
		counts[e.RuleName]++
	}
	return counts
}
