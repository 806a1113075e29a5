// Package driver implements fireAllRules: the firing loop that
// repeatedly refreshes the Rete graph, picks the first candidate match
// by textual rule order and buffer order, executes its RHS, and
// repeats until no rule has a non-empty terminal buffer.
//
// Grounded on a fixpoint-until-quiescent evaluation loop shape, adapted
// here from stratified bottom-up evaluation to a per-iteration full
// recompute with first-rule/first-tuple conflict resolution, which a
// plain Datalog fixpoint cannot reproduce (no notion of textual rule
// order or a single chosen tuple per step).
package driver

import (
	"context"
	"errors"
	"fmt"

	"time"

	"github.com/Alon769/lity/internal/binding"
	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/lhscompile"
	"github.com/Alon769/lity/internal/logging"
	"github.com/Alon769/lity/internal/rete"
	"github.com/Alon769/lity/internal/trace"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrIterationLimit is returned when a Driver configured with a positive
// MaxIterations hits that bound without quiescing. The engine itself
// imposes no termination guarantee; this is a host-level safety valve,
// analogous to a gas limit, layered on top.
var ErrIterationLimit = errors.New("driver: iteration limit exceeded")

// Rule is one compiled rule ready to participate in conflict resolution:
// its terminal node, its binding table, and its compiled RHS, in the
// textual order the driver must respect.
type Rule struct {
	Name     string
	Terminal rete.NodeID
	Bindings *binding.Table
	Action   lhscompile.Action
}

// FromCompileResult adapts an lhscompile.CompileResult into a driver Rule.
func FromCompileResult(r *lhscompile.CompileResult) Rule {
	return Rule{Name: r.Rule, Terminal: r.Terminal, Bindings: r.Bindings, Action: r.Action}
}

// Driver holds one contract instance's compiled rule set, graph, and
// fact table, and runs fireAllRules against the host's storage and
// effects surfaces.
type Driver struct {
	Graph   *rete.Graph
	Facts   *facts.Table
	Storage hostiface.Storage
	Alloc   hostiface.Allocator
	Effects hostiface.Effects
	Rules   []Rule // must be in the contract's textual order

	// MaxIterations bounds the firing loop; 0 means unbounded, matching
	// the engine's own lack of a termination guarantee.
	MaxIterations int

	Log   *zap.Logger
	Audit *logging.AuditLogger // optional firing-session audit trail

	// Recorder optionally receives every iteration's (rule, tuple) pair,
	// tagged with a fresh UUID per Fire call so multiple firing sessions
	// against the same recorder can be told apart.
	Recorder *trace.Recorder
}

// Iteration records one pass of the firing loop, for tracing and testing.
type Iteration struct {
	RuleName string
	Tuple    []facts.Handle
}

// Fire runs fireAllRules to quiescence (or until MaxIterations):
// refresh, pick the first rule with a non-empty terminal buffer, fire
// its first tuple, repeat.
func (d *Driver) Fire(ctx context.Context) ([]Iteration, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	sessionID := uuid.NewString()

	var fired []Iteration
	for i := 0; d.MaxIterations <= 0 || i < d.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if err := d.Graph.Refresh(d.Facts, d.Storage); err != nil {
			return fired, fmt.Errorf("driver: refresh: %w", err)
		}

		rule, tuple, ok := d.selectMatch()
		if !ok {
			log.Debug("fireAllRules quiesced", zap.Int("iterations", i))
			return fired, nil
		}

		log.Debug("firing rule",
			zap.String("rule", rule.Name),
			zap.Int("iteration", i),
			zap.Any("tuple", tuple),
		)
		logging.Get(logging.CategoryDriver).Debug("firing rule=%s iteration=%d tuple=%v", rule.Name, i, tuple)

		start := time.Now()
		env := binding.Env{Table: rule.Bindings, Tuple: tuple, Facts: d.Facts, Storage: d.Storage}
		actx := &lhscompile.ActionContext{Env: env, Alloc: d.Alloc, Effects: d.Effects}
		if err := rule.Action(actx); err != nil {
			return fired, fmt.Errorf("driver: rule %q aborted: %w", rule.Name, err)
		}
		d.Audit.RuleFired(rule.Name, len(tuple), time.Since(start))
		d.Recorder.Record(trace.Event{
			SessionID: sessionID,
			Sequence:  i,
			RuleName:  rule.Name,
			Tuple:     tuple,
			Timestamp: start,
		})

		fired = append(fired, Iteration{RuleName: rule.Name, Tuple: tuple})
	}
	d.Audit.IterationLimitReached(d.MaxIterations)
	return fired, ErrIterationLimit
}

// selectMatch picks the first rule (in textual order) whose terminal
// node has a non-empty buffer, and that buffer's first tuple.
func (d *Driver) selectMatch() (Rule, []facts.Handle, bool) {
	for _, r := range d.Rules {
		tuples := d.Graph.Node(r.Terminal).TupleBuffer()
		if len(tuples) == 0 {
			continue
		}
		return r, tuples[0], true
	}
	return Rule{}, nil, false
}
