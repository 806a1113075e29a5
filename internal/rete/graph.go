// Package rete implements the compile-time-built matching network:
// alpha nodes filtering single facts, beta nodes joining an
// accumulated tuple stream against an alpha node, and terminal nodes, one
// per rule, whose buffer is that rule's current candidate-match set.
//
// Nodes are held in an arena addressed by dense index rather than linked by
// pointer: this dissolves the ownership cycle between a beta node and its
// left parent, and keeps the topological walk a simple loop over a slice.
// Node-kind dispatch is a tagged variant rather than an interface
// hierarchy, centralizing evaluation behind one Refresh-shaped operation
// instead of per-type visitor methods.
package rete

import (
	"fmt"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
)

// NodeID addresses a node within a Graph's arena.
type NodeID int

// NodeKind tags the variant a Node holds.
type NodeKind int

const (
	KindAlpha NodeKind = iota
	KindBeta
	KindTerminal
)

// Node is the tagged union of alpha, beta, and terminal nodes. Exactly one
// of the kind-specific fields is meaningful, selected by Kind.
type Node struct {
	Kind NodeKind

	// Alpha fields.
	FactType   string
	Constraint Expr

	// Beta fields.
	Left       NodeID
	RightAlpha NodeID
	Join       Expr

	// Terminal fields.
	RuleName string
	Source   NodeID // the node whose buffer this terminal mirrors

	alphaBuf []facts.Handle   // KindAlpha buffer: handles satisfying Constraint
	betaBuf  [][]facts.Handle // KindBeta/KindTerminal buffer: ordered tuples
}

// AlphaBuffer returns the current set of handles an alpha node holds, in
// fact-table insertion order.
func (n *Node) AlphaBuffer() []facts.Handle { return n.alphaBuf }

// TupleBuffer returns the current ordered set of tuples a beta or terminal
// node holds.
func (n *Node) TupleBuffer() [][]facts.Handle { return n.betaBuf }

// Graph is an arena of nodes built once at compile time and refreshed in
// full every driver iteration. Nodes are appended in an order that is
// already topological: every node's dependencies (Left, RightAlpha) were
// constructed, and therefore hold a smaller NodeID, before the node
// itself.
type Graph struct {
	nodes []*Node
	// sharedAlpha deduplicates alpha nodes with identical (FactType,
	// structurally-equal constraint key) across rules sharing the same
	// filter — a permitted optimisation.
	sharedAlpha map[alphaKey]NodeID
}

type alphaKey struct {
	factType string
	key      string
}

// NewGraph constructs an empty arena.
func NewGraph() *Graph {
	return &Graph{sharedAlpha: make(map[alphaKey]NodeID)}
}

// AddAlpha appends (or, if an identical one already exists, reuses) an
// alpha node and returns its id. constraintKey must be a value that
// structurally identifies Constraint (e.g. a canonical string rendering)
// so that sharing is sound; callers that cannot cheaply produce one may
// pass a unique string per call to opt out of sharing.
func (g *Graph) AddAlpha(factType string, constraint Expr, constraintKey string) NodeID {
	k := alphaKey{factType: factType, key: constraintKey}
	if id, ok := g.sharedAlpha[k]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{
		Kind:       KindAlpha,
		FactType:   factType,
		Constraint: constraint,
	})
	g.sharedAlpha[k] = id
	return id
}

// AddBeta appends a beta node joining left (an alpha or beta node's
// buffer) with rightAlpha (must be KindAlpha) under join predicate join.
func (g *Graph) AddBeta(left, rightAlpha NodeID, join Expr) (NodeID, error) {
	if err := g.checkID(left); err != nil {
		return 0, err
	}
	if err := g.checkID(rightAlpha); err != nil {
		return 0, err
	}
	if g.nodes[rightAlpha].Kind != KindAlpha {
		return 0, fmt.Errorf("rete: beta node's right parent must be an alpha node")
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{
		Kind:       KindBeta,
		Left:       left,
		RightAlpha: rightAlpha,
		Join:       join,
	})
	return id, nil
}

// AddTerminal appends the terminal node for rule ruleName, mirroring
// source's buffer.
func (g *Graph) AddTerminal(ruleName string, source NodeID) (NodeID, error) {
	if err := g.checkID(source); err != nil {
		return 0, err
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{
		Kind:     KindTerminal,
		RuleName: ruleName,
		Source:   source,
	})
	return id, nil
}

func (g *Graph) checkID(id NodeID) error {
	if id < 0 || int(id) >= len(g.nodes) {
		return fmt.Errorf("rete: node id %d out of range", id)
	}
	return nil
}

// Node returns the node at id.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Refresh recomputes every node's buffer in arena (topological) order:
// alpha nodes by re-scanning the fact table, beta nodes by re-joining
// their parents' freshly-rebuilt buffers, terminal nodes by mirroring
// their source. This is a full recomputation every call, which keeps
// behaviour deterministic under mutation without any incremental-
// evaluation bookkeeping.
func (g *Graph) Refresh(table *facts.Table, storage hostiface.Storage) error {
	for _, n := range g.nodes {
		switch n.Kind {
		case KindAlpha:
			if err := refreshAlpha(n, table, storage); err != nil {
				return fmt.Errorf("rete: alpha(%s): %w", n.FactType, err)
			}
		case KindBeta:
			if err := g.refreshBeta(n, table, storage); err != nil {
				return fmt.Errorf("rete: beta: %w", err)
			}
		case KindTerminal:
			src := g.nodes[n.Source]
			n.betaBuf = src.tupleView()
		default:
			return fmt.Errorf("rete: unknown node kind %v", n.Kind)
		}
	}
	return nil
}

// tupleView returns this node's current buffer expressed as tuples,
// treating an alpha node's handle set as a set of singleton tuples.
func (n *Node) tupleView() [][]facts.Handle {
	if n.Kind == KindAlpha {
		out := make([][]facts.Handle, len(n.alphaBuf))
		for i, h := range n.alphaBuf {
			out[i] = []facts.Handle{h}
		}
		return out
	}
	return n.betaBuf
}

func refreshAlpha(n *Node, table *facts.Table, storage hostiface.Storage) error {
	candidates := table.Iter(n.FactType)
	buf := make([]facts.Handle, 0, len(candidates))
	for _, c := range candidates {
		ok, err := EvalBool(n.Constraint, EvalEnv{
			Table:   table,
			Storage: storage,
			Tuple:   []facts.Handle{c.Handle},
		})
		if err != nil {
			return fmt.Errorf("constraint on handle %d: %w", c.Handle, err)
		}
		if ok {
			buf = append(buf, c.Handle)
		}
	}
	n.alphaBuf = buf
	return nil
}

func (g *Graph) refreshBeta(n *Node, table *facts.Table, storage hostiface.Storage) error {
	left := g.nodes[n.Left].tupleView()
	right := g.nodes[n.RightAlpha]

	buf := make([][]facts.Handle, 0, len(left))
	for _, t := range left {
		for _, h := range right.alphaBuf {
			candidate := appendTuple(t, h)
			ok, err := EvalBool(n.Join, EvalEnv{
				Table:   table,
				Storage: storage,
				Tuple:   candidate,
			})
			if err != nil {
				return fmt.Errorf("join predicate: %w", err)
			}
			if ok {
				buf = append(buf, candidate)
			}
		}
	}
	n.betaBuf = buf
	return nil
}

func appendTuple(t []facts.Handle, h facts.Handle) []facts.Handle {
	out := make([]facts.Handle, len(t)+1)
	copy(out, t)
	out[len(t)] = h
	return out
}
