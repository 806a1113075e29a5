package rete

import (
	"testing"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/mockhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphaNodeFiltersByConstraint(t *testing.T) {
	store := mockhost.New()
	table := facts.NewTable()

	ref1 := store.NewRecord("Person", map[string]hostiface.Value{"age": hostiface.Int(70)})
	ref2 := store.NewRecord("Person", map[string]hostiface.Value{"age": hostiface.Int(10)})
	h1, err := table.Insert("Person", ref1)
	require.NoError(t, err)
	_, err = table.Insert("Person", ref2)
	require.NoError(t, err)

	g := NewGraph()
	// age >= 65
	alpha := g.AddAlpha("Person", Bin{Op: OpGe, L: FieldAt{Pos: 0, Field: "age"}, R: Lit{Val: hostiface.Int(65)}}, "age>=65")

	require.NoError(t, g.Refresh(table, store))
	assert.Equal(t, []facts.Handle{h1}, g.Node(alpha).AlphaBuffer())
}

func TestBetaNodeJoinsAcrossPatterns(t *testing.T) {
	store := mockhost.New()
	table := facts.NewTable()

	budgetRef := store.NewRecord("Budget", map[string]hostiface.Value{"amount": hostiface.Int(100)})
	personRef := store.NewRecord("Person", map[string]hostiface.Value{"age": hostiface.Int(70)})

	_, err := table.Insert("Budget", budgetRef)
	require.NoError(t, err)
	personHandle, err := table.Insert("Person", personRef)
	require.NoError(t, err)

	g := NewGraph()
	budgetAlpha := g.AddAlpha("Budget", Bin{Op: OpGt, L: FieldAt{Pos: 0, Field: "amount"}, R: Lit{Val: hostiface.Int(0)}}, "amount>0")
	personAlpha := g.AddAlpha("Person", Bin{Op: OpGe, L: FieldAt{Pos: 0, Field: "age"}, R: Lit{Val: hostiface.Int(65)}}, "age>=65")

	// join predicate: trivially true (no cross-fact constraint), positions
	// 0 = budget, 1 = person.
	beta, err := g.AddBeta(budgetAlpha, personAlpha, Lit{Val: hostiface.Bool(true)})
	require.NoError(t, err)
	terminal, err := g.AddTerminal("pay_pension", beta)
	require.NoError(t, err)

	require.NoError(t, g.Refresh(table, store))

	tuples := g.Node(terminal).TupleBuffer()
	require.Len(t, tuples, 1)
	assert.Equal(t, personHandle, tuples[0][1])
}

func TestRefreshReflectsDeletionBeforeNextMatch(t *testing.T) {
	store := mockhost.New()
	table := facts.NewTable()
	ref := store.NewRecord("Cat", map[string]hostiface.Value{"energy": hostiface.Int(5)})
	h, err := table.Insert("Cat", ref)
	require.NoError(t, err)

	g := NewGraph()
	alpha := g.AddAlpha("Cat", Bin{Op: OpGt, L: FieldAt{Pos: 0, Field: "energy"}, R: Lit{Val: hostiface.Int(0)}}, "energy>0")

	require.NoError(t, g.Refresh(table, store))
	assert.Len(t, g.Node(alpha).AlphaBuffer(), 1)

	require.NoError(t, table.Delete(h, true))
	require.NoError(t, g.Refresh(table, store))
	assert.Empty(t, g.Node(alpha).AlphaBuffer())
}

func TestAlphaNodeSharingAcrossRules(t *testing.T) {
	g := NewGraph()
	constraint := Bin{Op: OpGe, L: FieldAt{Pos: 0, Field: "age"}, R: Lit{Val: hostiface.Int(65)}}
	first := g.AddAlpha("Person", constraint, "age>=65")
	second := g.AddAlpha("Person", constraint, "age>=65")
	assert.Equal(t, first, second)
}
