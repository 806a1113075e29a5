package lhscompile

import (
	"testing"

	"github.com/Alon769/lity/internal/binding"
	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/mockhost"
	"github.com/Alon769/lity/internal/rete"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pensionRule is the pension scenario: a Budget fact joined against
// eligible Person facts, debiting the budget by 10 per match.
func pensionRule() Rule {
	return Rule{
		Name: "GrantPension",
		Patterns: []Pattern{
			{
				Outer: "b",
				Type:  "Budget",
			},
			{
				Outer: "p",
				Type:  "Person",
				Fields: []FieldExpr{
					{Constraint: Bin{Op: OpGe, L: Ident{Name: "age"}, R: Lit{Val: hostiface.Int(65)}}},
					{Constraint: Bin{Op: OpGe, L: FieldOf{Base: "b", Field: "amount"}, R: Lit{Val: hostiface.Int(10)}}},
				},
			},
		},
		RHS: []Stmt{
			SetFieldStmt{
				Name:  "b",
				Field: "amount",
				Value: Bin{Op: OpSub, L: FieldOf{Base: "b", Field: "amount"}, R: Lit{Val: hostiface.Int(10)}},
			},
			UpdateStmt{Name: "b"},
		},
	}
}

func TestCompilePensionRuleMatchesAndFires(t *testing.T) {
	g := rete.NewGraph()
	result, errs := Compile(pensionRule(), g)
	require.Empty(t, errs)
	require.NotNil(t, result)

	store := mockhost.New()
	ft := facts.NewTable()

	budgetRef := store.NewRecord("Budget", map[string]hostiface.Value{"amount": hostiface.Int(100)})
	budgetH, err := ft.Insert("Budget", budgetRef)
	require.NoError(t, err)

	personRef := store.NewRecord("Person", map[string]hostiface.Value{"age": hostiface.Int(70)})
	personH, err := ft.Insert("Person", personRef)
	require.NoError(t, err)

	require.NoError(t, g.Refresh(ft, store))

	terminal := g.Node(result.Terminal)
	tuples := terminal.TupleBuffer()
	require.Len(t, tuples, 1)
	assert.Equal(t, []facts.Handle{budgetH, personH}, tuples[0])

	env := binding.Env{Table: result.Bindings, Tuple: tuples[0], Facts: ft, Storage: store}
	ctx := &ActionContext{Env: env, Alloc: store, Effects: store}
	require.NoError(t, result.Action(ctx))

	got, err := env.FieldOnName("b", "amount")
	require.NoError(t, err)
	assert.Equal(t, hostiface.Int(90), got)
}

func TestCompileRejectsForwardReferenceToInnerBinding(t *testing.T) {
	rule := Rule{
		Name: "BadOrder",
		Patterns: []Pattern{
			{
				Type: "E",
				Fields: []FieldExpr{
					{Constraint: Bin{Op: OpEq, L: Ident{Name: "i1"}, R: Lit{Val: hostiface.Int(0)}}},
					{Bind: &FieldBind{Name: "i1", Field: "index"}},
				},
			},
		},
	}

	g := rete.NewGraph()
	_, errs := Compile(rule, g)
	require.NotEmpty(t, errs)
}

func TestCompileRejectsMutationWithoutUpdate(t *testing.T) {
	rule := Rule{
		Name: "Sloppy",
		Patterns: []Pattern{
			{Outer: "b", Type: "Budget"},
		},
		RHS: []Stmt{
			SetFieldStmt{Name: "b", Field: "amount", Value: Lit{Val: hostiface.Int(0)}},
		},
	}

	g := rete.NewGraph()
	_, errs := Compile(rule, g)
	require.NotEmpty(t, errs)
}

func TestCompileFactInsertBindsLocalAndFactDeleteRemoves(t *testing.T) {
	rule := Rule{
		Name: "SpawnAndRetire",
		Patterns: []Pattern{
			{Outer: "p", Type: "Person"},
		},
		RHS: []Stmt{
			FactInsertStmt{
				Result:   "child",
				TypeName: "Person",
				Fields: map[string]SurfaceExpr{
					"age": Lit{Val: hostiface.Int(0)},
				},
			},
			FactDeleteStmt{Name: "p"},
		},
	}

	g := rete.NewGraph()
	result, errs := Compile(rule, g)
	require.Empty(t, errs)

	store := mockhost.New()
	ft := facts.NewTable()
	ref := store.NewRecord("Person", map[string]hostiface.Value{"age": hostiface.Int(80)})
	h, err := ft.Insert("Person", ref)
	require.NoError(t, err)

	require.NoError(t, g.Refresh(ft, store))
	terminal := g.Node(result.Terminal)
	require.Len(t, terminal.TupleBuffer(), 1)

	env := binding.Env{Table: result.Bindings, Tuple: terminal.TupleBuffer()[0], Facts: ft, Storage: store}
	ctx := &ActionContext{Env: env, Alloc: store, Effects: store}
	require.NoError(t, result.Action(ctx))

	assert.False(t, ft.Exists(h))
	assert.Equal(t, 1, len(ft.Iter("Person")))
}
