package driver

import (
	"context"
	"testing"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/lhscompile"
	"github.com/Alon769/lity/internal/mockhost"
	"github.com/Alon769/lity/internal/rete"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pensionRule() lhscompile.Rule {
	return lhscompile.Rule{
		Name: "GrantPension",
		Patterns: []lhscompile.Pattern{
			{Outer: "b", Type: "Budget"},
			{
				Outer: "p",
				Type:  "Person",
				Fields: []lhscompile.FieldExpr{
					{Constraint: lhscompile.Bin{Op: lhscompile.OpEq, L: lhscompile.Ident{Name: "eligible"}, R: lhscompile.Lit{Val: hostiface.Bool(true)}}},
					{Constraint: lhscompile.Bin{Op: lhscompile.OpGe, L: lhscompile.Ident{Name: "age"}, R: lhscompile.Lit{Val: hostiface.Int(65)}}},
					{Constraint: lhscompile.Bin{Op: lhscompile.OpGe, L: lhscompile.FieldOf{Base: "b", Field: "amount"}, R: lhscompile.Lit{Val: hostiface.Int(10)}}},
				},
			},
		},
		RHS: []lhscompile.Stmt{
			lhscompile.SetFieldStmt{Name: "b", Field: "amount", Value: lhscompile.Bin{Op: lhscompile.OpSub, L: lhscompile.FieldOf{Base: "b", Field: "amount"}, R: lhscompile.Lit{Val: hostiface.Int(10)}}},
			lhscompile.UpdateStmt{Name: "b"},
			lhscompile.SetFieldStmt{Name: "p", Field: "eligible", Value: lhscompile.Lit{Val: hostiface.Bool(false)}},
			lhscompile.UpdateStmt{Name: "p"},
		},
	}
}

func buildDriver(t *testing.T, rules ...lhscompile.Rule) (*Driver, *mockhost.Host, *facts.Table) {
	t.Helper()
	g := rete.NewGraph()
	store := mockhost.New()
	ft := facts.NewTable()

	var driverRules []Rule
	for _, r := range rules {
		cr, errs := lhscompile.Compile(r, g)
		require.Empty(t, errs)
		driverRules = append(driverRules, FromCompileResult(cr))
	}

	return &Driver{
		Graph:         g,
		Facts:         ft,
		Storage:       store,
		Alloc:         store,
		Effects:       store,
		Rules:         driverRules,
		MaxIterations: 100,
	}, store, ft
}

func insertPerson(t *testing.T, store *mockhost.Host, ft *facts.Table, age int64, eligible bool) facts.Handle {
	t.Helper()
	ref := store.NewRecord("Person", map[string]hostiface.Value{
		"age":      hostiface.Int(age),
		"eligible": hostiface.Bool(eligible),
	})
	h, err := ft.Insert("Person", ref)
	require.NoError(t, err)
	return h
}

func TestFireAllRulesPensionSinglePerson(t *testing.T) {
	d, store, ft := buildDriver(t, pensionRule())

	budgetRef := store.NewRecord("Budget", map[string]hostiface.Value{"amount": hostiface.Int(100)})
	_, err := ft.Insert("Budget", budgetRef)
	require.NoError(t, err)
	personH := insertPerson(t, store, ft, 70, true)

	iterations, err := d.Fire(context.Background())
	require.NoError(t, err)
	require.Len(t, iterations, 1)

	budget, err := store.Load(mustRef(t, ft, mustBudgetHandle(t, ft)))
	require.NoError(t, err)
	amount, ok := budget.Get("amount")
	require.True(t, ok)
	assert.Equal(t, hostiface.Int(90), amount)

	personRef, _ := ft.Ref(personH)
	personRec, err := store.Load(personRef)
	require.NoError(t, err)
	eligible, _ := personRec.Get("eligible")
	assert.Equal(t, hostiface.Bool(false), eligible)
}

func TestFireAllRulesPensionBudgetExhaustion(t *testing.T) {
	d, store, ft := buildDriver(t, pensionRule())

	budgetRef := store.NewRecord("Budget", map[string]hostiface.Value{"amount": hostiface.Int(10)})
	_, err := ft.Insert("Budget", budgetRef)
	require.NoError(t, err)

	var people []facts.Handle
	for i := 0; i < 5; i++ {
		people = append(people, insertPerson(t, store, ft, 65, true))
	}

	iterations, err := d.Fire(context.Background())
	require.NoError(t, err)
	require.Len(t, iterations, 1)

	budget, err := store.Load(mustRef(t, ft, mustBudgetHandle(t, ft)))
	require.NoError(t, err)
	amount, _ := budget.Get("amount")
	assert.Equal(t, hostiface.Int(0), amount)

	firstRef, _ := ft.Ref(people[0])
	firstRec, _ := store.Load(firstRef)
	firstEligible, _ := firstRec.Get("eligible")
	assert.Equal(t, hostiface.Bool(false), firstEligible, "first-inserted person is the one paid")

	for _, h := range people[1:] {
		ref, _ := ft.Ref(h)
		rec, _ := store.Load(ref)
		eligible, _ := rec.Get("eligible")
		assert.Equal(t, hostiface.Bool(true), eligible, "remaining persons stay eligible once the budget is exhausted")
	}
}

func mustBudgetHandle(t *testing.T, ft *facts.Table) facts.Handle {
	t.Helper()
	refs := ft.Iter("Budget")
	require.Len(t, refs, 1)
	return refs[0].Handle
}

func mustRef(t *testing.T, ft *facts.Table, h facts.Handle) hostiface.Ref {
	t.Helper()
	ref, ok := ft.Ref(h)
	require.True(t, ok)
	return ref
}

func fibonacciRule() lhscompile.Rule {
	return lhscompile.Rule{
		Name: "ComputeFib",
		Patterns: []lhscompile.Pattern{
			{
				Outer: "t",
				Type:  "E",
				Fields: []lhscompile.FieldExpr{
					{Constraint: lhscompile.Bin{Op: lhscompile.OpEq, L: lhscompile.Ident{Name: "value"}, R: lhscompile.Lit{Val: hostiface.Int(-1)}}},
				},
			},
			{
				Outer: "a",
				Type:  "E",
				Fields: []lhscompile.FieldExpr{
					{Constraint: lhscompile.Bin{
						Op: lhscompile.OpEq,
						L:  lhscompile.FieldOf{Base: "a", Field: "index"},
						R:  lhscompile.Bin{Op: lhscompile.OpSub, L: lhscompile.FieldOf{Base: "t", Field: "index"}, R: lhscompile.Lit{Val: hostiface.Int(1)}},
					}},
					{Constraint: lhscompile.Bin{Op: lhscompile.OpNe, L: lhscompile.Ident{Name: "value"}, R: lhscompile.Lit{Val: hostiface.Int(-1)}}},
				},
			},
			{
				Outer: "b",
				Type:  "E",
				Fields: []lhscompile.FieldExpr{
					{Constraint: lhscompile.Bin{
						Op: lhscompile.OpEq,
						L:  lhscompile.FieldOf{Base: "b", Field: "index"},
						R:  lhscompile.Bin{Op: lhscompile.OpSub, L: lhscompile.FieldOf{Base: "t", Field: "index"}, R: lhscompile.Lit{Val: hostiface.Int(2)}},
					}},
					{Constraint: lhscompile.Bin{Op: lhscompile.OpNe, L: lhscompile.Ident{Name: "value"}, R: lhscompile.Lit{Val: hostiface.Int(-1)}}},
				},
			},
		},
		RHS: []lhscompile.Stmt{
			lhscompile.SetFieldStmt{
				Name:  "t",
				Field: "value",
				Value: lhscompile.Bin{Op: lhscompile.OpAdd, L: lhscompile.FieldOf{Base: "a", Field: "value"}, R: lhscompile.FieldOf{Base: "b", Field: "value"}},
			},
			lhscompile.UpdateStmt{Name: "t"},
		},
	}
}

func TestFireAllRulesComputesFibonacciSequence(t *testing.T) {
	d, store, ft := buildDriver(t, fibonacciRule())

	handles := make([]facts.Handle, 10)
	values := []int64{0, 1, -1, -1, -1, -1, -1, -1, -1, -1}
	for i, v := range values {
		ref := store.NewRecord("E", map[string]hostiface.Value{
			"index": hostiface.Int(int64(i)),
			"value": hostiface.Int(v),
		})
		h, err := ft.Insert("E", ref)
		require.NoError(t, err)
		handles[i] = h
	}

	_, err := d.Fire(context.Background())
	require.NoError(t, err)

	want := []int64{0, 1, 1, 2, 3, 5, 8, 13, 21, 34}
	for i, h := range handles {
		ref, _ := ft.Ref(h)
		rec, err := store.Load(ref)
		require.NoError(t, err)
		v, _ := rec.Get("value")
		assert.Equal(t, hostiface.Int(want[i]), v, "E[%d].value", i)
	}
}

// MarkFirst and MarkSecond both match the same single fact, so
// which one fires is decided purely by textual order: whichever rule
// appears earlier in Rules always wins, regardless of what the other
// rule's RHS would have done.
func counterRules(firstWins bool) (first, second lhscompile.Rule) {
	markFirst := lhscompile.Rule{
		Name:     "MarkFirst",
		Patterns: []lhscompile.Pattern{{Outer: "c", Type: "Counter", Fields: []lhscompile.FieldExpr{{Constraint: lhscompile.Bin{Op: lhscompile.OpEq, L: lhscompile.Ident{Name: "winner"}, R: lhscompile.Lit{Val: hostiface.Str("")}}}}}},
		RHS: []lhscompile.Stmt{
			lhscompile.SetFieldStmt{Name: "c", Field: "winner", Value: lhscompile.Lit{Val: hostiface.Str("first")}},
			lhscompile.UpdateStmt{Name: "c"},
		},
	}
	markSecond := lhscompile.Rule{
		Name:     "MarkSecond",
		Patterns: []lhscompile.Pattern{{Outer: "c", Type: "Counter", Fields: []lhscompile.FieldExpr{{Constraint: lhscompile.Bin{Op: lhscompile.OpEq, L: lhscompile.Ident{Name: "winner"}, R: lhscompile.Lit{Val: hostiface.Str("")}}}}}},
		RHS: []lhscompile.Stmt{
			lhscompile.SetFieldStmt{Name: "c", Field: "winner", Value: lhscompile.Lit{Val: hostiface.Str("second")}},
			lhscompile.UpdateStmt{Name: "c"},
		},
	}
	if firstWins {
		return markFirst, markSecond
	}
	return markSecond, markFirst
}

func TestFireAllRulesPicksFirstRuleInTextualOrder(t *testing.T) {
	r1, r2 := counterRules(true)
	d, store, ft := buildDriver(t, r1, r2)
	ref := store.NewRecord("Counter", map[string]hostiface.Value{"winner": hostiface.Str("")})
	h, err := ft.Insert("Counter", ref)
	require.NoError(t, err)

	_, err = d.Fire(context.Background())
	require.NoError(t, err)

	ref2, _ := ft.Ref(h)
	rec, _ := store.Load(ref2)
	winner, _ := rec.Get("winner")
	assert.Equal(t, hostiface.Str("first"), winner)
}

func TestFireAllRulesSwappingRuleOrderChangesOutcome(t *testing.T) {
	r1, r2 := counterRules(false)
	d, store, ft := buildDriver(t, r1, r2)
	ref := store.NewRecord("Counter", map[string]hostiface.Value{"winner": hostiface.Str("")})
	h, err := ft.Insert("Counter", ref)
	require.NoError(t, err)

	_, err = d.Fire(context.Background())
	require.NoError(t, err)

	ref2, _ := ft.Ref(h)
	rec, _ := store.Load(ref2)
	winner, _ := rec.Get("winner")
	assert.Equal(t, hostiface.Str("second"), winner)
}

func TestFactInsertDuplicateRejected(t *testing.T) {
	store := mockhost.New()
	ft := facts.NewTable()

	ref := store.NewRecord("Widget", map[string]hostiface.Value{"n": hostiface.Int(1)})
	h1, err := ft.Insert("Widget", ref)
	require.NoError(t, err)

	_, err = ft.Insert("Widget", ref)
	require.ErrorIs(t, err, facts.ErrDuplicateFact)
	assert.True(t, ft.Exists(h1), "first handle remains valid after the rejected duplicate insert")
}
