package binding

import (
	"testing"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/mockhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindRejectsDuplicateName(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Bind("p", Outer, 0, ""))
	err := table.Bind("p", Outer, 1, "")
	require.Error(t, err)
}

func TestEnvResolvesOuterAndInnerBindings(t *testing.T) {
	store := mockhost.New()
	ft := facts.NewTable()

	ref := store.NewRecord("Person", map[string]hostiface.Value{"age": hostiface.Int(70)})
	h, err := ft.Insert("Person", ref)
	require.NoError(t, err)

	table := NewTable()
	require.NoError(t, table.Bind("p", Outer, 0, ""))
	require.NoError(t, table.Bind("a", Inner, 0, "age"))

	env := Env{Table: table, Tuple: []facts.Handle{h}, Facts: ft, Storage: store}

	gotHandle, err := env.Handle("p")
	require.NoError(t, err)
	assert.Equal(t, h, gotHandle)

	gotAge, err := env.Field("a")
	require.NoError(t, err)
	assert.Equal(t, hostiface.Int(70), gotAge)

	gotAgeViaOuter, err := env.FieldOnName("p", "age")
	require.NoError(t, err)
	assert.Equal(t, hostiface.Int(70), gotAgeViaOuter)
}

func TestEnvSetFieldMutatesThroughStorage(t *testing.T) {
	store := mockhost.New()
	ft := facts.NewTable()
	ref := store.NewRecord("Budget", map[string]hostiface.Value{"amount": hostiface.Int(100)})
	h, err := ft.Insert("Budget", ref)
	require.NoError(t, err)

	table := NewTable()
	require.NoError(t, table.Bind("b", Outer, 0, ""))
	env := Env{Table: table, Tuple: []facts.Handle{h}, Facts: ft, Storage: store}

	require.NoError(t, env.SetFieldOnName("b", "amount", hostiface.Int(90)))

	got, err := env.FieldOnName("b", "amount")
	require.NoError(t, err)
	assert.Equal(t, hostiface.Int(90), got)
}
