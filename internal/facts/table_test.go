package facts

import (
	"testing"

	"github.com/Alon769/lity/internal/hostiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsDenseHandlesStartingAtOne(t *testing.T) {
	table := NewTable()

	h1, err := table.Insert("Person", hostiface.Ref(100))
	require.NoError(t, err)
	assert.Equal(t, Handle(1), h1)

	h2, err := table.Insert("Person", hostiface.Ref(101))
	require.NoError(t, err)
	assert.Equal(t, Handle(2), h2)

	assert.NotEqual(t, NullHandle, h1)
}

func TestInsertDuplicateRefRejected(t *testing.T) {
	table := NewTable()
	ref := hostiface.Ref(42)

	h1, err := table.Insert("Budget", ref)
	require.NoError(t, err)

	_, err = table.Insert("Budget", ref)
	require.ErrorIs(t, err, ErrDuplicateFact)

	// The first handle remains valid.
	assert.True(t, table.Exists(h1))
	gotRef, ok := table.Ref(h1)
	require.True(t, ok)
	assert.Equal(t, ref, gotRef)
}

func TestDeletePermissiveModeIsSilentOnUnknownHandle(t *testing.T) {
	table := NewTable()
	err := table.Delete(Handle(999), false)
	require.NoError(t, err)
}

func TestDeleteStrictModeReturnsError(t *testing.T) {
	table := NewTable()
	err := table.Delete(Handle(999), true)
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestDeleteRemovesEntryAndFreesRef(t *testing.T) {
	table := NewTable()
	ref := hostiface.Ref(7)
	h, err := table.Insert("Cat", ref)
	require.NoError(t, err)

	require.NoError(t, table.Delete(h, true))
	assert.False(t, table.Exists(h))

	// The ref may be reused by a later insert; reuse after delete is
	// permitted.
	h2, err := table.Insert("Cat", ref)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
}

func TestIterReturnsInsertionOrderAndSkipsDeleted(t *testing.T) {
	table := NewTable()
	var handles []Handle
	for i := 0; i < 5; i++ {
		h, err := table.Insert("Person", hostiface.Ref(i))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.NoError(t, table.Delete(handles[1], true))
	require.NoError(t, table.Delete(handles[3], true))

	got := table.Iter("Person")
	require.Len(t, got, 3)
	assert.Equal(t, handles[0], got[0].Handle)
	assert.Equal(t, handles[2], got[1].Handle)
	assert.Equal(t, handles[4], got[2].Handle)
}

func TestIterIsPartitionedByType(t *testing.T) {
	table := NewTable()
	_, err := table.Insert("Person", hostiface.Ref(1))
	require.NoError(t, err)
	_, err = table.Insert("Budget", hostiface.Ref(2))
	require.NoError(t, err)

	assert.Len(t, table.Iter("Person"), 1)
	assert.Len(t, table.Iter("Budget"), 1)
	assert.Len(t, table.Iter("Unknown"), 0)
}
