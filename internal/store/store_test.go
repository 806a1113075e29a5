package store

import (
	"path/filepath"
	"testing"

	"github.com/Alon769/lity/internal/hostiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "facts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewThenLoadRoundTripsFields(t *testing.T) {
	s := openTestStore(t)

	ref, err := s.New("Person", map[string]hostiface.Value{
		"age":      hostiface.Int(70),
		"eligible": hostiface.Bool(true),
		"name":     hostiface.Str("Alice"),
	})
	require.NoError(t, err)

	rec, err := s.Load(ref)
	require.NoError(t, err)
	assert.Equal(t, "Person", rec.TypeName())

	age, ok := rec.Get("age")
	require.True(t, ok)
	assert.Equal(t, hostiface.Int(70), age)

	eligible, ok := rec.Get("eligible")
	require.True(t, ok)
	assert.Equal(t, hostiface.Bool(true), eligible)

	name, ok := rec.Get("name")
	require.True(t, ok)
	assert.Equal(t, hostiface.Str("Alice"), name)
}

func TestSetPersistsAcrossSeparateLoads(t *testing.T) {
	s := openTestStore(t)

	ref, err := s.New("Budget", map[string]hostiface.Value{"amount": hostiface.Int(100)})
	require.NoError(t, err)

	rec1, err := s.Load(ref)
	require.NoError(t, err)
	require.NoError(t, rec1.Set("amount", hostiface.Int(90)))

	rec2, err := s.Load(ref)
	require.NoError(t, err)
	amount, ok := rec2.Get("amount")
	require.True(t, ok)
	assert.Equal(t, hostiface.Int(90), amount)
}

func TestLoadUnknownRefErrors(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load(hostiface.Ref(9999))
	assert.Error(t, err)
}

func TestGetMissingFieldReportsNotFound(t *testing.T) {
	s := openTestStore(t)
	ref, err := s.New("Counter", map[string]hostiface.Value{"n": hostiface.Int(1)})
	require.NoError(t, err)

	rec, err := s.Load(ref)
	require.NoError(t, err)
	_, ok := rec.Get("missing")
	assert.False(t, ok)
}

func TestReopenSamePathSeesExistingRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.db")

	s1, err := Open(path)
	require.NoError(t, err)
	ref, err := s1.New("Person", map[string]hostiface.Value{"age": hostiface.Int(30)})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	rec, err := s2.Load(ref)
	require.NoError(t, err)
	age, ok := rec.Get("age")
	require.True(t, ok)
	assert.Equal(t, hostiface.Int(30), age)
}
