package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "shopsphere-cart", []byte(`[]`)))
	v, err := s.Get(ctx, "shopsphere-cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(v))

	require.NoError(t, s.SetMany(ctx, map[string][]byte{
		"shopsphere-user":  []byte(`{"id":"u1"}`),
		"shopsphere-token": []byte("tok"),
	}))
	v, err = s.Get(ctx, "shopsphere-token")
	require.NoError(t, err)
	assert.Equal(t, "tok", string(v))

	require.NoError(t, s.Remove(ctx, "shopsphere-user", "shopsphere-token", "never-set"))
	_, err = s.Get(ctx, "shopsphere-user")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "shopsphere-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", buf))
	buf[0] = 'x'

	v, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFile_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Set(context.Background(), "shopsphere-cart", []byte(`[{"id":"p1"}]`)))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	v, err := reopened.Get(context.Background(), "shopsphere-cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1"}]`, string(v))
}

func TestFile_CorruptValue(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shopsphere-cart.sz"), []byte{0xff, 0xff, 0xff}, 0o600))

	_, err = f.Get(context.Background(), "shopsphere-cart")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFile_RejectsPathKeys(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, f.Set(context.Background(), "../escape", []byte("x")))
}
