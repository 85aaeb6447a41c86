package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "session:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "session:a", []byte(`{"id":"a"}`)))
	got, err := s.Get(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"a"}`), got)

	// Overwrite.
	require.NoError(t, s.Put(ctx, "session:a", []byte(`{"id":"a2"}`)))
	got, _ = s.Get(ctx, "session:a")
	assert.Equal(t, []byte(`{"id":"a2"}`), got)

	require.NoError(t, s.Delete(ctx, "session:a"))
	_, err = s.Get(ctx, "session:a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is fine.
	assert.NoError(t, s.Delete(ctx, "session:a"))
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "session:a", []byte("1")))
	require.NoError(t, s.Put(ctx, "session:b", []byte("2")))
	require.NoError(t, s.Put(ctx, "replay:r1", []byte("3")))

	keys, err := s.List(ctx, "session:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session:a", "session:b"}, keys)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("original")
	require.NoError(t, s.Put(ctx, "k", buf))

	buf[0] = 'X'
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("original"), again)
}
