package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", "1"))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Delete(ctx, "a")) // idempotent
}

func TestIterAscendingAndPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"b.x", "a.x", "a.y", "c.x"} {
		require.NoError(t, s.Set(ctx, k, "v"))
	}

	got, err := s.Iter(ctx, "a.", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a.x", "a.y"}, got)
	for _, k := range got {
		require.True(t, len(k) >= len("a.") && k[:2] == "a.")
	}

	all, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.x", "a.y", "b.x", "c.x"}, all)
}

func TestIterLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"a.1", "a.2", "a.3"} {
		require.NoError(t, s.Set(ctx, k, "v"))
	}
	got, err := s.Iter(ctx, "a.", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Flush(ctx))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}
