package filestore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lamden.dev/statecore/backend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Root: t.TempDir(), LockTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetMissingContractDoesNotCreateFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.Get(ctx, "con_a.balance")
	require.NoError(t, err)
	require.False(t, ok)

	contracts, err := s.listContracts()
	require.NoError(t, err)
	require.Empty(t, contracts)
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "con_a.balance", "100"))
	v, ok, err := s.Get(ctx, "con_a.balance")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", v)

	require.NoError(t, s.Delete(ctx, "con_a.balance"))
	_, ok, err = s.Get(ctx, "con_a.balance")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Delete(ctx, "con_a.balance")) // idempotent
}

func TestSubkeysNestBuckets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "con_a.balances:stu:alice", "50"))
	require.NoError(t, s.Set(ctx, "con_a.balances:stu:bob", "75"))

	v, ok, err := s.Get(ctx, "con_a.balances:stu:alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "50", v)

	_, ok, err = s.Get(ctx, "con_a.balances:stu:carol")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterAcrossContractsAndPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "con_a.balances:alice", "1"))
	require.NoError(t, s.Set(ctx, "con_a.balances:bob", "2"))
	require.NoError(t, s.Set(ctx, "con_b.supply", "3"))

	got, err := s.Iter(ctx, "con_a.", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, k := range got {
		require.True(t, strings.HasPrefix(k, "con_a."))
	}

	all, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestLargeValueRoundTripsThroughCompression(t *testing.T) {
	ctx := context.Background()
	s, err := New(Config{Root: t.TempDir(), LockTimeout: time.Second, CompressThreshold: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	big := strings.Repeat("abcdefgh", 4096)
	require.NoError(t, s.Set(ctx, "con_a.blob", big))
	got, ok, err := s.Get(ctx, "con_a.blob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big, got)
}

func TestFlushRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "con_a.balance", "1"))
	require.NoError(t, s.Flush(ctx))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)

	_, ok, err := s.Get(ctx, "con_a.balance")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnsafeContractNameIsHashedButStillIterable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	unsafe := "con/with\x00weird:name" + strings.Repeat("x", 300)
	// Contract names can't legally contain '.' or ':' per keycodec, so use
	// a name that is merely filesystem-unsafe, not key-shape-invalid.
	unsafe = strings.ReplaceAll(unsafe, ".", "")
	unsafe = strings.ReplaceAll(unsafe, ":", "")

	require.NoError(t, s.Set(ctx, unsafe+".x", "1"))
	v, ok, err := s.Get(ctx, unsafe+".x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Contains(t, keys, unsafe+".x")
}

func TestSetBlockKeepsValueReadable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "con_a.x", "1"))
	require.NoError(t, s.SetBlock(ctx, "con_a.y", "2", 42))
	// Both keys remain independently readable; block metadata isn't part of
	// the backend.Store surface, so there's nothing further to assert here
	// beyond Get continuing to work after a block-tagged write.
	v, ok, err := s.Get(ctx, "con_a.y")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v)
}

var _ backend.Store = (*Store)(nil)
