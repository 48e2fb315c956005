package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lamden.dev/statecore/backend/memstore"
	"lamden.dev/statecore/cache"
	"lamden.dev/statecore/keycodec"
	"lamden.dev/statecore/value"
)

func newTestDriver(b *memstore.Store) *Driver {
	c := cache.New(b, nil)
	return New(c, b, keycodec.Default())
}

// S1: basic round-trip through commit, visible from a fresh cache/driver.
func TestBasicRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	d := newTestDriver(b)

	require.NoError(t, d.SetVar(ctx, "con_a", "x", nil, value.NewIntFromInt64(42), true))
	require.NoError(t, d.cache.Commit(ctx))

	fresh := newTestDriver(b)
	v, err := fresh.GetVar(ctx, "con_a", "x", nil, true)
	require.NoError(t, err)
	n, ok := v.Int()
	require.True(t, ok)
	require.Equal(t, int64(42), n.Int64())
}

// S2: subkeyed hash round-trips and lands under the expected flat key.
func TestSubkeyedHash(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	d := newTestDriver(b)

	require.NoError(t, d.SetVar(ctx, "con_a", "balances", []string{"stu"}, value.NewIntFromInt64(100), true))
	require.NoError(t, d.cache.Commit(ctx))

	v, err := d.GetVar(ctx, "con_a", "balances", []string{"stu"}, true)
	require.NoError(t, err)
	n, ok := v.Int()
	require.True(t, ok)
	require.Equal(t, int64(100), n.Int64())

	raw, ok, err := b.Get(ctx, "con_a.balances:stu")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.NewIntFromInt64(100), value.Decode(raw))
}

// S6: contract install + delete.
func TestContractInstallAndDelete(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	d := newTestDriver(b)

	require.NoError(t, d.SetContract(ctx, "con_token", "def transfer(): pass", []byte{0x01, 0x02}, "alice", value.Timestamp{Year: 2026, Month: 7, Day: 31}, "bob"))

	code, err := d.GetContract(ctx, "con_token")
	require.NoError(t, err)
	require.Equal(t, "def transfer(): pass", code)

	owner, err := d.GetOwner(ctx, "con_token")
	require.NoError(t, err)
	require.Equal(t, "alice", owner)

	// Re-installing is a silent no-op (OQ1).
	require.NoError(t, d.SetContract(ctx, "con_token", "different code", nil, "mallory", value.Timestamp{}, ""))
	code, err = d.GetContract(ctx, "con_token")
	require.NoError(t, err)
	require.Equal(t, "def transfer(): pass", code)

	require.NoError(t, d.cache.Commit(ctx))
	require.NoError(t, d.DeleteContract(ctx, "con_token"))

	keys, err := d.Keys(ctx, "con_token")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestItemsMergesCacheAndBackend(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	d := newTestDriver(b)

	require.NoError(t, d.SetVar(ctx, "con_a", "balances", []string{"alice"}, value.NewIntFromInt64(1), true))
	require.NoError(t, d.cache.Commit(ctx))
	require.NoError(t, d.SetVar(ctx, "con_a", "balances", []string{"bob"}, value.NewIntFromInt64(2), true))

	items, err := d.Items(ctx, "con_a.balances")
	require.NoError(t, err)
	require.Len(t, items, 2)

	keys, err := d.Keys(ctx, "con_a.balances")
	require.NoError(t, err)
	require.Equal(t, []string{"con_a.balances:alice", "con_a.balances:bob"}, keys)
}
