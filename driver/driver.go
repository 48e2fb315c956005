// Package driver implements C6, the contract-schema-aware facade over the
// transactional cache: get/set variable, contract install/lookup/delete,
// and prefix projections. Grounded on
// original_source/contracting/db/driver.py's ContractDriver, same reserved
// double-underscore slot names and items()-merges-cache-and-backend shape.
package driver

import (
	"context"
	"sort"

	"lamden.dev/statecore/backend"
	"lamden.dev/statecore/cache"
	"lamden.dev/statecore/keycodec"
	"lamden.dev/statecore/value"
)

// Reserved contract-metadata variable slots (spec.md §3).
const (
	SlotCode      = "__code__"
	SlotCompiled  = "__compiled__"
	SlotOwner     = "__owner__"
	SlotSubmitted = "__submitted__"
	SlotDeveloper = "__developer__"
)

// Driver is the C6 facade. It holds no state of its own beyond its
// collaborators; all mutation lives in the wrapped Cache.
type Driver struct {
	cache   *cache.Cache
	backend backend.Store
	codec   keycodec.Codec
}

// New returns a Driver over c, reading backend-only prefix scans from b
// directly (Items needs the backend view the cache doesn't hold).
func New(c *cache.Cache, b backend.Store, codec keycodec.Codec) *Driver {
	return &Driver{cache: c, backend: b, codec: codec}
}

// GetVar composes (contract, variable, subkeys) via the key codec and
// delegates to the cache.
func (d *Driver) GetVar(ctx context.Context, contract, variable string, subkeys []string, mark bool) (value.Value, error) {
	key, err := d.codec.MakeKey(contract, variable, subkeys)
	if err != nil {
		return value.Value{}, err
	}
	return d.cache.Get(ctx, key, mark)
}

// SetVar composes the key and delegates to the cache.
func (d *Driver) SetVar(ctx context.Context, contract, variable string, subkeys []string, v value.Value, mark bool) error {
	key, err := d.codec.MakeKey(contract, variable, subkeys)
	if err != nil {
		return err
	}
	return d.cache.Set(ctx, key, v, mark)
}

// Items merges the cache's staged view of prefix with a backend scan:
// every non-tombstone cache entry under prefix, plus every backend-only key
// fetched through Get (which populates the cache as a side effect).
func (d *Driver) Items(ctx context.Context, prefix string) (map[string]value.Value, error) {
	out := d.cache.SnapshotPrefix(prefix)

	backendKeys, err := d.backend.Iter(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	for _, k := range backendKeys {
		if _, ok := out[k]; ok {
			continue
		}
		v, err := d.cache.Get(ctx, k, true)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			continue // cache holds a tombstone for a key the backend scan still sees
		}
		out[k] = v
	}
	return out, nil
}

// Keys projects Items to its sorted key list.
func (d *Driver) Keys(ctx context.Context, prefix string) ([]string, error) {
	items, err := d.Items(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return sortedKeys(items), nil
}

// Values projects Items to its values, ordered by key.
func (d *Driver) Values(ctx context.Context, prefix string) ([]value.Value, error) {
	items, err := d.Items(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := sortedKeys(items)
	out := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		out = append(out, items[k])
	}
	return out, nil
}

func sortedKeys(items map[string]value.Value) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetContract writes the five reserved metadata slots for a newly installed
// contract. Silently no-ops if the contract already exists (spec.md §9 OQ1).
func (d *Driver) SetContract(ctx context.Context, name, code string, compiled []byte, owner string, submitted value.Timestamp, developer string) error {
	exists, err := d.ContractExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	slots := []struct {
		variable string
		v        value.Value
	}{
		{SlotCode, value.NewText(code)},
		{SlotCompiled, value.NewBytes(compiled)},
		{SlotOwner, value.NewText(owner)},
		{SlotSubmitted, value.NewTimestamp(submitted)},
		{SlotDeveloper, value.NewText(developer)},
	}
	for _, s := range slots {
		if err := d.SetVar(ctx, name, s.variable, nil, s.v, true); err != nil {
			return err
		}
	}
	return nil
}

// ContractExists reports whether name has an installed __code__ slot.
func (d *Driver) ContractExists(ctx context.Context, name string) (bool, error) {
	v, err := d.GetVar(ctx, name, SlotCode, nil, false)
	if err != nil {
		return false, err
	}
	return !v.IsNull(), nil
}

// GetContract returns the installed source code, or "" if none.
func (d *Driver) GetContract(ctx context.Context, name string) (string, error) {
	v, err := d.GetVar(ctx, name, SlotCode, nil, true)
	if err != nil {
		return "", err
	}
	s, _ := v.Text()
	return s, nil
}

// GetCompiled returns the installed bytecode blob, or nil if none.
func (d *Driver) GetCompiled(ctx context.Context, name string) ([]byte, error) {
	v, err := d.GetVar(ctx, name, SlotCompiled, nil, true)
	if err != nil {
		return nil, err
	}
	b, _ := v.Bytes()
	return b, nil
}

// GetOwner returns the installed owner principal, or "" if none.
func (d *Driver) GetOwner(ctx context.Context, name string) (string, error) {
	v, err := d.GetVar(ctx, name, SlotOwner, nil, true)
	if err != nil {
		return "", err
	}
	s, _ := v.Text()
	return s, nil
}

// DeleteContract enumerates every key with prefix name+"." and removes it
// from the cache, pending_writes, and the backend (spec.md §4.6).
func (d *Driver) DeleteContract(ctx context.Context, name string) error {
	prefix := name + "."
	keys, err := d.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := d.cache.Delete(ctx, k, true); err != nil {
			return err
		}
		if err := d.backend.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the backend then clears the cache's pending state.
func (d *Driver) Flush(ctx context.Context) error {
	if err := d.backend.Flush(ctx); err != nil {
		return err
	}
	d.cache.ClearPendingState()
	return nil
}
