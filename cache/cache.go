// Package cache implements C5, the transactional cache: a read-through
// staging layer in front of a backend.Store that buffers pending writes,
// records per-batch deltas keyed by an opaque sequencer tag, and supports
// deterministic hard-apply and ordered rollback (spec.md §3/§4.5). This is
// the hardest, most invariant-bearing component in the core. It is grounded
// directly on original_source/contracting/db/driver.py's CacheDriver — no
// Go file in clients/go implements delta-tracked soft/hard-apply/rollback,
// so the distilled source is translated here into node/*.go's explicit
// error-return, context-threaded idiom, with two deliberate corrections
// recorded in DESIGN.md: true tombstone semantics, and reads marked on
// every Get call rather than only on backend-miss.
//
// A Cache is not safe for concurrent use by multiple goroutines; callers
// own serialization, typically one Cache per execution worker (spec.md §5).
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"lamden.dev/statecore/backend"
	"lamden.dev/statecore/costsink"
	"lamden.dev/statecore/value"
)

// entry is a cache slot: either a live Value or a tombstone meaning
// "known-absent", distinct from "unknown" (spec.md §3).
type entry struct {
	val  value.Value
	tomb bool
}

func liveEntry(v value.Value) entry {
	if v.IsNull() {
		return entry{tomb: true}
	}
	return entry{val: v}
}

func (e entry) toValue() value.Value {
	if e.tomb {
		return value.Null()
	}
	return e.val
}

// deltaPair is the (pre, post) value recorded for one key by one soft_apply.
type deltaPair struct {
	pre, post entry
}

// Cache is the C5 transactional cache.
type Cache struct {
	backend backend.Store
	sink    costsink.Sink

	cache         map[string]entry
	reads         map[string]struct{}
	pendingWrites map[string]entry
	pendingDeltas map[string]map[string]deltaPair
}

// New returns an empty Cache over backend b. A nil sink is replaced with
// costsink.Noop().
func New(b backend.Store, sink costsink.Sink) *Cache {
	if sink == nil {
		sink = costsink.Noop()
	}
	return &Cache{
		backend:       b,
		sink:          sink,
		cache:         make(map[string]entry),
		reads:         make(map[string]struct{}),
		pendingWrites: make(map[string]entry),
		pendingDeltas: make(map[string]map[string]deltaPair),
	}
}

// Get returns the value visible at k: the most recent post-value across
// pending_deltas in tag order if any delta set touches k; else the pending
// write; else the cached value; else the backend value; else null.
func (c *Cache) Get(ctx context.Context, k string, mark bool) (value.Value, error) {
	e, ok := c.deltaVisible(k)
	if !ok {
		e, ok = c.pendingWrites[k]
	}
	if !ok {
		e, ok = c.cache[k]
	}
	if !ok {
		raw, found, err := c.backend.Get(ctx, k)
		if err != nil {
			return value.Value{}, err
		}
		if found {
			e = entry{val: value.Decode(raw)}
		} else {
			e = entry{tomb: true}
		}
		c.cache[k] = e
	}
	if mark {
		c.reads[k] = struct{}{}
	}

	v := e.toValue()
	if encoded, err := value.Encode(v); err == nil {
		c.sink.DeductRead(len(k), len(encoded))
	}
	return v, nil
}

// Set writes v to k. Binary-float/arbitrary-precision-decimal coercion
// (spec.md §4.5) is a no-op here by construction: value.Value has no
// binary-float kind, so every Decimal a caller constructs is already the
// canonical fixed-point digit string.
func (c *Cache) Set(ctx context.Context, k string, v value.Value, mark bool) error {
	encoded, err := value.Encode(v)
	if err != nil {
		return err
	}
	e := liveEntry(v)
	c.cache[k] = e
	if mark {
		c.pendingWrites[k] = e
	}
	c.sink.DeductWrite(len(k), len(encoded))
	return nil
}

// Delete is equivalent to Set(k, null, mark).
func (c *Cache) Delete(ctx context.Context, k string, mark bool) error {
	return c.Set(ctx, k, value.Null(), mark)
}

// SoftApply records a tentative, delta-tracked application of changes under
// tag. Fails with ErrDuplicateTag if tag is already pending.
func (c *Cache) SoftApply(ctx context.Context, tag string, changes map[string]value.Value) error {
	if _, exists := c.pendingDeltas[tag]; exists {
		return ErrDuplicateTag
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	deltaSet := make(map[string]deltaPair, len(keys))
	for _, k := range keys {
		pre, err := c.Get(ctx, k, false)
		if err != nil {
			return err
		}
		post := changes[k]
		if err := c.Set(ctx, k, post, false); err != nil {
			return err
		}
		deltaSet[k] = deltaPair{pre: liveEntry(pre), post: liveEntry(post)}
	}
	c.pendingDeltas[tag] = deltaSet
	return nil
}

// HardApply durably writes every delta set with tag <= the given tag, in
// strictly ascending tag order, then removes it from pending_deltas. A
// backend write failure stops at the failing key: delta sets already
// written are gone, the failing set (and everything after it) is retained,
// and the error is returned so a retry resumes from the failure point
// (spec.md §7).
func (c *Cache) HardApply(ctx context.Context, tag string) error {
	for _, t := range c.sortedDeltaTags() {
		if t > tag {
			break
		}
		deltaSet := c.pendingDeltas[t]

		keys := make([]string, 0, len(deltaSet))
		for k := range deltaSet {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if err := c.writeThrough(ctx, k, deltaSet[k].post); err != nil {
				return fmt.Errorf("cache: hard_apply tag %q key %q: %w", t, k, err)
			}
			delete(c.cache, k)
		}
		delete(c.pendingDeltas, t)
	}
	return nil
}

// Rollback restores, for every key touched by any pending delta, the
// pre-value of the oldest delta that touched it, then clears
// pending_deltas entirely. It never touches pending_writes or reads, and
// cannot fail (only in-memory state).
func (c *Cache) Rollback() {
	tags := c.sortedDeltaTags()
	for i := len(tags) - 1; i >= 0; i-- {
		for k, pair := range c.pendingDeltas[tags[i]] {
			c.cache[k] = pair.pre
		}
	}
	c.pendingDeltas = make(map[string]map[string]deltaPair)
}

// Commit flushes every pending write to the backend (tombstones become
// deletes). It does not touch pending_deltas, reads, or pending_writes
// itself — callers that want a clean slate call ClearPendingState after.
func (c *Cache) Commit(ctx context.Context) error {
	keys := make([]string, 0, len(c.pendingWrites))
	for k := range c.pendingWrites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := c.writeThrough(ctx, k, c.pendingWrites[k]); err != nil {
			return fmt.Errorf("cache: commit key %q: %w", k, err)
		}
	}
	return nil
}

// ClearPendingState empties cache, reads and pending_writes. It does not
// touch pending_deltas.
func (c *Cache) ClearPendingState() {
	c.cache = make(map[string]entry)
	c.reads = make(map[string]struct{})
	c.pendingWrites = make(map[string]entry)
}

// Reads returns a snapshot of the set of keys read since the last clear.
func (c *Cache) Reads() map[string]struct{} {
	out := make(map[string]struct{}, len(c.reads))
	for k := range c.reads {
		out[k] = struct{}{}
	}
	return out
}

// PendingDeltaTags returns the currently pending sequencer tags in
// ascending order.
func (c *Cache) PendingDeltaTags() []string {
	return c.sortedDeltaTags()
}

// SnapshotPrefix returns every non-tombstone entry in cache whose key has
// the given prefix, for driver.Items to merge with a backend scan
// (spec.md §4.6).
func (c *Cache) SnapshotPrefix(prefix string) map[string]value.Value {
	out := make(map[string]value.Value)
	for k, e := range c.cache {
		if e.tomb || !strings.HasPrefix(k, prefix) {
			continue
		}
		out[k] = e.val
	}
	return out
}

func (c *Cache) deltaVisible(k string) (entry, bool) {
	tags := c.sortedDeltaTags()
	for i := len(tags) - 1; i >= 0; i-- {
		if pair, ok := c.pendingDeltas[tags[i]][k]; ok {
			return pair.post, true
		}
	}
	return entry{}, false
}

func (c *Cache) sortedDeltaTags() []string {
	tags := make([]string, 0, len(c.pendingDeltas))
	for t := range c.pendingDeltas {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func (c *Cache) writeThrough(ctx context.Context, k string, e entry) error {
	if e.tomb {
		return c.backend.Delete(ctx, k)
	}
	encoded, err := value.Encode(e.val)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, k, encoded)
}
