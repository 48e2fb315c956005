// Package backend defines the uniform byte-keyed, byte-valued store every
// persistent or in-memory state backend implements (spec.md §4.3),
// generalized from node/store/db.go's DB method surface into an
// interface both backend/filestore and backend/memstore satisfy.
package backend

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a backend operation exceeds its configured
// lock-acquisition timeout (spec.md's BackendTimeout).
var ErrTimeout = errors.New("backend: lock acquisition timed out")

// ErrIO wraps an underlying store I/O fault (spec.md's BackendIOError).
var ErrIO = errors.New("backend: I/O fault")

// Store is the contract every backend implementation satisfies. Keys and
// values are already flat text (see keycodec and value respectively); the
// backend itself is agnostic to their structure.
type Store interface {
	// Get returns the stored value for key, or ok=false if absent.
	Get(ctx context.Context, key string) (val string, ok bool, err error)

	// Set overwrites key's value. Callers translate a Value-or-tombstone
	// into either Set or Delete before calling the backend; the backend
	// itself never receives a null encoding for a live key (spec.md §3:
	// "Deletion is modeled as absence, never as a null encoding").
	Set(ctx context.Context, key string, val string) error

	// Delete removes key. Idempotent: deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Iter returns keys with the given byte prefix in ascending
	// lexicographic order. limit == 0 means unbounded.
	Iter(ctx context.Context, prefix string, limit int) ([]string, error)

	// Keys returns every key in ascending lexicographic order.
	Keys(ctx context.Context) ([]string, error)

	// Flush removes every entry.
	Flush(ctx context.Context) error
}
