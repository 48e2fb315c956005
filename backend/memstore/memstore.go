// Package memstore implements an in-memory backend.Store: an ordered map
// for tests and web mirrors, with no internal synchronization (spec.md
// §4.4b assumes single-threaded use or external synchronization). Grounded
// on the distilled source's InMemDriver (original_source/contracting/db/driver.py),
// since no clients/go file needed a bare in-process map store.
package memstore

import (
	"context"
	"sort"
	"strings"
)

// Store is a lexicographically-sortable map backend. The zero value is not
// usable; construct with New.
type Store struct {
	data map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key string, val string) error {
	s.data[key] = val
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *Store) Iter(_ context.Context, prefix string, limit int) ([]string, error) {
	keys := s.sortedKeys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, k)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	return s.sortedKeys(), nil
}

func (s *Store) Flush(_ context.Context) error {
	s.data = make(map[string]string)
	return nil
}

func (s *Store) sortedKeys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
