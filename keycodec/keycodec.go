// Package keycodec composes and parses the flat keys the backend stores:
// contract "." variable (":" subkey)*. Grounded on node/store/db.go's small,
// single-purpose key-shape helpers (encodeOutpointKey/
// decodeOutpointKey), applied to variable-length text keys instead of
// fixed-width binary ones.
package keycodec

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxKeySize and DefaultMaxSubkeys mirror spec.md §6's configuration
// surface defaults (max_key_size, max_hash_dimensions).
const (
	DefaultMaxKeySize = 1024
	DefaultMaxSubkeys = 16
)

// ErrKeyShape is the sentinel every shape violation wraps.
var ErrKeyShape = errors.New("keycodec: invalid key shape")

// Codec enforces the bounds configured for a given store instance.
type Codec struct {
	MaxKeySize int
	MaxSubkeys int
}

// New returns a Codec with the given bounds, substituting spec.md's
// defaults for any non-positive value.
func New(maxKeySize, maxSubkeys int) Codec {
	if maxKeySize <= 0 {
		maxKeySize = DefaultMaxKeySize
	}
	if maxSubkeys <= 0 {
		maxSubkeys = DefaultMaxSubkeys
	}
	return Codec{MaxKeySize: maxKeySize, MaxSubkeys: maxSubkeys}
}

// Default returns a Codec using spec.md's default bounds.
func Default() Codec {
	return New(DefaultMaxKeySize, DefaultMaxSubkeys)
}

// MakeKey composes contract, variable and subkeys into a flat key, enforcing
// spec.md §3/§4.2's shape constraints.
func (c Codec) MakeKey(contract, variable string, subkeys []string) (string, error) {
	if contract == "" {
		return "", fmt.Errorf("%w: contract must not be empty", ErrKeyShape)
	}
	if variable == "" {
		return "", fmt.Errorf("%w: variable must not be empty", ErrKeyShape)
	}
	if strings.ContainsAny(contract, ".:") {
		return "", fmt.Errorf("%w: contract %q must not contain '.' or ':'", ErrKeyShape, contract)
	}
	if strings.ContainsAny(variable, ".:") {
		return "", fmt.Errorf("%w: variable %q must not contain '.' or ':'", ErrKeyShape, variable)
	}
	if len(subkeys) > c.MaxSubkeys {
		return "", fmt.Errorf("%w: %d subkeys exceeds max %d", ErrKeyShape, len(subkeys), c.MaxSubkeys)
	}

	var sb strings.Builder
	sb.WriteString(contract)
	sb.WriteByte('.')
	sb.WriteString(variable)
	for _, sk := range subkeys {
		sb.WriteByte(':')
		sb.WriteString(sk)
	}
	flat := sb.String()
	if len(flat) > c.MaxKeySize {
		return "", fmt.Errorf("%w: encoded key length %d exceeds max %d", ErrKeyShape, len(flat), c.MaxKeySize)
	}
	return flat, nil
}

// ParseKey recovers (contract, variable, subkeys) from a flat key: split on
// the first '.', then on every subsequent ':'.
func (c Codec) ParseKey(flat string) (contract, variable string, subkeys []string, err error) {
	if len(flat) > c.MaxKeySize {
		return "", "", nil, fmt.Errorf("%w: encoded key length %d exceeds max %d", ErrKeyShape, len(flat), c.MaxKeySize)
	}
	dot := strings.IndexByte(flat, '.')
	if dot <= 0 {
		return "", "", nil, fmt.Errorf("%w: missing contract separator in %q", ErrKeyShape, flat)
	}
	contract = flat[:dot]
	rest := flat[dot+1:]
	if rest == "" {
		return "", "", nil, fmt.Errorf("%w: missing variable in %q", ErrKeyShape, flat)
	}

	parts := strings.Split(rest, ":")
	variable = parts[0]
	if variable == "" {
		return "", "", nil, fmt.Errorf("%w: empty variable in %q", ErrKeyShape, flat)
	}
	if len(parts) > 1 {
		subkeys = parts[1:]
	}
	if len(subkeys) > c.MaxSubkeys {
		return "", "", nil, fmt.Errorf("%w: %d subkeys exceeds max %d", ErrKeyShape, len(subkeys), c.MaxSubkeys)
	}
	return contract, variable, subkeys, nil
}

// Stringify renders an arbitrary subkey argument in the plain textual form
// make_key expects (no quoting, no JSON tagging — just str(arg), matching
// the distilled source's ':'.join((contract_variable, *[str(arg) ...]))).
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
