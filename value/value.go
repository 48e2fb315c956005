// Package value implements the canonical Value type contract code exchanges
// with the state store: a small closed set of scalar and composite kinds
// that round-trip exactly through a self-describing textual form (see
// codec.go). Binary floating point is never part of the set — decimals are
// carried as exact digit strings.
package value

import (
	"fmt"
	"math/big"
)

// Kind discriminates the closed set of Value types. The zero Kind,
// KindInvalid, marks an unconstructed Value so a forgotten initializer
// fails loudly at Encode time instead of silently encoding as null.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindInt
	KindDecimal
	KindBool
	KindText
	KindBytes
	KindList
	KindMap
	KindTime
	KindDelta
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindTime:
		return "time"
	case KindDelta:
		return "delta"
	default:
		return "invalid"
	}
}

// Timestamp is a UTC, microsecond-precision point in time.
type Timestamp struct {
	Year, Month, Day           int
	Hour, Minute, Second       int
	Microsecond                int
}

// Delta is a day/second/microsecond duration, components may be negative.
type Delta struct {
	Days, Seconds, Microseconds int64
}

// Decimal is an exact fixed-point number carried as its canonical digit
// string (optional leading '-', digits, optional '.' and more digits).
// The digit string is never renormalized: "1.0" and "1.00" are distinct
// Decimals that both round-trip unchanged.
type Decimal struct {
	Digits string
}

// Value is the closed discriminated union described by the Kind constants.
// Zero value is KindInvalid and is not a legal value to Encode.
type Value struct {
	kind Kind

	i    *big.Int
	dec  Decimal
	b    bool
	text string
	by   []byte
	list []Value
	m    map[string]Value
	t    Timestamp
	d    Delta
}

func Null() Value                { return Value{kind: KindNull} }
func NewInt(i *big.Int) Value    { return Value{kind: KindInt, i: new(big.Int).Set(i)} }
func NewIntFromInt64(i int64) Value { return Value{kind: KindInt, i: big.NewInt(i)} }
func NewBool(b bool) Value       { return Value{kind: KindBool, b: b} }
func NewText(s string) Value     { return Value{kind: KindText, text: s} }
func NewTimestamp(t Timestamp) Value { return Value{kind: KindTime, t: t} }
func NewDelta(d Delta) Value     { return Value{kind: KindDelta, d: d} }

// NewBytes copies b so later mutation by the caller cannot alter the Value.
func NewBytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, by: cp}
}

// NewList copies the slice header but not the elements (Values are
// themselves immutable once constructed).
func NewList(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

func NewMap(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// NewDecimal validates digits against the fixed-point grammar spec.md §4.1
// requires (optional '-', digits, optional '.' digits) before accepting it.
func NewDecimal(digits string) (Value, error) {
	if !isDecimalLiteral(digits) {
		return Value{}, fmt.Errorf("value: %q is not a valid fixed-point literal", digits)
	}
	return Value{kind: KindDecimal, dec: Decimal{Digits: digits}}, nil
}

func isDecimalLiteral(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return false
	}
	if i == len(s) {
		return true
	}
	if s[i] != '.' {
		return false
	}
	i++
	fracStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i == len(s) && i > fracStart
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) Int() (*big.Int, bool) {
	if v.kind != KindInt {
		return nil, false
	}
	return new(big.Int).Set(v.i), true
}

func (v Value) Decimal() (Decimal, bool) {
	if v.kind != KindDecimal {
		return Decimal{}, false
	}
	return v.dec, true
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	cp := make([]byte, len(v.by))
	copy(cp, v.by)
	return cp, true
}

func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

func (v Value) Map() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	cp := make(map[string]Value, len(v.m))
	for k, val := range v.m {
		cp[k] = val
	}
	return cp, true
}

func (v Value) Timestamp() (Timestamp, bool) {
	if v.kind != KindTime {
		return Timestamp{}, false
	}
	return v.t, true
}

func (v Value) Delta() (Delta, bool) {
	if v.kind != KindDelta {
		return Delta{}, false
	}
	return v.d, true
}

// Equal reports structural equality, not byte-identical encoding.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInvalid, KindNull:
		return true
	case KindInt:
		return a.i.Cmp(b.i) == 0
	case KindDecimal:
		return a.dec.Digits == b.dec.Digits
	case KindBool:
		return a.b == b.b
	case KindText:
		return a.text == b.text
	case KindBytes:
		return string(a.by) == string(b.by)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindTime:
		return a.t == b.t
	case KindDelta:
		return a.d == b.d
	default:
		return false
	}
}
