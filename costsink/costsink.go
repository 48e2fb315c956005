// Package costsink implements C7's cost-hook callbacks: a capability the
// cache invokes synchronously on every read/write so an external metering
// host can bill contract execution for storage bytes touched. Grounded on
// spec.md §4.7/§9 ("re-architect the source's global runtime cost hooks as
// an explicit dependency") and on DioneProtocol-coreth's use of
// github.com/prometheus/client_golang for engine-level accounting metrics —
// no clients/go file has an equivalent since that node has no gas
// model.
package costsink

import "sync"

// Sink receives byte-accounting callbacks. Implementations must not
// re-enter the cache that invokes them (spec.md §4.7).
type Sink interface {
	DeductRead(keyBytes, valueBytes int)
	DeductWrite(keyBytes, valueBytes int)
}

type noopSink struct{}

func (noopSink) DeductRead(int, int)  {}
func (noopSink) DeductWrite(int, int) {}

// Noop returns a Sink that discards every deduction.
func Noop() Sink { return noopSink{} }

// Rates externalizes the per-byte unit costs spec.md §4.7 calls out: reads
// bill at 1 unit/byte, writes at 25 units/byte.
type Rates struct {
	ReadPerByte  int64
	WritePerByte int64
}

// DefaultRates returns spec.md §4.7's literal constants.
func DefaultRates() Rates {
	return Rates{ReadPerByte: 1, WritePerByte: 25}
}

// Deduction records one DeductRead/DeductWrite call for RecordingSink.
type Deduction struct {
	KeyBytes, ValueBytes int
}

// RecordingSink accumulates every deduction in memory; tests inject this in
// place of a production sink (spec.md §9: "tests inject a recording sink").
type RecordingSink struct {
	Rates Rates

	mu              sync.Mutex
	Reads, Writes   []Deduction
	ReadUnits       int64
	WriteUnits      int64
}

// NewRecordingSink returns a RecordingSink billing at the given rates.
func NewRecordingSink(rates Rates) *RecordingSink {
	return &RecordingSink{Rates: rates}
}

func (s *RecordingSink) DeductRead(keyBytes, valueBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads = append(s.Reads, Deduction{KeyBytes: keyBytes, ValueBytes: valueBytes})
	s.ReadUnits += int64(keyBytes+valueBytes) * s.Rates.ReadPerByte
}

func (s *RecordingSink) DeductWrite(keyBytes, valueBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, Deduction{KeyBytes: keyBytes, ValueBytes: valueBytes})
	s.WriteUnits += int64(keyBytes+valueBytes) * s.Rates.WritePerByte
}
