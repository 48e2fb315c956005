package costsink

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRecordingSinkAccumulates(t *testing.T) {
	s := NewRecordingSink(DefaultRates())
	s.DeductRead(3, 7)
	s.DeductWrite(3, 7)

	require.Len(t, s.Reads, 1)
	require.Len(t, s.Writes, 1)
	require.Equal(t, int64(10), s.ReadUnits)   // 10 bytes * 1/byte
	require.Equal(t, int64(250), s.WriteUnits) // 10 bytes * 25/byte
}

func TestNoopSinkDiscards(t *testing.T) {
	s := Noop()
	require.NotPanics(t, func() {
		s.DeductRead(100, 100)
		s.DeductWrite(100, 100)
	})
}

func TestPromSinkPublishesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSink(reg, DefaultRates())
	require.NoError(t, err)

	s.DeductRead(3, 7)
	s.DeductWrite(3, 7)

	metrics, err := reg.Gather()
	require.NoError(t, err)

	var readBytes, writeUnits float64
	for _, mf := range metrics {
		for _, m := range mf.GetMetric() {
			if mf.GetName() == "statecore_cost_read_bytes_total" {
				readBytes = m.GetCounter().GetValue()
			}
			if mf.GetName() == "statecore_cost_write_units_total" {
				writeUnits = m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(10), readBytes)
	require.Equal(t, float64(250), writeUnits)
}
