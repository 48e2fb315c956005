package costsink

import "github.com/prometheus/client_golang/prometheus"

// PromSink publishes read/write byte and unit totals as Prometheus
// counters, for a long-running host process. The operator CLI does not use
// it; it bills through a RecordingSink.
type PromSink struct {
	rates Rates

	readBytes  prometheus.Counter
	writeBytes prometheus.Counter
	readUnits  prometheus.Counter
	writeUnits prometheus.Counter
}

// NewPromSink registers its counters with reg and returns a Sink billing at
// rates. Pass a fresh prometheus.NewRegistry() in tests to avoid colliding
// with the default global registry.
func NewPromSink(reg prometheus.Registerer, rates Rates) (*PromSink, error) {
	s := &PromSink{
		rates: rates,
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statecore",
			Subsystem: "cost",
			Name:      "read_bytes_total",
			Help:      "Total key+value bytes deducted for reads.",
		}),
		writeBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statecore",
			Subsystem: "cost",
			Name:      "write_bytes_total",
			Help:      "Total key+value bytes deducted for writes.",
		}),
		readUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statecore",
			Subsystem: "cost",
			Name:      "read_units_total",
			Help:      "Total billed read units (bytes * read_cost_per_byte).",
		}),
		writeUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statecore",
			Subsystem: "cost",
			Name:      "write_units_total",
			Help:      "Total billed write units (bytes * write_cost_per_byte).",
		}),
	}
	for _, c := range []prometheus.Collector{s.readBytes, s.writeBytes, s.readUnits, s.writeUnits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PromSink) DeductRead(keyBytes, valueBytes int) {
	total := keyBytes + valueBytes
	s.readBytes.Add(float64(total))
	s.readUnits.Add(float64(int64(total) * s.rates.ReadPerByte))
}

func (s *PromSink) DeductWrite(keyBytes, valueBytes int) {
	total := keyBytes + valueBytes
	s.writeBytes.Add(float64(total))
	s.writeUnits.Add(float64(int64(total) * s.rates.WritePerByte))
}
