package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	Interface string

	Received       atomic.Uint64
	Dropped        atomic.Uint64
	MalformedFrame atomic.Uint64
	MalformedIPv4  atomic.Uint64
	Ignored        atomic.Uint64
	MalformedUDP   atomic.Uint64
	Filtered       atomic.Uint64
	Reported       atomic.Uint64
	Truncated      atomic.Uint64
	SinkErrors     atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics(iface string) *Metrics {
	return &Metrics{Interface: iface}
}

// Record counts one packet under its outcome.
func (m *Metrics) Record(o Outcome) {
	m.Received.Add(1)
	switch o {
	case OutcomeDropped:
		m.Dropped.Add(1)
	case OutcomeMalformedFrame:
		m.MalformedFrame.Add(1)
	case OutcomeMalformedIPv4:
		m.MalformedIPv4.Add(1)
	case OutcomeIgnored:
		m.Ignored.Add(1)
	case OutcomeMalformedUDP:
		m.MalformedUDP.Add(1)
	case OutcomeFiltered:
		m.Filtered.Add(1)
	case OutcomeReported:
		m.Reported.Add(1)
	}
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Received       uint64
	Dropped        uint64
	MalformedFrame uint64
	MalformedIPv4  uint64
	Ignored        uint64
	MalformedUDP   uint64
	Filtered       uint64
	Reported       uint64
	Truncated      uint64
	SinkErrors     uint64
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	m := p.metrics
	return Stats{
		Received:       m.Received.Load(),
		Dropped:        m.Dropped.Load(),
		MalformedFrame: m.MalformedFrame.Load(),
		MalformedIPv4:  m.MalformedIPv4.Load(),
		Ignored:        m.Ignored.Load(),
		MalformedUDP:   m.MalformedUDP.Load(),
		Filtered:       m.Filtered.Load(),
		Reported:       m.Reported.Load(),
		Truncated:      m.Truncated.Load(),
		SinkErrors:     m.SinkErrors.Load(),
	}
}

// Fields renders stats for structured logging.
func (s Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"received":        s.Received,
		"dropped":         s.Dropped,
		"malformed_frame": s.MalformedFrame,
		"malformed_ipv4":  s.MalformedIPv4,
		"ignored":         s.Ignored,
		"malformed_udp":   s.MalformedUDP,
		"filtered":        s.Filtered,
		"reported":        s.Reported,
		"truncated":       s.Truncated,
		"sink_errors":     s.SinkErrors,
	}
}
