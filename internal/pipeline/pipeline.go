// Package pipeline implements the per-packet decoding chain:
// Ethernet -> IPv4 -> transport dispatch -> UDP report.
package pipeline

import (
	"fmt"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/hmsniff/internal/core"
	"firestige.xyz/hmsniff/internal/core/decoder"
	"firestige.xyz/hmsniff/internal/log"
	"firestige.xyz/hmsniff/internal/metrics"
)

// Settings is the immutable pipeline configuration.
type Settings struct {
	Interface  string
	Group      netip.Addr // reports are emitted for this destination only
	UnwrapVLAN bool
}

// Sink receives reports and malformed-packet events.
type Sink interface {
	Report(r core.Report) error
	Malformed(iface string, kind core.Malformed) error
}

// Outcome is where a packet left the pipeline.
type Outcome uint8

const (
	OutcomeDropped        Outcome = iota // not IPv4
	OutcomeMalformedFrame                // shorter than an Ethernet header
	OutcomeMalformedIPv4
	OutcomeIgnored // transport protocol without a handler
	OutcomeMalformedUDP
	OutcomeFiltered // UDP to another destination
	OutcomeReported

	numOutcomes
)

var outcomeNames = [numOutcomes]string{
	OutcomeDropped:        "dropped",
	OutcomeMalformedFrame: "malformed_frame",
	OutcomeMalformedIPv4:  "malformed_ipv4",
	OutcomeIgnored:        "ignored",
	OutcomeMalformedUDP:   "malformed_udp",
	OutcomeFiltered:       "filtered",
	OutcomeReported:       "reported",
}

func (o Outcome) String() string {
	if o < numOutcomes {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Pipeline decodes one frame at a time. It keeps no state between packets
// other than counters.
type Pipeline struct {
	settings   Settings
	sink       Sink
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     log.Logger

	outcomeCounters [numOutcomes]prometheus.Counter
	truncated       prometheus.Counter
}

// New creates a pipeline with the UDP handler registered.
func New(settings Settings, sink Sink) *Pipeline {
	p := &Pipeline{
		settings:   settings,
		sink:       sink,
		dispatcher: NewDispatcher(),
		metrics:    NewMetrics(settings.Interface),
		logger:     log.GetLogger().WithField("interface", settings.Interface),
		truncated:  metrics.UDPTruncatedTotal.WithLabelValues(settings.Interface),
	}
	for o := Outcome(0); o < numOutcomes; o++ {
		p.outcomeCounters[o] = metrics.PacketsTotal.WithLabelValues(settings.Interface, o.String())
	}
	p.dispatcher.Register(core.IPProtocolUDP, &udpHandler{p: p})
	return p
}

// Dispatcher exposes the transport table so callers can register handlers.
func (p *Pipeline) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// Settings returns the pipeline settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Handle runs one captured frame through the pipeline. The returned error is
// a sink write failure; decode failures are outcomes, not errors.
func (p *Pipeline) Handle(raw core.RawPacket) (Outcome, error) {
	outcome, err := p.handleFrame(raw)
	p.metrics.Record(outcome)
	// custom transport handlers may return outcomes outside the known set
	if outcome < numOutcomes {
		p.outcomeCounters[outcome].Inc()
	}
	if err != nil {
		p.metrics.SinkErrors.Add(1)
	}
	return outcome, err
}

// handleFrame is stage 1: only IPv4 frames go further.
func (p *Pipeline) handleFrame(raw core.RawPacket) (Outcome, error) {
	eth, payload, err := decoder.DecodeEthernet(raw.Data, p.settings.UnwrapVLAN)
	if err != nil {
		if p.logger.IsDebugEnabled() {
			p.logger.WithField("len", len(raw.Data)).Debug("frame shorter than ethernet header")
		}
		return OutcomeMalformedFrame, nil
	}
	if eth.EtherType != core.EtherTypeIPv4 {
		return OutcomeDropped, nil
	}
	return p.handleIPv4(raw, payload)
}

// handleIPv4 is stage 2.
func (p *Pipeline) handleIPv4(raw core.RawPacket, data []byte) (Outcome, error) {
	ip, payload, err := decoder.DecodeIPv4(data)
	if err != nil {
		return OutcomeMalformedIPv4, p.sink.Malformed(p.settings.Interface, core.MalformedIPv4)
	}
	return p.dispatcher.Dispatch(Datagram{
		Interface: p.settings.Interface,
		Timestamp: raw.Timestamp,
		IP:        ip,
	}, payload)
}

// udpHandler is stage 4.
type udpHandler struct {
	p *Pipeline
}

func (h *udpHandler) Handle(dg Datagram, data []byte) (Outcome, error) {
	p := h.p
	udp, _, err := decoder.DecodeUDP(data)
	if err != nil {
		return OutcomeMalformedUDP, p.sink.Malformed(dg.Interface, core.MalformedUDP)
	}
	if dg.IP.DstIP != p.settings.Group {
		return OutcomeFiltered, nil
	}

	r := core.Report{
		Interface: dg.Interface,
		Timestamp: dg.Timestamp,
		SrcIP:     dg.IP.SrcIP,
		SrcPort:   udp.SrcPort,
		DstIP:     dg.IP.DstIP,
		DstPort:   udp.DstPort,
		Length:    udp.Length,
		Captured:  len(data),
	}
	if r.Truncated() {
		p.metrics.Truncated.Add(1)
		p.truncated.Inc()
		if p.logger.IsDebugEnabled() {
			p.logger.WithFields(map[string]interface{}{
				"declared": r.Length,
				"captured": r.Captured,
				"src":      r.SrcIP.String(),
			}).Debug("udp length exceeds captured bytes")
		}
	}
	return OutcomeReported, p.sink.Report(r)
}
