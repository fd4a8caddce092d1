// Package console implements the report sink that prints one line per event.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"firestige.xyz/hmsniff/internal/core"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Sink writes reports and malformed-packet events to w.
type Sink struct {
	w      io.Writer
	format string

	reported  atomic.Uint64
	malformed atomic.Uint64
}

// NewSink creates a sink writing format ("text" or "json") to w.
func NewSink(w io.Writer, format string) (*Sink, error) {
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("invalid format %q, must be json or text", format)
	}
	return &Sink{w: w, format: format}, nil
}

// event is the JSON line layout. Report fields are pointers so that zero
// values are still written while malformed events omit them.
type event struct {
	Interface string  `json:"interface"`
	Event     string  `json:"event"`
	SrcIP     string  `json:"src_ip,omitempty"`
	SrcPort   *uint16 `json:"src_port,omitempty"`
	DstIP     string  `json:"dst_ip,omitempty"`
	DstPort   *uint16 `json:"dst_port,omitempty"`
	Length    *uint16 `json:"length,omitempty"`
	Captured  *int    `json:"captured,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Report writes one UDP report.
func (s *Sink) Report(r core.Report) error {
	s.reported.Add(1)

	if s.format == FormatJSON {
		ev := event{
			Interface: r.Interface,
			Event:     "udp",
			SrcIP:     r.SrcIP.String(),
			SrcPort:   &r.SrcPort,
			DstIP:     r.DstIP.String(),
			DstPort:   &r.DstPort,
			Length:    &r.Length,
			Captured:  &r.Captured,
		}
		if !r.Timestamp.IsZero() {
			ev.Timestamp = r.Timestamp.Format(time.RFC3339Nano)
		}
		return s.writeJSON(ev)
	}

	_, err := fmt.Fprintf(s.w, "[%s]: UDP Packet: %s:%d > %s:%d; length: %d:\n",
		r.Interface,
		r.SrcIP, r.SrcPort,
		r.DstIP, r.DstPort,
		r.Length,
	)
	return err
}

// Malformed writes one malformed-packet line.
func (s *Sink) Malformed(iface string, kind core.Malformed) error {
	s.malformed.Add(1)

	if s.format == FormatJSON {
		name := "malformed_ipv4"
		if kind == core.MalformedUDP {
			name = "malformed_udp"
		}
		return s.writeJSON(event{Interface: iface, Event: name})
	}

	_, err := fmt.Fprintf(s.w, "[%s]: Malformed %s Packet\n", iface, kind)
	return err
}

func (s *Sink) writeJSON(ev event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	data = append(data, '\n')
	_, err = s.w.Write(data)
	return err
}

// Counts returns the number of reports and malformed events written.
func (s *Sink) Counts() (reported, malformed uint64) {
	return s.reported.Load(), s.malformed.Load()
}
