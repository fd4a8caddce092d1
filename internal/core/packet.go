package core

import (
	"net/netip"
	"time"
)

// RawPacket is one captured link-layer frame. Data may reference the capture
// ring buffer and is only valid until the next read from the source.
type RawPacket struct {
	Data       []byte
	Timestamp  time.Time
	CaptureLen uint32
	OrigLen    uint32
}

// Report is a UDP datagram addressed to the monitored multicast group.
type Report struct {
	Interface string
	Timestamp time.Time
	SrcIP     netip.Addr
	SrcPort   uint16
	DstIP     netip.Addr
	DstPort   uint16
	Length    uint16 // declared UDP length
	Captured  int    // UDP bytes actually present in the capture, header included
}

// Truncated reports whether the declared UDP length exceeds the captured bytes.
func (r Report) Truncated() bool {
	return int(r.Length) > r.Captured
}

// Malformed classifies a per-packet decode failure reported to the sink.
type Malformed uint8

const (
	MalformedIPv4 Malformed = iota + 1
	MalformedUDP
)

func (m Malformed) String() string {
	switch m {
	case MalformedIPv4:
		return "IPv4"
	case MalformedUDP:
		return "UDP"
	default:
		return "unknown"
	}
}
