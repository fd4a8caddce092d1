// Package core defines the header views and packet types shared by the
// decoder, pipeline and sinks. It has no external dependencies.
package core

import "net/netip"

// EtherType values understood by the frame decoder.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeVLAN uint16 = 0x8100
	EtherTypeQinQ uint16 = 0x88A8
)

// IPProtocol is the IPv4 next-protocol tag.
type IPProtocol uint8

// Protocol numbers the transport dispatcher knows by name.
const (
	IPProtocolICMP IPProtocol = 1
	IPProtocolTCP  IPProtocol = 6
	IPProtocolUDP  IPProtocol = 17
)

func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "icmp"
	case IPProtocolTCP:
		return "tcp"
	case IPProtocolUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// EthernetHeader represents the L2 frame header.
type EthernetHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16   // innermost EtherType when VLAN tags were unwrapped
	VLANs     []uint16 // 0~2 VLAN IDs, only populated when unwrapping is enabled
}

// IPv4Header represents the L3 header fields the pipeline reads.
type IPv4Header struct {
	IHL      uint8 // header length in 32-bit words
	TotalLen uint16
	TTL      uint8
	Protocol IPProtocol
	SrcIP    netip.Addr
	DstIP    netip.Addr
}

// HeaderLen returns the IPv4 header length in bytes.
func (h IPv4Header) HeaderLen() int {
	return int(h.IHL) * 4
}

// UDPHeader represents the L4 UDP header.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16 // self-declared, header included
}
