package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/hmsniff/internal/core"
)

const IPv4HeaderMinLen = 20

// DecodeIPv4 decodes an IPv4 header.
// The payload starts after IHL*4 bytes and is cut at TotalLen when TotalLen
// fits the buffer, which strips Ethernet trailer padding.
func DecodeIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < IPv4HeaderMinLen {
		return core.IPv4Header{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPv4Header{
		IHL:      data[0] & 0x0F,
		TotalLen: binary.BigEndian.Uint16(data[2:4]),
		TTL:      data[8],
		Protocol: core.IPProtocol(data[9]),
		SrcIP:    netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:    netip.AddrFrom4([4]byte(data[16:20])),
	}

	headerLen := ip.HeaderLen()
	if headerLen < IPv4HeaderMinLen {
		return ip, nil, core.ErrBadHeaderLen
	}
	if len(data) < headerLen {
		return ip, nil, core.ErrPacketTooShort
	}

	end := len(data)
	if total := int(ip.TotalLen); total >= headerLen && total < end {
		end = total
	}
	return ip, data[headerLen:end], nil
}
