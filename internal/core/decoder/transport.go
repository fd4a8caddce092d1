package decoder

import (
	"encoding/binary"

	"firestige.xyz/hmsniff/internal/core"
)

const UDPHeaderLen = 8

// DecodeUDP decodes a UDP header. Length is reported as declared; it is not
// checked against len(data).
func DecodeUDP(data []byte) (core.UDPHeader, []byte, error) {
	if len(data) < UDPHeaderLen {
		return core.UDPHeader{}, nil, core.ErrPacketTooShort
	}

	udp := core.UDPHeader{
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		DstPort: binary.BigEndian.Uint16(data[2:4]),
		Length:  binary.BigEndian.Uint16(data[4:6]),
	}
	// Checksum (2 bytes at offset 6) - not verified

	return udp, data[UDPHeaderLen:], nil
}
