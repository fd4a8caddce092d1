// Package decoder implements the fixed-format L2-L4 header decoders. Every
// decoder returns its header and a payload sub-slice of the input; nothing is
// copied and nothing panics on short input.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/hmsniff/internal/core"
)

const (
	// Ethernet constants
	EthernetHeaderLen = 14
	vlanHeaderLen     = 4
)

// DecodeEthernet decodes the Ethernet frame header. When unwrapVLAN is set,
// 802.1Q and QinQ tags are skipped and EtherType is the innermost one.
// Returns EthernetHeader and remaining payload.
func DecodeEthernet(data []byte, unwrapVLAN bool) (core.EthernetHeader, []byte, error) {
	if len(data) < EthernetHeaderLen {
		return core.EthernetHeader{}, nil, core.ErrPacketTooShort
	}

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], data[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := EthernetHeaderLen

	if unwrapVLAN {
		for etherType == core.EtherTypeVLAN || etherType == core.EtherTypeQinQ {
			if len(data) < offset+vlanHeaderLen {
				return eth, nil, core.ErrPacketTooShort
			}

			// VLAN header: 2 bytes TCI + 2 bytes EtherType
			tci := binary.BigEndian.Uint16(data[offset : offset+2])
			eth.VLANs = append(eth.VLANs, tci&0x0FFF)

			etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
			offset += vlanHeaderLen
		}
	}

	eth.EtherType = etherType
	return eth, data[offset:], nil
}
