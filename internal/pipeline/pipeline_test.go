package pipeline

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/hmsniff/internal/core"
	"firestige.xyz/hmsniff/internal/sink/console"
)

var smaGroup = netip.MustParseAddr("239.12.255.254")

const udpLengthOffset = 14 + 20 + 4

func newTestPipeline(t *testing.T, iface string) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	sink, err := console.NewSink(&buf, console.FormatText)
	require.NoError(t, err)
	return New(Settings{Interface: iface, Group: smaGroup}, sink), &buf
}

// serialize builds an Ethernet frame around the given network layers.
func serialize(t *testing.T, ethType layers.EthernetType, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x40, 0xAD, 0x12, 0x34, 0x56},
		DstMAC:       net.HardwareAddr{0x01, 0x00, 0x5E, 0x0C, 0xFF, 0xFE},
		EthernetType: ethType,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, append([]gopacket.SerializableLayer{eth}, ls...)...))
	return buf.Bytes()
}

func ipv4Layer(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      1,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}

func udpFrame(t *testing.T, src string, sport uint16, dst string, dport uint16, payloadLen int) []byte {
	t.Helper()
	ip := ipv4Layer(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, layers.EthernetTypeIPv4, ip, udp, gopacket.Payload(make([]byte, payloadLen)))
}

func raw(data []byte) core.RawPacket {
	return core.RawPacket{Data: data, Timestamp: time.Unix(1760788800, 0), CaptureLen: uint32(len(data)), OrigLen: uint32(len(data))}
}

func TestReportForGroupDestination(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	frame := udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)
	outcome, err := p.Handle(raw(frame))

	require.NoError(t, err)
	assert.Equal(t, OutcomeReported, outcome)
	assert.Equal(t, "[eth0]: UDP Packet: 10.0.0.5:1234 > 239.12.255.254:9522; length: 48:\n", out.String())
}

func TestOtherDestinationIsFiltered(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	frame := udpFrame(t, "10.0.0.5", 5353, "10.0.0.1", 53, 12)
	outcome, err := p.Handle(raw(frame))

	require.NoError(t, err)
	assert.Equal(t, OutcomeFiltered, outcome)
	assert.Empty(t, out.String())
}

func TestShortFrameFailsWithoutOutput(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	for n := 0; n < 14; n++ {
		outcome, err := p.Handle(raw(make([]byte, n)))
		require.NoError(t, err)
		assert.Equal(t, OutcomeMalformedFrame, outcome, "len %d", n)
	}
	assert.Empty(t, out.String())
	assert.Equal(t, uint64(14), p.Stats().MalformedFrame)
}

func TestNonIPv4EtherTypeIsDropped(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x00, 0x40, 0xAD, 0x12, 0x34, 0x56},
		SourceProtAddress: []byte{10, 0, 0, 5},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 1},
	}
	frames := [][]byte{
		serialize(t, layers.EthernetTypeARP, arp),
		// IPv6 ethertype with a payload that would be a malformed IPv4 header
		append([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 0x86, 0xDD}, 0x60, 0x00),
	}

	for _, f := range frames {
		outcome, err := p.Handle(raw(f))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDropped, outcome)
	}
	assert.Empty(t, out.String())
}

func TestVLANFrameDroppedUnlessUnwrapped(t *testing.T) {
	frame := udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)
	tagged := make([]byte, 0, len(frame)+4)
	tagged = append(tagged, frame[:12]...)
	tagged = append(tagged, 0x81, 0x00, 0x00, 0x0A)
	tagged = append(tagged, frame[12:]...)

	p, out := newTestPipeline(t, "eth0")
	outcome, err := p.Handle(raw(tagged))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.Empty(t, out.String())

	var buf bytes.Buffer
	sink, err := console.NewSink(&buf, console.FormatText)
	require.NoError(t, err)
	vp := New(Settings{Interface: "eth0", Group: smaGroup, UnwrapVLAN: true}, sink)
	outcome, err = vp.Handle(raw(tagged))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReported, outcome)
	assert.Equal(t, "[eth0]: UDP Packet: 10.0.0.5:1234 > 239.12.255.254:9522; length: 48:\n", buf.String())
}

func TestShortIPv4IsMalformed(t *testing.T) {
	p, out := newTestPipeline(t, "br-lan")

	frame := append([]byte{
		0x01, 0x00, 0x5E, 0x0C, 0xFF, 0xFE,
		0x00, 0x40, 0xAD, 0x12, 0x34, 0x56,
		0x08, 0x00,
	}, make([]byte, 19)...)
	frame[14] = 0x45

	outcome, err := p.Handle(raw(frame))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformedIPv4, outcome)
	assert.Equal(t, "[br-lan]: Malformed IPv4 Packet\n", out.String())

	// the next packet is processed normally
	outcome, err = p.Handle(raw(udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReported, outcome)
}

func TestNonUDPIsIgnored(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	protos := []layers.IPProtocol{layers.IPProtocolICMPv4, layers.IPProtocolTCP, layers.IPProtocolIGMP}
	for _, proto := range protos {
		frame := serialize(t, layers.EthernetTypeIPv4,
			ipv4Layer("10.0.0.5", "239.12.255.254", proto), gopacket.Payload([]byte{1, 2, 3}))
		outcome, err := p.Handle(raw(frame))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome, "protocol %v", proto)
	}
	assert.Empty(t, out.String())
}

func TestShortUDPIsMalformed(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	frame := serialize(t, layers.EthernetTypeIPv4,
		ipv4Layer("10.0.0.5", "239.12.255.254", layers.IPProtocolUDP), gopacket.Payload([]byte{0x04, 0xD2, 0x25, 0x32}))
	outcome, err := p.Handle(raw(frame))

	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformedUDP, outcome)
	assert.Equal(t, "[eth0]: Malformed UDP Packet\n", out.String())
}

func TestDeclaredLengthIsReportedWhenTruncated(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")

	frame := udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)
	binary.BigEndian.PutUint16(frame[udpLengthOffset:], 600)

	outcome, err := p.Handle(raw(frame))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReported, outcome)
	assert.Equal(t, "[eth0]: UDP Packet: 10.0.0.5:1234 > 239.12.255.254:9522; length: 600:\n", out.String())
	assert.Equal(t, uint64(1), p.Stats().Truncated)
}

func TestHandleIsIdempotent(t *testing.T) {
	p, out := newTestPipeline(t, "eth0")
	frame := udpFrame(t, "192.168.178.40", 9522, "239.12.255.254", 9522, 600-8)

	_, err := p.Handle(raw(frame))
	require.NoError(t, err)
	first := out.String()
	out.Reset()

	_, err = p.Handle(raw(frame))
	require.NoError(t, err)
	assert.Equal(t, first, out.String())
	assert.Equal(t, "[eth0]: UDP Packet: 192.168.178.40:9522 > 239.12.255.254:9522; length: 600:\n", first)
}

func TestHandleDoesNotModifyFrame(t *testing.T) {
	p, _ := newTestPipeline(t, "eth0")
	frame := udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)
	orig := append([]byte(nil), frame...)

	_, err := p.Handle(raw(frame))
	require.NoError(t, err)
	assert.Equal(t, orig, frame)
}

func TestStatsCountOutcomes(t *testing.T) {
	p, _ := newTestPipeline(t, "eth0")

	p.Handle(raw(udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)))
	p.Handle(raw(udpFrame(t, "10.0.0.5", 1234, "10.0.0.1", 53, 4)))
	p.Handle(raw([]byte{1, 2, 3}))

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(1), stats.Reported)
	assert.Equal(t, uint64(1), stats.Filtered)
	assert.Equal(t, uint64(1), stats.MalformedFrame)
	assert.Equal(t, uint64(3), stats.Fields()["received"])
}

type failingSink struct{}

func (failingSink) Report(core.Report) error               { return errors.New("broken pipe") }
func (failingSink) Malformed(string, core.Malformed) error { return errors.New("broken pipe") }

func TestSinkErrorIsReturned(t *testing.T) {
	p := New(Settings{Interface: "eth0", Group: smaGroup}, failingSink{})

	outcome, err := p.Handle(raw(udpFrame(t, "10.0.0.5", 1234, "239.12.255.254", 9522, 40)))
	assert.Equal(t, OutcomeReported, outcome)
	assert.EqualError(t, err, "broken pipe")
	assert.Equal(t, uint64(1), p.Stats().SinkErrors)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "reported", OutcomeReported.String())
	assert.Equal(t, "malformed_ipv4", OutcomeMalformedIPv4.String())
	assert.Equal(t, "outcome(200)", Outcome(200).String())
}
