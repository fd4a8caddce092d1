// Package pcap captures frames through libpcap.
package pcap

import (
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/core"
	"firestige.xyz/hmsniff/internal/source"
)

const Name = config.SourcePcap

// Source reads frames from a libpcap live handle.
type Source struct {
	handle *pcap.Handle
	device string
}

func init() {
	source.Register(Name, func(cfg config.CaptureConfig) (source.Source, error) {
		return NewSource(cfg)
	})
}

// NewSource activates a live handle on cfg.Interface.
func NewSource(cfg config.CaptureConfig) (*Source, error) {
	iface, err := source.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, &source.Error{Op: "open", Source: Name, Interface: cfg.Interface, Err: err}
	}

	openErr := func(err error) error {
		return &source.Error{Op: "open", Source: Name, Interface: iface.Name, Err: err}
	}

	inactive, err := pcap.NewInactiveHandle(iface.Name)
	if err != nil {
		return nil, openErr(err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(cfg.SnapLen); err != nil {
		return nil, openErr(err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, openErr(err)
	}
	if err := inactive.SetTimeout(cfg.PollTimeout); err != nil {
		return nil, openErr(err)
	}
	if cfg.BufferSizeMB > 0 {
		if err := inactive.SetBufferSize(cfg.BufferSizeMB * 1024 * 1024); err != nil {
			return nil, openErr(err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, openErr(err)
	}

	if lt := handle.LinkType(); lt != layers.LinkTypeEthernet {
		handle.Close()
		return nil, openErr(fmt.Errorf("%w: %s", source.ErrUnsupportedLink, lt))
	}

	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, openErr(fmt.Errorf("%w: %q: %v", source.ErrBadFilter, cfg.BPFFilter, err))
		}
	}

	return &Source{handle: handle, device: iface.Name}, nil
}

func (s *Source) Name() string {
	return Name
}

// ReadPacket returns the next frame. The data is only valid until the next call.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.handle == nil {
		return core.RawPacket{}, &source.Error{Op: "read", Source: Name, Interface: s.device, Err: errors.New("source closed")}
	}

	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			return core.RawPacket{}, source.ErrTimeout
		}
		return core.RawPacket{}, &source.Error{Op: "read", Source: Name, Interface: s.device, Err: err}
	}

	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

// Stats returns libpcap's received and dropped counters.
func (s *Source) Stats() (received, dropped uint64, err error) {
	if s.handle == nil {
		return 0, 0, errors.New("source closed")
	}
	st, err := s.handle.Stats()
	if err != nil {
		return 0, 0, err
	}
	return uint64(st.PacketsReceived), uint64(st.PacketsDropped + st.PacketsIfDropped), nil
}

func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

// Device is a capturable interface as reported by libpcap.
type Device struct {
	Name        string
	Description string
	Addresses   []string
}

// Devices lists the interfaces libpcap can open.
func Devices() ([]Device, error) {
	ifs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}
	devices := make([]Device, 0, len(ifs))
	for _, ifc := range ifs {
		d := Device{Name: ifc.Name, Description: ifc.Description}
		for _, a := range ifc.Addresses {
			if a.IP != nil {
				d.Addresses = append(d.Addresses, a.IP.String())
			}
		}
		devices = append(devices, d)
	}
	return devices, nil
}
