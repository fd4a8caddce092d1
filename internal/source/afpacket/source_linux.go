//go:build linux

// Package afpacket captures frames from a TPACKET_V3 memory-mapped ring.
package afpacket

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket/afpacket"
	"golang.org/x/sys/unix"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/core"
	"firestige.xyz/hmsniff/internal/log"
	"firestige.xyz/hmsniff/internal/source"
	"firestige.xyz/hmsniff/internal/utils"
)

const Name = config.SourceAFPacket

// Source reads frames from an AF_PACKET ring bound to one interface.
type Source struct {
	handle  *afpacket.TPacket
	promisc int // side socket holding PACKET_MR_PROMISC, -1 when unused

	device    string
	frameSize int
	blockSize int
	numBlocks int
}

func init() {
	source.Register(Name, func(cfg config.CaptureConfig) (source.Source, error) {
		return NewSource(cfg)
	})
}

// NewSource resolves the interface, sizes the ring and opens it.
func NewSource(cfg config.CaptureConfig) (*Source, error) {
	iface, err := source.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, &source.Error{Op: "open", Source: Name, Interface: cfg.Interface, Err: err}
	}

	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, &source.Error{Op: "open", Source: Name, Interface: cfg.Interface, Err: err}
	}

	s := &Source{
		promisc:   -1,
		device:    iface.Name,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.device),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(cfg.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, &source.Error{Op: "open", Source: Name, Interface: s.device, Err: err}
	}
	s.handle = tp

	if cfg.BPFFilter != "" {
		if err := s.setFilter(cfg.BPFFilter, cfg.SnapLen); err != nil {
			s.Close()
			return nil, &source.Error{Op: "open", Source: Name, Interface: s.device, Err: err}
		}
	}

	if cfg.Promiscuous {
		fd, err := enablePromisc(iface.Index)
		if err != nil {
			s.Close()
			return nil, &source.Error{Op: "open", Source: Name, Interface: s.device, Err: err}
		}
		s.promisc = fd
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":  s.device,
		"frame_size": s.frameSize,
		"block_size": s.blockSize,
		"num_blocks": s.numBlocks,
	}).Debug("afpacket ring opened")

	return s, nil
}

func (s *Source) setFilter(expr string, snapLen int) error {
	raw, err := utils.CompileBPF(expr, snapLen)
	if err != nil {
		return err
	}
	return s.handle.SetBPF(raw)
}

// enablePromisc adds a promiscuous membership on ifindex. The kernel keeps it
// for as long as the returned socket stays open.
func enablePromisc(ifindex int) (int, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, 0)
	if err != nil {
		return -1, fmt.Errorf("packet socket: %w", err)
	}
	mreq := unix.PacketMreq{
		Ifindex: int32(ifindex),
		Type:    unix.PACKET_MR_PROMISC,
	}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("enable promiscuous mode: %w", err)
	}
	return fd, nil
}

func (s *Source) Name() string {
	return Name
}

// ReadPacket returns the next frame. The data aliases the ring and is only
// valid until the next call.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.handle == nil {
		return core.RawPacket{}, &source.Error{Op: "read", Source: Name, Interface: s.device, Err: errors.New("source closed")}
	}

	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) {
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

// Stats returns the kernel's packet and drop counters for the ring.
func (s *Source) Stats() (received, dropped uint64, err error) {
	if s.handle == nil {
		return 0, 0, errors.New("source closed")
	}
	_, v3, err := s.handle.SocketStats()
	if err != nil {
		return 0, 0, err
	}
	return uint64(v3.Packets()), uint64(v3.Drops()), nil
}

func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	if s.promisc >= 0 {
		err := unix.Close(s.promisc)
		s.promisc = -1
		return err
	}
	return nil
}
