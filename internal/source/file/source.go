// Package file replays frames from a pcap or pcapng file.
package file

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/core"
	"firestige.xyz/hmsniff/internal/source"
)

const Name = config.SourceFile

// pcapng section header block magic
var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads frames from a capture file. ReadPacket returns io.EOF at the
// end of the file.
type Source struct {
	path   string
	f      *os.File
	reader packetReader
}

func init() {
	source.Register(Name, func(cfg config.CaptureConfig) (source.Source, error) {
		return NewSource(cfg)
	})
}

// NewSource opens cfg.File. Only Ethernet captures are accepted.
func NewSource(cfg config.CaptureConfig) (*Source, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("file path is required")
	}

	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", cfg.File, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header of %s: %w", cfg.File, err)
	}

	var r packetReader
	if bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse pcap file %s: %w", cfg.File, err)
	}

	if lt := r.LinkType(); lt != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("%w: %s has link type %s", source.ErrUnsupportedLink, cfg.File, lt)
	}

	return &Source{path: cfg.File, f: f, reader: r}, nil
}

func (s *Source) Name() string {
	return Name
}

// ReadPacket returns the next frame, or io.EOF when the file is exhausted.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.reader == nil {
		return core.RawPacket{}, &source.Error{Op: "read", Source: Name, Err: fmt.Errorf("file source closed")}
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, &source.Error{Op: "read", Source: Name, Err: err}
	}

	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.reader = nil
	return err
}
