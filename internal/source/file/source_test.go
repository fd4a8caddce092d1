package file

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/source"
)

func writePcap(t *testing.T, link layers.LinkType, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, link))
	ts := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Second),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return path
}

func TestReadFramesUntilEOF(t *testing.T) {
	frames := [][]byte{
		make([]byte, 60),
		make([]byte, 90),
	}
	path := writePcap(t, layers.LinkTypeEthernet, frames...)

	src, err := source.Open(config.CaptureConfig{Source: Name, File: path})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "file", src.Name())

	for i, want := range frames {
		pkt, err := src.ReadPacket()
		require.NoError(t, err, "frame %d", i)
		assert.Len(t, pkt.Data, len(want))
		assert.Equal(t, uint32(len(want)), pkt.CaptureLen)
		assert.Equal(t, time.Date(2026, 10, 18, 8, 0, i, 0, time.UTC), pkt.Timestamp.UTC())
	}

	_, err = src.ReadPacket()
	assert.Equal(t, io.EOF, err)
}

func TestRejectsNonEthernet(t *testing.T) {
	path := writePcap(t, layers.LinkTypeRaw, make([]byte, 20))

	_, err := source.Open(config.CaptureConfig{Source: Name, File: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUnsupportedLink)
	assert.False(t, source.Retryable(err))
}

func TestMissingFile(t *testing.T) {
	_, err := source.Open(config.CaptureConfig{Source: Name, File: filepath.Join(t.TempDir(), "none.pcap")})
	require.Error(t, err)

	var serr *source.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "open", serr.Op)
}

func TestReadAfterClose(t *testing.T) {
	src, err := NewSource(config.CaptureConfig{File: writePcap(t, layers.LinkTypeEthernet, make([]byte, 60))})
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.ReadPacket()
	assert.Error(t, err)
}
