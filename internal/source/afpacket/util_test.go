package afpacket

import (
	"testing"
)

func TestRecomputeSize(t *testing.T) {
	tests := []struct {
		name         string
		bufferSizeMB int
		snapLen      int
		pageSize     int
	}{
		{"default", 8, 65535, 4096},
		{"small snaplen", 8, 1514, 4096},
		{"one megabyte", 1, 2048, 4096},
		{"large pages", 64, 9000, 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frameSize, blockSize, numBlocks, err := recomputeSize(tt.bufferSizeMB, tt.snapLen, tt.pageSize)
			if err != nil {
				t.Fatalf("recomputeSize failed: %v", err)
			}
			if frameSize%tpacketAlignment != 0 {
				t.Errorf("frameSize %d not aligned to %d", frameSize, tpacketAlignment)
			}
			if frameSize < tt.snapLen {
				t.Errorf("frameSize %d smaller than snapLen %d", frameSize, tt.snapLen)
			}
			if blockSize%tt.pageSize != 0 {
				t.Errorf("blockSize %d not a multiple of page size %d", blockSize, tt.pageSize)
			}
			if blockSize%frameSize != 0 {
				t.Errorf("blockSize %d not a multiple of frameSize %d", blockSize, frameSize)
			}
			if blockSize < frameSize {
				t.Errorf("blockSize %d cannot hold a frame of %d", blockSize, frameSize)
			}
			if numBlocks < 1 {
				t.Errorf("numBlocks %d < 1", numBlocks)
			}
		})
	}
}

func TestRecomputeSizeInvalid(t *testing.T) {
	tests := []struct {
		name                            string
		bufferSizeMB, snapLen, pageSize int
	}{
		{"zero buffer", 0, 1514, 4096},
		{"negative snaplen", 8, -1, 4096},
		{"zero page", 8, 1514, 0},
		{"unaligned page", 8, 1514, 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := recomputeSize(tt.bufferSizeMB, tt.snapLen, tt.pageSize); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestRecomputeSizeDefaults(t *testing.T) {
	// snap_len 65535 with an 8 MB buffer on 4 KiB pages
	frameSize, blockSize, numBlocks, err := recomputeSize(8, 65535, 4096)
	if err != nil {
		t.Fatalf("recomputeSize failed: %v", err)
	}
	if frameSize != 69632 {
		t.Errorf("frameSize = %d, want 69632", frameSize)
	}
	if blockSize != 60*69632 {
		t.Errorf("blockSize = %d, want %d", blockSize, 60*69632)
	}
	if blockSize > maxBlockSize {
		t.Errorf("blockSize %d exceeds %d", blockSize, maxBlockSize)
	}
	if numBlocks != 2 {
		t.Errorf("numBlocks = %d, want 2", numBlocks)
	}
}

func TestLCM(t *testing.T) {
	if got := lcm(4096, 1568); got != 200704 {
		t.Errorf("lcm(4096, 1568) = %d, want 200704", got)
	}
	if got := lcm(0, 16); got != 0 {
		t.Errorf("lcm(0, 16) = %d, want 0", got)
	}
}
