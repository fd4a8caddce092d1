package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded
	maxBlockSize     = 4 * 1024 * 1024
)

// recomputeSize derives TPACKET_V3 ring geometry from a memory budget.
//
// The kernel requires frameSize to be a multiple of TPACKET_ALIGNMENT and
// blockSize a multiple of both the page size and frameSize. Frames larger
// than a page are rounded up to whole pages so that blocks stay small.
// blockSize*numBlocks approximates bufferSizeMB.
func recomputeSize(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be positive and a multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)
	if frameSize > pageSize {
		frameSize = alignUp(frameSize, pageSize)
	}

	// smallest block holding whole frames and whole pages, then as many
	// of those as fit under maxBlockSize
	blockSize = lcm(pageSize, frameSize)
	if n := maxBlockSize / blockSize; n > 1 {
		blockSize *= n
	}

	numBlocks = bufferSizeMB * 1024 * 1024 / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
