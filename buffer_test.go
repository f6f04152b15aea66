package bindlessvk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestRoundUpAlignsToBoundary(t *testing.T) {
	cases := []struct {
		v, align, want vk.DeviceSize
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{100, 64, 128},
		{64, 64, 64},
	}
	for _, c := range cases {
		if got := roundUp(c.v, c.align); got != c.want {
			t.Errorf("roundUp(%d, %d) = %d, want %d", c.v, c.align, got, c.want)
		}
	}
}

func TestRoundUpZeroAlignmentIsIdentity(t *testing.T) {
	if got := roundUp(123, 0); got != 123 {
		t.Errorf("roundUp(123, 0) = %d, want 123 (no alignment requirement)", got)
	}
}

// TestBufferBlockSizeRoundsUpButValidBlockSizeStaysRequested pins down
// the invariant backing Buffer.DescriptorInfo: BlockSize is the
// alignment-rounded stride between blocks, ValidBlockSize is the
// caller's requested size, and WholeSize is blockSize*blockCount.
func TestBufferBlockSizeRoundsUpButValidBlockSizeStaysRequested(t *testing.T) {
	b := &Buffer{
		blockSize:      roundUp(100, 64),
		validBlockSize: 100,
		blockCount:     3,
	}
	b.wholeSize = b.blockSize * vk.DeviceSize(b.blockCount)

	if b.BlockSize() != 128 {
		t.Fatalf("BlockSize() = %d, want 128 (100 rounded up to 64-byte alignment)", b.BlockSize())
	}
	if b.ValidBlockSize() != 100 {
		t.Fatalf("ValidBlockSize() = %d, want 100", b.ValidBlockSize())
	}
	if b.WholeSize() != 384 {
		t.Fatalf("WholeSize() = %d, want 384", b.WholeSize())
	}

	info := b.DescriptorInfo(2)
	if info.Offset != 256 || info.Range != 128 {
		t.Fatalf("DescriptorInfo(2) = %+v, want {Offset:256 Range:128}", info)
	}
}
