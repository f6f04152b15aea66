package bindlessvk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// CopyRegion describes a single src->dst byte range for Buffer.WriteBuffer.
type CopyRegion struct {
	SrcOffset vk.DeviceSize
	DstOffset vk.DeviceSize
	Size      vk.DeviceSize
}

// Buffer is a single vk.Buffer divided into BlockCount fixed-size
// blocks, each block-size-aligned to the device's minimum uniform or
// storage buffer offset alignment so any block can be bound directly
// as a dynamic-offset descriptor.
type Buffer struct {
	alloc  *MemoryAllocator
	device *Device

	handle    vk.Buffer
	memory    vk.DeviceMemory
	usage     vk.BufferUsageFlagBits
	debugName string

	blockSize      vk.DeviceSize
	validBlockSize vk.DeviceSize
	blockCount     uint32
	wholeSize      vk.DeviceSize

	mapped    unsafe.Pointer
	isMapped  bool
}

// NewBuffer creates a Buffer of blockCount blocks, each at least
// minBlockSize bytes, rounded up to the device's minimum uniform or
// storage buffer offset alignment depending on usage.
func NewBuffer(alloc *MemoryAllocator, device *Device, minBlockSize vk.DeviceSize, blockCount uint32, usage vk.BufferUsageFlagBits, properties vk.MemoryPropertyFlagBits, debugName string) (*Buffer, error) {
	align := device.MinUniformBufferOffsetAlignment()
	if usage&vk.BufferUsageFlagBits(vk.BufferUsageStorageBufferBit) != 0 {
		if ssbo := device.MinStorageBufferOffsetAlignment(); ssbo > align {
			align = ssbo
		}
	}
	if align == 0 {
		align = 1
	}

	blockSize := roundUp(minBlockSize, align)
	wholeSize := blockSize * vk.DeviceSize(blockCount)

	handle, memory, err := alloc.CreateBuffer(BufferCreateArgs{
		Size:       wholeSize,
		Usage:      usage,
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	return &Buffer{
		alloc:          alloc,
		device:         device,
		handle:         handle,
		memory:         memory,
		usage:          usage,
		debugName:      debugName,
		blockSize:      blockSize,
		validBlockSize: minBlockSize,
		blockCount:     blockCount,
		wholeSize:      wholeSize,
	}, nil
}

func roundUp(v, align vk.DeviceSize) vk.DeviceSize {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// Handle returns the underlying vk.Buffer.
func (b *Buffer) Handle() vk.Buffer { return b.handle }

// BlockSize returns the alignment-rounded per-block stride.
func (b *Buffer) BlockSize() vk.DeviceSize { return b.blockSize }

// ValidBlockSize returns the requested (pre-rounding) block size.
func (b *Buffer) ValidBlockSize() vk.DeviceSize { return b.validBlockSize }

// WholeSize returns block-size * block-count.
func (b *Buffer) WholeSize() vk.DeviceSize { return b.wholeSize }

// DescriptorInfo returns a vk.DescriptorBufferInfo for block i, range
// BlockSize, for use in descriptor writes.
func (b *Buffer) DescriptorInfo(i uint32) vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.handle,
		Offset: vk.DeviceSize(i) * b.blockSize,
		Range:  b.blockSize,
	}
}

// MapBlock maps the whole buffer (if not already mapped) and returns a
// pointer to the start of block i. An existing mapping is reused, so
// repeated MapBlock calls without Unmap share one mapping.
func (b *Buffer) MapBlock(i uint32) (unsafe.Pointer, error) {
	if err := b.ensureMapped(); err != nil {
		return nil, err
	}
	return unsafe.Pointer(uintptr(b.mapped) + uintptr(i)*uintptr(b.blockSize)), nil
}

// MapBlockZeroed maps block i the way MapBlock does, additionally
// zeroing its bytes before returning the pointer.
func (b *Buffer) MapBlockZeroed(i uint32) (unsafe.Pointer, error) {
	ptr, err := b.MapBlock(i)
	if err != nil {
		return nil, err
	}
	zero := make([]byte, b.blockSize)
	vk.Memcopy(ptr, zero)
	return ptr, nil
}

// MapAll maps the buffer and returns a pointer to every block in order
//.
func (b *Buffer) MapAll() ([]unsafe.Pointer, error) {
	if err := b.ensureMapped(); err != nil {
		return nil, err
	}
	ptrs := make([]unsafe.Pointer, b.blockCount)
	for i := uint32(0); i < b.blockCount; i++ {
		ptrs[i] = unsafe.Pointer(uintptr(b.mapped) + uintptr(i)*uintptr(b.blockSize))
	}
	return ptrs, nil
}

func (b *Buffer) ensureMapped() error {
	if b.isMapped {
		return nil
	}
	var data unsafe.Pointer
	ret := vk.MapMemory(b.device.Handle(), b.memory, 0, b.wholeSize, 0, &data)
	if isError(ret) {
		return vkErr(ret)
	}
	b.mapped = data
	b.isMapped = true
	return nil
}

// Unmap is idempotent.
func (b *Buffer) Unmap() {
	if !b.isMapped {
		return
	}
	vk.UnmapMemory(b.device.Handle(), b.memory)
	b.mapped = nil
	b.isMapped = false
}

// WriteBuffer records a GPU copy from src into this buffer at region,
// through the device's immediate-submit facility, and blocks until
// completion.
func (b *Buffer) WriteBuffer(src *Buffer, region CopyRegion) error {
	return b.device.ImmediateSubmit(func(cmd vk.CommandBuffer) {
		vk.CmdCopyBuffer(cmd, src.handle, b.handle, 1, []vk.BufferCopy{{
			SrcOffset: region.SrcOffset,
			DstOffset: region.DstOffset,
			Size:      region.Size,
		}})
	})
}

// Destroy unmaps (if mapped) and frees the buffer's resources.
func (b *Buffer) Destroy() {
	b.Unmap()
	b.alloc.FreeBuffer(b.handle, b.memory)
}
