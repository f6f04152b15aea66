package bindlessvk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Fragment is a contiguous byte range handed out by FragmentedBuffer.Grab
//.
type Fragment struct {
	Offset vk.DeviceSize
	Length vk.DeviceSize
}

// FragmentedBuffer is a single large vertex/index arena managed by a
// free-list of Fragments, grounded on BindlessVk's FragmentedBuffer
// (Buffers/FragmentedBuffer.cpp). The buffer is mapped once, persistently,
// for its whole lifetime.
type FragmentedBuffer struct {
	alloc  *MemoryAllocator
	device *Device

	handle vk.Buffer
	memory vk.DeviceMemory
	usage  vk.BufferUsageFlagBits
	size   vk.DeviceSize

	mapped unsafe.Pointer

	// free holds fragments in insertion order, not sorted by offset;
	// Grab/Return both walk it front-to-back, matching the source.
	free []Fragment
}

// NewFragmentedBuffer allocates a size-byte buffer and maps it
// persistently, seeding the free list with one fragment covering the
// whole range.
func NewFragmentedBuffer(alloc *MemoryAllocator, device *Device, size vk.DeviceSize, usage vk.BufferUsageFlagBits) (*FragmentedBuffer, error) {
	handle, memory, err := alloc.CreateBuffer(BufferCreateArgs{
		Size:       size,
		Usage:      usage,
		Properties: vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit),
	})
	if err != nil {
		return nil, err
	}

	var data unsafe.Pointer
	ret := vk.MapMemory(device.Handle(), memory, 0, size, 0, &data)
	if isError(ret) {
		alloc.FreeBuffer(handle, memory)
		return nil, vkErr(ret)
	}

	return &FragmentedBuffer{
		alloc:  alloc,
		device: device,
		handle: handle,
		memory: memory,
		usage:  usage,
		size:   size,
		mapped: data,
		free:   []Fragment{{Offset: 0, Length: size}},
	}, nil
}

// Handle returns the underlying vk.Buffer.
func (f *FragmentedBuffer) Handle() vk.Buffer { return f.handle }

// Grab walks the free list in insertion order and chops a length-n
// region from the front of the first fragment large enough to satisfy
// it, failing with OutOfSpace if none qualifies.
func (f *FragmentedBuffer) Grab(n vk.DeviceSize) (Fragment, error) {
	for i, frag := range f.free {
		if frag.Length < n {
			continue
		}
		grabbed := Fragment{Offset: frag.Offset, Length: n}
		if frag.Length == n {
			f.free = append(f.free[:i], f.free[i+1:]...)
		} else {
			f.free[i] = Fragment{Offset: frag.Offset + n, Length: frag.Length - n}
		}
		return grabbed, nil
	}
	return Fragment{}, newErrorf(OutOfSpace, "fragmented buffer: no free region of at least %d bytes", n)
}

// Return walks the free list and merges the returned fragment with a
// predecessor or successor it is adjacent to, else appends it as a new
// entry. When the returned fragment fills the gap between two free
// fragments, both are folded into one entry, so no two free fragments
// are left adjacent.
//
// The source computes this adjacency test as
// fragment.offset+fragment.length == returned.offset-1 (and the mirror),
// an off-by-one that demands a one-byte gap before two ranges are
// considered touching (spec §9 open question: "is that intentional
// (guard byte) or a bug?"). Byte-for-byte round-tripping (testable
// property: returning every grabbed fragment restores the original
// single {0,total-size} free fragment, exercised by Scenario D) only
// holds if true end-to-start adjacency merges, so this implementation
// resolves the open question as a bug and merges on exact adjacency
// (existing.offset+existing.length == frag.offset, or the mirror)
// instead of carrying the one-byte gap forward.
func (f *FragmentedBuffer) Return(frag Fragment) {
	for i, existing := range f.free {
		merged := existing
		if existing.Offset+existing.Length == frag.Offset {
			merged.Length += frag.Length
		} else if frag.Offset+frag.Length == existing.Offset {
			merged = Fragment{Offset: frag.Offset, Length: frag.Length + existing.Length}
		} else {
			continue
		}
		f.free[i] = merged
		for j, other := range f.free {
			if j != i && (merged.Offset+merged.Length == other.Offset || other.Offset+other.Length == merged.Offset) {
				if other.Offset < merged.Offset {
					f.free[i].Offset = other.Offset
				}
				f.free[i].Length += other.Length
				f.free = append(f.free[:j], f.free[j+1:]...)
				return
			}
		}
		return
	}
	f.free = append(f.free, frag)
}

// BindVertex issues a vertex-buffer bind at the given binding slot.
func (f *FragmentedBuffer) BindVertex(cmd vk.CommandBuffer, binding uint32, offset vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cmd, binding, 1, []vk.Buffer{f.handle}, []vk.DeviceSize{offset})
}

// BindIndex issues an index-buffer bind.
func (f *FragmentedBuffer) BindIndex(cmd vk.CommandBuffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(cmd, f.handle, offset, indexType)
}

// Write copies data into the mapped region starting at fragment.Offset.
// The caller is responsible for keeping data within fragment.Length.
func (f *FragmentedBuffer) Write(fragment Fragment, data []byte) {
	dst := unsafe.Pointer(uintptr(f.mapped) + uintptr(fragment.Offset))
	vk.Memcopy(dst, data)
}

// Destroy unmaps and frees the buffer.
func (f *FragmentedBuffer) Destroy() {
	vk.UnmapMemory(f.device.Handle(), f.memory)
	f.alloc.FreeBuffer(f.handle, f.memory)
}
