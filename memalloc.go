package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// ImageCreateArgs bundles the parameters for a single allocated+bound
// vk.Image, grounded on the teacher's CoreImage (image.go) constructor.
type ImageCreateArgs struct {
	Extent      vk.Extent3D
	Format      vk.Format
	Usage       vk.ImageUsageFlagBits
	Tiling      vk.ImageTiling
	Samples     vk.SampleCountFlagBits
	MipLevels   uint32
	ArrayLayers uint32
	Properties  vk.MemoryPropertyFlagBits
}

// BufferCreateArgs bundles the parameters for a single allocated+bound
// vk.Buffer, grounded on the teacher's CoreBuffer (buffers.go)
// constructor.
type BufferCreateArgs struct {
	Size       vk.DeviceSize
	Usage      vk.BufferUsageFlagBits
	Properties vk.MemoryPropertyFlagBits
}

// allocationInfo records the (size, memory-type) of a single
// vkAllocateMemory call so FreeImage/FreeBuffer can report the real
// freed values to the debug sink instead of zeroes.
type allocationInfo struct {
	size vk.DeviceSize
	typ  uint32
}

// MemoryAllocator wraps raw vk.Image/vk.Buffer creation with the
// device-memory allocate/bind dance, routing every allocate/free through
// the device's DebugSink at trace level so callers get the teacher's
// allocatorCallback-style visibility without hand-rolling it at every
// call site.
type MemoryAllocator struct {
	device *Device

	allocations map[vk.DeviceMemory]allocationInfo
}

// NewMemoryAllocator builds a MemoryAllocator bound to device.
func NewMemoryAllocator(device *Device) *MemoryAllocator {
	return &MemoryAllocator{device: device, allocations: make(map[vk.DeviceMemory]allocationInfo)}
}

// CreateImage allocates and binds device memory for a new vk.Image, the
// way the teacher's CoreImage constructor does for depth/color
// attachments (image.go), generalized to arbitrary usage/format/sample
// combinations for the render graph's attachment containers.
func (a *MemoryAllocator) CreateImage(args ImageCreateArgs) (image vk.Image, memory vk.DeviceMemory, err error) {
	defer checkErr(&err)

	device := a.device.Handle()

	samples := args.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	mipLevels := args.MipLevels
	if mipLevels == 0 {
		mipLevels = 1
	}
	arrayLayers := args.ArrayLayers
	if arrayLayers == 0 {
		arrayLayers = 1
	}

	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        args.Format,
		Extent:        args.Extent,
		MipLevels:     mipLevels,
		ArrayLayers:   arrayLayers,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        args.Tiling,
		Usage:         vk.ImageUsageFlags(args.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	orPanic(vkErr(ret))

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &reqs)
	reqs.Deref()

	typeIndex, terr := a.device.memoryTypeIndex(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(args.Properties))
	orPanic(terr)

	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if isError(ret) {
		vk.DestroyImage(device, image, nil)
		orPanic(vkErr(ret))
	}

	ret = vk.BindImageMemory(device, image, memory, 0)
	if isError(ret) {
		vk.FreeMemory(device, memory, nil)
		vk.DestroyImage(device, image, nil)
		orPanic(vkErr(ret))
	}

	a.allocations[memory] = allocationInfo{size: reqs.Size, typ: typeIndex}
	allocatorCallback(a.device.Sink(), "alloc image", reqs.Size, typeIndex)
	return image, memory, nil
}

// CreateBuffer allocates and binds device memory for a new vk.Buffer,
// grounded on the teacher's CoreBuffer constructor (buffers.go).
func (a *MemoryAllocator) CreateBuffer(args BufferCreateArgs) (buffer vk.Buffer, memory vk.DeviceMemory, err error) {
	defer checkErr(&err)

	device := a.device.Handle()

	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        args.Size,
		Usage:       vk.BufferUsageFlags(args.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	orPanic(vkErr(ret))

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &reqs)
	reqs.Deref()

	typeIndex, terr := a.device.memoryTypeIndex(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(args.Properties))
	orPanic(terr)

	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if isError(ret) {
		vk.DestroyBuffer(device, buffer, nil)
		orPanic(vkErr(ret))
	}

	ret = vk.BindBufferMemory(device, buffer, memory, 0)
	if isError(ret) {
		vk.FreeMemory(device, memory, nil)
		vk.DestroyBuffer(device, buffer, nil)
		orPanic(vkErr(ret))
	}

	a.allocations[memory] = allocationInfo{size: reqs.Size, typ: typeIndex}
	allocatorCallback(a.device.Sink(), "alloc buffer", reqs.Size, typeIndex)
	return buffer, memory, nil
}

// takeAllocation looks up and forgets the (size, memory-type) recorded
// for memory at creation, used so the free-side callback reports the
// actual freed values instead of zeroes.
func (a *MemoryAllocator) takeAllocation(memory vk.DeviceMemory) allocationInfo {
	info := a.allocations[memory]
	delete(a.allocations, memory)
	return info
}

// FreeImage destroys image and frees its backing memory.
func (a *MemoryAllocator) FreeImage(image vk.Image, memory vk.DeviceMemory) {
	device := a.device.Handle()
	info := a.takeAllocation(memory)
	vk.DestroyImage(device, image, nil)
	vk.FreeMemory(device, memory, nil)
	allocatorCallback(a.device.Sink(), "free image", info.size, info.typ)
}

// FreeBuffer destroys buffer and frees its backing memory.
func (a *MemoryAllocator) FreeBuffer(buffer vk.Buffer, memory vk.DeviceMemory) {
	device := a.device.Handle()
	info := a.takeAllocation(memory)
	vk.DestroyBuffer(device, buffer, nil)
	vk.FreeMemory(device, memory, nil)
	allocatorCallback(a.device.Sink(), "free buffer", info.size, info.typ)
}

// CreateImageView creates a view over image with the given format and
// aspect mask, the pattern repeated across the teacher's CoreImage,
// CoreSwapchain, and resources code for color/depth attachments.
func (a *MemoryAllocator) CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (view vk.ImageView, err error) {
	ret := vk.CreateImageView(a.device.Handle(), &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	return view, vkErr(ret)
}
