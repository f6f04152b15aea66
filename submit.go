package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// immediateSubmitter backs Device.ImmediateSubmit: a
// dedicated command pool and fence used for synchronous, one-shot GPU
// operations such as buffer uploads. Grounded on the teacher's
// context.go flushInitCmd, which the source leaves as a stub — this
// completes it rather than leaving the TODO, since spec §4.5 requires
// the facility to exist.
type immediateSubmitter struct {
	device vk.Device
	pool   vk.CommandPool
	fence  vk.Fence
	queue  vk.Queue
}

func newImmediateSubmitter(device vk.Device, queueFamily uint32, queue vk.Queue) (*immediateSubmitter, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}, nil, &pool)
	if isError(ret) {
		return nil, vkErr(ret)
	}

	var fence vk.Fence
	ret = vk.CreateFence(device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &fence)
	if isError(ret) {
		vk.DestroyCommandPool(device, pool, nil)
		return nil, vkErr(ret)
	}

	return &immediateSubmitter{device: device, pool: pool, fence: fence, queue: queue}, nil
}

// submit allocates a primary command buffer, invokes fn between
// Begin(OneTimeSubmit) and End, submits on the graphics queue with a
// dedicated fence, waits for completion, and resets the pool. The
// caller's recorded work is synchronous and must not assume parallelism
// with the frame loop.
func (s *immediateSubmitter) submit(fn func(cmd vk.CommandBuffer)) error {
	var cmd vk.CommandBuffer
	ret := vk.AllocateCommandBuffers(s.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        s.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, &cmd)
	if isError(ret) {
		return vkErr(ret)
	}

	ret = vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return vkErr(ret)
	}

	fn(cmd)

	ret = vk.EndCommandBuffer(cmd)
	if isError(ret) {
		return vkErr(ret)
	}

	ret = vk.QueueSubmit(s.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, s.fence)
	if isError(ret) {
		return vkErr(ret)
	}

	ret = vk.WaitForFences(s.device, 1, []vk.Fence{s.fence}, vk.True, vk.MaxUint64)
	if isError(ret) {
		return vkErr(ret)
	}
	ret = vk.ResetFences(s.device, 1, []vk.Fence{s.fence})
	if isError(ret) {
		return vkErr(ret)
	}
	vk.ResetCommandPool(s.device, s.pool, vk.CommandPoolResetFlags(0))
	return nil
}

func (s *immediateSubmitter) destroy(device vk.Device) {
	vk.DestroyFence(device, s.fence, nil)
	vk.DestroyCommandPool(device, s.pool, nil)
}
