package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// frameSync bundles one in-flight frame's command pools/buffers, fences
// and semaphores. Grounded on the teacher's managers.go
// (FenceManager/CommandBufferManager), generalized from a free-standing
// manager pair into one per-slot struct the renderer indexes by
// frame_index.
type frameSync struct {
	graphicsPool vk.CommandPool
	computePool  vk.CommandPool
	graphicsCmd  vk.CommandBuffer
	computeCmd   vk.CommandBuffer

	graphicsFence vk.Fence
	computeFence  vk.Fence

	computeSemaphore vk.Semaphore
	graphicsSemaphore vk.Semaphore
	presentSemaphore vk.Semaphore
}

func newFrameSync(device vk.Device, graphicsFamily, computeFamily uint32) (*frameSync, error) {
	s := &frameSync{}

	var err error
	if s.graphicsPool, err = createCommandPool(device, graphicsFamily); err != nil {
		return nil, err
	}
	if s.computePool, err = createCommandPool(device, computeFamily); err != nil {
		return nil, err
	}

	if s.graphicsCmd, err = allocatePrimaryCommandBuffer(device, s.graphicsPool); err != nil {
		return nil, err
	}
	if s.computeCmd, err = allocatePrimaryCommandBuffer(device, s.computePool); err != nil {
		return nil, err
	}

	if s.graphicsFence, err = createFence(device, true); err != nil {
		return nil, err
	}
	if s.computeFence, err = createFence(device, true); err != nil {
		return nil, err
	}

	if s.computeSemaphore, err = createSemaphore(device); err != nil {
		return nil, err
	}
	if s.graphicsSemaphore, err = createSemaphore(device); err != nil {
		return nil, err
	}
	if s.presentSemaphore, err = createSemaphore(device); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *frameSync) destroy(device vk.Device) {
	vk.DestroyCommandPool(device, s.graphicsPool, nil)
	vk.DestroyCommandPool(device, s.computePool, nil)
	vk.DestroyFence(device, s.graphicsFence, nil)
	vk.DestroyFence(device, s.computeFence, nil)
	vk.DestroySemaphore(device, s.computeSemaphore, nil)
	vk.DestroySemaphore(device, s.graphicsSemaphore, nil)
	vk.DestroySemaphore(device, s.presentSemaphore, nil)
}

func createCommandPool(device vk.Device, family uint32) (vk.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isError(ret) {
		return vk.NullCommandPool, vkErr(ret)
	}
	return pool, nil
}

func allocatePrimaryCommandBuffer(device vk.Device, pool vk.CommandPool) (vk.CommandBuffer, error) {
	var cmd vk.CommandBuffer
	ret := vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, &cmd)
	if isError(ret) {
		return nil, vkErr(ret)
	}
	return cmd, nil
}

func createFence(device vk.Device, signaled bool) (vk.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo, Flags: flags}, nil, &fence)
	if isError(ret) {
		return vk.NullFence, vkErr(ret)
	}
	return fence, nil
}

func createSemaphore(device vk.Device) (vk.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &sem)
	if isError(ret) {
		return vk.NullSemaphore, vkErr(ret)
	}
	return sem, nil
}
