package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// descriptorPoolTypes are the descriptor kinds every grown pool reserves
// capacity for, matching BindlessVk's fixed pool-size table rather than
// sizing per-request.
var descriptorPoolTypes = []vk.DescriptorType{
	vk.DescriptorTypeSampler,
	vk.DescriptorTypeCombinedImageSampler,
	vk.DescriptorTypeSampledImage,
	vk.DescriptorTypeStorageImage,
	vk.DescriptorTypeUniformBuffer,
	vk.DescriptorTypeStorageBuffer,
	vk.DescriptorTypeUniformBufferDynamic,
	vk.DescriptorTypeStorageBufferDynamic,
}

// DescriptorAllocator grows vk.DescriptorPool objects on demand and
// retries a failed allocation once against another pool (a recycled
// free pool if one is available, else a newly created one), the way
// BindlessVk's DescriptorAllocator (Allocators/DescriptorAllocator.cpp)
// handles VK_ERROR_OUT_OF_POOL_MEMORY / VK_ERROR_FRAGMENTED_POOL (spec
// §4.3).
type DescriptorAllocator struct {
	device *Device
	policy DescriptorPoolPolicy

	current  vk.DescriptorPool
	free     []vk.DescriptorPool
	used     []vk.DescriptorPool
	outstanding map[vk.DescriptorPool]int
}

// NewDescriptorAllocator builds an empty DescriptorAllocator bound to
// device, sized by policy.
func NewDescriptorAllocator(device *Device, policy DescriptorPoolPolicy) *DescriptorAllocator {
	return &DescriptorAllocator{
		device:      device,
		policy:      policy,
		outstanding: make(map[vk.DescriptorPool]int),
	}
}

func (a *DescriptorAllocator) grow() (vk.DescriptorPool, error) {
	if len(a.free) > 0 {
		pool := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		return pool, nil
	}

	sizes := make([]vk.DescriptorPoolSize, len(descriptorPoolTypes))
	for i, t := range descriptorPoolTypes {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: a.policy.MinPerType}
	}

	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(a.device.Handle(), &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit) | vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       a.policy.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if isError(ret) {
		return vk.NullDescriptorPool, vkErr(ret)
	}
	return pool, nil
}

// Allocate allocates a descriptor set with layout, obtaining a first pool
// on demand and retrying once against a recycled or newly created pool
// on OutOfPoolMemory/FragmentedPool. It returns the pool the set was
// allocated from alongside the set itself so the caller can later
// Release into the right pool (spec §4.3: "returns the pool that
// satisfied the allocation so release can go to the right pool").
func (a *DescriptorAllocator) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.DescriptorPool, error) {
	if a.current == vk.NullDescriptorPool {
		pool, err := a.grow()
		if err != nil {
			return vk.NullDescriptorSet, vk.NullDescriptorPool, err
		}
		a.current = pool
	}

	set, ret := a.allocateFrom(a.current, layout)
	if ret == vk.Success {
		a.outstanding[a.current]++
		return set, a.current, nil
	}
	if ret != vk.ErrorOutOfPoolMemory && ret != vk.ErrorFragmentedPool {
		return vk.NullDescriptorSet, vk.NullDescriptorPool, vkErr(ret)
	}

	// Retry once against a recycled or new pool, per spec §4.3: the failed pool is
	// parked in used until its outstanding sets are all freed.
	a.used = append(a.used, a.current)
	newPool, err := a.grow()
	if err != nil {
		return vk.NullDescriptorSet, vk.NullDescriptorPool, err
	}
	a.current = newPool

	set, ret = a.allocateFrom(a.current, layout)
	if isError(ret) {
		return vk.NullDescriptorSet, vk.NullDescriptorPool, vkErr(ret)
	}
	a.outstanding[a.current]++
	return set, a.current, nil
}

func (a *DescriptorAllocator) allocateFrom(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(a.device.Handle(), &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	return set, ret
}

// Release decrements the owning pool's outstanding count; once a
// recycled pool (parked in used) drops to zero outstanding sets it is
// reset and returned to the free list for reuse.
func (a *DescriptorAllocator) Release(pool vk.DescriptorPool) {
	a.outstanding[pool]--
	if a.outstanding[pool] > 0 {
		return
	}
	for i, p := range a.used {
		if p == pool {
			a.used = append(a.used[:i], a.used[i+1:]...)
			vk.ResetDescriptorPool(a.device.Handle(), pool, 0)
			a.free = append(a.free, pool)
			delete(a.outstanding, pool)
			return
		}
	}
}

// Destroy destroys every pool the allocator has ever created.
func (a *DescriptorAllocator) Destroy() {
	device := a.device.Handle()
	if a.current != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device, a.current, nil)
	}
	for _, p := range a.free {
		vk.DestroyDescriptorPool(device, p, nil)
	}
	for _, p := range a.used {
		vk.DestroyDescriptorPool(device, p, nil)
	}
	a.current = vk.NullDescriptorPool
	a.free, a.used = nil, nil
	a.outstanding = make(map[vk.DescriptorPool]int)
}
