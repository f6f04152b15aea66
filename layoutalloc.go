package bindlessvk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// descriptorSetLayoutEntry is a cached layout plus the sorted binding
// descriptions it was built from. Lookups match on the Fingerprint
// alone; the stored bindings are not compared.
type descriptorSetLayoutEntry struct {
	layout   vk.DescriptorSetLayout
	bindings []DescriptorBindingDesc
}

type pipelineLayoutEntry struct {
	layout vk.PipelineLayout
}

// LayoutAllocator caches descriptor-set layouts and pipeline layouts
// keyed by structural Fingerprint, so structurally identical layout
// requests from unrelated passes collapse onto one GPU object (spec
// §4.2 "Layout Allocator"). Entries are insert-only for the allocator's
// lifetime; grounded on BindlessVk's LayoutAllocator (Allocators/LayoutAllocator.cpp),
// which this generalizes from an unordered_map keyed by hash_t to an
// explicit Fingerprint type.
type LayoutAllocator struct {
	device *Device

	setLayouts      map[Fingerprint]descriptorSetLayoutEntry
	pipelineLayouts map[Fingerprint]pipelineLayoutEntry

	// insertOrder records Fingerprints in the order they were created so
	// Destroy can tear objects down LIFO, mirroring the way the original
	// destroys layouts in reverse of creation (dependent pipeline layouts
	// must go before the set layouts they reference).
	insertOrder []Fingerprint
}

// NewLayoutAllocator builds an empty LayoutAllocator bound to device.
func NewLayoutAllocator(device *Device) *LayoutAllocator {
	return &LayoutAllocator{
		device:          device,
		setLayouts:      make(map[Fingerprint]descriptorSetLayoutEntry),
		pipelineLayouts: make(map[Fingerprint]pipelineLayoutEntry),
	}
}

// GetDescriptorSetLayout returns the cached vk.DescriptorSetLayout for
// the given flags/bindings, creating and caching one on first request.
// Bindings carrying immutable samplers are rejected:
// the render graph never needs them and admitting them would widen the
// fingerprint's identity contract beyond what sortedBindings captures.
func (a *LayoutAllocator) GetDescriptorSetLayout(layoutFlags uint32, bindings []DescriptorBindingDesc) (vk.DescriptorSetLayout, Fingerprint, error) {
	for _, b := range bindings {
		if b.ImmutableSamplers {
			return vk.NullDescriptorSetLayout, 0, newErrorf(InvalidArgument, "descriptor binding %d: immutable samplers are not supported by the layout allocator", b.Binding)
		}
	}

	fp := fingerprintDescriptorSetLayout(layoutFlags, bindings)
	if entry, ok := a.setLayouts[fp]; ok {
		return entry.layout, fp, nil
	}

	sorted := sortedBindings(bindings)
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(sorted))
	bindingFlags := make([]vk.DescriptorBindingFlags, len(sorted))
	for i, b := range sorted {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.DescriptorType),
			DescriptorCount: b.DescriptorCount,
			StageFlags:      vk.ShaderStageFlags(b.StageFlags),
		}
		bindingFlags[i] = vk.DescriptorBindingFlags(b.BindingFlags)
	}

	bindingFlagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(bindingFlags)),
		PBindingFlags: bindingFlags,
	}

	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(a.device.Handle(), &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(&bindingFlagsInfo),
		Flags:        vk.DescriptorSetLayoutCreateFlags(layoutFlags),
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}, nil, &layout)
	if isError(ret) {
		return vk.NullDescriptorSetLayout, 0, vkErr(ret)
	}

	a.setLayouts[fp] = descriptorSetLayoutEntry{layout: layout, bindings: sorted}
	a.insertOrder = append(a.insertOrder, fp)
	return layout, fp, nil
}

// GetPipelineLayout returns the cached vk.PipelineLayout for the given
// flags, graph/pass/shader fingerprint triple and number of set layouts,
// creating one from setLayouts and pushConstants on first request.
// Push-constant ranges are not part of the cache key.
func (a *LayoutAllocator) GetPipelineLayout(flags uint32, graphFp, passFp, shaderFp Fingerprint, setLayouts []vk.DescriptorSetLayout, pushConstants []vk.PushConstantRange) (vk.PipelineLayout, Fingerprint, error) {
	// An empty descriptor-set layout fingerprints to 0, so the set-layout
	// count is folded in to keep a {graph, empty pass} layout from sharing
	// the key of the one-set graph-level layout.
	fp := foldHash(fingerprintPipelineLayout(flags, graphFp, passFp, shaderFp), uint64(len(setLayouts)))
	if entry, ok := a.pipelineLayouts[fp]; ok {
		return entry.layout, fp, nil
	}

	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(a.device.Handle(), &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		Flags:                  vk.PipelineLayoutCreateFlags(flags),
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushConstants)),
		PPushConstantRanges:    pushConstants,
	}, nil, &layout)
	if isError(ret) {
		return vk.NullPipelineLayout, 0, vkErr(ret)
	}

	a.pipelineLayouts[fp] = pipelineLayoutEntry{layout: layout}
	a.insertOrder = append(a.insertOrder, fp)
	return layout, fp, nil
}

// Destroy tears down every cached layout in reverse insertion order, so
// pipeline layouts (which reference set layouts) are always destroyed
// before the set layouts they depend on.
func (a *LayoutAllocator) Destroy() {
	device := a.device.Handle()
	for i := len(a.insertOrder) - 1; i >= 0; i-- {
		fp := a.insertOrder[i]
		if entry, ok := a.pipelineLayouts[fp]; ok {
			vk.DestroyPipelineLayout(device, entry.layout, nil)
			delete(a.pipelineLayouts, fp)
			continue
		}
		if entry, ok := a.setLayouts[fp]; ok {
			vk.DestroyDescriptorSetLayout(device, entry.layout, nil)
			delete(a.setLayouts, fp)
		}
	}
	a.insertOrder = nil
}
