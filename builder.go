package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// GraphBuilder consumes pass blueprints and materializes a Graph:
// resolving attachment reuse by fingerprint, building graph- and
// pass-scope descriptor-set/pipeline layouts, allocating buffers, and
// performing the initial descriptor writes.
// Grounded on BindlessVk's RendergraphBuilder, generalized here from a
// single hardcoded renderer into a reusable component over Pass[U]/Graph[U].
type GraphBuilder[U any] struct {
	device    *Device
	resources *RenderResources
	layouts   *LayoutAllocator
	descs     *DescriptorAllocator
	inFlight  uint32
}

// NewGraphBuilder builds a GraphBuilder bound to the given allocators.
func NewGraphBuilder[U any](device *Device, resources *RenderResources, layouts *LayoutAllocator, descs *DescriptorAllocator, inFlight uint32) *GraphBuilder[U] {
	return &GraphBuilder[U]{device: device, resources: resources, layouts: layouts, descs: descs, inFlight: inFlight}
}

// Build resolves a list of pass blueprints into a fully wired Graph:
// it allocates the backbuffer and shared buffers, builds graph-scope
// descriptor layouts and sets, then walks passes in reverse building
// their attachments, buffers, and pass-scope descriptor layouts before
// running every pass's setup hook.
func (b *GraphBuilder[U]) Build(blueprints []PassBlueprint[U], graphBufferInputs, graphTextureInputs []TextureInputBlueprintOrBuffer, graph *Graph[U]) (*Graph[U], error) {
	if len(blueprints) == 0 {
		return graph, newErrorf(InvalidArgument, "graph builder: at least one pass blueprint is required")
	}

	// Step 1: mark the last color attachment of the last pass as the
	// backbuffer, reserving resource index 0 for the swapchain images.
	lastBP := &blueprints[len(blueprints)-1]
	if len(lastBP.ColorAttachments) == 0 {
		return graph, newErrorf(InvalidArgument, "graph builder: last pass %q has no color attachments to mark as backbuffer", lastBP.Name)
	}
	backbufferBP := &lastBP.ColorAttachments[len(lastBP.ColorAttachments)-1]
	backbufferFP := fingerprintAttachment(backbufferBP.Name, uint32(backbufferBP.Format), backbufferBP.SizeType, backbufferBP.Width, backbufferBP.Height)
	backbufferIdx, err := b.resources.CreateColorAttachment(*backbufferBP, 1, true)
	if err != nil {
		return graph, err
	}
	if backbufferIdx != 0 {
		// Resource index 0 is reserved for the swapchain images; the
		// builder always creates it first so this holds by construction.
		return graph, newErrorf(Internal, "graph builder: backbuffer did not land at resource index 0")
	}
	b.resources.AddKeyToAttachmentIndex(backbufferFP, backbufferIdx)

	// Step 2: graph-level buffer inputs.
	for _, in := range graphBufferInputs {
		if in.Buffer == nil {
			continue
		}
		if err := b.createSharedBuffer(graph, *in.Buffer); err != nil {
			return graph, err
		}
	}

	// Step 3 + 4: graph-level descriptor-set layouts/sets, and the
	// initial descriptor writes. Spec §4.8 step 3 builds "the two
	// (graphics + compute) graph-level descriptor-set layouts"
	// unconditionally, partitioning whatever bindings exist by bind
	// point; an empty binding list still yields a valid (if trivial)
	// layout so every pass using that bind point has something to chain
	// its own layout onto in step 5c.
	graphBindings := map[BindPoint][]DescriptorBindingDesc{}
	for _, in := range graphBufferInputs {
		if in.Buffer == nil {
			continue
		}
		graphBindings[in.Buffer.BindPoint] = append(graphBindings[in.Buffer.BindPoint], bindingForBuffer(*in.Buffer))
	}
	for _, in := range graphTextureInputs {
		if in.Texture == nil {
			continue
		}
		graphBindings[in.Texture.BindPoint] = append(graphBindings[in.Texture.BindPoint], bindingForTexture(*in.Texture))
	}
	graphLayoutFps := map[BindPoint]Fingerprint{}
	for _, bindPoint := range []BindPoint{BindPointGraphics, BindPointCompute} {
		layout, fp, err := b.layouts.GetDescriptorSetLayout(0, graphBindings[bindPoint])
		if err != nil {
			return graph, err
		}
		graph.DescriptorSetLayout[bindPoint] = layout
		pipelineLayout, _, err := b.layouts.GetPipelineLayout(0, fp, 0, 0, []vk.DescriptorSetLayout{layout}, nil)
		if err != nil {
			return graph, err
		}
		graph.PipelineLayout[bindPoint] = pipelineLayout
		sets, serr := b.allocateSets(layout)
		if serr != nil {
			return graph, serr
		}
		graph.DescriptorSets[bindPoint] = sets
		graphLayoutFps[bindPoint] = fp
	}
	for _, in := range graphBufferInputs {
		if in.Buffer == nil {
			continue
		}
		b.writeBufferDescriptor(graph.DescriptorSets[in.Buffer.BindPoint], graph.Buffer(in.Buffer.Name), in.Buffer.Binding)
	}

	// Step 5: per-pass, in reverse declaration order.
	passes := make([]*Pass[U], len(blueprints))
	for i := len(blueprints) - 1; i >= 0; i-- {
		bp := blueprints[i]
		pass, perr := b.buildPass(bp, i == len(blueprints)-1, backbufferFP, graph, graphLayoutFps)
		if perr != nil {
			return graph, perr
		}
		passes[i] = pass
		if pass.Compute {
			graph.Compute = true
		}
		if pass.Graphics {
			graph.HasBindPoint[BindPointGraphics] = true
		}
		if pass.Compute {
			graph.HasBindPoint[BindPointCompute] = true
		}
	}
	graph.Passes = passes

	// Step 6: invoke on_setup hooks.
	graph.runOnSetup()

	return graph, nil
}

// allocateSets allocates one descriptor set per in-flight frame from
// layout.
func (b *GraphBuilder[U]) allocateSets(layout vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	sets := make([]vk.DescriptorSet, b.inFlight)
	for i := uint32(0); i < b.inFlight; i++ {
		set, _, err := b.descs.Allocate(layout)
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}
	return sets, nil
}

// TextureInputBlueprintOrBuffer lets callers pass a heterogeneous list
// of graph-level buffer/texture inputs while keeping each blueprint
// type concrete (Go has no tagged union; this plays that role).
type TextureInputBlueprintOrBuffer struct {
	Buffer  *BufferInputBlueprint
	Texture *TextureInputBlueprint
}

func bindingForBuffer(bp BufferInputBlueprint) DescriptorBindingDesc {
	descType := uint32(vk.DescriptorTypeUniformBuffer)
	if bp.Usage&vk.BufferUsageFlagBits(vk.BufferUsageStorageBufferBit) != 0 {
		descType = uint32(vk.DescriptorTypeStorageBuffer)
	}
	stage := uint32(vk.ShaderStageVertexBit) | uint32(vk.ShaderStageFragmentBit)
	if bp.BindPoint == BindPointCompute {
		stage = uint32(vk.ShaderStageComputeBit)
	}
	return DescriptorBindingDesc{Binding: bp.Binding, DescriptorType: descType, DescriptorCount: 1, StageFlags: stage}
}

func bindingForTexture(tx TextureInputBlueprint) DescriptorBindingDesc {
	stage := uint32(vk.ShaderStageFragmentBit)
	if tx.BindPoint == BindPointCompute {
		stage = uint32(vk.ShaderStageComputeBit)
	}
	return DescriptorBindingDesc{Binding: tx.Binding, DescriptorType: uint32(vk.DescriptorTypeCombinedImageSampler), DescriptorCount: 1, StageFlags: stage}
}

func (b *GraphBuilder[U]) createSharedBuffer(graph *Graph[U], bp BufferInputBlueprint) error {
	blockCount := uint32(1)
	if bp.PerFrame {
		blockCount = b.inFlight
	}
	alloc := NewMemoryAllocator(b.device)
	buf, err := NewBuffer(alloc, b.device, bp.MinBlockSize, blockCount, bp.Usage, vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit), bp.Name)
	if err != nil {
		return err
	}
	graph.buffers[bp.Name] = &sharedBuffer{blueprint: bp, buffer: buf}
	return nil
}

// buildPassScopeLayoutAndSets builds bindPoint's pass-scope descriptor-set
// layout from bindings (possibly empty), chains it after the graph-scope
// layout for the same bind point when building the pass's pipeline
// layout (spec §4.8 step 5c: "the layouts are chained as {graph-layout,
// pass-layout}"), and allocates one descriptor set per in-flight frame.
func (b *GraphBuilder[U]) buildPassScopeLayoutAndSets(pass *Pass[U], bindPoint BindPoint, bindings []DescriptorBindingDesc, graphLayout vk.DescriptorSetLayout, graphFp Fingerprint) error {
	layout, fp, err := b.layouts.GetDescriptorSetLayout(0, bindings)
	if err != nil {
		return err
	}
	pass.DescriptorSetLayout[bindPoint] = layout

	pipelineLayout, _, err := b.layouts.GetPipelineLayout(0, graphFp, fp, 0, []vk.DescriptorSetLayout{graphLayout, layout}, nil)
	if err != nil {
		return err
	}
	pass.PipelineLayout[bindPoint] = pipelineLayout

	sets, err := b.allocateSets(layout)
	if err != nil {
		return err
	}
	pass.DescriptorSets[bindPoint] = sets
	return nil
}

func (b *GraphBuilder[U]) writeBufferDescriptor(sets []vk.DescriptorSet, buf *Buffer, binding uint32) {
	if buf == nil || len(sets) == 0 {
		return
	}
	writes := make([]vk.WriteDescriptorSet, 0, len(sets))
	infos := make([]vk.DescriptorBufferInfo, len(sets))
	for i, set := range sets {
		// Per-frame buffer: offset i*block-size, range block-size into
		// frame i's set. Singular buffer: offset 0 into every frame's set
		//, expressed here as DescriptorInfo(block)
		// where block is i for per-frame buffers and 0 for singular ones
		// (NewBuffer already allocated only 1 block for singular usage,
		// so DescriptorInfo(0) is the only valid call in that case).
		blockIndex := i
		if buf.blockCount == 1 {
			blockIndex = 0
		}
		infos[i] = buf.DescriptorInfo(uint32(blockIndex))
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{infos[i]},
		})
	}
	vk.UpdateDescriptorSets(b.device.Handle(), uint32(len(writes)), writes, 0, nil)
}

// buildPass materializes one concrete Pass from its blueprint (spec
// §4.8 step 5).
func (b *GraphBuilder[U]) buildPass(bp PassBlueprint[U], isLastPass bool, backbufferFP Fingerprint, graph *Graph[U], graphLayoutFps map[BindPoint]Fingerprint) (*Pass[U], error) {
	pass := &Pass[U]{
		Name:                bp.Name,
		Compute:             bp.Compute,
		Graphics:            bp.Graphics,
		SampleCount:         bp.SampleCount,
		Hooks:               bp.Hooks,
		User:                bp.User,
		DescriptorSetLayout: make(map[BindPoint]vk.DescriptorSetLayout),
		PipelineLayout:      make(map[BindPoint]vk.PipelineLayout),
		DescriptorSets:      make(map[BindPoint][]vk.DescriptorSet),
	}

	// 5a: color attachments, reserved in order.
	for i, colorBP := range bp.ColorAttachments {
		isBackbuffer := isLastPass && i == len(bp.ColorAttachments)-1
		fp := fingerprintAttachment(colorBP.Name, uint32(colorBP.Format), colorBP.SizeType, colorBP.Width, colorBP.Height)

		var idx int
		hasInput := colorBP.InputHash != 0
		if isBackbuffer {
			idx = b.resources.TryGetAttachmentIndex(backbufferFP)
		} else if existing := b.resources.TryGetAttachmentIndex(fp); existing != noAttachmentIndex {
			idx = existing
			hasInput = true
			b.resources.AddKeyToAttachmentIndex(colorBP.InputHash, idx)
		} else {
			created, cerr := b.resources.CreateColorAttachment(colorBP, pass.SampleCount, false)
			if cerr != nil {
				return nil, cerr
			}
			idx = created
			b.resources.AddKeyToAttachmentIndex(fp, idx)
		}

		ref := newAttachmentRef(idx, hasInput,
			vk.ImageLayoutColorAttachmentOptimal,
			vk.AccessFlagBits(vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlagBits(vk.PipelineStageColorAttachmentOutputBit))
		pass.ColorAttachmentFormats = append(pass.ColorAttachmentFormats, colorBP.Format)

		if pass.SampleCount > vk.SampleCount1Bit {
			transientIdx := b.resources.TryGetSuitableTransientAttachmentIndex(colorBP, pass.SampleCount)
			if transientIdx == noAttachmentIndex {
				created, terr := b.resources.CreateTransientAttachment(colorBP, pass.SampleCount)
				if terr != nil {
					return nil, terr
				}
				transientIdx = created
			}
			ref.TransientResourceIndex = transientIdx
			ref.ResolveMode = vk.ResolveModeAverageBit
		}
		pass.Attachments = append(pass.Attachments, ref)
	}

	// 5b: depth attachment, single-use.
	if bp.DepthAttachment != nil {
		depthBP := *bp.DepthAttachment
		fp := fingerprintAttachment(depthBP.Name, uint32(depthBP.Format), depthBP.SizeType, depthBP.Width, depthBP.Height)
		idx := b.resources.TryGetAttachmentIndex(fp)
		hasInput := depthBP.InputHash != 0
		if idx == noAttachmentIndex {
			created, derr := b.resources.CreateDepthAttachment(depthBP, pass.SampleCount)
			if derr != nil {
				return nil, derr
			}
			idx = created
			b.resources.AddKeyToAttachmentIndex(fp, idx)
		} else {
			hasInput = true
		}
		pass.DepthAttachmentFormat = depthBP.Format
		pass.Attachments = append(pass.Attachments, newAttachmentRef(idx, hasInput,
			vk.ImageLayoutDepthStencilAttachmentOptimal,
			vk.AccessFlagBits(vk.AccessDepthStencilAttachmentWriteBit)|vk.AccessFlagBits(vk.AccessDepthStencilAttachmentReadBit),
			vk.PipelineStageFlagBits(vk.PipelineStageEarlyFragmentTestsBit)))
	}

	// 5c: pass-specific buffer/texture inputs, chained as {graph-layout, pass-layout}.
	pass.Buffers = make(map[string]*Buffer, len(bp.BufferInputs))
	for _, in := range bp.BufferInputs {
		blockCount := uint32(1)
		if in.PerFrame {
			blockCount = b.inFlight
		}
		alloc := NewMemoryAllocator(b.device)
		buf, berr := NewBuffer(alloc, b.device, in.MinBlockSize, blockCount, in.Usage,
			vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit), in.Name)
		if berr != nil {
			return nil, berr
		}
		pass.Buffers[in.Name] = buf
	}

	passBindings := map[BindPoint][]DescriptorBindingDesc{}
	for _, in := range bp.BufferInputs {
		passBindings[in.BindPoint] = append(passBindings[in.BindPoint], bindingForBuffer(in))
	}
	for _, in := range bp.TextureInputs {
		passBindings[in.BindPoint] = append(passBindings[in.BindPoint], bindingForTexture(in))
	}
	// Every bind point the pass actually dispatches on gets a pipeline
	// layout, even with zero declared bindings, since pipeline creation
	// (CreateGraphicsPipelines/CreateComputePipelines) always needs one.
	var activeBindPoints []BindPoint
	if bp.Graphics {
		activeBindPoints = append(activeBindPoints, BindPointGraphics)
	}
	if bp.Compute {
		activeBindPoints = append(activeBindPoints, BindPointCompute)
	}
	for _, bindPoint := range activeBindPoints {
		graphLayout := graph.DescriptorSetLayout[bindPoint]
		if err := b.buildPassScopeLayoutAndSets(pass, bindPoint, passBindings[bindPoint], graphLayout, graphLayoutFps[bindPoint]); err != nil {
			return nil, err
		}
	}
	for _, in := range bp.BufferInputs {
		b.writeBufferDescriptor(pass.DescriptorSets[in.BindPoint], pass.Buffers[in.Name], in.Binding)
	}
	pass.BufferInputs = bp.BufferInputs

	return pass, nil
}
