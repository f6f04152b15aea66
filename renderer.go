package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// touchedAttachment records one (container, image, frame) triple
// touched during the current frame so its recorded state can be reset
// once the frame finishes.
type touchedAttachment struct {
	resourceIndex int
	imageIndex    uint32
	frameIndex    uint32
}

// Renderer drives the per-frame acquire/prepare/compute/graphics/present
// loop against a Graph[U]. Grounded on the teacher's
// context.go frame-submission logic, generalized from a single hardcoded
// render pass into the render-graph's barrier-driven dynamic-rendering
// model.
type Renderer[U any] struct {
	device    *Device
	surface   *Surface
	resources *RenderResources

	inFlight   uint32
	frameIndex uint32
	frames     []*frameSync

	touched []touchedAttachment
}

// NewRenderer builds a Renderer with inFlight frameSync slots.
func NewRenderer[U any](device *Device, surface *Surface, resources *RenderResources, inFlight uint32) (*Renderer[U], error) {
	r := &Renderer[U]{device: device, surface: surface, resources: resources, inFlight: inFlight}
	for i := uint32(0); i < inFlight; i++ {
		fs, err := newFrameSync(device.Handle(), device.GraphicsFamily(), device.ComputeFamily())
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.frames = append(r.frames, fs)
	}
	return r, nil
}

// RenderFrame executes one iteration of the frame loop. Returns (submitted, err): submitted is false when acquire or
// present invalidated the swapchain and the caller should rebuild
// before trying again.
func (r *Renderer[U]) RenderFrame(g *Graph[U]) (submitted bool, err error) {
	defer checkErr(&err)

	fs := r.frames[r.frameIndex]
	device := r.device.Handle()

	// Step 1: prepare.
	orPanic(r.waitFence(fs.graphicsFence))
	orPanic(r.waitFence(fs.computeFence))

	imageIndex, aerr := r.surface.AcquireNextImage(fs.presentSemaphore)
	if IsOutOfDate(aerr) {
		return false, nil
	}
	orPanic(aerr)
	orPanic(vkErr(vk.ResetFences(device, 1, []vk.Fence{fs.graphicsFence})))

	// Step 2: update.
	for _, p := range g.Passes {
		p.runFramePrepare(r.frameIndex, imageIndex)
	}
	g.runOnUpdate(nil, r.frameIndex, imageIndex)

	// Step 3: compute dispatch.
	if g.Compute {
		orPanic(vkErr(vk.ResetCommandPool(device, fs.computePool, 0)))
		orPanic(vkErr(vk.BeginCommandBuffer(fs.computeCmd, &vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo})))
		if set, ok := g.DescriptorSets[BindPointCompute]; ok && len(set) > 0 {
			vk.CmdBindDescriptorSets(fs.computeCmd, vk.PipelineBindPointCompute, g.PipelineLayout[BindPointCompute], 0, 1, []vk.DescriptorSet{set[r.frameIndex]}, 0, nil)
		}
		for _, p := range g.Passes {
			if !p.Compute {
				continue
			}
			if sets, ok := p.DescriptorSets[BindPointCompute]; ok && len(sets) > 0 {
				vk.CmdBindDescriptorSets(fs.computeCmd, vk.PipelineBindPointCompute, p.PipelineLayout[BindPointCompute], 1, 1, []vk.DescriptorSet{sets[r.frameIndex]}, 0, nil)
			}
			BeginDebugLabel(r.device.Sink(), p.Name+":compute")
			p.runFrameCompute(fs.computeCmd, r.frameIndex, imageIndex)
			EndDebugLabel(r.device.Sink())
		}
		orPanic(vkErr(vk.EndCommandBuffer(fs.computeCmd)))
		orPanic(vkErr(vk.ResetFences(device, 1, []vk.Fence{fs.computeFence})))
		orPanic(r.submitCompute(fs))
	}

	// Step 4: graphics dispatch.
	orPanic(vkErr(vk.ResetCommandPool(device, fs.graphicsPool, 0)))
	orPanic(vkErr(vk.BeginCommandBuffer(fs.graphicsCmd, &vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo})))
	if set, ok := g.DescriptorSets[BindPointGraphics]; ok && len(set) > 0 {
		vk.CmdBindDescriptorSets(fs.graphicsCmd, vk.PipelineBindPointGraphics, g.PipelineLayout[BindPointGraphics], 0, 1, []vk.DescriptorSet{set[r.frameIndex]}, 0, nil)
	}

	for _, p := range g.Passes {
		BeginDebugLabel(r.device.Sink(), p.Name+":barrier")
		r.recordPassBarriers(fs.graphicsCmd, p, imageIndex)
		EndDebugLabel(r.device.Sink())
		if !p.Graphics {
			continue
		}
		colorAttachments, depthAttachment := r.buildRenderingAttachments(p, imageIndex)

		BeginDebugLabel(r.device.Sink(), p.Name+":graphics")
		vk.CmdBeginRendering(fs.graphicsCmd, &vk.RenderingInfo{
			SType:               vk.StructureTypeRenderingInfo,
			RenderArea:          vk.Rect2D{Offset: vk.Offset2D{}, Extent: r.surface.Extent()},
			LayerCount:          1,
			ColorAttachmentCount: uint32(len(colorAttachments)),
			PColorAttachments:   colorAttachments,
			PDepthAttachment:    depthAttachment,
		})
		p.runFrameGraphics(fs.graphicsCmd, r.frameIndex, imageIndex)
		vk.CmdEndRendering(fs.graphicsCmd)
		EndDebugLabel(r.device.Sink())
	}

	// Step 5: present barrier.
	r.recordPresentBarrier(fs.graphicsCmd, imageIndex)

	orPanic(vkErr(vk.EndCommandBuffer(fs.graphicsCmd)))

	// Step 6: submit.
	orPanic(r.submitGraphics(fs, g.Compute))

	// Step 7: present.
	perr := r.surface.Present(r.device.GraphicsQueue(), fs.graphicsSemaphore, imageIndex)
	if IsOutOfDate(perr) {
		return false, nil
	}
	orPanic(perr)

	// Step 8: advance.
	r.frameIndex = (r.frameIndex + 1) % r.inFlight
	return true, nil
}

// waitFence blocks on fence without resetting it; RenderFrame resets a
// fence only right before the submission that signals it again.
func (r *Renderer[U]) waitFence(fence vk.Fence) error {
	return vkErr(vk.WaitForFences(r.device.Handle(), 1, []vk.Fence{fence}, vk.True, vk.MaxUint64))
}

func (r *Renderer[U]) submitCompute(fs *frameSync) error {
	ret := vk.QueueSubmit(r.device.ComputeQueue(), 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{fs.computeCmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:   []vk.Semaphore{fs.computeSemaphore},
	}}, fs.computeFence)
	return vkErr(ret)
}

func (r *Renderer[U]) submitGraphics(fs *frameSync, graphCompute bool) error {
	waitSemaphores := []vk.Semaphore{fs.presentSemaphore}
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	if graphCompute {
		waitSemaphores = append(waitSemaphores, fs.computeSemaphore)
		waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit))
	}

	ret := vk.QueueSubmit(r.device.GraphicsQueue(), 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSemaphores)),
		PWaitSemaphores:      waitSemaphores,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{fs.graphicsCmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{fs.graphicsSemaphore},
	}}, fs.graphicsFence)
	return vkErr(ret)
}

// recordPassBarriers compares each attachment's container's last
// recorded state to the pass's required values and emits an
// image-memory barrier when they differ. Depth
// attachments are skipped, reproducing the documented gap in the source
//.
func (r *Renderer[U]) recordPassBarriers(cmd vk.CommandBuffer, p *Pass[U], imageIndex uint32) {
	for i := range p.Attachments {
		ref := &p.Attachments[i]
		if i >= len(p.ColorAttachmentFormats) {
			continue // depth attachment: documented gap, preserved as-is.
		}
		att := r.resources.GetAttachment(ref.ResourceIndex, imageIndex, r.frameIndex)
		if att.lastLayout == ref.ImageLayout && att.lastAccess == ref.AccessMask && att.lastStage == ref.StageMask {
			continue
		}
		vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(att.lastStage), vk.PipelineStageFlags(ref.StageMask), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(att.lastAccess),
			DstAccessMask:       vk.AccessFlags(ref.AccessMask),
			OldLayout:           att.lastLayout,
			NewLayout:           ref.ImageLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               att.Image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
		att.lastLayout, att.lastAccess, att.lastStage = ref.ImageLayout, ref.AccessMask, ref.StageMask
		r.touched = append(r.touched, touchedAttachment{ref.ResourceIndex, imageIndex, r.frameIndex})
	}
}

func (r *Renderer[U]) buildRenderingAttachments(p *Pass[U], imageIndex uint32) ([]vk.RenderingAttachmentInfo, *vk.RenderingAttachmentInfo) {
	colorCount := len(p.ColorAttachmentFormats)
	colors := make([]vk.RenderingAttachmentInfo, 0, colorCount)
	for i := 0; i < colorCount; i++ {
		ref := p.Attachments[i]
		att := r.resources.GetAttachment(ref.ResourceIndex, imageIndex, r.frameIndex)
		info := vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   att.View,
			ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
			LoadOp:      ref.LoadOp,
			StoreOp:     ref.StoreOp,
			ClearValue:  ref.ClearValue,
		}
		if ref.TransientResourceIndex != -1 {
			// Multisampled color: the pooled transient MSAA view is
			// primary, resolving down into the regular attachment's view
			// (spec §4.9 step 4b).
			transient := r.resources.TransientAttachment(ref.TransientResourceIndex)
			info.ImageView = transient.View
			info.ImageLayout = vk.ImageLayoutColorAttachmentOptimal
			info.ResolveImageView = att.View
			info.ResolveImageLayout = vk.ImageLayoutColorAttachmentOptimal
			info.ResolveMode = vk.ResolveModeAverageBit
		}
		colors = append(colors, info)
	}

	var depth *vk.RenderingAttachmentInfo
	if p.DepthAttachmentFormat != vk.FormatUndefined && len(p.Attachments) > colorCount {
		ref := p.Attachments[colorCount]
		att := r.resources.GetAttachment(ref.ResourceIndex, imageIndex, r.frameIndex)
		depth = &vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   att.View,
			ImageLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
			LoadOp:      ref.LoadOp,
			StoreOp:     ref.StoreOp,
			ClearValue:  ref.ClearValue,
		}
	}
	return colors, depth
}

// recordPresentBarrier transitions the backbuffer container's last
// recorded state to PresentSrc at BottomOfPipe, then resets it to
// (Undefined, TopOfPipe, {}) so the next frame's first barrier is a
// clean transition.
func (r *Renderer[U]) recordPresentBarrier(cmd vk.CommandBuffer, imageIndex uint32) {
	backbuffer := r.resources.GetAttachment(0, imageIndex, r.frameIndex)
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(backbuffer.lastStage), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(backbuffer.lastAccess),
		DstAccessMask:       0,
		OldLayout:           backbuffer.lastLayout,
		NewLayout:           vk.ImageLayoutPresentSrc,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               backbuffer.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}})
	backbuffer.lastLayout = vk.ImageLayoutUndefined
	backbuffer.lastAccess = 0
	backbuffer.lastStage = vk.PipelineStageTopOfPipeBit
}

// OnSurfaceChanged resets every touched container's recorded state and
// re-creates the per-image attachments from the rebuilt swapchain's
// images and views, after the host rebuilds the swapchain.
func (r *Renderer[U]) OnSurfaceChanged() {
	for i := range r.touched {
		t := r.touched[i]
		att := r.resources.GetAttachment(t.resourceIndex, t.imageIndex, t.frameIndex)
		att.lastLayout = vk.ImageLayoutUndefined
		att.lastAccess = 0
		att.lastStage = vk.PipelineStageTopOfPipeBit
	}
	r.touched = r.touched[:0]
	for i := range r.resources.containers {
		c := &r.resources.containers[i]
		if c.Kind != KindPerImage {
			continue
		}
		extent, _ := r.resources.resolveExtent(AttachmentBlueprint{SizeType: c.SizeType, Width: c.Width, Height: c.Height})
		c.Attachments = c.Attachments[:0]
		for j := 0; j < r.surface.ImageCount(); j++ {
			c.Attachments = append(c.Attachments, Attachment{
				Image: r.surface.images[j], View: r.surface.ImageView(j),
				Format: c.Format, Extent: extent, SampleCount: vk.SampleCount1Bit,
			})
		}
	}
}

// Destroy tears down every in-flight frame's sync objects.
func (r *Renderer[U]) Destroy() {
	for _, fs := range r.frames {
		fs.destroy(r.device.Handle())
	}
	r.frames = nil
}
