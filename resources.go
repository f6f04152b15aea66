package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// AttachmentKind is the lifetime class of an attachment container (spec
// §3 "Attachment container").
type AttachmentKind uint32

const (
	KindPerImage AttachmentKind = iota
	KindPerFrame
	KindSingle
)

// Attachment is one concrete image/view pair; swapchain-image
// attachments have no Memory handle.
type Attachment struct {
	Image       vk.Image
	Memory      vk.DeviceMemory
	View        vk.ImageView
	Format      vk.Format
	Extent      vk.Extent3D
	SampleCount vk.SampleCountFlagBits

	// lastAccess/lastLayout/lastStage is the renderer-owned "last
	// recorded state" used to derive the next barrier.
	lastAccess vk.AccessFlagBits
	lastLayout vk.ImageLayout
	lastStage  vk.PipelineStageFlagBits
}

// AttachmentContainer holds every physical Attachment backing one
// logical resource, indexed per its Kind.
type AttachmentContainer struct {
	Kind        AttachmentKind
	Format      vk.Format
	SizeType    SizeType
	Width       float32
	Height      float32
	Attachments []Attachment
}

// Get dispatches [image_index]/[frame_index]/[0] depending on Kind
//.
func (c *AttachmentContainer) Get(imageIndex, frameIndex uint32) *Attachment {
	switch c.Kind {
	case KindPerImage:
		return &c.Attachments[imageIndex]
	case KindPerFrame:
		return &c.Attachments[frameIndex]
	default:
		return &c.Attachments[0]
	}
}

// TransientAttachment is a pooled MSAA resolve-source image matched by
// exact (format, sample-count, extent).
type TransientAttachment struct {
	Image       vk.Image
	Memory      vk.DeviceMemory
	View        vk.ImageView
	SampleCount vk.SampleCountFlagBits
	Format      vk.Format
	Extent      vk.Extent3D
}

const noAttachmentIndex = -1

// RenderResources owns every non-swapchain attachment a graph uses plus
// the transient MSAA pool, grounded on the teacher's CoreImage
// (image.go) generalized into the container/index-lookup model spec
// §4.6 requires.
type RenderResources struct {
	alloc   *MemoryAllocator
	device  *Device
	surface *Surface

	containers []AttachmentContainer
	index      map[Fingerprint]int

	transients []TransientAttachment
}

// NewRenderResources builds an empty RenderResources bound to the given
// allocator/surface.
func NewRenderResources(alloc *MemoryAllocator, device *Device, surface *Surface) *RenderResources {
	return &RenderResources{
		alloc:   alloc,
		device:  device,
		surface: surface,
		index:   make(map[Fingerprint]int),
	}
}

// resolveExtent turns a blueprint's size-class into a concrete pixel
// extent.
func (r *RenderResources) resolveExtent(bp AttachmentBlueprint) (vk.Extent3D, error) {
	switch bp.SizeType {
	case SizeSwapchainRelative:
		e := r.surface.Extent()
		return vk.Extent3D{
			Width:  uint32(float32(e.Width) * bp.Width),
			Height: uint32(float32(e.Height) * bp.Height),
			Depth:  1,
		}, nil
	case SizeAbsolute:
		return vk.Extent3D{Width: uint32(bp.Width), Height: uint32(bp.Height), Depth: 1}, nil
	default:
		return vk.Extent3D{}, newErrorf(Unsupported, "attachment %q: relative-to-other size class is not implemented", bp.Name)
	}
}

// CreateColorAttachment implements spec §4.6's first creation path: one
// image+view per surface image for a backbuffer-declared blueprint, else
// a single image+view.
func (r *RenderResources) CreateColorAttachment(bp AttachmentBlueprint, sampleCount vk.SampleCountFlagBits, isBackbuffer bool) (int, error) {
	extent, err := r.resolveExtent(bp)
	if err != nil {
		return noAttachmentIndex, err
	}

	kind := KindSingle
	count := 1
	samples := sampleCount
	if isBackbuffer {
		kind = KindPerImage
		count = r.surface.ImageCount()
		samples = vk.SampleCount1Bit
	}

	container := AttachmentContainer{Kind: kind, Format: bp.Format, SizeType: bp.SizeType, Width: bp.Width, Height: bp.Height}
	for i := 0; i < count; i++ {
		if isBackbuffer {
			container.Attachments = append(container.Attachments, Attachment{
				Image:       r.surface.images[i],
				View:        r.surface.ImageView(i),
				Format:      bp.Format,
				Extent:      extent,
				SampleCount: vk.SampleCount1Bit,
			})
			continue
		}
		att, aerr := r.createImageAttachment(bp.Format, extent, samples, vk.ImageUsageFlagBits(vk.ImageUsageColorAttachmentBit), vk.ImageAspectFlagBits(vk.ImageAspectColorBit))
		if aerr != nil {
			return noAttachmentIndex, aerr
		}
		container.Attachments = append(container.Attachments, att)
	}

	r.containers = append(r.containers, container)
	idx := len(r.containers) - 1
	return idx, nil
}

// CreateDepthAttachment implements spec §4.6's second creation path: one
// single image+view, DepthStencilAttachment usage, Depth aspect.
func (r *RenderResources) CreateDepthAttachment(bp AttachmentBlueprint, sampleCount vk.SampleCountFlagBits) (int, error) {
	extent, err := r.resolveExtent(bp)
	if err != nil {
		return noAttachmentIndex, err
	}
	att, err := r.createImageAttachment(bp.Format, extent, sampleCount, vk.ImageUsageFlagBits(vk.ImageUsageDepthStencilAttachmentBit), vk.ImageAspectFlagBits(vk.ImageAspectDepthBit))
	if err != nil {
		return noAttachmentIndex, err
	}
	r.containers = append(r.containers, AttachmentContainer{
		Kind: KindSingle, Format: bp.Format, SizeType: bp.SizeType, Width: bp.Width, Height: bp.Height,
		Attachments: []Attachment{att},
	})
	return len(r.containers) - 1, nil
}

// CreateTransientAttachment implements spec §4.6's third creation path:
// a ColorAttachment|TransientAttachment image with sample-count >= 2,
// registered in the transient pool for later reuse.
func (r *RenderResources) CreateTransientAttachment(bp AttachmentBlueprint, sampleCount vk.SampleCountFlagBits) (int, error) {
	if sampleCount < vk.SampleCount2Bit {
		return noAttachmentIndex, newErrorf(InvalidArgument, "transient attachment %q requires sample count >= 2, got %v", bp.Name, sampleCount)
	}
	extent, err := r.resolveExtent(bp)
	if err != nil {
		return noAttachmentIndex, err
	}

	usage := vk.ImageUsageFlagBits(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlagBits(vk.ImageUsageTransientAttachmentBit)
	image, memory, cerr := r.alloc.CreateImage(ImageCreateArgs{
		Extent:     extent,
		Format:     bp.Format,
		Usage:      usage,
		Tiling:     vk.ImageTilingOptimal,
		Samples:    sampleCount,
		Properties: vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit),
	})
	if cerr != nil {
		return noAttachmentIndex, cerr
	}
	view, verr := r.alloc.CreateImageView(image, bp.Format, vk.ImageAspectFlagBits(vk.ImageAspectColorBit))
	if verr != nil {
		r.alloc.FreeImage(image, memory)
		return noAttachmentIndex, verr
	}

	r.transients = append(r.transients, TransientAttachment{
		Image: image, Memory: memory, View: view,
		SampleCount: sampleCount, Format: bp.Format, Extent: extent,
	})
	return len(r.transients) - 1, nil
}

func (r *RenderResources) createImageAttachment(format vk.Format, extent vk.Extent3D, samples vk.SampleCountFlagBits, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (Attachment, error) {
	image, memory, err := r.alloc.CreateImage(ImageCreateArgs{
		Extent:     extent,
		Format:     format,
		Usage:      usage,
		Tiling:     vk.ImageTilingOptimal,
		Samples:    samples,
		Properties: vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		return Attachment{}, err
	}
	view, err := r.alloc.CreateImageView(image, format, aspect)
	if err != nil {
		r.alloc.FreeImage(image, memory)
		return Attachment{}, err
	}
	return Attachment{Image: image, Memory: memory, View: view, Format: format, Extent: extent, SampleCount: samples}, nil
}

// TryGetAttachmentIndex returns the container index registered under
// fp, or noAttachmentIndex if unknown.
func (r *RenderResources) TryGetAttachmentIndex(fp Fingerprint) int {
	if idx, ok := r.index[fp]; ok {
		return idx
	}
	return noAttachmentIndex
}

// AddKeyToAttachmentIndex aliases fp onto an already-created container
// index, letting a later pass's input-hash reuse it.
func (r *RenderResources) AddKeyToAttachmentIndex(fp Fingerprint, index int) {
	r.index[fp] = index
}

// TryGetSuitableTransientAttachmentIndex scans the transient pool for an
// exact (format, sample-count, extent) match.
func (r *RenderResources) TryGetSuitableTransientAttachmentIndex(bp AttachmentBlueprint, sampleCount vk.SampleCountFlagBits) int {
	extent, err := r.resolveExtent(bp)
	if err != nil {
		return noAttachmentIndex
	}
	for i, t := range r.transients {
		if t.Format == bp.Format && t.SampleCount == sampleCount && t.Extent == extent {
			return i
		}
	}
	return noAttachmentIndex
}

// GetAttachment dispatches through container index's Kind field (spec
// §4.6 "get_attachment").
func (r *RenderResources) GetAttachment(resourceIndex int, imageIndex, frameIndex uint32) *Attachment {
	return r.containers[resourceIndex].Get(imageIndex, frameIndex)
}

// Container returns the container at resourceIndex, for barrier state
// bookkeeping in the renderer.
func (r *RenderResources) Container(resourceIndex int) *AttachmentContainer {
	return &r.containers[resourceIndex]
}

// TransientAttachment returns the pooled MSAA attachment at index, the
// one a pass's AttachmentRef.TransientResourceIndex names.
func (r *RenderResources) TransientAttachment(index int) *TransientAttachment {
	return &r.transients[index]
}

// Destroy releases every owned image/view; swapchain-backed attachments
// (whose View came from the Surface) are skipped since the Surface owns
// them.
func (r *RenderResources) Destroy() {
	for i := range r.containers {
		c := &r.containers[i]
		if c.Kind == KindPerImage {
			continue
		}
		for _, a := range c.Attachments {
			vk.DestroyImageView(r.device.Handle(), a.View, nil)
			r.alloc.FreeImage(a.Image, a.Memory)
		}
	}
	for _, t := range r.transients {
		vk.DestroyImageView(r.device.Handle(), t.View, nil)
		r.alloc.FreeImage(t.Image, t.Memory)
	}
	r.containers = nil
	r.transients = nil
	r.index = make(map[Fingerprint]int)
}
