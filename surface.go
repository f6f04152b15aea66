package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// PresentModeScorer scores a candidate present mode.
type PresentModeScorer func(mode vk.PresentMode) uint32

// SurfaceFormatScorer scores a candidate surface format.
type SurfaceFormatScorer func(format vk.SurfaceFormat) uint32

// DefaultPresentModeScorer prefers Mailbox, then Fifo, matching the
// teacher's swapchain.go fallback to the spec-guaranteed Fifo mode
// while allowing a lower-latency mode when present.
func DefaultPresentModeScorer(mode vk.PresentMode) uint32 {
	switch mode {
	case vk.PresentModeMailbox:
		return 100
	case vk.PresentModeFifo:
		return 50
	default:
		return 1
	}
}

// DefaultSurfaceFormatScorer prefers a non-undefined SRGB format, the
// way the teacher's context.go/swapchain.go substitute a concrete
// format when the surface reports FormatUndefined.
func DefaultSurfaceFormatScorer(format vk.SurfaceFormat) uint32 {
	if format.Format == vk.FormatB8g8r8a8Srgb {
		return 100
	}
	if format.Format != vk.FormatUndefined {
		return 10
	}
	return 1
}

// Surface owns the swapchain and its per-image resources, and is
// marked invalid on surface change.
type Surface struct {
	device  *Device
	surface vk.Surface

	swapchain  vk.Swapchain
	format     vk.SurfaceFormat
	extent     vk.Extent2D
	images     []vk.Image
	imageViews []vk.ImageView

	presentScorer PresentModeScorer
	formatScorer  SurfaceFormatScorer
	extentFn      FramebufferExtentFunc

	valid bool
}

// NewSurface wraps an existing vk.Surface (created by the host's
// SurfaceCreateFunc, spec §6) with scoring callbacks for present mode
// and format selection.
func NewSurface(d *Device, surface vk.Surface, extentFn FramebufferExtentFunc, presentScorer PresentModeScorer, formatScorer SurfaceFormatScorer) *Surface {
	if presentScorer == nil {
		presentScorer = DefaultPresentModeScorer
	}
	if formatScorer == nil {
		formatScorer = DefaultSurfaceFormatScorer
	}
	return &Surface{
		device:        d,
		surface:       surface,
		presentScorer: presentScorer,
		formatScorer:  formatScorer,
		extentFn:      extentFn,
	}
}

// Valid reports whether the swapchain is still current; it is cleared
// by acquire/present returning out-of-date/suboptimal.
func (s *Surface) Valid() bool { return s.valid }

// Invalidate marks the swapchain stale, triggered by a host-reported
// resize or by acquire/present returning out-of-date.
func (s *Surface) Invalidate() { s.valid = false }

// Format returns the selected swapchain color format.
func (s *Surface) Format() vk.Format { return s.format.Format }

// Extent returns the current swapchain extent.
func (s *Surface) Extent() vk.Extent2D { return s.extent }

// ImageCount returns the number of swapchain images.
func (s *Surface) ImageCount() int { return len(s.images) }

// ImageView returns the swapchain image view at index i.
func (s *Surface) ImageView(i int) vk.ImageView { return s.imageViews[i] }

// Rebuild (re)creates the swapchain against the current framebuffer
// extent, destroying per-image views from any previous swapchain and
// reusing the old swapchain handle for a non-flickering transition, the
// way the teacher's context.go prepareSwapchain passes OldSwapchain.
// Grounded on the teacher's swapchain.go (format/depth-format/extent
// selection) generalized to host-supplied scoring callbacks.
func (s *Surface) Rebuild() (err error) {
	defer checkErr(&err)

	gpu := s.device.PhysicalDevice()
	device := s.device.Handle()

	var caps vk.SurfaceCapabilities
	orPanic(vkErr(vk.GetPhysicalDeviceSurfaceCapabilities(gpu, s.surface, &caps)))
	caps.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, s.surface, &formatCount, nil)
	if formatCount == 0 {
		orPanic(newErrorf(Unsupported, "surface has no pixel formats"))
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, s.surface, &formatCount, formats)

	bestFormat := formats[0]
	bestFormat.Deref()
	var bestScore uint32
	for i, f := range formats {
		f.Deref()
		score := s.formatScorer(f)
		if i == 0 || score > bestScore {
			bestFormat, bestScore = f, score
		}
	}
	s.format = bestFormat

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, s.surface, &modeCount, nil)
	modes := make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, s.surface, &modeCount, modes)
	bestMode := vk.PresentModeFifo
	var bestModeScore uint32
	for i, m := range modes {
		score := s.presentScorer(m)
		if i == 0 || score > bestModeScore {
			bestMode, bestModeScore = m, score
		}
	}

	extent := caps.CurrentExtent
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width == vk.MaxUint32 && s.extentFn != nil {
		w, h := s.extentFn()
		extent = vk.Extent2D{Width: w, Height: h}
	}

	desiredImages := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && desiredImages > caps.MaxImageCount {
		desiredImages = caps.MaxImageCount
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	oldSwapchain := s.swapchain
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    desiredImages,
		ImageFormat:      s.format.Format,
		ImageColorSpace:  s.format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      bestMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}, nil, &swapchain)
	orPanic(vkErr(ret))

	s.destroyImageViews()
	if oldSwapchain != vk.NullSwapchain {
		vk.DestroySwapchain(device, oldSwapchain, nil)
	}
	s.swapchain = swapchain
	s.extent = extent

	var imageCount uint32
	orPanic(vkErr(vk.GetSwapchainImages(device, swapchain, &imageCount, nil)))
	s.images = make([]vk.Image, imageCount)
	orPanic(vkErr(vk.GetSwapchainImages(device, swapchain, &imageCount, s.images)))

	s.imageViews = make([]vk.ImageView, imageCount)
	for i := uint32(0); i < imageCount; i++ {
		var view vk.ImageView
		ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    s.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   s.format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		orPanic(vkErr(ret))
		s.imageViews[i] = view
	}

	s.valid = true
	return nil
}

func (s *Surface) destroyImageViews() {
	device := s.device.Handle()
	for _, v := range s.imageViews {
		vk.DestroyImageView(device, v, nil)
	}
	s.imageViews = nil
}

// AcquireNextImage acquires the next swapchain image, signaling
// semaphore. Out-of-date/suboptimal results invalidate the swapchain
// and are reported through IsOutOfDate(err) rather than being treated
// as fatal.
func (s *Surface) AcquireNextImage(semaphore vk.Semaphore) (imageIndex uint32, err error) {
	ret := vk.AcquireNextImage(s.device.Handle(), s.swapchain, vk.MaxUint64, semaphore, vk.NullFence, &imageIndex)
	if ret == vk.ErrorOutOfDate || ret == vk.Suboptimal {
		s.valid = false
		return 0, vkErr(ret)
	}
	if isError(ret) {
		return 0, vkErr(ret)
	}
	return imageIndex, nil
}

// Present presents imageIndex waiting on waitSemaphore. Out-of-date or
// suboptimal results invalidate the swapchain.
func (s *Surface) Present(queue vk.Queue, waitSemaphore vk.Semaphore, imageIndex uint32) error {
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.swapchain},
		PImageIndices:      []uint32{imageIndex},
	})
	if ret == vk.ErrorOutOfDate || ret == vk.Suboptimal {
		s.valid = false
		return vkErr(ret)
	}
	return vkErr(ret)
}

// Destroy tears down the swapchain and its image views.
func (s *Surface) Destroy() {
	s.destroyImageViews()
	if s.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(s.device.Handle(), s.swapchain, nil)
	}
	if s.surface != vk.NullSurface {
		vk.DestroySurface(s.device.Instance(), s.surface, nil)
	}
}
