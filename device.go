package bindlessvk

import (
	"log"

	vk "github.com/vulkan-go/vulkan"
)

// PhysicalDeviceSelector is the host's choice of physical device: it
// receives every available device and returns the one to use.
type PhysicalDeviceSelector func(devices []vk.PhysicalDevice) vk.PhysicalDevice

// PhysicalDeviceScorer scores one physical device. DefaultPhysicalDeviceScorer
// prefers a discrete GPU, matching the teacher's comment ("get the
// first one, multiple GPUs not supported yet") generalized into an
// actual scoring function per spec §6.
type PhysicalDeviceScorer func(device vk.PhysicalDevice) uint32

// SurfaceCreateFunc is the host surface-creation callback.
type SurfaceCreateFunc func(instance vk.Instance) (vk.Surface, error)

// FramebufferExtentFunc returns the current framebuffer size in pixels
//.
type FramebufferExtentFunc func() (width, height uint32)

// Device owns the API instance, the chosen physical device, the logical
// device, and the two (possibly aliased) queue handles, per spec §2
// "Device context". It is threaded explicitly through every public API
// instead of relying on a process-wide default dispatcher, per §9
// "Global dispatcher storage -> explicit context".
type Device struct {
	cfg  DeviceConfig
	sink DebugSink

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device

	memProperties vk.PhysicalDeviceMemoryProperties
	deviceProps   vk.PhysicalDeviceProperties

	graphicsFamily uint32
	computeFamily  uint32
	queuesAliased  bool

	graphicsQueue vk.Queue
	computeQueue  vk.Queue

	minUBOAlign  vk.DeviceSize
	minSSBOAlign vk.DeviceSize

	immediate *immediateSubmitter
}

// NewDevice creates the instance, selects a physical device, creates the
// logical device and its queues, grounded on the teacher's
// platform.go NewPlatform plus dieselvk's queue.go family-search helpers
// generalized into resolveQueues below.
func NewDevice(
	cfg DeviceConfig,
	selector PhysicalDeviceSelector,
	scorer PhysicalDeviceScorer,
	surfaceFn SurfaceCreateFunc,
	requiredInstanceExtensions []string,
	sink DebugSink,
) (d *Device, surface vk.Surface, err error) {
	defer checkErr(&err)

	if sink == nil {
		sink = NewLogSink()
	}
	d = &Device{cfg: cfg, sink: sink}

	actualInstanceExt, ierr := InstanceExtensions()
	orPanic(ierr)
	instanceExt := filterSupported(requiredInstanceExtensions, actualInstanceExt)

	var layers []string
	if cfg.EnableValidation {
		actualLayers, lerr := ValidationLayers()
		orPanic(lerr)
		layers = filterSupported(cfg.ValidationLayers, actualLayers)
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        safeString("bindlessvk"),
		},
		EnabledExtensionCount:   uint32(len(instanceExt)),
		PpEnabledExtensionNames: instanceExt,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	orPanic(vkErr(ret))
	d.instance = instance
	vk.InitInstance(instance)

	if surfaceFn != nil {
		surface, err = surfaceFn(instance)
		orPanic(err)
	}

	var gpuCount uint32
	ret = vk.EnumeratePhysicalDevices(instance, &gpuCount, nil)
	orPanic(vkErr(ret))
	if gpuCount == 0 {
		orPanic(newErrorf(Unsupported, "no physical devices found"))
	}
	gpus := make([]vk.PhysicalDevice, gpuCount)
	ret = vk.EnumeratePhysicalDevices(instance, &gpuCount, gpus)
	orPanic(vkErr(ret))

	d.physicalDevice = choosePhysicalDevice(gpus, selector, scorer)
	if d.physicalDevice == nil {
		orPanic(newErrorf(Unsupported, "no physical device met the required feature set"))
	}

	vk.GetPhysicalDeviceProperties(d.physicalDevice, &d.deviceProps)
	d.deviceProps.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &d.memProperties)
	d.memProperties.Deref()
	limits := d.deviceProps.Limits
	limits.Deref()
	d.minUBOAlign = limits.MinUniformBufferOffsetAlignment
	d.minSSBOAlign = limits.MinStorageBufferOffsetAlignment

	actualDeviceExt, derr := DeviceExtensions(d.physicalDevice)
	orPanic(derr)
	deviceExt := filterSupported(cfg.DeviceExtensions, actualDeviceExt)

	d.graphicsFamily, d.computeFamily, d.queuesAliased, err = resolveQueues(d.physicalDevice, surface)
	orPanic(err)

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.graphicsFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	if !d.queuesAliased {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.computeFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	var device vk.Device
	ret = vk.CreateDevice(d.physicalDevice, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExt)),
		PpEnabledExtensionNames: deviceExt,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &device)
	orPanic(vkErr(ret))
	d.device = device

	var gq, cq vk.Queue
	vk.GetDeviceQueue(device, d.graphicsFamily, 0, &gq)
	d.graphicsQueue = gq
	if d.queuesAliased {
		d.computeQueue = gq
	} else {
		vk.GetDeviceQueue(device, d.computeFamily, 0, &cq)
		d.computeQueue = cq
	}

	d.immediate, err = newImmediateSubmitter(device, d.graphicsFamily, d.graphicsQueue)
	orPanic(err)

	log.Printf("bindlessvk: device %q selected, graphics family %d, compute family %d (aliased=%v)",
		vk.ToString(d.deviceProps.DeviceName[:]), d.graphicsFamily, d.computeFamily, d.queuesAliased)

	return d, surface, nil
}

func choosePhysicalDevice(gpus []vk.PhysicalDevice, selector PhysicalDeviceSelector, scorer PhysicalDeviceScorer) vk.PhysicalDevice {
	if selector != nil {
		return selector(gpus)
	}
	if scorer == nil {
		scorer = DefaultPhysicalDeviceScorer
	}
	var best vk.PhysicalDevice
	var bestScore uint32
	for i, gpu := range gpus {
		score := scorer(gpu)
		if i == 0 || score > bestScore {
			best, bestScore = gpu, score
		}
	}
	return best
}

// DefaultPhysicalDeviceScorer prefers discrete GPUs over integrated
// ones, generalizing the teacher's "get the first one" placeholder into
// an actual (if simple) scoring function.
func DefaultPhysicalDeviceScorer(device vk.PhysicalDevice) uint32 {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &props)
	props.Deref()
	if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
		return 1000
	}
	if props.DeviceType == vk.PhysicalDeviceTypeIntegratedGpu {
		return 500
	}
	return 1
}

// resolveQueues finds a graphics-capable queue family and a
// compute-capable queue family, aliasing them onto the same family when
// a device exposes no family with compute but not graphics. Grounded on
// dieselvk's queue.go (CoreQueue.FindSuitableQueue /
// BindSuitableUnboundQueue) generalized to the render graph's
// graphics+compute split.
func resolveQueues(gpu vk.PhysicalDevice, surface vk.Surface) (graphics, compute uint32, aliased bool, err error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	if count == 0 {
		return 0, 0, false, newErrorf(Unsupported, "no queue families found on selected device")
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)

	graphicsFound, computeFound := false, false
	var dedicatedCompute uint32

	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		flags := props[i].QueueFlags
		supportsGraphics := flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		supportsCompute := flags&vk.QueueFlags(vk.QueueComputeBit) != 0

		if supportsGraphics && !graphicsFound {
			if surface == vk.NullSurface {
				graphics, graphicsFound = i, true
			} else {
				var supportsPresent vk.Bool32
				vk.GetPhysicalDeviceSurfaceSupport(gpu, i, surface, &supportsPresent)
				if supportsPresent.B() {
					graphics, graphicsFound = i, true
				}
			}
		}
		if supportsCompute && !supportsGraphics && !computeFound {
			dedicatedCompute, computeFound = i, true
		}
	}
	if !graphicsFound {
		return 0, 0, false, newErrorf(Unsupported, "no graphics+present capable queue family found")
	}
	if computeFound {
		return graphics, dedicatedCompute, false, nil
	}
	// Fall back to the graphics family for compute too, per spec §2
	// "possibly aliased".
	return graphics, graphics, true, nil
}

// Instance returns the Vulkan instance handle.
func (d *Device) Instance() vk.Instance { return d.instance }

// PhysicalDevice returns the chosen physical device.
func (d *Device) PhysicalDevice() vk.PhysicalDevice { return d.physicalDevice }

// Handle returns the logical device handle.
func (d *Device) Handle() vk.Device { return d.device }

// GraphicsQueue returns the graphics queue.
func (d *Device) GraphicsQueue() vk.Queue { return d.graphicsQueue }

// ComputeQueue returns the compute queue (may alias GraphicsQueue).
func (d *Device) ComputeQueue() vk.Queue { return d.computeQueue }

// GraphicsFamily returns the graphics queue family index.
func (d *Device) GraphicsFamily() uint32 { return d.graphicsFamily }

// ComputeFamily returns the compute queue family index.
func (d *Device) ComputeFamily() uint32 { return d.computeFamily }

// QueuesAliased reports whether graphics and compute share one family.
func (d *Device) QueuesAliased() bool { return d.queuesAliased }

// MemoryProperties returns the physical device's memory properties.
func (d *Device) MemoryProperties() vk.PhysicalDeviceMemoryProperties { return d.memProperties }

// MinUniformBufferOffsetAlignment returns the device's minimum UBO
// offset alignment, used by Buffer to round block sizes.
func (d *Device) MinUniformBufferOffsetAlignment() vk.DeviceSize { return d.minUBOAlign }

// MinStorageBufferOffsetAlignment returns the device's minimum SSBO
// offset alignment.
func (d *Device) MinStorageBufferOffsetAlignment() vk.DeviceSize { return d.minSSBOAlign }

// Sink returns the debug sink the device was built with.
func (d *Device) Sink() DebugSink { return d.sink }

// ImmediateSubmit runs fn synchronously against the graphics queue
// inside a Begin(OneTimeSubmit)/End command buffer, per spec §4.5. It
// must not be invoked from within a frame-loop callback: it
// shares the graphics queue with the frame loop and blocks the caller.
func (d *Device) ImmediateSubmit(fn func(cmd vk.CommandBuffer)) error {
	return d.immediate.submit(fn)
}

// WaitIdle blocks until all queued GPU work on this device completes.
func (d *Device) WaitIdle() error {
	return vkErr(vk.DeviceWaitIdle(d.device))
}

// Destroy tears down the logical device and instance. Layout/descriptor
// allocators, buffers, and graphs must be destroyed before this is
// called.
func (d *Device) Destroy() {
	if d.immediate != nil {
		d.immediate.destroy(d.device)
	}
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
	}
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

// memoryTypeIndex finds a memory type index matching typeBits and the
// requested property flags, failing with Unsupported per spec §7.
func (d *Device) memoryTypeIndex(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	memProps := d.memProperties
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if typeBits&(1<<i) == 0 {
			continue
		}
		if memProps.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, newErrorf(Unsupported, "no memory type matches flags %#x (type bits %#b)", props, typeBits)
}
