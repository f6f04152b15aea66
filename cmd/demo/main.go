// Command demo drives a minimal single-pass triangle through the
// render graph: it opens a window, builds a Device/Surface/Renderer
// triple, constructs a one-pass graph that clears the backbuffer and
// draws, and runs the frame loop until the window closes.
package main

import (
	"log"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	bv "github.com/andewx/bindlessvk"
)

const (
	windowWidth  = 1280
	windowHeight = 720
)

// demoUser is the per-graph user-data type threaded through Pass/Graph
// hooks; it carries the one pipeline and camera the demo needs.
type demoUser struct {
	cam      *camera
	pipeline vk.Pipeline
}

func main() {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		log.Fatalf("glfw init: %v", err)
	}
	defer glfw.Terminate()

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		log.Fatalf("vulkan init: %v", err)
	}

	win, err := newWindow(windowWidth, windowHeight, "bindlessvk demo")
	if err != nil {
		log.Fatalf("window: %v", err)
	}
	defer win.destroy()

	sink := bv.NewLogSink()

	device, vkSurface, err := bv.NewDevice(
		bv.DefaultDeviceConfig("bindlessvk demo"),
		nil, nil,
		win.createSurface,
		win.handle.GetRequiredInstanceExtensions(),
		sink,
	)
	if err != nil {
		log.Fatalf("device: %v", err)
	}
	defer device.Destroy()

	surface := bv.NewSurface(device, vkSurface, win.framebufferExtent, nil, nil)
	if err := surface.Rebuild(); err != nil {
		log.Fatalf("surface rebuild: %v", err)
	}
	defer surface.Destroy()

	alloc := bv.NewMemoryAllocator(device)
	resources := bv.NewRenderResources(alloc, device, surface)
	defer resources.Destroy()

	layouts := bv.NewLayoutAllocator(device)
	defer layouts.Destroy()

	descs := bv.NewDescriptorAllocator(device, bv.DefaultDescriptorPoolPolicy())
	defer descs.Destroy()

	builder := bv.NewGraphBuilder[demoUser](device, resources, layouts, descs, bv.InFlightCount)

	vertModule, err := bv.LoadShaderModule(device, "cmd/demo/shaders/triangle.vert.spv")
	if err != nil {
		log.Fatalf("vertex shader: %v", err)
	}
	fragModule, err := bv.LoadShaderModule(device, "cmd/demo/shaders/triangle.frag.spv")
	if err != nil {
		log.Fatalf("fragment shader: %v", err)
	}
	defer vk.DestroyShaderModule(device.Handle(), vertModule, nil)
	defer vk.DestroyShaderModule(device.Handle(), fragModule, nil)

	graph := bv.NewGraph[demoUser]()
	graph.User = demoUser{cam: newCamera(float32(windowWidth) / float32(windowHeight))}

	blueprint := bv.PassBlueprint[demoUser]{
		Name:        "triangle",
		Graphics:    true,
		SampleCount: vk.SampleCount1Bit,
		ColorAttachments: []bv.AttachmentBlueprint{
			{
				Name:     "backbuffer",
				Format:   surface.Format(),
				SizeType: bv.SizeSwapchainRelative,
				Width:    1.0,
				Height:   1.0,
			},
		},
		Hooks: bv.Hooks[demoUser]{
			OnSetup: func(g *bv.Graph[demoUser], p *bv.Pass[demoUser]) {
				pb := newPipelineBuilder(vertModule, fragModule, p.SampleCount)
				pipeline, err := pb.build(device, p, surface.Extent())
				if err != nil {
					log.Fatalf("build pipeline: %v", err)
				}
				g.User.pipeline = pipeline
			},
			OnFrameGraphics: func(p *bv.Pass[demoUser], cmd vk.CommandBuffer, frame, image uint32) {
				vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, graph.User.pipeline)
				vk.CmdDraw(cmd, 3, 1, 0, 0)
			},
		},
	}

	graph, err = builder.Build([]bv.PassBlueprint[demoUser]{blueprint},
		[]bv.TextureInputBlueprintOrBuffer(nil), []bv.TextureInputBlueprintOrBuffer(nil), graph)
	if err != nil {
		log.Fatalf("build graph: %v", err)
	}
	defer vk.DestroyPipeline(device.Handle(), graph.User.pipeline, nil)

	renderer, err := bv.NewRenderer[demoUser](device, surface, resources, bv.InFlightCount)
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}
	defer renderer.Destroy()

	for !win.shouldClose() {
		glfw.PollEvents()

		if !surface.Valid() {
			device.WaitIdle()
			if err := surface.Rebuild(); err != nil {
				log.Fatalf("rebuild surface: %v", err)
			}
			renderer.OnSurfaceChanged()
			continue
		}

		if _, err := renderer.RenderFrame(graph); err != nil {
			if bv.IsOutOfDate(err) {
				continue
			}
			log.Fatalf("render frame: %v", err)
		}
	}

	device.WaitIdle()
}
