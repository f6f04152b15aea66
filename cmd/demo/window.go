package main

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// window wraps a GLFW window and creates Vulkan surfaces for it, adapted
// from the library's CoreDisplay for host-application use; the surface it
// creates is handed to the caller, not kept here. Window creation, surface
// creation and size queries live here so main.go can
// hand plain functions to NewSurface instead of a GLFW type.
type window struct {
	handle *glfw.Window
	title  string
}

func newWindow(width, height int, title string) (*window, error) {
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	return &window{handle: handle, title: title}, nil
}

func (w *window) createSurface(instance vk.Instance) (vk.Surface, error) {
	surfacePtr, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(surfacePtr), nil
}

func (w *window) framebufferExtent() (width, height uint32) {
	fbw, fbh := w.handle.GetFramebufferSize()
	return uint32(fbw), uint32(fbh)
}

func (w *window) shouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *window) destroy() {
	w.handle.Destroy()
}
