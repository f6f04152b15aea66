package main

import lin "github.com/xlab/linmath"

// vulkanProjection converts an OpenGL-style projection matrix to a
// Vulkan-style one: Vulkan's clip space has Y pointing down and a
// depth range of [0, 1] instead of [-1, 1].
func vulkanProjection(dst *lin.Mat4x4, src *lin.Mat4x4) {
	dst.Fill(1.0)
	dst.ScaleAniso(dst, 1.0, -1.0, 1.0)
	dst.ScaleAniso(dst, 1.0, 1.0, 0.5)
	dst.Translate(0.0, 0.0, 1.0)
	dst.Mult(dst, src)
}

// camera is a minimal fixed camera (a perspective projection and a view
// translated 3 units back). The demo graph declares no buffer inputs, so
// its matrices are not uploaded to the GPU.
type camera struct {
	view lin.Mat4x4
	proj lin.Mat4x4
}

func newCamera(aspect float32) *camera {
	c := &camera{}
	var rawProj lin.Mat4x4
	rawProj.Perspective(deg2rad(60), aspect, 0.1, 100.0)
	vulkanProjection(&c.proj, &rawProj)
	c.view.Identity()
	c.view.Translate(0, 0, -3)
	return c
}

func deg2rad(d float32) float32 {
	const pi = 3.14159265358979323846
	return d * pi / 180
}

// viewProj returns the combined view-projection matrix. Nothing in the
// demo calls it.
func (c *camera) viewProj() lin.Mat4x4 {
	var out lin.Mat4x4
	out.Mult(&c.proj, &c.view)
	return out
}
