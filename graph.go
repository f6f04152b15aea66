package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// sharedBuffer is a graph-level owned buffer input plus the blueprint
// it was built from.
type sharedBuffer struct {
	blueprint BufferInputBlueprint
	buffer    *Buffer
}

// GraphHooks mirrors Pass's hook set at graph scope.
type GraphHooks[U any] struct {
	OnSetup  func(g *Graph[U])
	OnUpdate func(g *Graph[U], cmd vk.CommandBuffer, frame, image uint32)
}

// Graph is the ordered list of passes plus graph-scope shared resources
//. U is the graph's user-data type parameter, the Go
// generic replacement for the source's std::any blob.
type Graph[U any] struct {
	Passes []*Pass[U]

	buffers map[string]*sharedBuffer

	DescriptorSetLayout map[BindPoint]vk.DescriptorSetLayout
	PipelineLayout      map[BindPoint]vk.PipelineLayout
	DescriptorSets      map[BindPoint][]vk.DescriptorSet

	// HasBindPoint records whether any pass in the graph uses a given
	// bind point, per spec §3 "a boolean for each bind point indicating
	// graph has any pass using this bind point".
	HasBindPoint map[BindPoint]bool

	// Compute is true iff any pass declares compute work; checked by the
	// renderer before recording a compute submission.
	Compute bool

	Hooks GraphHooks[U]
	User  U
}

// NewGraph allocates an empty Graph ready for the builder to populate.
func NewGraph[U any]() *Graph[U] {
	return &Graph[U]{
		buffers:             make(map[string]*sharedBuffer),
		DescriptorSetLayout: make(map[BindPoint]vk.DescriptorSetLayout),
		PipelineLayout:      make(map[BindPoint]vk.PipelineLayout),
		DescriptorSets:      make(map[BindPoint][]vk.DescriptorSet),
		HasBindPoint:        make(map[BindPoint]bool),
	}
}

func (g *Graph[U]) runOnUpdate(cmd vk.CommandBuffer, frame, image uint32) {
	if g.Hooks.OnUpdate != nil {
		g.Hooks.OnUpdate(g, cmd, frame, image)
	}
}

func (g *Graph[U]) runOnSetup() {
	if g.Hooks.OnSetup != nil {
		g.Hooks.OnSetup(g)
	}
	for _, p := range g.Passes {
		p.runSetup(g)
	}
}

// Buffer returns the shared buffer registered under name, or nil.
func (g *Graph[U]) Buffer(name string) *Buffer {
	if sb, ok := g.buffers[name]; ok {
		return sb.buffer
	}
	return nil
}

// Destroy tears down every graph-owned and pass-owned buffer; descriptor
// set layouts and pipeline layouts live in the LayoutAllocator and
// descriptor sets in the DescriptorAllocator, both torn down separately
// at their own lifetime scope (spec §3 "Lifecycle").
func (g *Graph[U]) Destroy() {
	for _, sb := range g.buffers {
		sb.buffer.Destroy()
	}
	g.buffers = nil
	for _, p := range g.Passes {
		for _, buf := range p.Buffers {
			buf.Destroy()
		}
		p.Buffers = nil
	}
}
