package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// SizeType classifies how an attachment's extent is derived.
type SizeType uint32

const (
	// SizeSwapchainRelative scales the current surface extent by (W,H) ∈ [0,1].
	SizeSwapchainRelative SizeType = iota
	// SizeAbsolute takes (W,H) as pixel counts verbatim.
	SizeAbsolute
	// SizeRelativeToOther names another attachment to derive extent from;
	// reserved and unimplemented per spec §4.6, §9.
	SizeRelativeToOther
)

// BindPoint is the pipeline scope a descriptor belongs to (spec
// glossary "Bind point").
type BindPoint uint32

const (
	BindPointGraphics BindPoint = iota
	BindPointCompute
)

// AttachmentBlueprint declares one attachment a pass reads or writes,
// before the builder resolves it to a concrete resource index.
type AttachmentBlueprint struct {
	Name         string
	Format       vk.Format
	SizeType     SizeType
	Width        float32
	Height       float32
	RelativeName string // only meaningful when SizeType == SizeRelativeToOther

	// InputHash, if non-zero, names the Fingerprint of an attachment this
	// pass reads (and therefore loads rather than clears) instead of
	// creating fresh.
	InputHash Fingerprint
}

// BufferInputBlueprint declares a buffer a pass or the graph owns (spec
// §4.8 step 2/5c).
type BufferInputBlueprint struct {
	Name        string
	MinBlockSize vk.DeviceSize
	PerFrame    bool // true: per-frame update frequency; false: singular
	Usage       vk.BufferUsageFlagBits
	BindPoint   BindPoint
	Binding     uint32
}

// AttachmentRef is the resolved, per-pass view of an attachment: the
// barrier/clear state the renderer needs plus the index into Render
// Resources.
type AttachmentRef struct {
	StageMask             vk.PipelineStageFlagBits
	AccessMask            vk.AccessFlagBits
	ImageLayout           vk.ImageLayout
	SubresourceRange      vk.ImageSubresourceRange
	LoadOp                vk.AttachmentLoadOp
	StoreOp               vk.AttachmentStoreOp
	ClearValue            vk.ClearValue
	ResourceIndex         int
	TransientResourceIndex int // -1 if none
	ResolveMode           vk.ResolveModeFlagBits
}

// newAttachmentRef builds the invariant-respecting default for a newly
// resolved attachment: LoadOp = Load iff hasInput, else Clear; StoreOp =
// Store always. layout/access/stage are the pass's required rendering
// state for this attachment (ColorAttachmentOptimal/Write/Output for
// color, DepthStencilAttachmentOptimal/Read|Write/EarlyFragmentTests for
// depth), which the renderer's barrier recording compares against each
// attachment's last-recorded state.
func newAttachmentRef(resourceIndex int, hasInput bool, layout vk.ImageLayout, access vk.AccessFlagBits, stage vk.PipelineStageFlagBits) AttachmentRef {
	loadOp := vk.AttachmentLoadOpClear
	if hasInput {
		loadOp = vk.AttachmentLoadOpLoad
	}
	return AttachmentRef{
		ImageLayout:            layout,
		AccessMask:             access,
		StageMask:              stage,
		LoadOp:                 loadOp,
		StoreOp:                vk.AttachmentStoreOpStore,
		ResourceIndex:          resourceIndex,
		TransientResourceIndex: -1,
		ResolveMode:            vk.ResolveModeNone,
	}
}

// Pass is the engine-owned data a user's hooks operate on, generalized
// from BindlessVk's Renderpass/Rendergraph virtual-base hierarchy into a
// plain data struct plus a Hooks struct of optional funcs. U is the pass's user-data type, replacing the
// source's std::any blob with a real type parameter.
type Pass[U any] struct {
	Name      string
	Compute   bool
	Graphics  bool
	SampleCount vk.SampleCountFlagBits

	Attachments []AttachmentRef
	BufferInputs []BufferInputBlueprint
	Buffers      map[string]*Buffer

	DescriptorSetLayout map[BindPoint]vk.DescriptorSetLayout
	PipelineLayout      map[BindPoint]vk.PipelineLayout
	DescriptorSets      map[BindPoint][]vk.DescriptorSet // one per in-flight frame

	ColorAttachmentFormats []vk.Format
	DepthAttachmentFormat  vk.Format

	Hooks Hooks[U]
	User  U
}

// Hooks are the four overridable behaviors of a pass. A nil
// field behaves as a no-op, mirroring BaseCore-style default methods in
// the teacher's codebase.
type Hooks[U any] struct {
	OnSetup         func(g *Graph[U], p *Pass[U])
	OnFramePrepare  func(p *Pass[U], frame, image uint32)
	OnFrameCompute  func(p *Pass[U], cmd vk.CommandBuffer, frame, image uint32)
	OnFrameGraphics func(p *Pass[U], cmd vk.CommandBuffer, frame, image uint32)
}

func (p *Pass[U]) runSetup(g *Graph[U]) {
	if p.Hooks.OnSetup != nil {
		p.Hooks.OnSetup(g, p)
	}
}

func (p *Pass[U]) runFramePrepare(frame, image uint32) {
	if p.Hooks.OnFramePrepare != nil {
		p.Hooks.OnFramePrepare(p, frame, image)
	}
}

func (p *Pass[U]) runFrameCompute(cmd vk.CommandBuffer, frame, image uint32) {
	if !p.Compute || p.Hooks.OnFrameCompute == nil {
		return
	}
	p.Hooks.OnFrameCompute(p, cmd, frame, image)
}

func (p *Pass[U]) runFrameGraphics(cmd vk.CommandBuffer, frame, image uint32) {
	if !p.Graphics || p.Hooks.OnFrameGraphics == nil {
		return
	}
	p.Hooks.OnFrameGraphics(p, cmd, frame, image)
}

// PassBlueprint is the declarative description the graph builder
// consumes to materialize a Pass.
type PassBlueprint[U any] struct {
	Name        string
	Compute     bool
	Graphics    bool
	SampleCount vk.SampleCountFlagBits

	ColorAttachments []AttachmentBlueprint
	DepthAttachment  *AttachmentBlueprint

	BufferInputs  []BufferInputBlueprint
	TextureInputs []TextureInputBlueprint

	Hooks Hooks[U]
	User  U
}

// TextureInputBlueprint declares a sampled-image descriptor input a
// pass or the graph binds.
type TextureInputBlueprint struct {
	Name          string
	BindPoint     BindPoint
	Binding       uint32
	DefaultView   vk.ImageView
	DefaultSampler vk.Sampler
}
