package main

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	bv "github.com/andewx/bindlessvk"
)

// pipelineBuilder assembles a graphics pipeline for dynamic rendering:
// no vk.RenderPass or vk.Framebuffer is involved, the color/depth
// attachment formats are instead chained onto the pipeline through
// VkPipelineRenderingCreateInfo. Adapted from the library's
// PipelineBuilder, which targeted a render-pass-bound pipeline; that
// approach doesn't fit here since every attachment lives behind dynamic
// rendering.
type pipelineBuilder struct {
	shaderStages   []vk.PipelineShaderStageCreateInfo
	vertexInput    vk.PipelineVertexInputStateCreateInfo
	inputAssembly  vk.PipelineInputAssemblyStateCreateInfo
	rasterizer     vk.PipelineRasterizationStateCreateInfo
	multisampling  vk.PipelineMultisampleStateCreateInfo
	colorBlend     vk.PipelineColorBlendAttachmentState
	depthStencil   vk.PipelineDepthStencilStateCreateInfo
}

func newPipelineBuilder(vertModule, fragModule vk.ShaderModule, sampleCount vk.SampleCountFlagBits) *pipelineBuilder {
	pb := &pipelineBuilder{}

	entryPoint := cstr("main")
	pb.shaderStages = []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  entryPoint,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  entryPoint,
		},
	}

	pb.vertexInput = vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	pb.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	pb.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1.0,
	}

	pb.multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCount,
		MinSampleShading:     1.0,
	}

	pb.colorBlend = vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) |
			vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) |
			vk.ColorComponentFlags(vk.ColorComponentABit),
		BlendEnable: vk.False,
	}

	pb.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
	}

	return pb
}

// build creates the pipeline against a Pass's resolved attachment
// formats and layout, binding rendering info via PNext rather than a
// render-pass handle.
func (pb *pipelineBuilder) build(device *bv.Device, pass *bv.Pass[demoUser], extent vk.Extent2D) (vk.Pipeline, error) {
	viewport := vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{Extent: extent}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{scissor},
	}

	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{pb.colorBlend},
	}

	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount: uint32(len(pass.ColorAttachmentFormats)),
		PColorAttachmentFormats: pass.ColorAttachmentFormats,
		DepthAttachmentFormat:   pass.DepthAttachmentFormat,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(&renderingInfo),
		StageCount:          uint32(len(pb.shaderStages)),
		PStages:             pb.shaderStages,
		PVertexInputState:   &pb.vertexInput,
		PInputAssemblyState: &pb.inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &pb.rasterizer,
		PMultisampleState:   &pb.multisampling,
		PColorBlendState:    &colorBlendState,
		PDepthStencilState:  &pb.depthStencil,
		Layout:              pass.PipelineLayout[bv.BindPointGraphics],
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(device.Handle(), nil, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if ret != vk.Success {
		return vk.NullPipeline, bv.VkErr(ret)
	}
	return pipelines[0], nil
}

func cstr(s string) string {
	return s + "\x00"
}
