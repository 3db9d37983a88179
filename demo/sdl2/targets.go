package main

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/scene"
	"github.com/vkngwrapper/frameloop/swapchain"
	"github.com/vkngwrapper/frameloop/vulkan"
)

// depthTarget is the depth attachment shared by every framebuffer.
type depthTarget struct {
	backend *vulkan.Backend
	image   *vulkan.DepthImage
}

func (t *depthTarget) Rebuild(chain *swapchain.Chain) error {
	image, err := t.backend.CreateDepthImage(chain.Extent())
	if err != nil {
		return err
	}
	t.image = image
	return nil
}

func (t *depthTarget) Release() {
	if t.image != nil {
		t.image.Destroy()
		t.image = nil
	}
}

// passTarget owns the render pass, one framebuffer per chain image and, when
// shaders are loaded, the graphics pipeline sized to the chain.
type passTarget struct {
	backend *vulkan.Backend
	depth   *depthTarget
	res     *resources

	renderPass   core1_0.RenderPass
	framebuffers []core1_0.Framebuffer
	pipeline     core1_0.Pipeline
	extent       core1_0.Extent2D

	rel gpu.Releaser
}

func (t *passTarget) Rebuild(chain *swapchain.Chain) (err error) {
	defer t.rel.ReleaseOnError(&err)
	device := t.backend.Device()
	t.extent = core1_0.Extent2D{Width: chain.Extent().Width, Height: chain.Extent().Height}

	t.renderPass, _, err = device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         core1_0.Format(chain.Format().Format),
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         t.depth.image.Format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}
	renderPass := t.renderPass
	t.rel.AddFunc(func() { renderPass.Destroy(nil) })

	t.framebuffers = t.framebuffers[:0]
	for i, view := range chain.Views() {
		handle, err := vulkan.ViewHandle(view)
		if err != nil {
			return err
		}
		framebuffer, _, err := device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: t.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				handle,
				t.depth.image.View,
			},
			Width:  t.extent.Width,
			Height: t.extent.Height,
		})
		if err != nil {
			return errors.Wrapf(err, "create framebuffer %d", i)
		}
		t.framebuffers = append(t.framebuffers, framebuffer)
		t.rel.AddFunc(func() { framebuffer.Destroy(nil) })
	}

	if t.res.drawsGeometry() {
		if err = t.createPipeline(); err != nil {
			return err
		}
	}
	return nil
}

func (t *passTarget) createPipeline() error {
	pipelines, _, err := t.backend.Device().CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: t.res.vertexShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: t.res.fragmentShader,
					Name:   "main",
				},
			},
			VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{
				VertexBindingDescriptions:   vertexBindings(),
				VertexAttributeDescriptions: vertexAttributes(),
			},
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology: core1_0.PrimitiveTopologyTriangleList,
			},
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{
					{
						Width:    float32(t.extent.Width),
						Height:   float32(t.extent.Height),
						MinDepth: 0,
						MaxDepth: 1,
					},
				},
				Scissors: []core1_0.Rect2D{
					{
						Offset: core1_0.Offset2D{X: 0, Y: 0},
						Extent: t.extent,
					},
				},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				PolygonMode: core1_0.PolygonModeFill,
				CullMode:    core1_0.CullModeBack,
				FrontFace:   core1_0.FrontFaceCounterClockwise,
				LineWidth:   1.0,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				RasterizationSamples: core1_0.Samples1,
				MinSampleShading:     1.0,
			},
			DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
				DepthTestEnable:  true,
				DepthWriteEnable: true,
				DepthCompareOp:   core1_0.CompareOpLess,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOp: core1_0.LogicOpCopy,
				Attachments: []core1_0.PipelineColorBlendAttachmentState{
					{
						ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
					},
				},
			},
			Layout:            t.res.pipelineLayout,
			RenderPass:        t.renderPass,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	})
	if err != nil {
		return errors.Wrap(err, "create graphics pipeline")
	}
	t.pipeline = pipelines[0]
	pipeline := t.pipeline
	t.rel.AddFunc(func() { pipeline.Destroy(nil) })
	return nil
}

func (t *passTarget) Release() {
	t.rel.Release()
	t.renderPass = nil
	t.framebuffers = t.framebuffers[:0]
	t.pipeline = nil
}

// uniformTarget holds one host visible uniform buffer and descriptor set per
// chain image. It stores the frame data produced for each image. When a
// texture is loaded every set also binds it at binding 1.
type uniformTarget struct {
	backend *vulkan.Backend
	res     *resources

	pool    core1_0.DescriptorPool
	buffers []*vulkan.Buffer
	sets    []core1_0.DescriptorSet

	rel gpu.Releaser
}

func (t *uniformTarget) Rebuild(chain *swapchain.Chain) (err error) {
	defer t.rel.ReleaseOnError(&err)
	device := t.backend.Device()
	count := chain.ImageCount()

	t.buffers = t.buffers[:0]
	for i := 0; i < count; i++ {
		buffer, err := t.backend.CreateBuffer(scene.UniformBlockSize, core1_0.BufferUsageUniformBuffer,
			core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return errors.Wrapf(err, "create uniform buffer %d", i)
		}
		t.buffers = append(t.buffers, buffer)
		t.rel.Add(buffer)
	}

	t.pool, _, err = device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   count,
		PoolSizes: poolSizes(count, t.res.samplesTexture()),
	})
	if err != nil {
		return errors.Wrap(err, "create descriptor pool")
	}
	pool := t.pool
	t.rel.AddFunc(func() { pool.Destroy(nil) })

	layouts := make([]core1_0.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = t.res.setLayout
	}
	t.sets, _, err = device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: t.pool,
		SetLayouts:     layouts,
	})
	if err != nil {
		return errors.Wrap(err, "allocate descriptor sets")
	}

	for i := 0; i < count; i++ {
		writes := []core1_0.WriteDescriptorSet{
			{
				DstSet:          t.sets[i],
				DstBinding:      0,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: t.buffers[i].Handle,
						Offset: 0,
						Range:  scene.UniformBlockSize,
					},
				},
			},
		}
		if t.res.samplesTexture() {
			writes = append(writes, core1_0.WriteDescriptorSet{
				DstSet:          t.sets[i],
				DstBinding:      1,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   t.res.texture.View,
						Sampler:     t.res.texture.Sampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			})
		}
		if err = device.UpdateDescriptorSets(writes, nil); err != nil {
			return errors.Wrapf(err, "update descriptor set %d", i)
		}
	}
	return nil
}

// poolSizes sizes a descriptor pool for count sets.
func poolSizes(count int, texture bool) []core1_0.DescriptorPoolSize {
	sizes := []core1_0.DescriptorPoolSize{
		{
			Type:            core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: count,
		},
	}
	if texture {
		sizes = append(sizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: count,
		})
	}
	return sizes
}

func (t *uniformTarget) UploadFrameData(imageIndex int, data []byte) error {
	if imageIndex < 0 || imageIndex >= len(t.buffers) {
		return errors.AssertionFailedf("uniform upload for image %d of %d", imageIndex, len(t.buffers))
	}
	return t.buffers[imageIndex].WriteBytes(data)
}

func (t *uniformTarget) Release() {
	t.rel.Release()
	t.pool = nil
	t.buffers = t.buffers[:0]
	t.sets = nil
}

// commandTarget prerecords one command buffer per chain image.
type commandTarget struct {
	backend  *vulkan.Backend
	res      *resources
	pass     *passTarget
	uniforms *uniformTarget

	buffers []core1_0.CommandBuffer
}

func (t *commandTarget) Rebuild(chain *swapchain.Chain) (err error) {
	device := t.backend.Device()
	t.buffers, _, err = device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        t.backend.CommandPool(),
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: chain.ImageCount(),
	})
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}
	defer func() {
		if err != nil {
			t.Release()
		}
	}()

	for i, buffer := range t.buffers {
		if err = t.record(i, buffer); err != nil {
			return errors.Wrapf(err, "record command buffer %d", i)
		}
	}
	return nil
}

func (t *commandTarget) record(imageIndex int, buffer core1_0.CommandBuffer) error {
	if _, err := buffer.Begin(core1_0.CommandBufferBeginInfo{}); err != nil {
		return err
	}

	err := buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  t.pass.renderPass,
			Framebuffer: t.pass.framebuffers[imageIndex],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: t.pass.extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0.02, 0.02, 0.05, 1},
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return err
	}

	if t.res.drawsGeometry() {
		buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, t.pass.pipeline)
		buffer.CmdBindVertexBuffers(0, []core1_0.Buffer{t.res.vertexBuffer.Handle}, []int{0})
		buffer.CmdBindIndexBuffer(t.res.indexBuffer.Handle, 0, core1_0.IndexTypeUInt32)
		buffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, t.res.pipelineLayout, []core1_0.DescriptorSet{
			t.uniforms.sets[imageIndex],
		}, nil)
		buffer.CmdDrawIndexed(t.res.indexCount, 1, 0, 0, 0)
	}
	buffer.CmdEndRenderPass()

	_, err = buffer.End()
	return err
}

func (t *commandTarget) CommandBuffer(imageIndex int) (gpu.CommandBuffer, error) {
	if imageIndex < 0 || imageIndex >= len(t.buffers) {
		return nil, errors.AssertionFailedf("command buffer for image %d of %d", imageIndex, len(t.buffers))
	}
	return t.buffers[imageIndex], nil
}

func (t *commandTarget) Release() {
	if len(t.buffers) > 0 {
		t.backend.Device().FreeCommandBuffers(t.buffers)
	}
	t.buffers = nil
}
