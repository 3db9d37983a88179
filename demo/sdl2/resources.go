package main

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/vulkan"
)

// resources are the objects that outlive every chain: shaders, layouts,
// geometry and the optional texture.
type resources struct {
	setLayout      core1_0.DescriptorSetLayout
	pipelineLayout core1_0.PipelineLayout
	vertexShader   core1_0.ShaderModule
	fragmentShader core1_0.ShaderModule

	vertexBuffer *vulkan.Buffer
	indexBuffer  *vulkan.Buffer
	indexCount   int
	texture      *vulkan.Texture

	rel gpu.Releaser
}

func newResources(backend *vulkan.Backend, a *assets) (_ *resources, err error) {
	r := &resources{}
	defer r.rel.ReleaseOnError(&err)

	if a.vertexShader == nil {
		return r, nil
	}
	device := backend.Device()

	bindings := []core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,

			StageFlags: core1_0.StageVertex,
		},
	}
	if a.texture != nil {
		r.texture, err = backend.CreateTexture(a.texture)
		if err != nil {
			return nil, errors.Wrap(err, "upload texture")
		}
		r.rel.Add(r.texture)

		bindings = append(bindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         1,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		})
	}

	r.setLayout, _, err = device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: bindings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	r.rel.AddFunc(func() { r.setLayout.Destroy(nil) })

	r.pipelineLayout, _, err = device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{r.setLayout},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}
	r.rel.AddFunc(func() { r.pipelineLayout.Destroy(nil) })

	r.vertexShader, _, err = device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{Code: a.vertexShader})
	if err != nil {
		return nil, errors.Wrap(err, "create vertex shader module")
	}
	r.rel.AddFunc(func() { r.vertexShader.Destroy(nil) })

	r.fragmentShader, _, err = device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{Code: a.fragmentShader})
	if err != nil {
		return nil, errors.Wrap(err, "create fragment shader module")
	}
	r.rel.AddFunc(func() { r.fragmentShader.Destroy(nil) })

	r.vertexBuffer, err = backend.CreateDeviceLocalBuffer(a.vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "upload vertices")
	}
	r.rel.Add(r.vertexBuffer)

	r.indexBuffer, err = backend.CreateDeviceLocalBuffer(a.indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "upload indices")
	}
	r.rel.Add(r.indexBuffer)
	r.indexCount = len(a.indices)

	return r, nil
}

func (r *resources) drawsGeometry() bool {
	return r.vertexShader != nil
}

func (r *resources) samplesTexture() bool {
	return r.texture != nil
}

func (r *resources) Destroy() {
	r.rel.Release()
}
