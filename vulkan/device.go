package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/frameloop/gpu"
)

func (b *Backend) CreateSemaphore() (gpu.Semaphore, error) {
	semaphore, _, err := b.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &Semaphore{Handle: semaphore}, nil
}

func (b *Backend) CreateFence(signaled bool) (gpu.Fence, error) {
	var info core1_0.FenceCreateInfo
	if signaled {
		info.Flags = core1_0.FenceCreateSignaled
	}
	fence, _, err := b.device.CreateFence(nil, info)
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &Fence{Handle: fence, device: b.device}, nil
}

func (b *Backend) surfaceCapabilities() (*khr_surface.SurfaceCapabilities, error) {
	caps, res, err := b.surface.PhysicalDeviceSurfaceCapabilities(b.physicalDevice)
	if _, err := checkResult(res, err, "query surface capabilities"); err != nil {
		return nil, err
	}
	return caps, nil
}

func (b *Backend) SurfaceSupport() (gpu.SurfaceSupport, error) {
	caps, err := b.surfaceCapabilities()
	if err != nil {
		return gpu.SurfaceSupport{}, err
	}

	formats, res, err := b.surface.PhysicalDeviceSurfaceFormats(b.physicalDevice)
	if _, err := checkResult(res, err, "query surface formats"); err != nil {
		return gpu.SurfaceSupport{}, err
	}
	modes, res, err := b.surface.PhysicalDeviceSurfacePresentModes(b.physicalDevice)
	if _, err := checkResult(res, err, "query present modes"); err != nil {
		return gpu.SurfaceSupport{}, err
	}

	support := gpu.SurfaceSupport{
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
			MinImageExtent: gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
			MaxImageExtent: gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		},
	}
	for _, f := range formats {
		support.Formats = append(support.Formats, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}
	for _, m := range modes {
		support.PresentModes = append(support.PresentModes, gpu.PresentMode(m))
	}
	return support, nil
}

func (b *Backend) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	caps, err := b.surfaceCapabilities()
	if err != nil {
		return nil, err
	}

	sharingMode := core1_0.SharingModeExclusive
	var families []int
	if b.graphicsFamily != b.presentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		families = []int{b.graphicsFamily, b.presentFamily}
	}

	swapchain, res, err := b.swapchainExtension.CreateSwapchain(b.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: b.surface,

		MinImageCount:    info.MinImageCount,
		ImageFormat:      core1_0.Format(info.Format.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      core1_0.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: families,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	})
	if _, err := checkResult(res, err, "create swapchain"); err != nil {
		return nil, err
	}
	return &Swapchain{Handle: swapchain}, nil
}

func (b *Backend) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	handle, ok := image.(core1_0.Image)
	if !ok {
		return nil, errors.AssertionFailedf("image %T was not created by the vulkan backend", image)
	}
	view, err := b.createImageView(handle, core1_0.Format(format), core1_0.ImageAspectColor)
	if err != nil {
		return nil, err
	}
	return &ImageView{Handle: view}, nil
}

func (b *Backend) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	view, _, err := b.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s image view", format)
	}
	return view, nil
}

func (b *Backend) Submit(info gpu.SubmitInfo) error {
	buffer, ok := info.CommandBuffer.(core1_0.CommandBuffer)
	if !ok {
		return errors.AssertionFailedf("command buffer %T was not recorded by the vulkan backend", info.CommandBuffer)
	}
	fence, err := fenceHandle(info.Fence)
	if err != nil {
		return err
	}

	submit := core1_0.SubmitInfo{CommandBuffers: []core1_0.CommandBuffer{buffer}}
	if info.WaitSemaphore != nil {
		wait, err := semaphoreHandle(info.WaitSemaphore)
		if err != nil {
			return err
		}
		submit.WaitSemaphores = []core1_0.Semaphore{wait}
		submit.WaitDstStageMask = []core1_0.PipelineStageFlags{core1_0.PipelineStageFlags(info.WaitStage)}
	}
	if info.SignalSemaphore != nil {
		signal, err := semaphoreHandle(info.SignalSemaphore)
		if err != nil {
			return err
		}
		submit.SignalSemaphores = []core1_0.Semaphore{signal}
	}

	res, err := b.graphicsQueue.Submit(fence, []core1_0.SubmitInfo{submit})
	_, err = checkResult(res, err, "submit to graphics queue")
	return err
}

func (b *Backend) Present(info gpu.PresentInfo) (gpu.Result, error) {
	swapchain, err := swapchainHandle(info.Swapchain)
	if err != nil {
		return gpu.Unknown, err
	}

	present := khr_swapchain.PresentInfo{
		Swapchains:   []khr_swapchain.Swapchain{swapchain},
		ImageIndices: []int{info.ImageIndex},
	}
	if info.WaitSemaphore != nil {
		wait, err := semaphoreHandle(info.WaitSemaphore)
		if err != nil {
			return gpu.Unknown, err
		}
		present.WaitSemaphores = []core1_0.Semaphore{wait}
	}

	res, err := b.swapchainExtension.QueuePresent(b.presentQueue, present)
	return checkResult(res, err, "present")
}

func (b *Backend) WaitIdle() error {
	res, err := b.device.WaitIdle()
	_, err = checkResult(res, err, "wait for device idle")
	return err
}
