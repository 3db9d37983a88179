package vulkan

import (
	"image"
	"image/draw"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// TextureFormat is the format every texture is uploaded in.
const TextureFormat = core1_0.FormatR8G8B8A8SRGB

// Texture is a sampled image with its memory, view and sampler.
type Texture struct {
	Image   core1_0.Image
	Memory  core1_0.DeviceMemory
	View    core1_0.ImageView
	Sampler core1_0.Sampler
	Width   int
	Height  int
}

func (t *Texture) Destroy() {
	if t.Sampler != nil {
		t.Sampler.Destroy(nil)
		t.Sampler = nil
	}
	if t.View != nil {
		t.View.Destroy(nil)
		t.View = nil
	}
	if t.Image != nil {
		t.Image.Destroy(nil)
		t.Image = nil
	}
	if t.Memory != nil {
		t.Memory.Free(nil)
		t.Memory = nil
	}
}

// RGBAPixels returns img as tightly packed 8-bit RGBA rows.
func RGBAPixels(img image.Image) (pixels []byte, width, height int) {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba.Pix, bounds.Dx(), bounds.Dy()
}

// CreateTexture uploads img through a staging buffer into a device local
// image that is left in the shader read layout.
func (b *Backend) CreateTexture(img image.Image) (_ *Texture, err error) {
	pixels, width, height := RGBAPixels(img)
	if width == 0 || height == 0 {
		return nil, errors.Newf("texture has no pixels: %dx%d", width, height)
	}

	tex := &Texture{Width: width, Height: height}
	defer func() {
		if err != nil {
			tex.Destroy()
		}
	}()

	staging, err := b.CreateBuffer(len(pixels), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.WriteBytes(pixels); err != nil {
		return nil, err
	}

	tex.Image, _, err = b.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        TextureFormat,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %dx%d texture image", width, height)
	}

	reqs := tex.Image.MemoryRequirements()
	memoryType, err := b.FindMemoryType(reqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}
	tex.Memory, _, err = b.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate texture memory")
	}
	if _, err = tex.Image.BindImageMemory(tex.Memory, 0); err != nil {
		return nil, errors.Wrap(err, "bind texture memory")
	}

	err = b.RunOnce(func(cmd core1_0.CommandBuffer) error {
		if err := transitionLayout(cmd, tex.Image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		err := cmd.CmdCopyBufferToImage(staging.Handle, tex.Image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
			{
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask: core1_0.ImageAspectColor,
					LayerCount: 1,
				},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		})
		if err != nil {
			return errors.Wrap(err, "copy staging buffer to texture")
		}
		return transitionLayout(cmd, tex.Image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		return nil, err
	}

	tex.View, err = b.createImageView(tex.Image, TextureFormat, core1_0.ImageAspectColor)
	if err != nil {
		return nil, err
	}

	tex.Sampler, _, err = b.device.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,
		MipmapMode:  core1_0.SamplerMipmapModeLinear,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create texture sampler")
	}
	return tex, nil
}

// layoutBarrier returns the access masks and stages for the two transitions
// a texture upload makes.
func layoutBarrier(oldLayout, newLayout core1_0.ImageLayout) (src, dst core1_0.AccessFlags, srcStage, dstStage core1_0.PipelineStageFlags, err error) {
	switch {
	case oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal:
		return 0, core1_0.AccessTransferWrite, core1_0.PipelineStageTopOfPipe, core1_0.PipelineStageTransfer, nil
	case oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal:
		return core1_0.AccessTransferWrite, core1_0.AccessShaderRead, core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, nil
	}
	return 0, 0, 0, 0, errors.AssertionFailedf("unexpected layout transition: %v -> %v", oldLayout, newLayout)
}

func transitionLayout(cmd core1_0.CommandBuffer, img core1_0.Image, oldLayout, newLayout core1_0.ImageLayout) error {
	src, dst, srcStage, dstStage, err := layoutBarrier(oldLayout, newLayout)
	if err != nil {
		return err
	}
	err = cmd.CmdPipelineBarrier(srcStage, dstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               img,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask: core1_0.ImageAspectColor,
				LevelCount: 1,
				LayerCount: 1,
			},
			SrcAccessMask: src,
			DstAccessMask: dst,
		},
	})
	return errors.Wrapf(err, "transition texture %v -> %v", oldLayout, newLayout)
}
