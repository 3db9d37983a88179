package vulkan

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/frameloop/gpu"
)

// Buffer is a buffer bound to its own allocation.
type Buffer struct {
	Handle core1_0.Buffer
	Memory core1_0.DeviceMemory
	Size   int
}

func (b *Buffer) Destroy() {
	if b.Handle != nil {
		b.Handle.Destroy(nil)
		b.Handle = nil
	}
	if b.Memory != nil {
		b.Memory.Free(nil)
		b.Memory = nil
	}
}

// Write encodes data into the start of the buffer's memory. The memory must
// be host visible.
func (b *Buffer) Write(data any) error {
	return writeData(b.Memory, 0, data)
}

// WriteBytes copies raw bytes into the start of the buffer's memory. The
// memory must be host visible.
func (b *Buffer) WriteBytes(data []byte) error {
	if len(data) > b.Size {
		return errors.AssertionFailedf("write of %d bytes into a %d byte buffer", len(data), b.Size)
	}
	ptr, _, err := b.Memory.Map(0, len(data), 0)
	if err != nil {
		return errors.Wrap(err, "map buffer memory")
	}
	defer b.Memory.Unmap()

	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	return nil
}

func writeData(memory core1_0.DeviceMemory, offset int, data any) error {
	size := binary.Size(data)
	if size < 0 {
		return errors.AssertionFailedf("%T has no fixed encoded size", data)
	}

	ptr, _, err := memory.Map(offset, size, 0)
	if err != nil {
		return errors.Wrap(err, "map memory")
	}
	defer memory.Unmap()

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, common.ByteOrder, data); err != nil {
		return errors.Wrapf(err, "encode %T", data)
	}
	copy(unsafe.Slice((*byte)(ptr), size), buf.Bytes())
	return nil
}

// DepthImage is a depth attachment with its memory and view.
type DepthImage struct {
	Format core1_0.Format
	Image  core1_0.Image
	Memory core1_0.DeviceMemory
	View   core1_0.ImageView
}

func (d *DepthImage) Destroy() {
	if d.View != nil {
		d.View.Destroy(nil)
		d.View = nil
	}
	if d.Image != nil {
		d.Image.Destroy(nil)
		d.Image = nil
	}
	if d.Memory != nil {
		d.Memory.Free(nil)
		d.Memory = nil
	}
}

func (b *Backend) FindMemoryType(typeBits uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range b.physicalDevice.MemoryProperties().MemoryTypes {
		if typeBits&(1<<i) != 0 && memoryType.PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, errors.Newf("no memory type matches bits %#x with properties %v", typeBits, properties)
}

// FindDepthFormat returns the first depth format usable as an optimally tiled
// attachment.
func (b *Backend) FindDepthFormat() (core1_0.Format, error) {
	candidates := []core1_0.Format{
		core1_0.FormatD32SignedFloat,
		core1_0.FormatD32SignedFloatS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
	}
	for _, format := range candidates {
		props := b.physicalDevice.FormatProperties(format)
		if props.OptimalTilingFeatures&core1_0.FormatFeatureDepthStencilAttachment != 0 {
			return format, nil
		}
	}
	return 0, errors.New("no supported depth attachment format")
}

func (b *Backend) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (_ *Buffer, err error) {
	buf := &Buffer{Size: size}
	defer func() {
		if err != nil {
			buf.Destroy()
		}
	}()

	buf.Handle, _, err = b.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %d byte buffer", size)
	}

	reqs := buf.Handle.MemoryRequirements()
	memoryType, err := b.FindMemoryType(reqs.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}
	buf.Memory, _, err = b.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate buffer memory")
	}

	if _, err = buf.Handle.BindBufferMemory(buf.Memory, 0); err != nil {
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	return buf, nil
}

// CreateDeviceLocalBuffer uploads data through a staging buffer into a new
// device local buffer.
func (b *Backend) CreateDeviceLocalBuffer(data any, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	size := binary.Size(data)
	if size <= 0 {
		return nil, errors.AssertionFailedf("%T has no fixed encoded size", data)
	}

	staging, err := b.CreateBuffer(size, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.Write(data); err != nil {
		return nil, err
	}

	buf, err := b.CreateBuffer(size, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	err = b.RunOnce(func(cmd core1_0.CommandBuffer) error {
		return cmd.CmdCopyBuffer(staging.Handle, buf.Handle, []core1_0.BufferCopy{{Size: size}})
	})
	if err != nil {
		buf.Destroy()
		return nil, errors.Wrap(err, "copy staging buffer")
	}
	return buf, nil
}

func (b *Backend) CreateDepthImage(extent gpu.Extent2D) (_ *DepthImage, err error) {
	depth := &DepthImage{}
	defer func() {
		if err != nil {
			depth.Destroy()
		}
	}()

	depth.Format, err = b.FindDepthFormat()
	if err != nil {
		return nil, err
	}

	depth.Image, _, err = b.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        depth.Format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         core1_0.ImageUsageDepthStencilAttachment,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s depth image", extent)
	}

	reqs := depth.Image.MemoryRequirements()
	memoryType, err := b.FindMemoryType(reqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}
	depth.Memory, _, err = b.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate depth image memory")
	}
	if _, err = depth.Image.BindImageMemory(depth.Memory, 0); err != nil {
		return nil, errors.Wrap(err, "bind depth image memory")
	}

	depth.View, err = b.createImageView(depth.Image, depth.Format, core1_0.ImageAspectDepth)
	if err != nil {
		return nil, err
	}
	return depth, nil
}

// RunOnce records commands into a temporary command buffer, submits it and
// waits for the graphics queue to idle.
func (b *Backend) RunOnce(record func(cmd core1_0.CommandBuffer) error) error {
	buffers, _, err := b.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        b.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocate command buffer")
	}
	defer b.device.FreeCommandBuffers(buffers)

	cmd := buffers[0]
	if _, err := cmd.Begin(core1_0.CommandBufferBeginInfo{Flags: core1_0.CommandBufferUsageOneTimeSubmit}); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	if err := record(cmd); err != nil {
		return err
	}
	if _, err := cmd.End(); err != nil {
		return errors.Wrap(err, "end command buffer")
	}

	if _, err := b.graphicsQueue.Submit(nil, []core1_0.SubmitInfo{{CommandBuffers: buffers}}); err != nil {
		return errors.Wrap(err, "submit one-time commands")
	}
	if _, err := b.graphicsQueue.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for graphics queue")
	}
	return nil
}
