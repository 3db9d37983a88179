// Package swapchain selects and owns the chain of presentable images for a
// surface.
package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/vkngwrapper/frameloop"
	"github.com/vkngwrapper/frameloop/gpu"
)

// FramebufferSizer reports the drawable size of the window the surface was
// created for.
type FramebufferSizer interface {
	FramebufferSize() (width, height int)
}

// Chain is one generation of presentable images together with a view for
// each. A Chain is never reconfigured; a surface change destroys it and a
// new one is created.
type Chain struct {
	// ID identifies this generation in log output.
	ID uuid.UUID

	swapchain   gpu.Swapchain
	images      []gpu.Image
	views       []gpu.ImageView
	format      gpu.SurfaceFormat
	extent      gpu.Extent2D
	presentMode gpu.PresentMode

	rel gpu.Releaser
}

// Create queries the surface and builds a chain sized for window. Everything
// created before a failure is released.
func Create(device gpu.Device, window FramebufferSizer, opts Options) (_ *Chain, err error) {
	opts = opts.withDefaults()

	support, err := device.SurfaceSupport()
	if err != nil {
		return nil, errors.Wrap(err, "query surface support")
	}

	format, err := ChooseSurfaceFormat(support.Formats, opts.PreferredFormat)
	if err != nil {
		return nil, err
	}
	presentMode := ChoosePresentMode(support.PresentModes, opts.PreferredPresentMode)

	width, height := window.FramebufferSize()
	framebuffer := gpu.Extent2D{Width: width, Height: height}
	extent := ChooseExtent(support.Capabilities, framebuffer)
	if framebuffer.IsZeroArea() || extent.IsZeroArea() {
		return nil, errors.Wrapf(ErrZeroExtent, "create swapchain for framebuffer %s", framebuffer)
	}

	c := &Chain{
		ID:          uuid.New(),
		format:      format,
		extent:      extent,
		presentMode: presentMode,
	}
	defer c.rel.ReleaseOnError(&err)

	c.swapchain, err = device.CreateSwapchain(gpu.SwapchainCreateInfo{
		MinImageCount: ChooseImageCount(support.Capabilities),
		Format:        format,
		Extent:        extent,
		PresentMode:   presentMode,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create swapchain %s %s", extent, format)
	}
	c.rel.Add(c.swapchain)

	c.images, err = c.swapchain.Images()
	if err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}
	if len(c.images) == 0 {
		return nil, errors.AssertionFailedf("swapchain %s has no images", c.ID)
	}

	for i, image := range c.images {
		view, err := device.CreateImageView(image, format.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "create view for swapchain image %d", i)
		}
		c.views = append(c.views, view)
		c.rel.Add(view)
	}

	frameloop.Logger().Info("swapchain created",
		"id", c.ID,
		"extent", extent.String(),
		"format", format.String(),
		"presentMode", presentMode.String(),
		"images", len(c.images),
	)
	return c, nil
}

func (c *Chain) Swapchain() gpu.Swapchain { return c.swapchain }

func (c *Chain) ImageCount() int { return len(c.images) }

func (c *Chain) Images() []gpu.Image { return c.images }

func (c *Chain) Views() []gpu.ImageView { return c.views }

func (c *Chain) Format() gpu.SurfaceFormat { return c.format }

func (c *Chain) Extent() gpu.Extent2D { return c.extent }

func (c *Chain) PresentMode() gpu.PresentMode { return c.presentMode }

// Destroy releases the views and the swapchain. The device must be idle.
// Calling Destroy again is a no-op.
func (c *Chain) Destroy() {
	if c.rel.Len() == 0 {
		return
	}
	c.rel.Release()
	c.images = nil
	c.views = nil
	frameloop.Logger().Info("swapchain destroyed", "id", c.ID)
}
