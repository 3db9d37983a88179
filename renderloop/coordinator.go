package renderloop

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop"
	"github.com/vkngwrapper/frameloop/framesync"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/platform"
	"github.com/vkngwrapper/frameloop/swapchain"
)

// ErrWindowClosed is returned when the window asks to close while the loop
// is waiting for it to become drawable again.
var ErrWindowClosed = errors.New("window closed")

// Coordinator owns the chain and rebuilds it, together with every registered
// render target, when the surface changes.
type Coordinator struct {
	device   gpu.Device
	window   platform.Window
	opts     swapchain.Options
	registry *Registry
	tracker  *framesync.ImageTracker

	chain       *swapchain.Chain
	recreations int
}

func newCoordinator(device gpu.Device, window platform.Window, opts swapchain.Options, registry *Registry, tracker *framesync.ImageTracker) *Coordinator {
	return &Coordinator{
		device:   device,
		window:   window,
		opts:     opts,
		registry: registry,
		tracker:  tracker,
	}
}

// Chain returns the current chain. It is borrowed and only valid until the
// next recreation.
func (c *Coordinator) Chain() *swapchain.Chain {
	return c.chain
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Recreations reports how many times the chain was rebuilt after the first
// build.
func (c *Coordinator) Recreations() int {
	return c.recreations
}

// Recreate replaces the chain and rebuilds every render target. It blocks
// while the window is minimized and waits for the device to go idle before
// anything is destroyed. The frame ring is never touched.
func (c *Coordinator) Recreate(ctx context.Context) error {
	if err := c.waitDrawable(ctx); err != nil {
		return err
	}

	if err := c.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle before recreation")
	}

	old := ""
	if c.chain != nil {
		old = c.chain.ID.String()
	}
	c.teardown()

	if err := c.build(); err != nil {
		return err
	}
	c.recreations++

	frameloop.Logger().Info("swapchain recreated",
		"old", old,
		"new", c.chain.ID,
		"extent", c.chain.Extent().String(),
		"recreations", c.recreations,
	)
	return nil
}

// start builds the first chain.
func (c *Coordinator) start(ctx context.Context) error {
	if err := c.waitDrawable(ctx); err != nil {
		return err
	}
	return c.build()
}

// waitDrawable blocks on window events until the framebuffer has a non-zero
// area.
func (c *Coordinator) waitDrawable(ctx context.Context) error {
	waited := false
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "wait for drawable framebuffer")
		}
		if c.window.ShouldClose() {
			return ErrWindowClosed
		}
		w, h := c.window.FramebufferSize()
		if w > 0 && h > 0 {
			return nil
		}
		if !waited {
			frameloop.Logger().Info("framebuffer has zero area, pausing", "width", w, "height", h)
			waited = true
		}
		c.window.WaitEvents()
	}
}

func (c *Coordinator) build() error {
	chain, err := swapchain.Create(c.device, c.window, c.opts)
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	c.chain = chain
	c.tracker.Reset(chain.ImageCount())

	if err := c.registry.rebuild(chain); err != nil {
		c.teardown()
		return err
	}

	c.window.ClearResized()
	return nil
}

// teardown releases the render targets newest first and then the chain
// they borrowed from. The tracker is emptied with it, since its fences
// belong to images that no longer exist.
func (c *Coordinator) teardown() {
	c.registry.release()
	if c.chain != nil {
		c.chain.Destroy()
		c.chain = nil
	}
	c.tracker.Reset(0)
}
