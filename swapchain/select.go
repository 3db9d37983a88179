package swapchain

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// ErrNoCompatibleFormat is returned when the surface reports no formats.
var ErrNoCompatibleFormat = errors.New("surface reports no compatible formats")

// ErrZeroExtent is returned when a chain is requested for a zero-area
// framebuffer, as happens while the window is minimized.
var ErrZeroExtent = errors.New("framebuffer has zero area")

// Options are the chain selection preferences. The zero Options selects
// DefaultOptions.
type Options struct {
	PreferredFormat      gpu.SurfaceFormat
	PreferredPresentMode gpu.PresentMode
}

func DefaultOptions() Options {
	return Options{
		PreferredFormat: gpu.SurfaceFormat{
			Format:     gpu.FormatB8G8R8A8SRGB,
			ColorSpace: gpu.ColorSpaceSRGBNonlinear,
		},
		PreferredPresentMode: gpu.PresentModeMailbox,
	}
}

func (o Options) withDefaults() Options {
	if o == (Options{}) {
		return DefaultOptions()
	}
	return o
}

// ChooseSurfaceFormat returns preferred if the surface lists it and the first
// listed format otherwise.
func ChooseSurfaceFormat(formats []gpu.SurfaceFormat, preferred gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	if len(formats) == 0 {
		return gpu.SurfaceFormat{}, ErrNoCompatibleFormat
	}
	for _, f := range formats {
		if f == preferred {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode returns preferred if the surface lists it. FIFO is
// always available and is used otherwise.
func ChoosePresentMode(modes []gpu.PresentMode, preferred gpu.PresentMode) gpu.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return gpu.PresentModeFIFO
}

// ChooseExtent returns the surface's current extent, or the framebuffer size
// clamped to the surface limits when the surface lets the chain decide.
func ChooseExtent(caps gpu.SurfaceCapabilities, framebuffer gpu.Extent2D) gpu.Extent2D {
	if !caps.ExtentFollowsWindow() {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(framebuffer.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(framebuffer.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum so the CPU is
// never stalled waiting on the presentation engine, bounded by the maximum
// (0 means unbounded) and never fewer than two.
func ChooseImageCount(caps gpu.SurfaceCapabilities) int {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < 2 {
		count = 2
	}
	return count
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
