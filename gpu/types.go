package gpu

import "fmt"

// ExtentUndefined is reported as the current surface width when the surface
// extent follows whatever the swapchain is created with.
const ExtentUndefined = -1

type Extent2D struct {
	Width  int
	Height int
}

// IsZeroArea reports whether either dimension is zero, as it is for a
// minimized window.
func (e Extent2D) IsZeroArea() bool {
	return e.Width <= 0 || e.Height <= 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Format values match VkFormat.
type Format int32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8UNorm Format = 37
	FormatR8G8B8A8SRGB  Format = 43
	FormatB8G8R8A8UNorm Format = 44
	FormatB8G8R8A8SRGB  Format = 50
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "Undefined"
	case FormatR8G8B8A8UNorm:
		return "R8G8B8A8UNorm"
	case FormatR8G8B8A8SRGB:
		return "R8G8B8A8SRGB"
	case FormatB8G8R8A8UNorm:
		return "B8G8R8A8UNorm"
	case FormatB8G8R8A8SRGB:
		return "B8G8R8A8SRGB"
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// ColorSpace values match VkColorSpaceKHR.
type ColorSpace int32

const (
	ColorSpaceSRGBNonlinear ColorSpace = 0
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

func (f SurfaceFormat) String() string {
	if f.ColorSpace == ColorSpaceSRGBNonlinear {
		return f.Format.String() + "/SRGBNonlinear"
	}
	return fmt.Sprintf("%s/ColorSpace(%d)", f.Format, int32(f.ColorSpace))
}

// PresentMode values match VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFORelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

// SurfaceCapabilities is the subset of VkSurfaceCapabilitiesKHR the chain
// selection policy reads. MaxImageCount of 0 means there is no upper bound.
type SurfaceCapabilities struct {
	MinImageCount  int
	MaxImageCount  int
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// ExtentFollowsWindow reports whether the surface leaves the extent choice to
// the swapchain, in which case the window's framebuffer size is used.
func (c SurfaceCapabilities) ExtentFollowsWindow() bool {
	return c.CurrentExtent.Width == ExtentUndefined
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// PipelineStage values match VkPipelineStageFlagBits.
type PipelineStage uint32

const (
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
)
