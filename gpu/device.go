// Package gpu describes the device, queue and synchronization primitives the
// render loop drives. Backends (package vulkan, package gputest) implement
// these interfaces; nothing here refers to a concrete graphics API.
package gpu

import "time"

// Semaphore orders one GPU operation after another without CPU involvement.
type Semaphore interface {
	Destroy()
}

// Fence is signaled by the GPU when submitted work completes.
type Fence interface {
	// Wait blocks until the fence is signaled or timeout elapses. An expired
	// wait returns (Timeout, nil).
	Wait(timeout time.Duration) (Result, error)
	// Reset returns the fence to the unsignaled state.
	Reset() error
	Destroy()
}

// Image is a presentable image owned by a Swapchain. Its concrete type is
// defined by the backend.
type Image any

type ImageView interface {
	Destroy()
}

// CommandBuffer is recorded GPU work. Its concrete type is defined by the
// backend that recorded it.
type CommandBuffer any

type SwapchainCreateInfo struct {
	MinImageCount int
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
}

type Swapchain interface {
	Images() ([]Image, error)
	// AcquireNextImage returns the index of the next presentable image and
	// arranges for signal to be signaled once it is ready to be rendered to.
	// Suboptimal is reported with a nil error; OutOfDate is reported with an
	// error marked ErrOutOfDate.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (int, Result, error)
	Destroy()
}

type SubmitInfo struct {
	WaitSemaphore   Semaphore
	WaitStage       PipelineStage
	CommandBuffer   CommandBuffer
	SignalSemaphore Semaphore
	// Fence is signaled when the submitted work completes. It must be
	// unsignaled at submit time.
	Fence Fence
}

type PresentInfo struct {
	WaitSemaphore Semaphore
	Swapchain     Swapchain
	ImageIndex    int
}

// Device is the logical device together with its graphics and present queues
// and the surface it presents to.
type Device interface {
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)

	// SurfaceSupport queries the current capabilities, formats and present
	// modes of the surface. It fails with an error marked ErrSurfaceLost if
	// the surface is gone.
	SurfaceSupport() (SurfaceSupport, error)
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)

	// Submit enqueues work on the graphics queue.
	Submit(info SubmitInfo) error
	// Present enqueues an image for presentation. Suboptimal is reported with
	// a nil error.
	Present(info PresentInfo) (Result, error)

	// WaitIdle blocks until the device has no outstanding work.
	WaitIdle() error
}
