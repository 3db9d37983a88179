// Package gputest provides an in-memory gpu.Device for exercising the frame
// loop without a GPU.
//
// Submitted work sits on a single FIFO queue. Nothing completes on its own:
// waiting on a submitted fence completes every earlier submission and then
// that one, and WaitIdle completes everything. This makes the fake as lazy as
// the slowest GPU the protocol must tolerate, so any missing wait shows up as
// a recorded violation instead of a race.
//
// The fake is not safe for concurrent use.
package gputest

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

type Kind string

const (
	KindSemaphore Kind = "semaphore"
	KindFence     Kind = "fence"
	KindSwapchain Kind = "swapchain"
	KindImageView Kind = "image view"
)

// AcquireStep scripts one AcquireNextImage call. A negative Index uses the
// swapchain's round-robin order.
type AcquireStep struct {
	Index  int
	Result gpu.Result
}

// Image is the image type handed out by fake swapchains.
type Image struct {
	Swapchain int
	Index     int
}

// CommandBuffer is the command buffer type the fake understands. Submitting
// one marks Image busy until the submission completes.
type CommandBuffer struct {
	Image int
}

type Device struct {
	Support    gpu.SurfaceSupport
	SupportErr error

	// AcquireScript and PresentScript are consumed one entry per call. Once
	// empty, acquire is round-robin with Success and present is Success.
	AcquireScript []AcquireStep
	PresentScript []gpu.Result

	SubmitErr error
	// Hung makes fence waits time out instead of completing queued work.
	// WaitIdle still drains the queue.
	Hung bool
	// FailImageViewAt makes the n-th image view creation (1-based, counted
	// over the device's lifetime) fail. Zero disables it.
	FailImageViewAt int

	// Swapchains records every CreateSwapchain call in order.
	Swapchains []gpu.SwapchainCreateInfo

	// MaxOutstanding is the largest number of submissions that were pending
	// at once.
	MaxOutstanding int
	Violations     []string
	WaitIdleCalls  int
	Submits        int
	Presents       int

	pending   []*Fence
	live      map[Kind]int
	created   map[Kind]int
	viewCount int
}

// NewDevice returns a device whose surface follows the window extent, allows
// 2 to 3 images and offers B8G8R8A8_SRGB with FIFO and MAILBOX.
func NewDevice() *Device {
	return &Device{
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  gpu.Extent2D{Width: gpu.ExtentUndefined, Height: gpu.ExtentUndefined},
				MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
		},
		live:    map[Kind]int{},
		created: map[Kind]int{},
	}
}

func (d *Device) violation(format string, args ...any) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) track(k Kind) {
	d.live[k]++
	d.created[k]++
}

func (d *Device) untrack(k Kind, destroyed *bool) {
	if *destroyed {
		d.violation("%s destroyed twice", k)
		return
	}
	*destroyed = true
	d.live[k]--
}

// Live reports how many objects of kind k exist.
func (d *Device) Live(k Kind) int { return d.live[k] }

// LiveTotal reports how many objects of any kind exist.
func (d *Device) LiveTotal() int {
	total := 0
	for _, n := range d.live {
		total += n
	}
	return total
}

// Created reports how many objects of kind k were ever created.
func (d *Device) Created(k Kind) int { return d.created[k] }

// Outstanding reports how many submissions have not completed.
func (d *Device) Outstanding() int { return len(d.pending) }

// ImageBusy reports whether submitted, incomplete work targets image index.
func (d *Device) ImageBusy(index int) bool {
	for _, f := range d.pending {
		if f.image == index {
			return true
		}
	}
	return false
}

// WriteImageData records a host write to image index's per-image resources.
// Writing while the image is busy is a violation.
func (d *Device) WriteImageData(index int) {
	if d.ImageBusy(index) {
		d.violation("image %d written while its previous frame is still executing", index)
	}
}

// complete finishes pending work in queue order up to and including f.
func (d *Device) complete(f *Fence) {
	for len(d.pending) > 0 {
		head := d.pending[0]
		d.pending = d.pending[1:]
		head.pending = false
		head.signaled = true
		head.image = -1
		if head == f {
			return
		}
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	d.track(KindSemaphore)
	return &Semaphore{device: d}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	d.track(KindFence)
	return &Fence{device: d, signaled: signaled, image: -1}, nil
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	if d.SupportErr != nil {
		return gpu.SurfaceSupport{}, d.SupportErr
	}
	s := d.Support
	s.Formats = append([]gpu.SurfaceFormat(nil), s.Formats...)
	s.PresentModes = append([]gpu.PresentMode(nil), s.PresentModes...)
	return s, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	if info.Extent.IsZeroArea() {
		d.violation("swapchain created with zero extent %s", info.Extent)
	}
	d.Swapchains = append(d.Swapchains, info)
	d.track(KindSwapchain)
	return &Swapchain{device: d, id: len(d.Swapchains), imageCount: info.MinImageCount}, nil
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	if _, ok := image.(Image); !ok {
		return nil, errors.Newf("gputest: image view of foreign image %T", image)
	}
	d.viewCount++
	if d.viewCount == d.FailImageViewAt {
		return nil, errors.Newf("gputest: image view %d failed", d.viewCount)
	}
	d.track(KindImageView)
	return &ImageView{device: d}, nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	if d.SubmitErr != nil {
		return d.SubmitErr
	}
	d.Submits++
	if s, ok := info.WaitSemaphore.(*Semaphore); ok {
		if !s.signaled {
			d.violation("submit waits on a semaphore nothing will signal")
		}
		s.signaled = false
	}
	if s, ok := info.SignalSemaphore.(*Semaphore); ok {
		if s.signaled {
			d.violation("submit signals a semaphore that is already signaled")
		}
		s.signaled = true
	}

	image := -1
	if cb, ok := info.CommandBuffer.(CommandBuffer); ok {
		image = cb.Image
	}

	f, _ := info.Fence.(*Fence)
	if f == nil {
		return nil
	}
	switch {
	case f.pending:
		d.violation("submit with a fence that is still pending")
	case f.signaled:
		d.violation("submit with a signaled fence")
	}
	f.pending = true
	f.image = image
	d.pending = append(d.pending, f)
	if len(d.pending) > d.MaxOutstanding {
		d.MaxOutstanding = len(d.pending)
	}
	return nil
}

func (d *Device) Present(info gpu.PresentInfo) (gpu.Result, error) {
	d.Presents++
	if s, ok := info.WaitSemaphore.(*Semaphore); ok {
		if !s.signaled {
			d.violation("present waits on a semaphore nothing will signal")
		}
		s.signaled = false
	}
	if sc, ok := info.Swapchain.(*Swapchain); ok {
		if sc.destroyed {
			d.violation("present to a destroyed swapchain")
		}
		if info.ImageIndex < 0 || info.ImageIndex >= sc.imageCount {
			d.violation("present of image %d outside a %d image chain", info.ImageIndex, sc.imageCount)
		}
	}

	r := gpu.Success
	if len(d.PresentScript) > 0 {
		r = d.PresentScript[0]
		d.PresentScript = d.PresentScript[1:]
	}
	if err := gpu.ResultError(r); err != nil {
		return r, errors.Wrap(err, "gputest: present")
	}
	return r, nil
}

func (d *Device) WaitIdle() error {
	d.WaitIdleCalls++
	if len(d.pending) > 0 {
		d.complete(d.pending[len(d.pending)-1])
	}
	return nil
}

type Semaphore struct {
	device    *Device
	signaled  bool
	destroyed bool
}

func (s *Semaphore) Destroy() { s.device.untrack(KindSemaphore, &s.destroyed) }

type Fence struct {
	device    *Device
	signaled  bool
	pending   bool
	image     int
	destroyed bool
}

// Signaled reports whether the fence is signaled without completing any
// work.
func (f *Fence) Signaled() bool { return f.signaled }

func (f *Fence) Wait(timeout time.Duration) (gpu.Result, error) {
	if f.destroyed {
		return gpu.Unknown, errors.New("gputest: wait on destroyed fence")
	}
	if f.pending && !f.device.Hung {
		f.device.complete(f)
	}
	if !f.signaled {
		return gpu.Timeout, nil
	}
	return gpu.Success, nil
}

func (f *Fence) Reset() error {
	if f.pending {
		f.device.violation("fence reset while its submission is pending")
	}
	f.signaled = false
	return nil
}

func (f *Fence) Destroy() {
	if f.pending {
		f.device.violation("fence destroyed while its submission is pending")
	}
	f.device.untrack(KindFence, &f.destroyed)
}

type ImageView struct {
	device    *Device
	destroyed bool
}

func (v *ImageView) Destroy() { v.device.untrack(KindImageView, &v.destroyed) }

type Swapchain struct {
	device     *Device
	id         int
	imageCount int
	next       int
	destroyed  bool
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	images := make([]gpu.Image, s.imageCount)
	for i := range images {
		images[i] = Image{Swapchain: s.id, Index: i}
	}
	return images, nil
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (int, gpu.Result, error) {
	d := s.device
	if s.destroyed {
		d.violation("acquire from a destroyed swapchain")
	}

	step := AcquireStep{Index: -1}
	if len(d.AcquireScript) > 0 {
		step = d.AcquireScript[0]
		d.AcquireScript = d.AcquireScript[1:]
	}
	if err := gpu.ResultError(step.Result); err != nil {
		return 0, step.Result, errors.Wrap(err, "gputest: acquire")
	}
	if step.Result == gpu.Timeout {
		return 0, gpu.Timeout, nil
	}

	index := step.Index
	if index < 0 {
		index = s.next % s.imageCount
		s.next = index + 1
	}
	if sem, ok := signal.(*Semaphore); ok {
		if sem.signaled {
			d.violation("acquire into a semaphore that is already signaled")
		}
		sem.signaled = true
	}
	return index, step.Result, nil
}

func (s *Swapchain) Destroy() {
	if len(s.device.pending) > 0 {
		s.device.violation("swapchain destroyed while work is pending")
	}
	s.device.untrack(KindSwapchain, &s.destroyed)
}
