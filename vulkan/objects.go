package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/frameloop/gpu"
)

type Semaphore struct {
	Handle core1_0.Semaphore
}

func (s *Semaphore) Destroy() {
	if s.Handle != nil {
		s.Handle.Destroy(nil)
		s.Handle = nil
	}
}

type Fence struct {
	Handle core1_0.Fence
	device core1_0.Device
}

func (f *Fence) Wait(timeout time.Duration) (gpu.Result, error) {
	res, err := f.Handle.Wait(timeout)
	return checkResult(res, err, "wait for fence")
}

func (f *Fence) Reset() error {
	res, err := f.device.ResetFences([]core1_0.Fence{f.Handle})
	_, err = checkResult(res, err, "reset fence")
	return err
}

func (f *Fence) Destroy() {
	if f.Handle != nil {
		f.Handle.Destroy(nil)
		f.Handle = nil
	}
}

type ImageView struct {
	Handle core1_0.ImageView
}

func (v *ImageView) Destroy() {
	if v.Handle != nil {
		v.Handle.Destroy(nil)
		v.Handle = nil
	}
}

// ViewHandle returns the Vulkan view behind a view created by a Backend.
func ViewHandle(view gpu.ImageView) (core1_0.ImageView, error) {
	v, ok := view.(*ImageView)
	if !ok || v.Handle == nil {
		return nil, errors.AssertionFailedf("image view %T was not created by the vulkan backend", view)
	}
	return v.Handle, nil
}

type Swapchain struct {
	Handle khr_swapchain.Swapchain
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	images, res, err := s.Handle.SwapchainImages()
	if _, err := checkResult(res, err, "get swapchain images"); err != nil {
		return nil, err
	}

	out := make([]gpu.Image, len(images))
	for i, image := range images {
		out[i] = image
	}
	return out, nil
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (int, gpu.Result, error) {
	semaphore, err := semaphoreHandle(signal)
	if err != nil {
		return 0, gpu.Unknown, err
	}

	index, res, err := s.Handle.AcquireNextImage(timeout, semaphore, nil)
	r, err := checkResult(res, err, "acquire next image")
	return index, r, err
}

func (s *Swapchain) Destroy() {
	if s.Handle != nil {
		s.Handle.Destroy(nil)
		s.Handle = nil
	}
}

func semaphoreHandle(s gpu.Semaphore) (core1_0.Semaphore, error) {
	if s == nil {
		return nil, nil
	}
	sem, ok := s.(*Semaphore)
	if !ok {
		return nil, errors.AssertionFailedf("semaphore %T was not created by the vulkan backend", s)
	}
	return sem.Handle, nil
}

func fenceHandle(f gpu.Fence) (core1_0.Fence, error) {
	if f == nil {
		return nil, nil
	}
	fence, ok := f.(*Fence)
	if !ok {
		return nil, errors.AssertionFailedf("fence %T was not created by the vulkan backend", f)
	}
	return fence.Handle, nil
}

func swapchainHandle(s gpu.Swapchain) (khr_swapchain.Swapchain, error) {
	sc, ok := s.(*Swapchain)
	if !ok || sc.Handle == nil {
		return nil, errors.AssertionFailedf("swapchain %T was not created by the vulkan backend", s)
	}
	return sc.Handle, nil
}
