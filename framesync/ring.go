// Package framesync holds the synchronization objects that keep overlapping
// frames from reusing resources the GPU is still reading.
package framesync

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// MaxFramesInFlight is how many frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

// Slot is the set of synchronization objects one in-flight frame uses.
type Slot struct {
	// ImageAvailable is signaled by acquire and waited on by submit.
	ImageAvailable gpu.Semaphore
	// RenderFinished is signaled by submit and waited on by present.
	RenderFinished gpu.Semaphore
	// InFlight is signaled when the frame's submission completes. It is
	// created signaled so the first wait on each slot returns at once.
	InFlight gpu.Fence
}

// Ring is a fixed set of slots created once and reused for the lifetime of
// the device. Surface changes never touch it.
type Ring struct {
	slots []Slot
	rel   gpu.Releaser
}

// NewRing creates n slots, each with a signaled fence and two semaphores.
func NewRing(device gpu.Device, n int) (_ *Ring, err error) {
	if n <= 0 {
		return nil, errors.AssertionFailedf("frame ring needs at least one slot, got %d", n)
	}

	r := &Ring{slots: make([]Slot, n)}
	defer r.rel.ReleaseOnError(&err)

	for i := range r.slots {
		slot := &r.slots[i]

		slot.ImageAvailable, err = device.CreateSemaphore()
		if err != nil {
			return nil, errors.Wrapf(err, "create image-available semaphore for slot %d", i)
		}
		r.rel.Add(slot.ImageAvailable)

		slot.RenderFinished, err = device.CreateSemaphore()
		if err != nil {
			return nil, errors.Wrapf(err, "create render-finished semaphore for slot %d", i)
		}
		r.rel.Add(slot.RenderFinished)

		slot.InFlight, err = device.CreateFence(true)
		if err != nil {
			return nil, errors.Wrapf(err, "create in-flight fence for slot %d", i)
		}
		r.rel.Add(slot.InFlight)
	}

	return r, nil
}

func (r *Ring) Len() int {
	return len(r.slots)
}

// Slot returns the slot for the given frame counter.
func (r *Ring) Slot(frame int) *Slot {
	return &r.slots[frame%len(r.slots)]
}

// Destroy releases every slot. The device must be idle.
func (r *Ring) Destroy() {
	r.rel.Release()
}
