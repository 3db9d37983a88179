package framesync

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// ImageTracker remembers, for each presentable image, the fence of the frame
// that last rendered to it. The presentation engine may hand images back in
// any order, so a slot's own fence does not prove its image is free.
type ImageTracker struct {
	fences  []gpu.Fence
	timeout time.Duration
}

// NewImageTracker returns a tracker with no claimed images.
func NewImageTracker(imageCount int, timeout time.Duration) *ImageTracker {
	return &ImageTracker{
		fences:  make([]gpu.Fence, imageCount),
		timeout: timeout,
	}
}

func (t *ImageTracker) Len() int {
	return len(t.fences)
}

// Pending returns the fence last claimed for image index, or nil.
func (t *ImageTracker) Pending(index int) gpu.Fence {
	if index < 0 || index >= len(t.fences) {
		return nil
	}
	return t.fences[index]
}

// Reset forgets every entry and resizes the tracker for a new chain.
func (t *ImageTracker) Reset(imageCount int) {
	t.fences = make([]gpu.Fence, imageCount)
}

// WaitAndClaim blocks until the work that last used image index has
// completed, then records fence as the image's new owner.
func (t *ImageTracker) WaitAndClaim(index int, fence gpu.Fence) error {
	if index < 0 || index >= len(t.fences) {
		return errors.AssertionFailedf("image index %d outside tracker of %d images", index, len(t.fences))
	}

	if prev := t.fences[index]; prev != nil {
		res, err := prev.Wait(t.timeout)
		if err != nil {
			return errors.Wrapf(err, "wait for image %d", index)
		}
		if res == gpu.Timeout {
			return errors.Wrapf(gpu.ErrTimeout, "image %d still in use after %s", index, t.timeout)
		}
	}

	t.fences[index] = fence
	return nil
}
