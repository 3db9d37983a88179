package renderloop

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/swapchain"
)

// Rebuilder is a render target whose resources depend on the chain: its
// extent, format or image count. Rebuild receives a borrowed chain that stays
// valid until the next Release.
type Rebuilder interface {
	Rebuild(chain *swapchain.Chain) error
	Release()
}

// Recorder hands out the command buffer that renders into a chain image.
type Recorder interface {
	CommandBuffer(imageIndex int) (gpu.CommandBuffer, error)
}

// FrameDataProducer computes the per-frame data for an image, such as a
// uniform block.
type FrameDataProducer interface {
	WriteFrameData(imageIndex int) ([]byte, error)
}

// FrameDataSink stores per-frame data into an image's host-visible
// resources. It is only called once the GPU has finished with that image.
type FrameDataSink interface {
	UploadFrameData(imageIndex int, data []byte) error
}

// Registry is the ordered set of render targets rebuilt with every chain.
// Targets are built in registration order and released in reverse, so a
// target may depend on any target registered before it.
type Registry struct {
	targets []Rebuilder
	built   int
}

// Register appends targets after those already registered. Nil targets are
// skipped.
func (r *Registry) Register(targets ...Rebuilder) {
	for _, t := range targets {
		if t != nil {
			r.targets = append(r.targets, t)
		}
	}
}

func (r *Registry) Len() int {
	return len(r.targets)
}

// rebuild builds every target for chain. If one fails, the targets already
// built are released again.
func (r *Registry) rebuild(chain *swapchain.Chain) error {
	if r.built != 0 {
		return errors.AssertionFailedf("rebuild with %d targets still built", r.built)
	}
	for i, t := range r.targets {
		if err := t.Rebuild(chain); err != nil {
			r.release()
			return errors.Wrapf(err, "rebuild render target %d (%T)", i, t)
		}
		r.built++
	}
	return nil
}

func (r *Registry) release() {
	for ; r.built > 0; r.built-- {
		r.targets[r.built-1].Release()
	}
}
