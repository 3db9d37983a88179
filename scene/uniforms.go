package scene

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/swapchain"
)

// UniformBlock matches the vertex shader's uniform buffer layout.
type UniformBlock struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// UniformBlockSize is the encoded size of a UniformBlock in bytes.
var UniformBlockSize = binary.Size(UniformBlock{})

// UniformProducer builds a UniformBlock for every frame. It is registered as
// a render target so the projection follows the chain's aspect ratio.
type UniformProducer struct {
	Camera *Camera
	Model  Transform
	Clock  *Clock
	// Spin rotates the model about Z, in degrees per second.
	Spin float32

	Near, Far float32
	// Order is the byte order the GPU reads the block in.
	Order binary.ByteOrder

	extent gpu.Extent2D
}

func (p *UniformProducer) Rebuild(chain *swapchain.Chain) error {
	p.extent = chain.Extent()
	return nil
}

func (p *UniformProducer) Release() {}

// Block returns the uniform block for the current time.
func (p *UniformProducer) Block() (UniformBlock, error) {
	if p.extent.IsZeroArea() {
		return UniformBlock{}, errors.AssertionFailedf("uniform block requested before the chain was built")
	}

	model := p.Model.Matrix()
	if p.Spin != 0 && p.Clock != nil {
		angle := float32(p.Clock.Elapsed()) * mgl32.DegToRad(p.Spin)
		model = model.Mul4(mgl32.HomogRotate3DZ(angle))
	}

	aspect := float32(p.extent.Width) / float32(p.extent.Height)
	return UniformBlock{
		Model: model,
		View:  p.Camera.View(),
		Proj:  p.Camera.Projection(aspect, p.Near, p.Far),
	}, nil
}

func (p *UniformProducer) WriteFrameData(imageIndex int) ([]byte, error) {
	block, err := p.Block()
	if err != nil {
		return nil, err
	}

	order := p.Order
	if order == nil {
		order = binary.LittleEndian
	}

	buf := &bytes.Buffer{}
	buf.Grow(UniformBlockSize)
	if err := binary.Write(buf, order, &block); err != nil {
		return nil, errors.Wrapf(err, "encode uniform block for image %d", imageIndex)
	}
	return buf.Bytes(), nil
}
