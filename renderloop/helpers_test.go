package renderloop

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/platform/platformtest"
	"github.com/vkngwrapper/frameloop/swapchain"
)

// target is a render target that records its lifecycle and hands out fake
// command buffers for the chain it was built for.
type target struct {
	name   string
	events *[]string

	chain       *swapchain.Chain
	rebuilds    int
	releases    int
	failRebuild error
}

func (t *target) Rebuild(chain *swapchain.Chain) error {
	if t.failRebuild != nil {
		return t.failRebuild
	}
	t.chain = chain
	t.rebuilds++
	if t.events != nil {
		*t.events = append(*t.events, "rebuild "+t.name)
	}
	return nil
}

func (t *target) Release() {
	t.chain = nil
	t.releases++
	if t.events != nil {
		*t.events = append(*t.events, "release "+t.name)
	}
}

func (t *target) CommandBuffer(imageIndex int) (gpu.CommandBuffer, error) {
	if t.chain == nil {
		return nil, errors.Newf("%s: no chain", t.name)
	}
	if imageIndex >= t.chain.ImageCount() {
		return nil, errors.Newf("%s: image %d outside chain", t.name, imageIndex)
	}
	return gputest.CommandBuffer{Image: imageIndex}, nil
}

// frameData writes per-image data through the fake device, which records a
// violation if the image is still in use.
type frameData struct {
	device  *gputest.Device
	uploads []int
}

func (f *frameData) WriteFrameData(imageIndex int) ([]byte, error) {
	return []byte{byte(imageIndex)}, nil
}

func (f *frameData) UploadFrameData(imageIndex int, data []byte) error {
	f.device.WriteImageData(imageIndex)
	f.uploads = append(f.uploads, imageIndex)
	return nil
}

type fixture struct {
	device *gputest.Device
	window *platformtest.Window
	target *target
	data   *frameData
	loop   *Loop
}

func newFixture(t *testing.T, dev *gputest.Device, win *platformtest.Window, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		device: dev,
		window: win,
		target: &target{name: "scene"},
		data:   &frameData{device: dev},
	}

	loop, err := New(context.Background(), Params{
		Device:   dev,
		Window:   win,
		Recorder: f.target,
		Producer: f.data,
		Sink:     f.data,
		Targets:  []Rebuilder{f.target},
	}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.loop = loop
	t.Cleanup(func() { _ = loop.Close() })
	return f
}

func defaultFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t, gputest.NewDevice(), platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})
}

func (f *fixture) frames(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := f.loop.Frame(context.Background()); err != nil {
			t.Fatalf("frame %d: %+v", i, err)
		}
	}
}

func (f *fixture) checkViolations(t *testing.T) {
	t.Helper()
	for _, v := range f.device.Violations {
		t.Errorf("violation: %s", v)
	}
}
