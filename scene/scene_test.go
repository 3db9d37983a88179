package scene

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/platform"
	"github.com/vkngwrapper/frameloop/platform/platformtest"
	"github.com/vkngwrapper/frameloop/swapchain"
)

var zUp = mgl32.Vec3{0, 0, 1}

// near compares component-wise with an absolute tolerance. mgl32's
// ApproxEqual turns into an eps² check when one side is exactly zero, which
// float32 trig residue fails.
func near(got, want []float32) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			return false
		}
	}
	return true
}

func TestCameraMove(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, zUp, 0, 0)
	if front := c.Front(); !near(front[:], []float32{1, 0, 0}) {
		t.Fatalf("front = %v, want +X", front)
	}

	c.Speed = 2
	c.Move(MoveForward, 0.5)
	if !near(c.Position[:], []float32{1, 0, 0}) {
		t.Errorf("after forward, position = %v", c.Position)
	}
	c.Move(MoveUp, 1)
	if !near(c.Position[:], []float32{1, 0, 2}) {
		t.Errorf("after up, position = %v", c.Position)
	}
	c.Move(MoveRight, 0.5)
	if !near(c.Position[:], []float32{1, -1, 2}) {
		t.Errorf("after right, position = %v", c.Position)
	}
}

func TestCameraZoomClamped(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, zUp, 0, 0)
	c.ZoomBy(100)
	if c.Zoom != minZoom {
		t.Errorf("Zoom = %v, want %v", c.Zoom, minZoom)
	}
	c.ZoomBy(-100)
	if c.Zoom != maxZoom {
		t.Errorf("Zoom = %v, want %v", c.Zoom, maxZoom)
	}
}

func TestCameraLook(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, zUp, 0, 0)
	c.Sensitivity = 1
	c.Look(-90, 0)
	if front := c.Front(); !near(front[:], []float32{0, 1, 0}) {
		t.Errorf("front after yaw 90 = %v, want +Y", front)
	}
}

func TestProjectionFlipsY(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, zUp, 0, 0)
	proj := c.Projection(16.0/9.0, 0.1, 50)
	if proj.At(1, 1) >= 0 {
		t.Errorf("proj[1][1] = %v, want negative for Vulkan clip space", proj.At(1, 1))
	}
	if proj.At(3, 2) != -1 {
		t.Errorf("proj[3][2] = %v, want -1", proj.At(3, 2))
	}
}

func TestTransformMatrix(t *testing.T) {
	ident := mgl32.Ident4()
	if m := NewTransform().Matrix(); !near(m[:], ident[:]) {
		t.Error("default transform is not the identity")
	}

	tr := NewTransform()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	got := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !near(got[:], []float32{3, 2, 3, 1}) {
		t.Errorf("transformed point = %v, want (3, 2, 3)", got)
	}

	tr = NewTransform()
	tr.Shear = mgl32.Vec2{1, 0}
	got = tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !near(got[:], []float32{1, 1, 0, 1}) {
		t.Errorf("sheared point = %v, want (1, 1, 0)", got)
	}
}

func TestClock(t *testing.T) {
	now := time.Duration(0)
	c := newClock(func() time.Duration { return now })

	now = 250 * time.Millisecond
	if dt := c.Tick(); dt != 0.25 {
		t.Errorf("Tick() = %v, want 0.25", dt)
	}
	now = time.Second
	if dt := c.Tick(); dt != 0.75 {
		t.Errorf("Tick() = %v, want 0.75", dt)
	}
	if e := c.Elapsed(); e != 1 {
		t.Errorf("Elapsed() = %v, want 1", e)
	}
}

func TestControllerDrag(t *testing.T) {
	cam := NewCamera(mgl32.Vec3{}, zUp, 0, 0)
	ctl := NewController(cam, NewClock())

	ctl.MouseMotion(50, 50)
	if cam.Yaw != 0 {
		t.Fatal("camera turned without a drag")
	}

	ctl.MouseButton(platform.MouseLeft, true, 10, 10)
	ctl.MouseMotion(20, 10)
	if want := float32(-10 * DefaultSensitivity); cam.Yaw != want {
		t.Errorf("Yaw = %v, want %v", cam.Yaw, want)
	}

	ctl.MouseButton(platform.MouseLeft, false, 20, 10)
	ctl.MouseMotion(100, 100)
	if want := float32(-10 * DefaultSensitivity); cam.Yaw != want {
		t.Errorf("camera turned after release: Yaw = %v", cam.Yaw)
	}
}

func TestControllerKeys(t *testing.T) {
	now := time.Duration(0)
	cam := NewCamera(mgl32.Vec3{}, zUp, 0, 0)
	cam.Speed = 1
	ctl := NewController(cam, newClock(func() time.Duration { return now }))

	now = time.Second
	ctl.Keys(func(k platform.Key) bool { return k == platform.KeyForward })
	if !near(cam.Position[:], []float32{1, 0, 0}) {
		t.Errorf("position = %v after one second forward", cam.Position)
	}
}

func TestUniformProducer(t *testing.T) {
	dev := gputest.NewDevice()
	chain, err := swapchain.Create(dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 400}), swapchain.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer chain.Destroy()

	p := &UniformProducer{
		Camera: NewCamera(mgl32.Vec3{-5, 0, 0}, zUp, 0, 0),
		Model:  NewTransform(),
		Near:   0.1,
		Far:    50,
		Order:  binary.LittleEndian,
	}
	if _, err := p.WriteFrameData(0); err == nil {
		t.Error("WriteFrameData succeeded before Rebuild")
	}

	if err := p.Rebuild(chain); err != nil {
		t.Fatal(err)
	}
	data, err := p.WriteFrameData(1)
	if err != nil {
		t.Fatalf("WriteFrameData: %v", err)
	}
	if len(data) != UniformBlockSize || UniformBlockSize != 3*16*4 {
		t.Fatalf("encoded %d bytes, want %d", len(data), 3*16*4)
	}

	var decoded UniformBlock
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &decoded); err != nil {
		t.Fatal(err)
	}
	want, _ := p.Block()
	if decoded != want {
		t.Error("decoded block differs from Block()")
	}
	if got := decoded.Proj.At(0, 0) / -decoded.Proj.At(1, 1); got < 0.49 || got > 0.51 {
		t.Errorf("projection aspect = %v, want 1/2 for 800x400", got)
	}
}
