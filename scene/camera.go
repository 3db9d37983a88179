// Package scene produces the per-frame data the demo renders with: a fly
// camera, the model transform and the uniform block built from both.
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Movement int

const (
	MoveForward Movement = iota
	MoveBackward
	MoveLeft
	MoveRight
	MoveUp
	MoveDown
)

const (
	DefaultSpeed       = 10.0
	DefaultSensitivity = 0.1
	DefaultZoom        = 45.0

	minZoom = 1.0
	maxZoom = 45.0
)

// Camera is a fly camera in a Z-up world. Yaw and Pitch are in degrees;
// Zoom is the vertical field of view in degrees.
type Camera struct {
	Position mgl32.Vec3
	WorldUp  mgl32.Vec3

	Yaw   float32
	Pitch float32

	// Speed is in world units per second.
	Speed       float32
	Sensitivity float32
	Zoom        float32

	front mgl32.Vec3
	right mgl32.Vec3
	up    mgl32.Vec3
}

func NewCamera(position, worldUp mgl32.Vec3, yaw, pitch float32) *Camera {
	c := &Camera{
		Position:    position,
		WorldUp:     worldUp,
		Yaw:         yaw,
		Pitch:       pitch,
		Speed:       DefaultSpeed,
		Sensitivity: DefaultSensitivity,
		Zoom:        DefaultZoom,
	}
	c.updateVectors()
	return c
}

func (c *Camera) Front() mgl32.Vec3 { return c.front }

func (c *Camera) Right() mgl32.Vec3 { return c.right }

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.front), c.up)
}

// Projection returns a perspective projection for Vulkan clip space: depth
// in [0, 1] and Y pointing down.
func (c *Camera) Projection(aspect, near, far float32) mgl32.Mat4 {
	f := float32(1 / math.Tan(float64(mgl32.DegToRad(c.Zoom))/2))
	depth := far - near

	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, -f, 0, 0,
		0, 0, -far / depth, -1,
		0, 0, -(far * near) / depth, 0,
	}
}

// Move steps the camera for dt seconds of movement in direction.
func (c *Camera) Move(direction Movement, dt float32) {
	velocity := c.Speed * dt
	switch direction {
	case MoveForward:
		c.Position = c.Position.Add(c.front.Mul(velocity))
	case MoveBackward:
		c.Position = c.Position.Sub(c.front.Mul(velocity))
	case MoveRight:
		c.Position = c.Position.Add(c.right.Mul(velocity))
	case MoveLeft:
		c.Position = c.Position.Sub(c.right.Mul(velocity))
	case MoveUp:
		c.Position = c.Position.Add(c.WorldUp.Mul(velocity))
	case MoveDown:
		c.Position = c.Position.Sub(c.WorldUp.Mul(velocity))
	}
}

// Look turns the camera by a mouse offset in pixels.
func (c *Camera) Look(dx, dy float32) {
	c.Yaw -= dx * c.Sensitivity
	c.Pitch -= dy * c.Sensitivity
	c.updateVectors()
}

// ZoomBy narrows the field of view by dy degrees, within [1, 45].
func (c *Camera) ZoomBy(dy float32) {
	c.Zoom = mgl32.Clamp(c.Zoom-dy, minZoom, maxZoom)
}

func (c *Camera) updateVectors() {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))

	c.front = mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
	}.Normalize()
	c.right = c.front.Cross(c.WorldUp).Normalize()
	c.up = c.right.Cross(c.front).Normalize()
}
