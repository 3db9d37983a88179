package scene

import "github.com/vkngwrapper/frameloop/platform"

var keyMovements = map[platform.Key]Movement{
	platform.KeyForward:  MoveForward,
	platform.KeyBackward: MoveBackward,
	platform.KeyLeft:     MoveLeft,
	platform.KeyRight:    MoveRight,
	platform.KeyUp:       MoveUp,
	platform.KeyDown:     MoveDown,
}

// Controller drives a Camera from window input: held keys fly, dragging with
// the left button looks around and the wheel zooms.
type Controller struct {
	camera *Camera
	clock  *Clock

	dragging     bool
	lastX, lastY float32
}

func NewController(camera *Camera, clock *Clock) *Controller {
	return &Controller{camera: camera, clock: clock}
}

func (c *Controller) MouseButton(button platform.MouseButton, pressed bool, x, y float32) {
	if button != platform.MouseLeft {
		return
	}
	c.dragging = pressed
	c.lastX, c.lastY = x, y
}

func (c *Controller) MouseMotion(x, y float32) {
	if !c.dragging {
		return
	}
	c.camera.Look(x-c.lastX, y-c.lastY)
	c.lastX, c.lastY = x, y
}

func (c *Controller) MouseWheel(dy float32) {
	c.camera.ZoomBy(dy)
}

func (c *Controller) Keys(pressed func(platform.Key) bool) {
	dt := c.clock.Tick()
	for key, move := range keyMovements {
		if pressed(key) {
			c.camera.Move(move, dt)
		}
	}
}
