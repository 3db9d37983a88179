// Package platform describes the window layer the render loop presents to.
package platform

// Window is the platform surface owner.
type Window interface {
	// FramebufferSize returns the drawable size in pixels. Either dimension
	// is zero while the window is minimized.
	FramebufferSize() (width, height int)
	// PollEvents processes pending events without blocking.
	PollEvents()
	// WaitEvents blocks until at least one event has been processed.
	WaitEvents()
	// Resized reports whether the framebuffer changed size since the flag was
	// last cleared. The flag is sticky until ClearResized.
	Resized() bool
	ClearResized()
	// ShouldClose reports whether the user asked to close the window.
	ShouldClose() bool
}

type Key int

const (
	KeyForward Key = iota
	KeyBackward
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
)

type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
)

// InputHandler receives input events dispatched while polling.
type InputHandler interface {
	MouseButton(button MouseButton, pressed bool, x, y float32)
	MouseMotion(x, y float32)
	MouseWheel(dy float32)
	// Keys is called once per poll with the current keyboard state.
	Keys(pressed func(Key) bool)
}
