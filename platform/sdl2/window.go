// Package sdl2 implements platform.Window on an SDL2 window created for
// Vulkan rendering.
package sdl2

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkngwrapper/frameloop"
	"github.com/vkngwrapper/frameloop/platform"
)

var keyScancodes = map[platform.Key]sdl.Scancode{
	platform.KeyForward:  sdl.SCANCODE_W,
	platform.KeyBackward: sdl.SCANCODE_S,
	platform.KeyLeft:     sdl.SCANCODE_A,
	platform.KeyRight:    sdl.SCANCODE_D,
	platform.KeyUp:       sdl.SCANCODE_SPACE,
	platform.KeyDown:     sdl.SCANCODE_LSHIFT,
}

var _ platform.Window = (*Window)(nil)

type Window struct {
	window *sdl.Window
	input  platform.InputHandler

	resized   bool
	minimized bool
	closed    bool
}

// New initializes SDL video and opens a resizable Vulkan window.
func New(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initialize sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrapf(err, "create %dx%d window", width, height)
	}

	return &Window{window: window}, nil
}

// SDL returns the underlying window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

// SetInputHandler routes input events to h. A nil handler drops them.
func (w *Window) SetInputHandler(h platform.InputHandler) {
	w.input = h
}

func (w *Window) FramebufferSize() (int, int) {
	if w.minimized || w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
	w.dispatchKeys()
}

func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) Resized() bool { return w.resized }

func (w *Window) ClearResized() { w.resized = false }

func (w *Window) ShouldClose() bool { return w.closed }

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized = true
			w.resized = true
		case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED:
			w.minimized = false
			w.resized = true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.resized = true
		case sdl.WINDOWEVENT_CLOSE:
			w.closed = true
		}
		if w.resized {
			frameloop.Logger().Debug("window changed", "event", e.Event)
		}
	case *sdl.KeyboardEvent:
		if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
			w.closed = true
		}
	case *sdl.MouseButtonEvent:
		if w.input == nil {
			return
		}
		switch e.Button {
		case sdl.BUTTON_LEFT:
			w.input.MouseButton(platform.MouseLeft, e.State == sdl.PRESSED, float32(e.X), float32(e.Y))
		case sdl.BUTTON_RIGHT:
			w.input.MouseButton(platform.MouseRight, e.State == sdl.PRESSED, float32(e.X), float32(e.Y))
		}
	case *sdl.MouseMotionEvent:
		if w.input != nil {
			w.input.MouseMotion(float32(e.X), float32(e.Y))
		}
	case *sdl.MouseWheelEvent:
		if w.input != nil {
			w.input.MouseWheel(float32(e.Y))
		}
	}
}

func (w *Window) dispatchKeys() {
	if w.input == nil {
		return
	}
	state := sdl.GetKeyboardState()
	w.input.Keys(func(k platform.Key) bool {
		sc, ok := keyScancodes[k]
		return ok && int(sc) < len(state) && state[sc] != 0
	})
}
