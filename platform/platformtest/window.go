// Package platformtest provides a scripted platform.Window for tests.
package platformtest

import "github.com/vkngwrapper/frameloop/gpu"

// Window reports framebuffer sizes from a script. The first entry is the
// initial size; every PollEvents or WaitEvents call moves to the next entry,
// and the last entry repeats forever. Moving to a different size raises the
// resize flag the way a real resize event would.
type Window struct {
	Sizes []gpu.Extent2D

	// CloseAfterEvents makes ShouldClose report true once PollEvents and
	// WaitEvents have been called that many times in total. Zero never closes.
	CloseAfterEvents int

	Polls int
	Waits int

	next    int
	resized bool
	closed  bool
}

func NewWindow(sizes ...gpu.Extent2D) *Window {
	return &Window{Sizes: sizes}
}

func (w *Window) FramebufferSize() (int, int) {
	if len(w.Sizes) == 0 {
		return 0, 0
	}
	size := w.Sizes[w.next]
	return size.Width, size.Height
}

func (w *Window) PollEvents() {
	w.Polls++
	w.advance()
}

func (w *Window) WaitEvents() {
	w.Waits++
	w.advance()
}

func (w *Window) advance() {
	if w.next < len(w.Sizes)-1 {
		if w.Sizes[w.next+1] != w.Sizes[w.next] {
			w.resized = true
		}
		w.next++
	}
	if w.CloseAfterEvents > 0 && w.Polls+w.Waits >= w.CloseAfterEvents {
		w.closed = true
	}
}

// Resize replaces the rest of the script with a single size and raises the
// resize flag immediately.
func (w *Window) Resize(width, height int) {
	w.Sizes = append(w.Sizes[:w.next:w.next], gpu.Extent2D{Width: width, Height: height})
	w.resized = true
}

func (w *Window) Resized() bool { return w.resized }

func (w *Window) ClearResized() { w.resized = false }

func (w *Window) ShouldClose() bool { return w.closed }

// Close makes ShouldClose report true.
func (w *Window) Close() { w.closed = true }
