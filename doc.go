// Package frameloop keeps a Vulkan render loop ordered while frames overlap.
//
// The work is split across sub-packages:
//
//   - gpu: the device, queue and synchronization primitives the loop drives
//   - swapchain: selection and lifetime of the presentable image chain
//   - framesync: the ring of in-flight frame slots and the per-image fence tracker
//   - renderloop: the per-frame acquire/submit/present protocol and chain recreation
//   - vulkan: a gpu.Device backed by vkngwrapper
//   - platform/sdl2: a platform.Window backed by SDL2
//
// This package only holds the logger shared by all of them.
package frameloop
