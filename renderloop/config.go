package renderloop

import (
	"time"

	"github.com/vkngwrapper/frameloop/framesync"
	"github.com/vkngwrapper/frameloop/swapchain"
)

const (
	DefaultFenceTimeout   = 10 * time.Second
	DefaultAcquireTimeout = 10 * time.Second
)

// Config tunes the loop. Zero fields take their defaults.
type Config struct {
	// FramesInFlight is the size of the synchronization ring. Defaults to
	// framesync.MaxFramesInFlight.
	FramesInFlight int
	// FenceTimeout bounds every CPU wait on a fence. Exceeding it is fatal.
	FenceTimeout time.Duration
	// AcquireTimeout bounds the wait for a presentable image.
	AcquireTimeout time.Duration
	// FrameLimit makes Run return after that many presented frames. Zero
	// runs until the window closes or the context is cancelled.
	FrameLimit int

	Surface swapchain.Options
}

func (c Config) withDefaults() Config {
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = framesync.MaxFramesInFlight
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = DefaultFenceTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	return c
}
