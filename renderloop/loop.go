// Package renderloop drives frames through acquire, submit and present, and
// rebuilds the chain when the surface changes underneath it.
package renderloop

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop"
	"github.com/vkngwrapper/frameloop/framesync"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/platform"
)

// Outcome is how one call to Frame ended.
type Outcome int

const (
	// OutcomeFailed accompanies a non-nil error.
	OutcomeFailed Outcome = iota
	// OutcomePresented means the frame was submitted and presented.
	OutcomePresented
	// OutcomeRecreated means the frame was presented and the chain was then
	// rebuilt because it no longer matched the surface.
	OutcomeRecreated
	// OutcomeAcquireAborted means the chain was out of date at acquire. The
	// chain was rebuilt and the frame counter did not advance.
	OutcomeAcquireAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "Failed"
	case OutcomePresented:
		return "Presented"
	case OutcomeRecreated:
		return "Recreated"
	case OutcomeAcquireAborted:
		return "AcquireAborted"
	}
	return "Outcome(?)"
}

// Params are the collaborators a Loop drives.
type Params struct {
	Device gpu.Device
	Window platform.Window

	// Recorder supplies the command buffer for each image.
	Recorder Recorder
	// Producer and Sink are optional. When both are set, the producer's data
	// for an image is handed to the sink once that image is free.
	Producer FrameDataProducer
	Sink     FrameDataSink

	// Targets are rebuilt in order for every chain and released in reverse.
	Targets []Rebuilder
}

type Loop struct {
	cfg      Config
	device   gpu.Device
	window   platform.Window
	recorder Recorder
	producer FrameDataProducer
	sink     FrameDataSink

	ring    *framesync.Ring
	tracker *framesync.ImageTracker
	coord   *Coordinator

	currentFrame int
	stats        Stats
	closed       bool
}

// New creates the frame ring and the first chain and builds every target.
// It blocks while the window is minimized.
func New(ctx context.Context, p Params, cfg Config) (_ *Loop, err error) {
	if p.Device == nil || p.Window == nil || p.Recorder == nil {
		return nil, errors.AssertionFailedf("renderloop needs a device, a window and a recorder")
	}
	cfg = cfg.withDefaults()

	l := &Loop{
		cfg:      cfg,
		device:   p.Device,
		window:   p.Window,
		recorder: p.Recorder,
		producer: p.Producer,
		sink:     p.Sink,
		tracker:  framesync.NewImageTracker(0, cfg.FenceTimeout),
	}

	l.ring, err = framesync.NewRing(p.Device, cfg.FramesInFlight)
	if err != nil {
		return nil, errors.Wrap(err, "create frame ring")
	}

	registry := &Registry{}
	registry.Register(p.Targets...)
	l.coord = newCoordinator(p.Device, p.Window, cfg.Surface, registry, l.tracker)

	if err := l.coord.start(ctx); err != nil {
		l.coord.teardown()
		l.ring.Destroy()
		return nil, err
	}
	return l, nil
}

func (l *Loop) Coordinator() *Coordinator { return l.coord }

// CurrentFrame is the index of the ring slot the next frame will use.
func (l *Loop) CurrentFrame() int { return l.currentFrame }

func (l *Loop) Stats() Stats {
	s := l.stats
	s.Recreations = l.coord.Recreations()
	return s
}

// Frame renders and presents one frame. After a recreation has failed the
// loop has no chain and every further call fails.
func (l *Loop) Frame(ctx context.Context) (Outcome, error) {
	chain := l.coord.Chain()
	if chain == nil {
		return OutcomeFailed, errors.AssertionFailedf("render loop used after a failed recreation")
	}

	timer := startFrameTimer()
	slot := l.ring.Slot(l.currentFrame)

	res, err := slot.InFlight.Wait(l.cfg.FenceTimeout)
	if err != nil {
		return OutcomeFailed, errors.Wrapf(err, "wait for frame slot %d", l.currentFrame)
	}
	if res == gpu.Timeout {
		return OutcomeFailed, errors.Wrapf(gpu.ErrTimeout, "frame slot %d still in flight after %s", l.currentFrame, l.cfg.FenceTimeout)
	}

	imageIndex, res, err := chain.Swapchain().AcquireNextImage(l.cfg.AcquireTimeout, slot.ImageAvailable)
	switch {
	case gpu.IsRecoverable(err):
		frameloop.Logger().Debug("acquire out of date", "chain", chain.ID)
		l.stats.AcquireAborts++
		if err := l.coord.Recreate(ctx); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeAcquireAborted, nil
	case err != nil:
		return OutcomeFailed, errors.Wrap(err, "acquire next image")
	case res == gpu.Timeout:
		return OutcomeFailed, errors.Wrapf(gpu.ErrTimeout, "no image acquired after %s", l.cfg.AcquireTimeout)
	}
	stale := res == gpu.Suboptimal
	if stale {
		frameloop.Logger().Debug("acquire suboptimal", "chain", chain.ID, "image", imageIndex)
	}

	if err := l.tracker.WaitAndClaim(imageIndex, slot.InFlight); err != nil {
		return OutcomeFailed, err
	}

	if l.producer != nil && l.sink != nil {
		data, err := l.producer.WriteFrameData(imageIndex)
		if err != nil {
			return OutcomeFailed, errors.Wrapf(err, "produce frame data for image %d", imageIndex)
		}
		if err := l.sink.UploadFrameData(imageIndex, data); err != nil {
			return OutcomeFailed, errors.Wrapf(err, "upload frame data for image %d", imageIndex)
		}
	}

	cmd, err := l.recorder.CommandBuffer(imageIndex)
	if err != nil {
		return OutcomeFailed, errors.Wrapf(err, "command buffer for image %d", imageIndex)
	}

	// The fence is reset here and nowhere else. Every return above leaves
	// it signaled.
	if err := slot.InFlight.Reset(); err != nil {
		return OutcomeFailed, errors.Wrapf(err, "reset fence for slot %d", l.currentFrame)
	}
	err = l.device.Submit(gpu.SubmitInfo{
		WaitSemaphore:   slot.ImageAvailable,
		WaitStage:       gpu.PipelineStageColorAttachmentOutput,
		CommandBuffer:   cmd,
		SignalSemaphore: slot.RenderFinished,
		Fence:           slot.InFlight,
	})
	if err != nil {
		return OutcomeFailed, errors.Wrapf(err, "submit frame %d", l.stats.Frames)
	}

	res, err = l.device.Present(gpu.PresentInfo{
		WaitSemaphore: slot.RenderFinished,
		Swapchain:     chain.Swapchain(),
		ImageIndex:    imageIndex,
	})
	switch {
	case gpu.IsRecoverable(err):
		stale = true
	case err != nil:
		return OutcomeFailed, errors.Wrap(err, "present")
	case res == gpu.Suboptimal:
		stale = true
	}
	if l.window.Resized() {
		stale = true
	}

	l.currentFrame = (l.currentFrame + 1) % l.ring.Len()
	l.stats.Frames++
	l.stats.LastFrame = timer.elapsed()
	l.stats.TotalFrameTime += l.stats.LastFrame

	if !stale {
		return OutcomePresented, nil
	}
	if err := l.coord.Recreate(ctx); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeRecreated, nil
}

// Run renders until the window closes, the context is cancelled or
// Config.FrameLimit frames have been presented, then waits for the device to
// go idle. A window close or cancellation is a clean exit.
func (l *Loop) Run(ctx context.Context) error {
	err := l.run(ctx)
	if idleErr := l.device.WaitIdle(); idleErr != nil && err == nil {
		err = errors.Wrap(idleErr, "wait for device idle at shutdown")
	}

	if errors.Is(err, ErrWindowClosed) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		err = nil
	}
	if err != nil {
		return err
	}

	s := l.Stats()
	frameloop.Logger().Info("render loop stopped",
		"frames", s.Frames,
		"acquireAborts", s.AcquireAborts,
		"recreations", s.Recreations,
		"averageFrame", s.AverageFrame(),
	)
	return nil
}

func (l *Loop) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.window.PollEvents()
		if l.window.ShouldClose() {
			return nil
		}
		if l.cfg.FrameLimit > 0 && l.stats.Frames >= l.cfg.FrameLimit {
			return nil
		}

		outcome, err := l.Frame(ctx)
		if err != nil {
			return err
		}
		if outcome != OutcomePresented {
			frameloop.Logger().Debug("frame", "outcome", outcome.String(), "frame", l.stats.Frames)
		}
	}
}

// Close waits for the device to go idle and releases the render targets, the
// chain and the frame ring. Calling Close again is a no-op.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	err := l.device.WaitIdle()
	l.coord.teardown()
	l.ring.Destroy()
	if err != nil {
		return errors.Wrap(err, "wait for device idle at close")
	}
	return nil
}
