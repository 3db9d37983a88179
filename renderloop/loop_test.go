package renderloop

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/framesync"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/platform/platformtest"
)

func TestBoundedInFlight(t *testing.T) {
	f := defaultFixture(t)
	f.frames(t, 50)

	if got := f.device.MaxOutstanding; got != framesync.MaxFramesInFlight {
		t.Errorf("max outstanding submissions = %d, want exactly %d", got, framesync.MaxFramesInFlight)
	}
	if f.device.Submits != 50 || f.device.Presents != 50 {
		t.Errorf("%d submits and %d presents, want 50 each", f.device.Submits, f.device.Presents)
	}
	f.checkViolations(t)
}

func TestPerImageExclusivity(t *testing.T) {
	dev := gputest.NewDevice()
	// Images come back out of order and repeat back to back, so the slot
	// fence alone does not cover the image being written.
	for _, index := range []int{0, 1, 1, 0, 2, 2, 1, 0, 0, 2, 1, 1, 0, 2, 0, 1} {
		dev.AcquireScript = append(dev.AcquireScript, gputest.AcquireStep{Index: index})
	}
	f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})

	f.frames(t, 16)

	if len(f.data.uploads) != 16 {
		t.Errorf("%d uploads, want 16", len(f.data.uploads))
	}
	f.checkViolations(t)
}

func TestSlotCycling(t *testing.T) {
	for _, m := range []int{0, 1, 2, 5, 8} {
		f := defaultFixture(t)
		f.frames(t, m)
		if got, want := f.loop.CurrentFrame(), m%framesync.MaxFramesInFlight; got != want {
			t.Errorf("after %d frames CurrentFrame() = %d, want %d", m, got, want)
		}
	}
}

func TestRecreateIdempotent(t *testing.T) {
	f := defaultFixture(t)
	f.frames(t, 3)
	coord := f.loop.Coordinator()

	first := coord.Chain()
	format, mode, count, id := first.Format(), first.PresentMode(), first.ImageCount(), first.ID

	for i := 0; i < 2; i++ {
		if err := coord.Recreate(context.Background()); err != nil {
			t.Fatalf("Recreate %d: %+v", i, err)
		}
		chain := coord.Chain()
		if chain.Format() != format || chain.PresentMode() != mode || chain.ImageCount() != count {
			t.Errorf("recreation %d changed the chain: %s %s %d images, want %s %s %d images",
				i, chain.Format(), chain.PresentMode(), chain.ImageCount(), format, mode, count)
		}
		if chain.ID == id {
			t.Errorf("recreation %d reused chain ID %s", i, id)
		}
		id = chain.ID
	}

	if f.target.rebuilds != 3 || f.target.releases != 2 {
		t.Errorf("target rebuilt %d and released %d times, want 3 and 2", f.target.rebuilds, f.target.releases)
	}
	if got := coord.Recreations(); got != 2 {
		t.Errorf("Recreations() = %d, want 2", got)
	}
	f.frames(t, 3)
	f.checkViolations(t)
}

func TestRecreateDiscardsTrackedFences(t *testing.T) {
	dev := gputest.NewDevice()
	f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})
	f.frames(t, 3)

	dev.Support.Capabilities.MinImageCount = 3
	dev.Support.Capabilities.MaxImageCount = 0
	if err := f.loop.Coordinator().Recreate(context.Background()); err != nil {
		t.Fatalf("Recreate: %+v", err)
	}

	if got := f.loop.tracker.Len(); got != 4 {
		t.Fatalf("tracker covers %d images, want 4", got)
	}
	for i := 0; i < f.loop.tracker.Len(); i++ {
		if f.loop.tracker.Pending(i) != nil {
			t.Errorf("image %d still tracked after recreation", i)
		}
	}
	f.frames(t, 8)
	f.checkViolations(t)
}

func TestResizeRoundTrip(t *testing.T) {
	win := platformtest.NewWindow(
		gpu.Extent2D{Width: 800, Height: 600},
		gpu.Extent2D{Width: 0, Height: 0},
		gpu.Extent2D{Width: 0, Height: 0},
		gpu.Extent2D{Width: 1024, Height: 768},
	)
	f := newFixture(t, gputest.NewDevice(), win, Config{})
	f.frames(t, 1)

	win.PollEvents()
	if !win.Resized() {
		t.Fatal("minimizing did not raise the resize flag")
	}

	outcome, err := f.loop.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame: %+v", err)
	}
	if outcome != OutcomeRecreated {
		t.Errorf("outcome = %s, want Recreated", outcome)
	}
	if win.Waits != 2 {
		t.Errorf("waited for %d events while minimized, want 2", win.Waits)
	}
	if win.Resized() {
		t.Error("resize flag still set after recreation")
	}

	for i, info := range f.device.Swapchains {
		if info.Extent.IsZeroArea() {
			t.Errorf("swapchain %d created with zero extent", i)
		}
	}
	if got := len(f.device.Swapchains); got != 2 {
		t.Errorf("%d swapchains created, want 2", got)
	}
	if got := f.loop.Coordinator().Chain().Extent(); got != (gpu.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("final extent = %s, want 1024x768", got)
	}

	f.frames(t, 4)
	f.checkViolations(t)
}

func TestAcquireOutOfDate(t *testing.T) {
	dev := gputest.NewDevice()
	dev.AcquireScript = []gputest.AcquireStep{
		{Index: -1},
		{Result: gpu.OutOfDate},
	}
	f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})

	f.frames(t, 1)
	before := f.loop.CurrentFrame()

	outcome, err := f.loop.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame: %+v", err)
	}
	if outcome != OutcomeAcquireAborted {
		t.Errorf("outcome = %s, want AcquireAborted", outcome)
	}
	if got := f.loop.CurrentFrame(); got != before {
		t.Errorf("CurrentFrame() = %d after abort, want %d", got, before)
	}
	if got := len(dev.Swapchains); got != 2 {
		t.Errorf("%d swapchains created, want 2", got)
	}
	if got := f.loop.Stats().AcquireAborts; got != 1 {
		t.Errorf("Stats().AcquireAborts = %d, want 1", got)
	}

	// The aborted slot's fence must still be signaled or this would time out.
	f.frames(t, 4)
	if got := f.loop.CurrentFrame(); got != (before+4)%framesync.MaxFramesInFlight {
		t.Errorf("CurrentFrame() = %d, want %d", got, (before+4)%framesync.MaxFramesInFlight)
	}
	f.checkViolations(t)
}

func TestStaleChainRecreatedAfterPresent(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*gputest.Device)
	}{
		{"acquire suboptimal", func(d *gputest.Device) {
			d.AcquireScript = []gputest.AcquireStep{{Index: -1, Result: gpu.Suboptimal}}
		}},
		{"present suboptimal", func(d *gputest.Device) { d.PresentScript = []gpu.Result{gpu.Suboptimal} }},
		{"present out of date", func(d *gputest.Device) { d.PresentScript = []gpu.Result{gpu.OutOfDate} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.NewDevice()
			tt.setup(dev)
			f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})

			outcome, err := f.loop.Frame(context.Background())
			if err != nil {
				t.Fatalf("Frame: %+v", err)
			}
			if outcome != OutcomeRecreated {
				t.Errorf("outcome = %s, want Recreated", outcome)
			}
			if got := f.loop.CurrentFrame(); got != 1 {
				t.Errorf("CurrentFrame() = %d, want 1", got)
			}
			if got := len(dev.Swapchains); got != 2 {
				t.Errorf("%d swapchains created, want 2", got)
			}
			f.frames(t, 3)
			f.checkViolations(t)
		})
	}
}

func TestFatalResults(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*gputest.Device)
		want  error
	}{
		{"present device lost", func(d *gputest.Device) { d.PresentScript = []gpu.Result{gpu.DeviceLost} }, gpu.ErrDeviceLost},
		{"acquire surface lost", func(d *gputest.Device) {
			d.AcquireScript = []gputest.AcquireStep{{Result: gpu.SurfaceLost}}
		}, gpu.ErrSurfaceLost},
		{"acquire timeout", func(d *gputest.Device) {
			d.AcquireScript = []gputest.AcquireStep{{Result: gpu.Timeout}}
		}, gpu.ErrTimeout},
		{"submit device lost", func(d *gputest.Device) { d.SubmitErr = gpu.ErrDeviceLost }, gpu.ErrDeviceLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.NewDevice()
			tt.setup(dev)
			f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})

			outcome, err := f.loop.Frame(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Frame error = %v, want %v", err, tt.want)
			}
			if outcome != OutcomeFailed {
				t.Errorf("outcome = %s, want Failed", outcome)
			}
			if len(dev.Swapchains) != 1 {
				t.Errorf("fatal result triggered recreation")
			}
		})
	}
}

func TestFenceWaitTimeout(t *testing.T) {
	dev := gputest.NewDevice()
	f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{FenceTimeout: time.Millisecond})
	f.frames(t, framesync.MaxFramesInFlight)

	dev.Hung = true
	outcome, err := f.loop.Frame(context.Background())
	if !errors.Is(err, gpu.ErrTimeout) {
		t.Fatalf("Frame error = %v, want %v", err, gpu.ErrTimeout)
	}
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want Failed", outcome)
	}
	if got := f.loop.CurrentFrame(); got != 0 {
		t.Errorf("CurrentFrame() = %d after timeout, want 0", got)
	}
	if dev.Submits != framesync.MaxFramesInFlight {
		t.Errorf("%d submits, want %d", dev.Submits, framesync.MaxFramesInFlight)
	}
	if err := f.loop.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.checkViolations(t)
}

func TestFrameAfterFailedRecreation(t *testing.T) {
	dev := gputest.NewDevice()
	dev.AcquireScript = []gputest.AcquireStep{
		{Index: -1},
		{Result: gpu.OutOfDate},
	}
	f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{})
	f.frames(t, 1)

	formats := dev.Support.Formats
	dev.Support.Formats = nil
	if _, err := f.loop.Frame(context.Background()); err == nil {
		t.Fatal("recreation without surface formats succeeded")
	}
	if f.loop.Coordinator().Chain() != nil {
		t.Fatal("chain kept after a failed recreation")
	}

	outcome, err := f.loop.Frame(context.Background())
	if !errors.HasAssertionFailure(err) {
		t.Fatalf("Frame error = %v, want an assertion failure", err)
	}
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want Failed", outcome)
	}

	dev.Support.Formats = formats
	if err := f.loop.Coordinator().Recreate(context.Background()); err != nil {
		t.Fatalf("Recreate: %+v", err)
	}
	f.frames(t, 3)
	f.checkViolations(t)
}

func TestFailedRebuildDropsChain(t *testing.T) {
	f := defaultFixture(t)
	f.frames(t, 2)

	boom := errors.New("boom")
	f.target.failRebuild = boom
	if err := f.loop.Coordinator().Recreate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Recreate error = %v, want %v", err, boom)
	}
	if f.loop.Coordinator().Chain() != nil {
		t.Error("chain kept after its targets failed to build")
	}
	if got := f.device.Live(gputest.KindSwapchain); got != 0 {
		t.Errorf("%d swapchains live, want 0", got)
	}
	if got := f.loop.tracker.Len(); got != 0 {
		t.Errorf("tracker covers %d images with no chain", got)
	}

	f.target.failRebuild = nil
	if err := f.loop.Coordinator().Recreate(context.Background()); err != nil {
		t.Fatalf("Recreate: %+v", err)
	}
	if got, want := f.loop.tracker.Len(), f.loop.Coordinator().Chain().ImageCount(); got != want {
		t.Errorf("tracker covers %d images, want %d", got, want)
	}
	f.frames(t, 4)
	f.checkViolations(t)
}

func TestRingSurvivesRecreation(t *testing.T) {
	win := platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600})
	f := newFixture(t, gputest.NewDevice(), win, Config{})
	f.frames(t, 2)

	for _, size := range []gpu.Extent2D{{Width: 640, Height: 480}, {Width: 1280, Height: 720}} {
		win.Resize(size.Width, size.Height)
		f.frames(t, 2)
	}

	if got := f.device.Created(gputest.KindFence); got != framesync.MaxFramesInFlight {
		t.Errorf("%d fences created, want %d", got, framesync.MaxFramesInFlight)
	}
	if got := f.device.Created(gputest.KindSemaphore); got != 2*framesync.MaxFramesInFlight {
		t.Errorf("%d semaphores created, want %d", got, 2*framesync.MaxFramesInFlight)
	}
	if got := f.device.Created(gputest.KindSwapchain); got != 3 {
		t.Errorf("%d swapchains created, want 3", got)
	}
	f.checkViolations(t)
}

func TestCloseReleasesEverything(t *testing.T) {
	f := defaultFixture(t)
	f.frames(t, 5)
	if err := f.loop.Coordinator().Recreate(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.frames(t, 5)

	if err := f.loop.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.loop.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if n := f.device.LiveTotal(); n != 0 {
		t.Errorf("%d GPU objects alive after Close", n)
	}
	if f.target.rebuilds != f.target.releases {
		t.Errorf("target rebuilt %d times but released %d times", f.target.rebuilds, f.target.releases)
	}
	f.checkViolations(t)
}

func TestRun(t *testing.T) {
	t.Run("frame limit", func(t *testing.T) {
		dev := gputest.NewDevice()
		f := newFixture(t, dev, platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}), Config{FrameLimit: 10})
		if err := f.loop.Run(context.Background()); err != nil {
			t.Fatalf("Run: %+v", err)
		}
		if got := f.loop.Stats().Frames; got != 10 {
			t.Errorf("Frames = %d, want 10", got)
		}
		if dev.Outstanding() != 0 {
			t.Error("Run returned with work outstanding")
		}
	})

	t.Run("window closes", func(t *testing.T) {
		win := platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600})
		win.CloseAfterEvents = 5
		f := newFixture(t, gputest.NewDevice(), win, Config{})
		if err := f.loop.Run(context.Background()); err != nil {
			t.Fatalf("Run: %+v", err)
		}
		if got := f.loop.Stats().Frames; got != 4 {
			t.Errorf("Frames = %d, want 4", got)
		}
	})

	t.Run("closed while minimized", func(t *testing.T) {
		win := platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}, gpu.Extent2D{})
		win.CloseAfterEvents = 4
		f := newFixture(t, gputest.NewDevice(), win, Config{})
		if err := f.loop.Run(context.Background()); err != nil {
			t.Fatalf("Run: %+v", err)
		}
		if got := f.loop.Stats().Frames; got != 1 {
			t.Errorf("Frames = %d, want 1", got)
		}
		if got := len(f.device.Swapchains); got != 1 {
			t.Errorf("%d swapchains created while minimized, want 1", got)
		}
		f.checkViolations(t)
	})

	t.Run("context cancelled", func(t *testing.T) {
		f := defaultFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := f.loop.Run(ctx); err != nil {
			t.Fatalf("Run: %+v", err)
		}
		if got := f.loop.Stats().Frames; got != 0 {
			t.Errorf("Frames = %d, want 0", got)
		}
	})
}

func TestNewWaitsForDrawableWindow(t *testing.T) {
	win := platformtest.NewWindow(gpu.Extent2D{}, gpu.Extent2D{Width: 320, Height: 240})
	f := newFixture(t, gputest.NewDevice(), win, Config{})

	if win.Waits != 1 {
		t.Errorf("waited for %d events, want 1", win.Waits)
	}
	if got := f.loop.Coordinator().Chain().Extent(); got != (gpu.Extent2D{Width: 320, Height: 240}) {
		t.Errorf("extent = %s, want 320x240", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.FramesInFlight != framesync.MaxFramesInFlight {
		t.Errorf("FramesInFlight = %d", cfg.FramesInFlight)
	}
	if cfg.FenceTimeout != DefaultFenceTimeout || cfg.AcquireTimeout != DefaultAcquireTimeout {
		t.Errorf("timeouts = %s, %s", cfg.FenceTimeout, cfg.AcquireTimeout)
	}
}
