package renderloop

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/platform/platformtest"
)

func TestRegistryOrder(t *testing.T) {
	var events []string
	depth := &target{name: "depth", events: &events}
	framebuffers := &target{name: "framebuffers", events: &events}
	commands := &target{name: "commands", events: &events}

	dev := gputest.NewDevice()
	loop, err := New(context.Background(), Params{
		Device:   dev,
		Window:   platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}),
		Recorder: commands,
		Targets:  []Rebuilder{depth, framebuffers, commands},
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := loop.Coordinator().Recreate(context.Background()); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	if err := loop.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{
		"rebuild depth", "rebuild framebuffers", "rebuild commands",
		"release commands", "release framebuffers", "release depth",
		"rebuild depth", "rebuild framebuffers", "rebuild commands",
		"release commands", "release framebuffers", "release depth",
	}
	if strings.Join(events, ", ") != strings.Join(want, ", ") {
		t.Errorf("lifecycle:\n got %v\nwant %v", events, want)
	}
}

func TestRegistryPartialFailure(t *testing.T) {
	var events []string
	first := &target{name: "first", events: &events}
	second := &target{name: "second", events: &events}
	boom := errors.New("out of device memory")

	dev := gputest.NewDevice()
	loop, err := New(context.Background(), Params{
		Device:   dev,
		Window:   platformtest.NewWindow(gpu.Extent2D{Width: 800, Height: 600}),
		Recorder: first,
		Targets:  []Rebuilder{first, second},
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events = nil

	second.failRebuild = boom
	err = loop.Coordinator().Recreate(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Recreate error = %v, want %v", err, boom)
	}

	want := []string{"release second", "release first", "rebuild first", "release first"}
	if strings.Join(events, ", ") != strings.Join(want, ", ") {
		t.Errorf("lifecycle:\n got %v\nwant %v", events, want)
	}

	if err := loop.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if first.releases != first.rebuilds || second.releases != 1 {
		t.Errorf("unbalanced releases: first %d/%d, second %d", first.rebuilds, first.releases, second.releases)
	}
	if n := dev.LiveTotal(); n != 0 {
		t.Errorf("%d GPU objects alive after Close", n)
	}
}

func TestRegistryIgnoresNil(t *testing.T) {
	var r Registry
	r.Register(nil, &target{name: "a"})
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
