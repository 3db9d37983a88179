// Command sdl2 opens a window and renders into it with the frameloop render
// loop, recreating the swapchain as the window is resized or minimized.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"

	"github.com/vkngwrapper/frameloop"
	"github.com/vkngwrapper/frameloop/platform/sdl2"
	"github.com/vkngwrapper/frameloop/renderloop"
	"github.com/vkngwrapper/frameloop/scene"
	"github.com/vkngwrapper/frameloop/swapchain"
	"github.com/vkngwrapper/frameloop/vulkan"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	frameloop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(ctx context.Context, cfg config) error {
	a, err := loadAssets(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "load assets")
	}

	window, err := sdl2.New(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer window.Destroy()

	backend, err := vulkan.New(window.SDL(), vulkan.Options{
		ApplicationName: cfg.Title,
		Validation:      cfg.Validation,
	})
	if err != nil {
		return errors.Wrap(err, "create vulkan backend")
	}
	defer backend.Destroy()

	res, err := newResources(backend, a)
	if err != nil {
		return err
	}
	defer res.Destroy()

	clock := scene.NewClock()
	camera := scene.NewCamera(mgl32.Vec3{2.5, 0, 1}, mgl32.Vec3{0, 0, 1}, 180, -20)
	window.SetInputHandler(scene.NewController(camera, clock))

	producer := &scene.UniformProducer{
		Camera: camera,
		Model:  scene.NewTransform(),
		Clock:  clock,
		Spin:   30,
		Near:   0.1,
		Far:    100,
		Order:  common.ByteOrder,
	}
	depth := &depthTarget{backend: backend}
	pass := &passTarget{backend: backend, depth: depth, res: res}
	commands := &commandTarget{backend: backend, res: res, pass: pass}

	params := renderloop.Params{
		Device:   backend,
		Window:   window,
		Recorder: commands,
		Targets:  []renderloop.Rebuilder{producer, depth, pass},
	}
	if res.drawsGeometry() {
		uniforms := &uniformTarget{backend: backend, res: res}
		commands.uniforms = uniforms
		params.Targets = append(params.Targets, uniforms)
		params.Producer = producer
		params.Sink = uniforms
	}
	params.Targets = append(params.Targets, commands)

	loop, err := renderloop.New(ctx, params, renderloop.Config{
		FrameLimit: cfg.Frames,
		Surface: swapchain.Options{
			PreferredFormat:      swapchain.DefaultOptions().PreferredFormat,
			PreferredPresentMode: cfg.PresentMode,
		},
	})
	if err != nil {
		if errors.Is(err, renderloop.ErrWindowClosed) {
			return nil
		}
		return errors.Wrap(err, "start render loop")
	}
	defer loop.Close()

	return loop.Run(ctx)
}
