package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

type config struct {
	Title  string
	Width  int
	Height int

	PresentMode gpu.PresentMode
	Validation  bool
	Verbose     bool
	Frames      int

	VertexShader   string
	FragmentShader string
	Mesh           string
	Material       string
	Texture        string
}

var presentModes = map[string]gpu.PresentMode{
	"immediate": gpu.PresentModeImmediate,
	"mailbox":   gpu.PresentModeMailbox,
	"fifo":      gpu.PresentModeFIFO,
	"relaxed":   gpu.PresentModeFIFORelaxed,
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var present string

	fs := flag.NewFlagSet("frameloop-demo", flag.ContinueOnError)
	fs.StringVar(&cfg.Title, "title", "frameloop", "window title")
	fs.IntVar(&cfg.Width, "width", 800, "initial window width")
	fs.IntVar(&cfg.Height, "height", 600, "initial window height")
	fs.StringVar(&present, "present", "mailbox", "preferred present mode: immediate, mailbox, fifo or relaxed")
	fs.BoolVar(&cfg.Validation, "validation", false, "enable the Khronos validation layer")
	fs.BoolVar(&cfg.Verbose, "v", false, "log per-frame diagnostics")
	fs.IntVar(&cfg.Frames, "frames", 0, "exit after this many presented frames (0 runs until closed)")
	fs.StringVar(&cfg.VertexShader, "vert", "", "SPIR-V vertex shader reading a {model, view, proj} uniform at binding 0 and position, color and uv at locations 0-2")
	fs.StringVar(&cfg.FragmentShader, "frag", "", "SPIR-V fragment shader")
	fs.StringVar(&cfg.Mesh, "mesh", "", "Wavefront OBJ mesh to draw instead of the built-in quads")
	fs.StringVar(&cfg.Material, "mtl", "", "material library for -mesh")
	fs.StringVar(&cfg.Texture, "texture", "", "PNG image sampled by the fragment shader at binding 1")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\nWithout -vert and -frag the window is only cleared.\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	mode, ok := presentModes[strings.ToLower(present)]
	if !ok {
		return cfg, errors.Newf("unknown present mode %q", present)
	}
	cfg.PresentMode = mode

	if (cfg.VertexShader == "") != (cfg.FragmentShader == "") {
		return cfg, errors.New("-vert and -frag must be given together")
	}
	if cfg.Texture != "" && !cfg.drawsGeometry() {
		return cfg, errors.New("-texture needs -vert and -frag")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, errors.Newf("invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	return cfg, nil
}

func (c config) drawsGeometry() bool {
	return c.VertexShader != ""
}
