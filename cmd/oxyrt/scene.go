package main

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/raytracing"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/Carmen-Shannon/oxy-rt/examples/demo"
	"github.com/urfave/cli"
)

const softShadowRadius = 0.3

// sceneOptions holds the flags shared by the render and run commands.
type sceneOptions struct {
	width, height int
	scene         string
	gridSize      int
	shadows       bool
	softShadows   int
	shadowRayType bool
	sampler       string
	texture       string
	workers       int
}

func sceneOptionsFrom(ctx *cli.Context) sceneOptions {
	return sceneOptions{
		width:         ctx.Int("width"),
		height:        ctx.Int("height"),
		scene:         ctx.String("scene"),
		gridSize:      ctx.Int("grid-size"),
		shadows:       ctx.BoolT("shadows"),
		softShadows:   ctx.Int("soft-shadows"),
		shadowRayType: ctx.Bool("shadow-ray-type"),
		sampler:       ctx.String("sampler"),
		texture:       ctx.String("texture"),
		workers:       ctx.Int("workers"),
	}
}

func (o sceneOptions) session() gpu.Session {
	return gpu.NewSoftwareSession(gpu.WithWorkers(o.workers))
}

// build loads the texture into lib and composes the selected demo scene.
func (o sceneOptions) build(lib texture.Library) (scene.Scene, error) {
	if o.width <= 0 || o.height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", o.width, o.height)
	}
	opts := []demo.DemoOption{
		demo.WithResolution(uint32(o.width), uint32(o.height)),
		demo.WithShadows(o.shadows),
	}
	if o.softShadows > 0 {
		opts = append(opts, demo.WithSoftShadows(uint32(o.softShadows), softShadowRadius))
	}
	if o.texture != "" {
		opts = append(opts, demo.WithTextureFile(o.texture))
	}

	switch o.scene {
	case "showcase", "":
		return demo.Showcase(lib, opts...)
	case "grid":
		return demo.Grid(lib, o.gridSize, opts...)
	}
	return nil, fmt.Errorf("unknown scene %q", o.scene)
}

// engineOptions returns the raytracer settings and the texture the toggle action applies.
func (o sceneOptions) engineOptions(lib texture.Library) ([]engine.EngineBuilderOption, error) {
	sampler, err := gpu.ParseSamplerType(o.sampler)
	if err != nil {
		return nil, err
	}
	opts := []engine.EngineBuilderOption{
		engine.WithRaytracerOptions(
			raytracing.WithSampler(sampler),
			raytracing.WithShadowRayType(o.shadowRayType),
		),
	}
	if tex, ok := lib.Get(common.Coalesce(o.texture, demo.CheckerName)); ok {
		opts = append(opts, engine.WithToggleTexture(tex))
	}
	return opts, nil
}
