package main

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/Carmen-Shannon/oxy-rt/engine"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/urfave/cli"
)

// frameDelta is the simulated time between headless frames.
const frameDelta = float32(1.0 / 60.0)

// RenderFrames renders frames headless and writes the last one to disk.
func RenderFrames(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	return renderFrames(sceneOptionsFrom(ctx), ctx.Int("frames"), ctx.String("out"))
}

func renderFrames(opts sceneOptions, frames int, out string) error {
	session := opts.session()
	defer session.Release()

	lib := texture.NewLibrary(session)
	defer lib.Release()

	sc, err := opts.build(lib)
	if err != nil {
		return err
	}
	defer sc.Release()

	engOpts, err := opts.engineOptions(lib)
	if err != nil {
		return err
	}
	eng, err := engine.NewEngine(session, sc, engOpts...)
	if err != nil {
		return err
	}
	defer eng.Release()

	var img *image.RGBA
	for i := 0; i < max(frames, 1); i++ {
		if img, err = eng.RenderFrame(frameDelta); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	if err := writePNG(out, img); err != nil {
		return err
	}

	logger.Noticef("wrote %s (%dx%d) after %d frame(s)", out, img.Bounds().Dx(), img.Bounds().Dy(), eng.Frames())
	logger.Noticef("frame stats\n%s", eng.Profiler().Summary())
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
