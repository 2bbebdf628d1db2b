package main

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/engine"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/Carmen-Shannon/oxy-rt/engine/window"
	"github.com/urfave/cli"
)

// RunInteractive opens a window and renders until it is closed.
func RunInteractive(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	opts := sceneOptionsFrom(ctx)

	w, r, err := openPresenter(opts)
	if err != nil {
		return err
	}
	abort := func(err error) error {
		r.Release()
		_ = w.Close()
		return err
	}

	session := opts.session()
	defer session.Release()

	lib := texture.NewLibrary(session)
	defer lib.Release()

	sc, err := opts.build(lib)
	if err != nil {
		return abort(err)
	}
	defer sc.Release()

	engOpts, err := opts.engineOptions(lib)
	if err != nil {
		return abort(err)
	}
	engOpts = append(engOpts,
		engine.WithWindow(w),
		engine.WithRenderer(r),
		engine.WithProfiling(true),
	)
	eng, err := engine.NewEngine(session, sc, engOpts...)
	if err != nil {
		return abort(err)
	}
	defer eng.Release()

	logger.Noticef("rendering %q; Esc closes the window", opts.scene)
	return eng.Run()
}

// openPresenter creates the window and webgpu presenter, turning their construction
// panics into errors.
func openPresenter(opts sceneOptions) (w window.Window, r renderer.Renderer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("open presenter: %v", rec)
		}
	}()
	minW, minH, maxW, maxH := windowLimits(opts)
	w = window.NewWindow(
		window.WithTitle("oxyrt - "+opts.scene),
		window.WithSize(opts.width, opts.height),
		window.WithSizeLimits(minW, minH, maxW, maxH),
	)
	r = renderer.NewRenderer(renderer.BackendTypeWGPU, w)
	return w, r, nil
}

// windowLimits lets the window shrink to a quarter of the frame size and grow to twice it.
// Every resize reallocates the output image, so the upper bound keeps software frames
// from growing without limit.
func windowLimits(opts sceneOptions) (minWidth, minHeight, maxWidth, maxHeight int) {
	return max(opts.width/4, 1), max(opts.height/4, 1), opts.width * 2, opts.height * 2
}
