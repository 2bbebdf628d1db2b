package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-rt/engine/raytracing"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/Carmen-Shannon/oxy-rt/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables periodic profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithWindow sets the window frames are presented in. Key, scroll and resize callbacks
// of the window are taken over by the engine.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the presenter used by Run.
//
// Parameters:
//   - r: a renderer created for the engine's window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithRaytracerOptions forwards options to the raytracer the engine creates.
//
// Parameters:
//   - opts: raytracer options, applied after the camera resolution
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRaytracerOptions(opts ...raytracing.RaytracerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rtOpts = append(e.rtOpts, opts...)
	}
}

// WithToggleTexture sets the texture the texture action assigns to the selected object.
// Without it a checkerboard is generated.
//
// Parameters:
//   - tex: a texture loaded on the engine's session
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithToggleTexture(tex *texture.Texture) EngineBuilderOption {
	return func(e *engine) {
		e.texture = tex
	}
}

// WithKeyMap replaces the key bindings.
//
// Parameters:
//   - keys: virtual key codes mapped to actions
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithKeyMap(keys map[uint32]Action) EngineBuilderOption {
	return func(e *engine) {
		e.keyMap = keys
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
