package raytracing

import "github.com/Carmen-Shannon/oxy-rt/engine/gpu"

// RaytracerBuilderOption is a functional option for configuring a Raytracer.
type RaytracerBuilderOption func(*raytracer)

// WithResolution sets the size of the output image.
//
// Parameters:
//   - width, height: image size in pixels
//
// Returns:
//   - RaytracerBuilderOption: option function to apply
func WithResolution(width, height uint32) RaytracerBuilderOption {
	return func(r *raytracer) {
		r.width, r.height = max(width, 1), max(height, 1)
	}
}

// WithShadowRayType compiles the shadow ray type into the pipeline.
//
// Parameters:
//   - enabled: whether shadow rays are available
//
// Returns:
//   - RaytracerBuilderOption: option function to apply
func WithShadowRayType(enabled bool) RaytracerBuilderOption {
	return func(r *raytracer) {
		r.shadowRays = enabled
	}
}

// WithSampler sets the static texture sampler.
//
// Parameters:
//   - sampler: the sampler type
//
// Returns:
//   - RaytracerBuilderOption: option function to apply
func WithSampler(sampler gpu.SamplerType) RaytracerBuilderOption {
	return func(r *raytracer) {
		r.sampler = sampler
	}
}

// WithMaxRecursionDepth sets the pipeline recursion limit.
//
// Parameters:
//   - depth: the TraceRay nesting limit
//
// Returns:
//   - RaytracerBuilderOption: option function to apply
func WithMaxRecursionDepth(depth uint32) RaytracerBuilderOption {
	return func(r *raytracer) {
		r.maxRecursionDepth = depth
	}
}

// WithDebugChecks verifies after every rebuild that each instance's hit group index points
// at the record of its own object.
//
// Parameters:
//   - enabled: whether to run the checks
//
// Returns:
//   - RaytracerBuilderOption: option function to apply
func WithDebugChecks(enabled bool) RaytracerBuilderOption {
	return func(r *raytracer) {
		r.debugChecks = enabled
	}
}
