package pipeline

import "github.com/Carmen-Shannon/oxy-rt/engine/gpu"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithLabel sets the debug label of the pipeline.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - PipelineBuilderOption: a function that sets the label for this pipeline
func WithLabel(label string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.label = label
	}
}

// WithShadowRayType adds the shadow ray type: the shadow miss program, the shadow hit group
// and a second hit record per object.
//
// Parameters:
//   - enabled: whether shadow rays are compiled in
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shadow ray type for this pipeline
func WithShadowRayType(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.shadowRays = enabled
	}
}

// WithSampler sets the static sampler used by texture lookups.
//
// Parameters:
//   - sampler: the sampler type (e.g., gpu.SamplerAnisotropic, gpu.SamplerLinear, gpu.SamplerPoint)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the static sampler for this pipeline
func WithSampler(sampler gpu.SamplerType) PipelineBuilderOption {
	return func(p *pipeline) {
		p.sampler = sampler
	}
}

// WithMaxRecursionDepth sets the TraceRay nesting limit. It is clamped to the session limit.
//
// Parameters:
//   - depth: the recursion depth, at least 1
//
// Returns:
//   - PipelineBuilderOption: a function that sets the recursion depth for this pipeline
func WithMaxRecursionDepth(depth uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.maxRecursionDepth = depth
	}
}

// WithHitGroups declares one hit group per scene object, each running the closest-hit program.
//
// Parameters:
//   - names: the hit group names
//
// Returns:
//   - PipelineBuilderOption: a function that sets the object hit groups for this pipeline
func WithHitGroups(names ...string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.hitGroups = append(p.hitGroups, names...)
	}
}
