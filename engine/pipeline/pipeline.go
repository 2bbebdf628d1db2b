package pipeline

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/shader"
)

// DefaultMaxRecursionDepth is the recursion depth used when none is configured.
const DefaultMaxRecursionDepth = 8

// pipeline is the implementation of the Pipeline interface.
// It holds the compiled ray-tracing state object and the options it was compiled from.
type pipeline struct {
	mu sync.Mutex

	label string
	raw   gpu.RayTracingPipeline

	// hitGroups lists the per-object hit group names, in the order they were declared
	hitGroups []string

	shadowRays        bool
	sampler           gpu.SamplerType
	maxRecursionDepth uint32
}

// Pipeline is a compiled ray-tracing pipeline: the shader library, one hit group per scene
// object plus the shared shadow hit group, the local root signatures and the static sampler.
type Pipeline interface {
	// Label returns the debug label of the pipeline.
	Label() string

	// Raw returns the session pipeline object bound with SetPipelineState.
	//
	// Returns:
	//   - gpu.RayTracingPipeline: the compiled pipeline
	Raw() gpu.RayTracingPipeline

	// ShaderIdentifier returns the identifier of an export or hit group.
	//
	// Parameters:
	//   - name: export or hit group name
	//
	// Returns:
	//   - []byte: the 32 byte identifier
	//   - error: gpu.ErrUnknownShader when the pipeline does not define the name
	ShaderIdentifier(name string) ([]byte, error)

	// Config returns the program variants compiled into the pipeline.
	//
	// Returns:
	//   - shader.Config: shadow ray type flag and recursion limit
	Config() shader.Config

	// RayTypeCount returns the number of hit records each object contributes to the shader table.
	RayTypeCount() uint32

	// ShadowRays reports whether the pipeline defines the shadow ray type.
	ShadowRays() bool

	// Sampler returns the static sampler compiled into the pipeline.
	Sampler() gpu.SamplerType

	// MaxRecursionDepth returns the TraceRay nesting limit.
	MaxRecursionDepth() uint32

	// HitGroups returns a copy of the per-object hit group names.
	HitGroups() []string

	// HasHitGroup reports whether an object hit group with the given name was compiled in.
	//
	// Parameters:
	//   - name: hit group name
	//
	// Returns:
	//   - bool: true when the name is one of the object hit groups
	HasHitGroup(name string) bool

	// Release frees the compiled pipeline. Identifiers handed out before become invalid.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline compiles a ray-tracing pipeline on a session.
//
// Parameters:
//   - session: the session to compile on
//   - options: functional options to configure the pipeline
//
// Returns:
//   - Pipeline: the compiled pipeline
//   - error: gpu.ErrUnsupportedHardware when the session cannot trace rays, or a compile error
func NewPipeline(session gpu.Session, options ...PipelineBuilderOption) (Pipeline, error) {
	p := &pipeline{
		label:             "raytracing",
		sampler:           gpu.SamplerAnisotropic,
		maxRecursionDepth: DefaultMaxRecursionDepth,
	}
	for _, option := range options {
		option(p)
	}

	caps := session.Capabilities()
	if !caps.SupportsRaytracing() {
		return nil, fmt.Errorf("pipeline %q: %w", p.label, gpu.ErrUnsupportedHardware)
	}
	p.maxRecursionDepth = min(max(p.maxRecursionDepth, 1), caps.MaxRecursionDepth)

	cfg := p.config()
	raw, err := session.CreateRayTracingPipeline(gpu.RayTracingPipelineDescriptor{
		Label:             p.label,
		Libraries:         []gpu.ShaderLibrary{shader.NewLibrary(cfg)},
		HitGroups:         p.hitGroupDescriptors(),
		Associations:      shader.RootSignatures(cfg),
		MaxPayloadSize:    shader.PayloadSize,
		MaxAttributeSize:  8,
		MaxRecursionDepth: p.maxRecursionDepth,
		StaticSampler:     p.sampler,
	})
	if err != nil {
		return nil, fmt.Errorf("compile pipeline %q: %w", p.label, err)
	}
	p.raw = raw
	return p, nil
}

func (p *pipeline) config() shader.Config {
	return shader.Config{ShadowRays: p.shadowRays, MaxRecursionDepth: p.maxRecursionDepth}
}

func (p *pipeline) hitGroupDescriptors() []gpu.HitGroupDescriptor {
	out := make([]gpu.HitGroupDescriptor, 0, len(p.hitGroups)+1)
	for _, name := range p.hitGroups {
		out = append(out, gpu.HitGroupDescriptor{Name: name, ClosestHit: shader.ClosestHitName})
	}
	if p.shadowRays {
		out = append(out, gpu.HitGroupDescriptor{Name: shader.ShadowHitGroupName, ClosestHit: shader.ShadowHitName})
	}
	return out
}

func (p *pipeline) Label() string {
	return p.label
}

func (p *pipeline) Raw() gpu.RayTracingPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raw
}

func (p *pipeline) ShaderIdentifier(name string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw == nil {
		return nil, fmt.Errorf("pipeline %q released: %w", p.label, gpu.ErrReleased)
	}
	return p.raw.ShaderIdentifier(name)
}

func (p *pipeline) Config() shader.Config {
	return p.config()
}

func (p *pipeline) RayTypeCount() uint32 {
	return p.config().RayTypeCount()
}

func (p *pipeline) ShadowRays() bool {
	return p.shadowRays
}

func (p *pipeline) Sampler() gpu.SamplerType {
	return p.sampler
}

func (p *pipeline) MaxRecursionDepth() uint32 {
	return p.maxRecursionDepth
}

func (p *pipeline) HitGroups() []string {
	return slices.Clone(p.hitGroups)
}

func (p *pipeline) HasHitGroup(name string) bool {
	return slices.Contains(p.hitGroups, name)
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw != nil {
		p.raw.Release()
		p.raw = nil
	}
}
