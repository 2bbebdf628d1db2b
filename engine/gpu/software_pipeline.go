package gpu

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
)

type programKind uint8

const (
	programRayGeneration programKind = iota
	programMiss
	programHitGroup
)

func (k programKind) String() string {
	switch k {
	case programRayGeneration:
		return "ray generation"
	case programMiss:
		return "miss"
	}
	return "hit group"
}

// program is one shader-table addressable entry point of a pipeline.
type program struct {
	name       string
	kind       programKind
	identifier [ShaderIdentifierSize]byte
	signature  RootSignature
	pipeline   *softwarePipeline

	rayGeneration RayGenerationFunc
	miss          MissFunc
	closestHit    ClosestHitFunc
	anyHit        AnyHitFunc
}

type softwarePipeline struct {
	session  *softwareSession
	label    string
	maxDepth uint32
	sampler  SamplerType
	programs map[string]*program
	released atomic.Bool
}

var _ RayTracingPipeline = &softwarePipeline{}

func (p *softwarePipeline) Label() string {
	return p.label
}

func (p *softwarePipeline) ShaderIdentifier(name string) ([]byte, error) {
	prog, ok := p.programs[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %q, shader %q: %w", p.label, name, ErrUnknownShader)
	}
	id := make([]byte, ShaderIdentifierSize)
	copy(id, prog.identifier[:])
	return id, nil
}

func (p *softwarePipeline) RootSignature(name string) (RootSignature, bool) {
	prog, ok := p.programs[name]
	if !ok {
		return RootSignature{}, false
	}
	return prog.signature, true
}

func (p *softwarePipeline) MaxRecursionDepth() uint32 {
	return p.maxDepth
}

func (p *softwarePipeline) StaticSampler() SamplerType {
	return p.sampler
}

func (p *softwarePipeline) Release() {
	if p.released.Swap(true) {
		return
	}
	p.session.programs.unregister(p)
}

// programRegistry resolves shader identifiers read from shader records.
type programRegistry struct {
	mu     sync.RWMutex
	serial uint64
	byID   map[[ShaderIdentifierSize]byte]*program
}

func newProgramRegistry() *programRegistry {
	return &programRegistry{byID: make(map[[ShaderIdentifierSize]byte]*program)}
}

func (r *programRegistry) register(p *softwarePipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serial++
	for name, prog := range p.programs {
		prog.identifier = sha256.Sum256(fmt.Appendf(nil, "%d/%s/%s", r.serial, p.label, name))
		r.byID[prog.identifier] = prog
	}
}

func (r *programRegistry) unregister(p *softwarePipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, prog := range p.programs {
		delete(r.byID, prog.identifier)
	}
}

func (r *programRegistry) lookup(id []byte) (*program, bool) {
	var key [ShaderIdentifierSize]byte
	copy(key[:], id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	prog, ok := r.byID[key]
	return prog, ok
}

// compilePipeline validates a descriptor and resolves every addressable program.
func compilePipeline(s *softwareSession, desc RayTracingPipelineDescriptor) (*softwarePipeline, error) {
	if desc.MaxRecursionDepth < 1 || desc.MaxRecursionDepth > s.caps.MaxRecursionDepth {
		return nil, fmt.Errorf("pipeline %q: max recursion depth %d outside [1, %d]", desc.Label, desc.MaxRecursionDepth, s.caps.MaxRecursionDepth)
	}

	exports := make(map[string]ShaderExport)
	for _, lib := range desc.Libraries {
		for _, e := range lib.Exports {
			if e.Name == "" {
				return nil, fmt.Errorf("pipeline %q: library %q has an unnamed export", desc.Label, lib.Label)
			}
			if _, dup := exports[e.Name]; dup {
				return nil, fmt.Errorf("pipeline %q: export %q declared twice", desc.Label, e.Name)
			}
			if !e.hasBody() {
				return nil, fmt.Errorf("pipeline %q: export %q has no %s body", desc.Label, e.Name, e.Kind)
			}
			exports[e.Name] = e
		}
	}

	p := &softwarePipeline{
		session:  s,
		label:    desc.Label,
		maxDepth: desc.MaxRecursionDepth,
		sampler:  desc.StaticSampler,
		programs: make(map[string]*program),
	}

	for name, e := range exports {
		switch e.Kind {
		case ShaderKindRayGeneration:
			p.programs[name] = &program{name: name, kind: programRayGeneration, pipeline: p, rayGeneration: e.RayGeneration}
		case ShaderKindMiss:
			p.programs[name] = &program{name: name, kind: programMiss, pipeline: p, miss: e.Miss}
		}
	}

	hitGroupsOf := make(map[string][]string)
	for _, hg := range desc.HitGroups {
		if hg.Name == "" {
			return nil, fmt.Errorf("pipeline %q: unnamed hit group", desc.Label)
		}
		if _, clash := exports[hg.Name]; clash {
			return nil, fmt.Errorf("pipeline %q: hit group %q collides with an export", desc.Label, hg.Name)
		}
		if _, dup := p.programs[hg.Name]; dup {
			return nil, fmt.Errorf("pipeline %q: hit group %q declared twice", desc.Label, hg.Name)
		}
		if hg.ClosestHit == "" && hg.AnyHit == "" {
			return nil, fmt.Errorf("pipeline %q: hit group %q has no programs", desc.Label, hg.Name)
		}
		prog := &program{name: hg.Name, kind: programHitGroup, pipeline: p}
		if hg.ClosestHit != "" {
			e, ok := exports[hg.ClosestHit]
			if !ok || e.Kind != ShaderKindClosestHit {
				return nil, fmt.Errorf("pipeline %q: hit group %q closest hit %q: %w", desc.Label, hg.Name, hg.ClosestHit, ErrUnknownShader)
			}
			prog.closestHit = e.ClosestHit
			hitGroupsOf[hg.ClosestHit] = append(hitGroupsOf[hg.ClosestHit], hg.Name)
		}
		if hg.AnyHit != "" {
			e, ok := exports[hg.AnyHit]
			if !ok || e.Kind != ShaderKindAnyHit {
				return nil, fmt.Errorf("pipeline %q: hit group %q any hit %q: %w", desc.Label, hg.Name, hg.AnyHit, ErrUnknownShader)
			}
			prog.anyHit = e.AnyHit
		}
		p.programs[hg.Name] = prog
	}

	associated := make(map[string]bool)
	for _, assoc := range desc.Associations {
		for _, name := range assoc.Exports {
			if associated[name] {
				return nil, fmt.Errorf("pipeline %q: %q has more than one root signature", desc.Label, name)
			}
			associated[name] = true

			if prog, ok := p.programs[name]; ok {
				prog.signature = assoc.Signature
				continue
			}
			if _, ok := exports[name]; !ok {
				return nil, fmt.Errorf("pipeline %q: association names %q: %w", desc.Label, name, ErrUnknownShader)
			}
			// a signature on a closest-hit export applies to the hit groups that use it
			for _, group := range hitGroupsOf[name] {
				if !associated[group] {
					p.programs[group].signature = assoc.Signature
				}
			}
		}
	}

	s.programs.register(p)
	return p, nil
}

func (e ShaderExport) hasBody() bool {
	switch e.Kind {
	case ShaderKindRayGeneration:
		return e.RayGeneration != nil
	case ShaderKindMiss:
		return e.Miss != nil
	case ShaderKindClosestHit:
		return e.ClosestHit != nil
	case ShaderKindAnyHit:
		return e.AnyHit != nil
	}
	return false
}
