// Package shader holds the ray-tracing programs of the renderer: ray generation, the primary
// and shadow miss programs, and the primary and shadow closest-hit programs. Programs read
// their inputs through the dispatch context the way device code reads a shader record.
//
// Root arguments:
//
//	RayGen      heap base
//	Miss        heap base
//	ShadowMiss  none
//	ClosestHit  vertex buffer, index buffer, lighting, material, heap base, texture
//	ShadowHit   none
//
// Heap slots below the texture range: 0 output image, 1 top-level structure, 2 camera.
package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

// Export names.
const (
	RayGenName     = "RayGen"
	MissName       = "Miss"
	ShadowMissName = "ShadowMiss"
	ClosestHitName = "ClosestHit"
	ShadowHitName  = "ShadowHit"

	// ShadowHitGroupName is the hit group every shadow record references.
	ShadowHitGroupName = "ShadowHitGroup"
)

// Heap slots.
const (
	SlotOutput   = 0
	SlotTLAS     = 1
	SlotCamera   = 2
	SlotTextures = 3
)

// Ray types. The shadow ray type exists only when Config.ShadowRays is set.
const (
	RayTypePrimary = 0
	RayTypeShadow  = 1
)

// Closest-hit root argument indices.
const (
	ArgVertexBuffer = iota
	ArgIndexBuffer
	ArgLighting
	ArgMaterial
	ArgHeap
	ArgTexture

	// HitArgCount is the argument count of a textured hit record.
	HitArgCount
)

// rayEpsilon offsets secondary ray origins from the surface they leave.
const rayEpsilon = 1e-3

// primaryTMax bounds every primary and reflection ray.
const primaryTMax = 1e4

// HitInfo is the payload of primary and reflection rays.
type HitInfo struct {
	Color common.Vec3
	// Depth counts reflection bounces so far.
	Depth int32
}

// ShadowInfo is the payload of shadow rays.
type ShadowInfo struct {
	Occluded bool
}

// PayloadSize is the declared payload size of the pipeline.
const PayloadSize = 16

// Config selects the program variants compiled into a library.
type Config struct {
	// ShadowRays adds the shadow ray type: a second miss program and a second hit record
	// per object.
	ShadowRays bool
	// MaxRecursionDepth is the pipeline recursion limit; hit programs stop tracing at it.
	MaxRecursionDepth uint32
}

// RayTypeCount returns the number of hit records per object.
func (c Config) RayTypeCount() uint32 {
	if c.ShadowRays {
		return 2
	}
	return 1
}

// MissNames returns the miss programs in miss-index order.
func (c Config) MissNames() []string {
	if c.ShadowRays {
		return []string{MissName, ShadowMissName}
	}
	return []string{MissName}
}

// NewLibrary compiles the programs for a configuration.
//
// Parameters:
//   - cfg: program variants
//
// Returns:
//   - gpu.ShaderLibrary: the exports
func NewLibrary(cfg Config) gpu.ShaderLibrary {
	lib := gpu.ShaderLibrary{
		Label: "raytracing",
		Exports: []gpu.ShaderExport{
			{Name: RayGenName, Kind: gpu.ShaderKindRayGeneration, RayGeneration: rayGeneration(cfg)},
			{Name: MissName, Kind: gpu.ShaderKindMiss, Miss: miss},
			{Name: ClosestHitName, Kind: gpu.ShaderKindClosestHit, ClosestHit: closestHit(cfg)},
		},
	}
	if cfg.ShadowRays {
		lib.Exports = append(lib.Exports,
			gpu.ShaderExport{Name: ShadowMissName, Kind: gpu.ShaderKindMiss, Miss: shadowMiss},
			gpu.ShaderExport{Name: ShadowHitName, Kind: gpu.ShaderKindClosestHit, ClosestHit: shadowHit},
		)
	}
	return lib
}

// RootSignatures returns the local root signature associations of the library.
func RootSignatures(cfg Config) []gpu.RootSignatureAssociation {
	heapOnly := gpu.RootSignature{Label: "heap", Parameters: []gpu.RootParameterKind{gpu.RootParameterDescriptorTable}}
	hit := gpu.RootSignature{Label: "hit", Parameters: []gpu.RootParameterKind{
		gpu.RootParameterPointer,
		gpu.RootParameterPointer,
		gpu.RootParameterPointer,
		gpu.RootParameterPointer,
		gpu.RootParameterDescriptorTable,
		gpu.RootParameterDescriptorTable,
	}}
	out := []gpu.RootSignatureAssociation{
		{Signature: heapOnly, Exports: []string{RayGenName, MissName}},
		{Signature: hit, Exports: []string{ClosestHitName}},
	}
	if cfg.ShadowRays {
		out = append(out, gpu.RootSignatureAssociation{Signature: gpu.RootSignature{Label: "empty"}, Exports: []string{ShadowMissName, ShadowHitName}})
	}
	return out
}

// slot resolves a heap slot relative to the heap base argument.
func slot(dc gpu.DispatchContext, heap gpu.DeviceAddress, index int, want gpu.DescriptorKind) gpu.Descriptor {
	d := dc.Descriptor(heap.Offset(uint64(index) * gpu.DescriptorIncrement))
	if d.Kind != want {
		panic(fmt.Errorf("heap slot %d holds a %s descriptor, want %s", index, d.Kind, want))
	}
	return d
}

// traceDesc fills the per-ray-type fields of a TraceRay call.
func traceDesc(cfg Config, heap gpu.DeviceAddress, rayType uint32, flags gpu.RayFlags, ray gpu.Ray) gpu.TraceRayDesc {
	return gpu.TraceRayDesc{
		AccelerationStructure: heap.Offset(SlotTLAS * gpu.DescriptorIncrement),
		Flags:                 flags,
		InstanceMask:          0xFF,
		RayContribution:       rayType,
		GeometryMultiplier:    cfg.RayTypeCount(),
		MissIndex:             rayType,
		Ray:                   ray,
	}
}
