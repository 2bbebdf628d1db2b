package gpu

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
)

// ShaderIdentifierSize is the byte size of every shader identifier.
const ShaderIdentifierSize = 32

// MaxRecursionDepthLimit is the highest recursion depth a pipeline may declare.
const MaxRecursionDepthLimit = 31

// ShaderKind is the stage of a shader export.
type ShaderKind uint8

const (
	ShaderKindRayGeneration ShaderKind = iota
	ShaderKindMiss
	ShaderKindClosestHit
	ShaderKindAnyHit
)

func (k ShaderKind) String() string {
	switch k {
	case ShaderKindRayGeneration:
		return "raygeneration"
	case ShaderKindMiss:
		return "miss"
	case ShaderKindClosestHit:
		return "closesthit"
	case ShaderKindAnyHit:
		return "anyhit"
	}
	return "unknown"
}

// Ray is a ray segment [TMin, TMax] along Direction from Origin.
type Ray struct {
	Origin    common.Vec3
	TMin      float32
	Direction common.Vec3
	TMax      float32
}

// At returns the point at parameter t.
func (r Ray) At(t float32) common.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// RayFlags alter traversal of one TraceRay call.
type RayFlags uint32

const (
	RayFlagNone                       RayFlags = 0
	RayFlagForceOpaque                RayFlags = 0x01
	RayFlagAcceptFirstHitAndEndSearch RayFlags = 0x04
	RayFlagSkipClosestHitShader       RayFlags = 0x08
	RayFlagCullBackFacingTriangles    RayFlags = 0x10
)

// Has reports whether every flag in f is set.
func (r RayFlags) Has(f RayFlags) bool {
	return r&f == f
}

// Hit describes the committed intersection handed to hit programs.
type Hit struct {
	T              float32
	Barycentrics   [2]float32
	PrimitiveIndex uint32
	GeometryIndex  uint32
	InstanceIndex  uint32
	InstanceID     uint32
	FrontFace      bool
	ObjectToWorld  common.Mat3x4
	WorldToObject  common.Mat3x4
}

// TraceRayDesc carries the arguments of one TraceRay call.
type TraceRayDesc struct {
	AccelerationStructure DeviceAddress
	Flags                 RayFlags
	InstanceMask          uint8
	// RayContribution is added to every instance hit-group index.
	RayContribution uint32
	// GeometryMultiplier scales the geometry index inside the hit-group index.
	GeometryMultiplier uint32
	MissIndex          uint32
	Ray                Ray
}

// DispatchContext is the device-side view a shader program runs against.
// Faults inside the context (bad address, record out of range, recursion overflow)
// lose the device; later calls become no-ops.
type DispatchContext interface {
	// DispatchRaysIndex returns the launch index of the current invocation.
	DispatchRaysIndex() [3]uint32

	// DispatchRaysDimensions returns the launch grid size.
	DispatchRaysDimensions() [3]uint32

	// RootArgument returns local root argument i of the shader record being executed.
	RootArgument(i int) DeviceAddress

	// RecursionDepth returns how many TraceRay calls enclose the current program.
	RecursionDepth() uint32

	// TraceRay traverses an acceleration structure and runs the matching hit or miss program.
	TraceRay(desc TraceRayDesc, payload any)

	// Load returns size bytes at an absolute address. The slice must not be modified.
	Load(addr DeviceAddress, size uint64) []byte

	// Store writes bytes at an absolute address.
	Store(addr DeviceAddress, data []byte)

	// Descriptor returns the descriptor a heap pointer refers to.
	Descriptor(addr DeviceAddress) Descriptor

	// SampleTexture samples a texture with the pipeline's static sampler.
	SampleTexture(t Texture, u, v float32) [4]float32
}

type (
	// RayGenerationFunc is the body of a ray-generation program.
	RayGenerationFunc func(dc DispatchContext)
	// MissFunc is the body of a miss program.
	MissFunc func(dc DispatchContext, ray Ray, payload any)
	// ClosestHitFunc is the body of a closest-hit program.
	ClosestHitFunc func(dc DispatchContext, ray Ray, hit Hit, payload any)
	// AnyHitFunc decides whether a candidate intersection is accepted.
	AnyHitFunc func(dc DispatchContext, ray Ray, hit Hit, payload any) bool
)

// ShaderExport is one named program of a library. Exactly the function matching Kind is set.
type ShaderExport struct {
	Name          string
	Kind          ShaderKind
	RayGeneration RayGenerationFunc
	Miss          MissFunc
	ClosestHit    ClosestHitFunc
	AnyHit        AnyHitFunc
}

// ShaderLibrary groups exports compiled together.
type ShaderLibrary struct {
	Label   string
	Exports []ShaderExport
}

// HitGroupDescriptor bundles the programs run when a ray hits an instance.
type HitGroupDescriptor struct {
	Name       string
	ClosestHit string
	AnyHit     string
}

// RootParameterKind is the type of one local root argument.
type RootParameterKind uint8

const (
	// RootParameterPointer is an absolute buffer address.
	RootParameterPointer RootParameterKind = iota
	// RootParameterDescriptorTable is a heap-relative pointer.
	RootParameterDescriptorTable
)

// RootArgumentSize is the encoded size of one local root argument.
const RootArgumentSize = 8

// RootSignature lists the local root arguments a program reads from its shader record.
type RootSignature struct {
	Label      string
	Parameters []RootParameterKind
}

// Size returns the bytes the signature occupies after the shader identifier.
func (r RootSignature) Size() uint64 {
	return uint64(len(r.Parameters)) * RootArgumentSize
}

// RootSignatureAssociation binds a root signature to exports and hit groups by name.
type RootSignatureAssociation struct {
	Signature RootSignature
	Exports   []string
}

// RayTracingPipelineDescriptor describes a ray-tracing pipeline state object.
type RayTracingPipelineDescriptor struct {
	Label             string
	Libraries         []ShaderLibrary
	HitGroups         []HitGroupDescriptor
	Associations      []RootSignatureAssociation
	MaxPayloadSize    uint32
	MaxAttributeSize  uint32
	MaxRecursionDepth uint32
	StaticSampler     SamplerType
}

// RayTracingPipeline is a compiled pipeline. Shader identifiers are only valid for the
// pipeline that produced them.
type RayTracingPipeline interface {
	Label() string

	// ShaderIdentifier returns the identifier of a ray-generation or miss export or of a hit group.
	//
	// Parameters:
	//   - name: export or hit group name
	//
	// Returns:
	//   - []byte: ShaderIdentifierSize bytes
	//   - error: ErrUnknownShader when the name is not part of the pipeline
	ShaderIdentifier(name string) ([]byte, error)

	// RootSignature returns the local root signature associated with an export or hit group.
	RootSignature(name string) (RootSignature, bool)

	MaxRecursionDepth() uint32
	StaticSampler() SamplerType
	Release()
}
