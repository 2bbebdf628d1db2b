package gpu

import (
	"context"
)

// RaytracingTier is the ray-tracing capability level a session reports.
type RaytracingTier uint8

const (
	TierNotSupported RaytracingTier = iota
	// TierEmulated executes ray tracing on the host timeline.
	TierEmulated
	// Tier1_0 is native hardware ray tracing.
	Tier1_0
)

func (t RaytracingTier) String() string {
	switch t {
	case TierEmulated:
		return "emulated"
	case Tier1_0:
		return "1.0"
	}
	return "not supported"
}

// Capabilities summarizes what a session can do.
type Capabilities struct {
	Backend              string
	Tier                 RaytracingTier
	MaxRecursionDepth    uint32
	ShaderIdentifierSize uint32
	DescriptorIncrement  uint64
	DescriptorCapacity   int
	MemoryBudget         uint64
	Workers              int
}

// SupportsRaytracing reports whether the tier allows building a ray-tracing pipeline.
func (c Capabilities) SupportsRaytracing() bool {
	return c.Tier != TierNotSupported
}

// GPUVirtualAddressRange is a contiguous span of device memory.
type GPUVirtualAddressRange struct {
	StartAddress DeviceAddress
	SizeInBytes  uint64
}

// GPUVirtualAddressRangeAndStride is a span of equally sized records.
type GPUVirtualAddressRangeAndStride struct {
	StartAddress  DeviceAddress
	SizeInBytes   uint64
	StrideInBytes uint64
}

// DispatchRaysDesc locates the shader table sections and the launch grid of a dispatch.
type DispatchRaysDesc struct {
	RayGenerationShaderRecord GPUVirtualAddressRange
	MissShaderTable           GPUVirtualAddressRangeAndStride
	HitGroupTable             GPUVirtualAddressRangeAndStride
	Width                     uint32
	Height                    uint32
	Depth                     uint32
}

// CommandList records device work. Recording never fails; faults surface when the
// list executes on the timeline after Submit.
type CommandList interface {
	// BuildRaytracingAccelerationStructure records a build or, with BuildFlagPerformUpdate, a refit.
	BuildRaytracingAccelerationStructure(desc BuildAccelerationStructureDesc)

	// ResourceBarrierUAV orders every earlier write to buf before later reads.
	ResourceBarrierUAV(buf Buffer)

	// SetPipelineState binds the ray-tracing pipeline used by later dispatches.
	SetPipelineState(p RayTracingPipeline)

	// DispatchRays launches Width x Height x Depth ray-generation invocations.
	DispatchRays(desc DispatchRaysDesc)

	// Len returns the number of recorded commands.
	Len() int
}

// Session owns a device, its memory, its descriptor heap and its single command stream.
// All recording happens on one goroutine; the device executes on its own timeline.
type Session interface {
	// Capabilities reports the session backend and ray-tracing tier.
	Capabilities() Capabilities

	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: size, heap and usage of the buffer
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: ErrOutOfMemory or a descriptive error for zero-sized requests
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateTexture uploads an RGBA8 texture.
	//
	// Parameters:
	//   - desc: label and dimensions
	//   - pixels: Width*Height*4 bytes
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: an error if the pixel data does not match the dimensions
	CreateTexture(desc TextureDescriptor, pixels []byte) (Texture, error)

	// DescriptorHeap returns the shader-visible descriptor heap.
	DescriptorHeap() DescriptorHeap

	// AccelerationStructurePrebuildInfo sizes the buffers a build needs.
	AccelerationStructurePrebuildInfo(inputs AccelerationStructureInputs) (PrebuildInfo, error)

	// CreateRayTracingPipeline validates and compiles a pipeline.
	CreateRayTracingPipeline(desc RayTracingPipelineDescriptor) (RayTracingPipeline, error)

	// CommandList returns the list currently being recorded.
	CommandList() CommandList

	// Submit closes the current command list, queues it on the device timeline and
	// signals the next fence value after it executes.
	//
	// Returns:
	//   - uint64: the fence value that marks completion of the submitted work
	//   - error: ErrDeviceLost if the timeline already failed
	Submit() (uint64, error)

	// Fence returns the session fence.
	Fence() Fence

	// Flush submits pending work and waits for it.
	Flush(ctx context.Context) error

	// MemoryInUse returns the bytes currently allocated.
	MemoryInUse() uint64

	// Release stops the device timeline. Pending work is drained first.
	Release()
}
