package accel

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

// Geometry is one triangle list of a bottom-level structure. A nil IndexBuffer or a zero
// IndexCount builds a non-indexed list from VertexCount vertices.
type Geometry struct {
	VertexBuffer gpu.Buffer
	VertexCount  uint32
	VertexStride uint64
	IndexBuffer  gpu.Buffer
	IndexCount   uint32
	Opaque       bool
}

func (g Geometry) desc() gpu.GeometryDesc {
	d := gpu.GeometryDesc{
		VertexBuffer: g.VertexBuffer.Address(),
		VertexCount:  g.VertexCount,
		VertexStride: g.VertexStride,
		Opaque:       g.Opaque,
	}
	if g.IndexBuffer != nil && g.IndexCount > 0 {
		d.IndexBuffer = g.IndexBuffer.Address()
		d.IndexCount = g.IndexCount
	}
	return d
}

// BottomLevelStructure is a built triangle structure shared by every instance of one geometry.
type BottomLevelStructure interface {
	// Label returns the debug label of the structure.
	Label() string

	// Address returns the device address instances reference.
	Address() gpu.DeviceAddress

	// Result returns the persistent result buffer.
	Result() gpu.Buffer

	// PrimitiveCount returns the number of triangles across all geometries.
	PrimitiveCount() uint32

	// ReleaseScratch frees the transient build buffer. Call it once the fence covering
	// the build has been reached.
	ReleaseScratch()

	// Release frees every buffer of the structure.
	Release()
}

type bottomLevelImpl struct {
	mu         sync.Mutex
	label      string
	result     gpu.Buffer
	scratch    gpu.Buffer
	primitives uint32
}

var _ BottomLevelStructure = &bottomLevelImpl{}

// BuildBottomLevel sizes, allocates and records a static bottom-level build followed by a
// UAV barrier on the result. The build executes when the session's command list is submitted.
//
// Parameters:
//   - session: the session to allocate from and record on
//   - label: debug label for the buffers
//   - geometries: the triangle lists to build over
//
// Returns:
//   - BottomLevelStructure: the structure, valid once the build has executed
//   - error: a wrapped sizing or allocation error
func BuildBottomLevel(session gpu.Session, label string, geometries ...Geometry) (BottomLevelStructure, error) {
	inputs := gpu.AccelerationStructureInputs{
		Type:  gpu.AccelerationStructureBottomLevel,
		Flags: gpu.BuildFlagPreferFastTrace,
	}
	var prims uint32
	for i, g := range geometries {
		if g.VertexBuffer == nil {
			return nil, fmt.Errorf("bottom level %q geometry %d: nil vertex buffer", label, i)
		}
		d := g.desc()
		inputs.Geometries = append(inputs.Geometries, d)
		prims += d.PrimitiveCount()
	}

	info, err := session.AccelerationStructurePrebuildInfo(inputs)
	if err != nil {
		return nil, fmt.Errorf("bottom level %q prebuild: %w", label, err)
	}
	result, scratch, err := allocate(session, label, info.ResultDataMaxSize, info.ScratchDataSize)
	if err != nil {
		return nil, err
	}

	cl := session.CommandList()
	cl.BuildRaytracingAccelerationStructure(gpu.BuildAccelerationStructureDesc{
		Inputs:      inputs,
		Destination: result.Address(),
		Scratch:     scratch.Address(),
	})
	cl.ResourceBarrierUAV(result)

	return &bottomLevelImpl{
		label:      label,
		result:     result,
		scratch:    scratch,
		primitives: prims,
	}, nil
}

func (b *bottomLevelImpl) Label() string {
	return b.label
}

func (b *bottomLevelImpl) Address() gpu.DeviceAddress {
	return b.result.Address()
}

func (b *bottomLevelImpl) Result() gpu.Buffer {
	return b.result
}

func (b *bottomLevelImpl) PrimitiveCount() uint32 {
	return b.primitives
}

func (b *bottomLevelImpl) ReleaseScratch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scratch != nil {
		b.scratch.Release()
		b.scratch = nil
	}
}

func (b *bottomLevelImpl) Release() {
	b.ReleaseScratch()
	b.result.Release()
}
