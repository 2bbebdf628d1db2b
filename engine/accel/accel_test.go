package accel

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridSize = 16

// harness dispatches a grid of rays down -Z over [-4, 4]^2 and records the instance id + 1
// of the closest hit per ray, 0 on a miss.
type harness struct {
	session  gpu.Session
	output   gpu.Buffer
	table    gpu.Buffer
	pipeline gpu.RayTracingPipeline
}

type hitPayload struct {
	id uint32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := gpu.NewSoftwareSession(gpu.WithWorkers(2))
	t.Cleanup(s.Release)
	h := &harness{session: s}

	var err error
	h.output, err = s.CreateBuffer(gpu.BufferDescriptor{Label: "ids", Size: gridSize * gridSize * 4, Usage: gpu.BufferUsageUnorderedAccess})
	require.NoError(t, err)
	require.NoError(t, s.DescriptorHeap().Set(0, gpu.Descriptor{Kind: gpu.DescriptorOutput, Buffer: h.output, Width: gridSize, Height: gridSize}))

	raygen := func(dc gpu.DispatchContext) {
		heap := dc.RootArgument(0)
		out := dc.Descriptor(heap)
		tlas := dc.Descriptor(heap.Offset(gpu.DescriptorIncrement))
		idx := dc.DispatchRaysIndex()
		x := (float32(idx[0])+0.5)/gridSize*8 - 4
		y := (float32(idx[1])+0.5)/gridSize*8 - 4
		p := &hitPayload{}
		dc.TraceRay(gpu.TraceRayDesc{
			AccelerationStructure: tlas.Address,
			InstanceMask:          0xFF,
			Ray:                   gpu.Ray{Origin: common.Vec3{x, y, 10}, Direction: common.Vec3{0, 0, -1}, TMax: 100},
		}, p)
		var raw [4]byte
		binary.LittleEndian.PutUint32(raw[:], p.id)
		dc.Store(out.Buffer.Address().Offset(uint64(idx[1]*gridSize+idx[0])*4), raw[:])
	}
	h.pipeline, err = s.CreateRayTracingPipeline(gpu.RayTracingPipelineDescriptor{
		Label:             "harness",
		MaxRecursionDepth: 1,
		Libraries: []gpu.ShaderLibrary{{Exports: []gpu.ShaderExport{
			{Name: "rg", Kind: gpu.ShaderKindRayGeneration, RayGeneration: raygen},
			{Name: "miss", Kind: gpu.ShaderKindMiss, Miss: func(gpu.DispatchContext, gpu.Ray, any) {}},
			{Name: "ch", Kind: gpu.ShaderKindClosestHit, ClosestHit: func(dc gpu.DispatchContext, r gpu.Ray, hit gpu.Hit, payload any) {
				payload.(*hitPayload).id = hit.InstanceID + 1
			}},
		}}},
		HitGroups: []gpu.HitGroupDescriptor{{Name: "hg", ClosestHit: "ch"}},
		Associations: []gpu.RootSignatureAssociation{
			{Signature: gpu.RootSignature{Parameters: []gpu.RootParameterKind{gpu.RootParameterDescriptorTable}}, Exports: []string{"rg"}},
		},
	})
	require.NoError(t, err)

	h.table, err = s.CreateBuffer(gpu.BufferDescriptor{Label: "sbt", Size: 192, Heap: gpu.HeapTypeUpload, Usage: gpu.BufferUsageShaderTable})
	require.NoError(t, err)
	for i, name := range []string{"rg", "miss", "hg"} {
		id, err := h.pipeline.ShaderIdentifier(name)
		require.NoError(t, err)
		require.NoError(t, h.table.Write(uint64(i*64), id))
	}
	var arg [8]byte
	binary.LittleEndian.PutUint64(arg[:], s.DescriptorHeap().Base().Encode())
	require.NoError(t, h.table.Write(gpu.ShaderIdentifierSize, arg[:]))
	return h
}

func (h *harness) trace(t *testing.T, tlas TopLevelStructure) []uint32 {
	t.Helper()
	require.NoError(t, h.session.DescriptorHeap().Set(1, gpu.Descriptor{Kind: gpu.DescriptorAccelerationStructure, Address: tlas.Address()}))
	base := h.table.Address()
	cl := h.session.CommandList()
	cl.SetPipelineState(h.pipeline)
	cl.DispatchRays(gpu.DispatchRaysDesc{
		RayGenerationShaderRecord: gpu.GPUVirtualAddressRange{StartAddress: base, SizeInBytes: 64},
		MissShaderTable:           gpu.GPUVirtualAddressRangeAndStride{StartAddress: base.Offset(64), SizeInBytes: 64, StrideInBytes: 64},
		HitGroupTable:             gpu.GPUVirtualAddressRangeAndStride{StartAddress: base.Offset(128), SizeInBytes: 64, StrideInBytes: 64},
		Width:                     gridSize,
		Height:                    gridSize,
		Depth:                     1,
	})
	require.NoError(t, h.session.Flush(context.Background()))

	raw, err := h.output.Read(0, h.output.Size())
	require.NoError(t, err)
	ids := make([]uint32, gridSize*gridSize)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return ids
}

// quad uploads a unit square in the XY plane, indexed or not.
func quad(t *testing.T, s gpu.Session, indexed bool) Geometry {
	t.Helper()
	var positions []float32
	var indices []uint32
	corners := [][3]float32{{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {0.5, 0.5, 0}, {-0.5, 0.5, 0}}
	if indexed {
		for _, c := range corners {
			positions = append(positions, c[:]...)
		}
		indices = []uint32{0, 1, 2, 0, 2, 3}
	} else {
		for _, i := range []int{0, 1, 2, 0, 2, 3} {
			positions = append(positions, corners[i][:]...)
		}
	}

	raw := make([]byte, len(positions)*4)
	for i, f := range positions {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}
	vb, err := s.CreateBuffer(gpu.BufferDescriptor{Label: "vb", Size: uint64(len(raw)), Heap: gpu.HeapTypeUpload, Usage: gpu.BufferUsageVertex})
	require.NoError(t, err)
	require.NoError(t, vb.Write(0, raw))
	g := Geometry{VertexBuffer: vb, VertexCount: uint32(len(positions) / 3), VertexStride: 12, Opaque: true}

	if indexed {
		ib, err := s.CreateBuffer(gpu.BufferDescriptor{Label: "ib", Size: uint64(len(indices) * 4), Heap: gpu.HeapTypeUpload, Usage: gpu.BufferUsageIndex})
		require.NoError(t, err)
		iraw := make([]byte, len(indices)*4)
		for i, v := range indices {
			binary.LittleEndian.PutUint32(iraw[i*4:], v)
		}
		require.NoError(t, ib.Write(0, iraw))
		g.IndexBuffer, g.IndexCount = ib, uint32(len(indices))
	}
	return g
}

func translated(x, y, z float32) common.Mat4 {
	m := common.IdentityMat4()
	m[12], m[13], m[14] = x, y, z
	return m
}

func buildBLAS(t *testing.T, s gpu.Session, g Geometry) BottomLevelStructure {
	t.Helper()
	blas, err := BuildBottomLevel(s, "quad", g)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))
	blas.ReleaseScratch()
	return blas
}

func TestRefitBeforeBuild(t *testing.T) {
	s := gpu.NewSoftwareSession(gpu.WithWorkers(1))
	defer s.Release()
	tlas := NewTopLevelStructure(s)
	assert.False(t, tlas.Built())
	assert.ErrorIs(t, tlas.Refit(nil), ErrRefitBeforeBuild)
	assert.True(t, tlas.Address().IsNull())
}

func TestRefitWithDifferentCount(t *testing.T) {
	h := newHarness(t)
	blas := buildBLAS(t, h.session, quad(t, h.session, true))
	tlas := NewTopLevelStructure(h.session)
	require.NoError(t, tlas.Build([]Instance{{BLAS: blas, Transform: common.IdentityMat4(), Mask: 0xFF}}))
	err := tlas.Refit(nil)
	assert.ErrorIs(t, err, ErrInstanceCountChanged)
}

func TestEmptyTopLevelAlwaysMisses(t *testing.T) {
	h := newHarness(t)
	tlas := NewTopLevelStructure(h.session)
	require.NoError(t, tlas.Build(nil))
	assert.True(t, tlas.Built())
	assert.Zero(t, tlas.InstanceCount())
	for _, id := range h.trace(t, tlas) {
		assert.Zero(t, id)
	}
	require.NoError(t, tlas.Refit(nil))
}

func TestIndexedAndNonIndexedAgree(t *testing.T) {
	h := newHarness(t)
	indexed := buildBLAS(t, h.session, quad(t, h.session, true))
	flat := buildBLAS(t, h.session, quad(t, h.session, false))
	assert.Equal(t, uint32(2), indexed.PrimitiveCount())
	assert.Equal(t, uint32(2), flat.PrimitiveCount())

	a := NewTopLevelStructure(h.session)
	require.NoError(t, a.Build([]Instance{{BLAS: indexed, Transform: common.IdentityMat4(), InstanceID: 0, Mask: 0xFF}}))
	b := NewTopLevelStructure(h.session)
	require.NoError(t, b.Build([]Instance{{BLAS: flat, Transform: common.IdentityMat4(), InstanceID: 0, Mask: 0xFF}}))

	assert.Equal(t, h.trace(t, a), h.trace(t, b))
}

func scene(blas BottomLevelStructure, offset float32) []Instance {
	return []Instance{
		{BLAS: blas, Transform: translated(-2+offset, 0, 0), InstanceID: 0, Mask: 0xFF},
		{BLAS: blas, Transform: translated(2, offset, 0), InstanceID: 1, Mask: 0xFF},
		{BLAS: blas, Transform: translated(0, 2, -1), InstanceID: 2, Mask: 0xFF},
	}
}

func TestRefitIdempotence(t *testing.T) {
	h := newHarness(t)
	blas := buildBLAS(t, h.session, quad(t, h.session, true))
	tlas := NewTopLevelStructure(h.session)
	require.NoError(t, tlas.Build(scene(blas, 0)))
	before := h.trace(t, tlas)

	require.NoError(t, tlas.Refit(scene(blas, 0)))
	assert.Equal(t, before, h.trace(t, tlas))
	require.NoError(t, tlas.Refit(scene(blas, 0)))
	assert.Equal(t, before, h.trace(t, tlas))

	seen := map[uint32]bool{}
	for _, id := range before {
		seen[id] = true
	}
	assert.True(t, seen[0] && seen[1] && seen[2] && seen[3], "every instance and the background are visible")
}

func TestRebuildMatchesRefit(t *testing.T) {
	h := newHarness(t)
	blas := buildBLAS(t, h.session, quad(t, h.session, true))

	refitted := NewTopLevelStructure(h.session, WithLabel("refitted"))
	require.NoError(t, refitted.Build(scene(blas, 0)))
	require.NoError(t, h.session.Flush(context.Background()))
	require.NoError(t, refitted.Refit(scene(blas, 1.5)))

	rebuilt := NewTopLevelStructure(h.session, WithLabel("rebuilt"))
	require.NoError(t, rebuilt.Build(scene(blas, 1.5)))

	assert.Equal(t, h.trace(t, rebuilt), h.trace(t, refitted))
	assert.NotEqual(t, h.trace(t, unmovedScene(t, h, blas)), h.trace(t, rebuilt), "the move is visible")
}

func unmovedScene(t *testing.T, h *harness, blas BottomLevelStructure) TopLevelStructure {
	t.Helper()
	tlas := NewTopLevelStructure(h.session)
	require.NoError(t, tlas.Build(scene(blas, 0)))
	return tlas
}

func TestBuildRetiresPreviousBuffers(t *testing.T) {
	h := newHarness(t)
	blas := buildBLAS(t, h.session, quad(t, h.session, true))
	tlas := NewTopLevelStructure(h.session)
	require.NoError(t, tlas.Build(scene(blas, 0)))
	require.NoError(t, h.session.Flush(context.Background()))
	inUse := h.session.MemoryInUse()

	require.NoError(t, tlas.Build(scene(blas, 0)[:2]))
	require.NoError(t, h.session.Flush(context.Background()))
	assert.Greater(t, h.session.MemoryInUse(), inUse, "superseded buffers live until Retire")
	tlas.Retire()
	assert.LessOrEqual(t, h.session.MemoryInUse(), inUse)
	assert.Equal(t, 2, tlas.InstanceCount())

	tlas.Release()
	assert.False(t, tlas.Built())
}

func TestTwoBuildsBeforeOneFlush(t *testing.T) {
	h := newHarness(t)
	blas := buildBLAS(t, h.session, quad(t, h.session, true))
	want := h.trace(t, unmovedScene(t, h, blas))

	tlas := NewTopLevelStructure(h.session)
	require.NoError(t, tlas.Build(scene(blas, 0)))
	require.NoError(t, tlas.Build(scene(blas, 0)))
	require.NoError(t, h.session.Flush(context.Background()))
	assert.Equal(t, want, h.trace(t, tlas))

	tlas.Retire()
	assert.Equal(t, want, h.trace(t, tlas))
}
