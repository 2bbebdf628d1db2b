package gpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/common"
)

// deviceFault aborts the running program. It is recovered at the invocation boundary.
type deviceFault struct {
	err error
}

func faultf(format string, args ...any) {
	panic(deviceFault{err: fmt.Errorf(format, args...)})
}

// dispatchState is shared by every invocation of one DispatchRays command.
type dispatchState struct {
	session   *softwareSession
	pipeline  *softwarePipeline
	desc      DispatchRaysDesc
	missTable []byte
	hitTable  []byte

	failed atomic.Bool
	once   sync.Once
	err    error
}

func (st *dispatchState) fail(err error) {
	st.once.Do(func() {
		st.err = err
		st.failed.Store(true)
	})
}

// invoke runs one program body and converts faults and panics into the dispatch error.
func (st *dispatchState) invoke(index [3]uint32, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(deviceFault); ok {
				st.fail(fmt.Errorf("invocation %v: %w", index, f.err))
				return
			}
			st.fail(fmt.Errorf("invocation %v: shader panic: %v", index, r))
		}
	}()
	fn()
}

// record decodes the shader record at index inside a table.
func (st *dispatchState) record(table []byte, index, stride uint64, want programKind) (*program, []byte, error) {
	off := index * stride
	if off+ShaderIdentifierSize > uint64(len(table)) {
		return nil, nil, fmt.Errorf("%s record %d lies outside a %d-byte table", want, index, len(table))
	}
	prog, ok := st.session.programs.lookup(table[off : off+ShaderIdentifierSize])
	if !ok {
		return nil, nil, fmt.Errorf("%s record %d holds an unknown shader identifier", want, index)
	}
	if prog.pipeline != st.pipeline {
		return nil, nil, fmt.Errorf("%s record %d belongs to pipeline %q, bound pipeline is %q", want, index, prog.pipeline.label, st.pipeline.label)
	}
	if prog.kind != want {
		return nil, nil, fmt.Errorf("record %d holds %s program %q where a %s program was expected", index, prog.kind, prog.name, want)
	}
	argSize := prog.signature.Size()
	if stride > 0 && ShaderIdentifierSize+argSize > stride {
		return nil, nil, fmt.Errorf("%s record %d: %d bytes of root arguments overflow stride %d", want, index, argSize, stride)
	}
	end := off + ShaderIdentifierSize + argSize
	if end > uint64(len(table)) {
		return nil, nil, fmt.Errorf("%s record %d: root arguments run past the table", want, index)
	}
	return prog, table[off+ShaderIdentifierSize : end], nil
}

func (s *softwareSession) tableSpan(start DeviceAddress, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return s.span(start, size, BufferUsageNone)
}

func (s *softwareSession) dispatchRays(p *softwarePipeline, desc DispatchRaysDesc) error {
	if p.released.Load() {
		return fmt.Errorf("pipeline %q: %w", p.label, ErrReleased)
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Depth == 0 {
		return nil
	}

	st := &dispatchState{session: s, pipeline: p, desc: desc}
	rg, err := s.tableSpan(desc.RayGenerationShaderRecord.StartAddress, desc.RayGenerationShaderRecord.SizeInBytes)
	if err != nil {
		return fmt.Errorf("ray generation record: %w", err)
	}
	raygen, args, err := st.record(rg, 0, 0, programRayGeneration)
	if err != nil {
		return err
	}
	if st.missTable, err = s.tableSpan(desc.MissShaderTable.StartAddress, desc.MissShaderTable.SizeInBytes); err != nil {
		return fmt.Errorf("miss table: %w", err)
	}
	if st.hitTable, err = s.tableSpan(desc.HitGroupTable.StartAddress, desc.HitGroupTable.SizeInBytes); err != nil {
		return fmt.Errorf("hit group table: %w", err)
	}

	var wg sync.WaitGroup
	taskID := 0
	for z := uint32(0); z < desc.Depth; z++ {
		for y := uint32(0); y < desc.Height; y++ {
			wg.Add(1)
			s.pool.SubmitTask(worker.Task{
				ID: taskID,
				Do: func() (any, error) {
					defer wg.Done()
					for x := uint32(0); x < desc.Width; x++ {
						if st.failed.Load() {
							return nil, nil
						}
						index := [3]uint32{x, y, z}
						dc := &dispatchContext{state: st, index: index, args: args}
						st.invoke(index, func() { raygen.rayGeneration(dc) })
					}
					return nil, nil
				},
			})
			taskID++
		}
	}
	wg.Wait()
	return st.err
}

type dispatchContext struct {
	state *dispatchState
	index [3]uint32
	depth uint32
	args  []byte
}

var _ DispatchContext = &dispatchContext{}

func (dc *dispatchContext) DispatchRaysIndex() [3]uint32 {
	return dc.index
}

func (dc *dispatchContext) DispatchRaysDimensions() [3]uint32 {
	d := dc.state.desc
	return [3]uint32{d.Width, d.Height, d.Depth}
}

func (dc *dispatchContext) RecursionDepth() uint32 {
	return dc.depth
}

func (dc *dispatchContext) RootArgument(i int) DeviceAddress {
	if i < 0 || (i+1)*RootArgumentSize > len(dc.args) {
		faultf("root argument %d outside a record with %d arguments", i, len(dc.args)/RootArgumentSize)
	}
	return DecodeAddress(binary.LittleEndian.Uint64(dc.args[i*RootArgumentSize:]))
}

func (dc *dispatchContext) Load(addr DeviceAddress, size uint64) []byte {
	data, err := dc.state.session.span(addr, size, BufferUsageNone)
	if err != nil {
		faultf("load: %w", err)
	}
	return data
}

func (dc *dispatchContext) Store(addr DeviceAddress, data []byte) {
	dst, err := dc.state.session.span(addr, uint64(len(data)), BufferUsageNone)
	if err != nil {
		faultf("store: %w", err)
	}
	copy(dst, data)
}

func (dc *dispatchContext) Descriptor(addr DeviceAddress) Descriptor {
	heap := dc.state.session.heap
	slot, err := heap.SlotOf(addr)
	if err != nil {
		faultf("descriptor: %w", err)
	}
	d, err := heap.Descriptor(slot)
	if err != nil {
		faultf("descriptor: %w", err)
	}
	return d
}

func (dc *dispatchContext) SampleTexture(t Texture, u, v float32) [4]float32 {
	if t == nil {
		faultf("sample of a nil texture")
	}
	return t.Sample(u, v, dc.state.pipeline.sampler)
}

func (dc *dispatchContext) child(args []byte) *dispatchContext {
	return &dispatchContext{state: dc.state, index: dc.index, depth: dc.depth + 1, args: args}
}

// topLevel resolves a TraceRay structure operand, either an absolute result address
// or a heap pointer to an acceleration-structure descriptor.
func (dc *dispatchContext) topLevel(addr DeviceAddress) *topLevel {
	if addr.Space() == AddressSpaceHeap {
		d := dc.Descriptor(addr)
		if d.Kind != DescriptorAccelerationStructure {
			faultf("TraceRay: descriptor at %s is a %s descriptor", addr, d.Kind)
		}
		addr = d.Address
	}
	if _, _, err := dc.state.session.memory.resolve(addr); err != nil {
		faultf("TraceRay: %w", err)
	}
	v, _ := dc.state.session.structures.get(addr)
	tlas, ok := v.(*topLevel)
	if !ok {
		faultf("TraceRay: %s holds no top-level structure", addr)
	}
	return tlas
}

func (dc *dispatchContext) hitRecord(desc TraceRayDesc, inst *topLevelInstance, geometry uint32) (*program, []byte) {
	st := dc.state
	index := uint64(inst.desc.HitGroupIndex) + uint64(desc.RayContribution) + uint64(desc.GeometryMultiplier)*uint64(geometry)
	prog, args, err := st.record(st.hitTable, index, st.desc.HitGroupTable.StrideInBytes, programHitGroup)
	if err != nil {
		faultf("TraceRay: %w", err)
	}
	return prog, args
}

func (dc *dispatchContext) TraceRay(desc TraceRayDesc, payload any) {
	st := dc.state
	if dc.depth >= st.pipeline.maxDepth {
		faultf("TraceRay at depth %d exceeds max recursion depth %d", dc.depth+1, st.pipeline.maxDepth)
	}
	tlas := dc.topLevel(desc.AccelerationStructure)
	ray := desc.Ray

	var best Hit
	var bestInstance *topLevelInstance
	tBest := ray.TMax
	done := false

	tlas.tree.Traverse(ray.Origin, ray.Direction, ray.TMin, ray.TMax, func(ii uint32, _ float32) (float32, bool) {
		inst := &tlas.instances[ii]
		if inst.desc.InstanceMask&desc.InstanceMask == 0 {
			return tBest, false
		}
		o := common.TransformPoint(inst.worldToObject, ray.Origin)
		d := common.TransformDirection(inst.worldToObject, ray.Direction)

		inst.blas.tree.Traverse(o, d, ray.TMin, tBest, func(pi uint32, _ float32) (float32, bool) {
			tri := inst.blas.triangles[pi]
			h, ok := tri.Intersect(o, d, ray.TMin, tBest, false)
			if !ok {
				return tBest, false
			}
			front := h.FrontFace
			if inst.desc.Flags&InstanceFlagTriangleFrontCCW == 0 {
				front = !front
			}
			if desc.Flags.Has(RayFlagCullBackFacingTriangles) && inst.desc.Flags&InstanceFlagTriangleCullDisable == 0 && !front {
				return tBest, false
			}

			hit := Hit{
				T:              h.T,
				Barycentrics:   [2]float32{h.U, h.V},
				PrimitiveIndex: tri.Primitive,
				GeometryIndex:  tri.Geometry,
				InstanceIndex:  ii,
				InstanceID:     inst.desc.InstanceID,
				FrontFace:      front,
				ObjectToWorld:  inst.desc.Transform,
				WorldToObject:  inst.worldToObject,
			}
			opaque := desc.Flags.Has(RayFlagForceOpaque) || inst.desc.Flags&InstanceFlagForceOpaque != 0 || inst.blas.opaque[tri.Geometry]
			if !opaque {
				prog, args := dc.hitRecord(desc, inst, tri.Geometry)
				if prog.anyHit != nil && !prog.anyHit(dc.child(args), ray, hit, payload) {
					return tBest, false
				}
			}

			best, bestInstance, tBest = hit, inst, h.T
			if desc.Flags.Has(RayFlagAcceptFirstHitAndEndSearch) {
				done = true
				return tBest, true
			}
			return tBest, false
		})
		return tBest, done
	})

	if bestInstance == nil {
		prog, args, err := st.record(st.missTable, uint64(desc.MissIndex), st.desc.MissShaderTable.StrideInBytes, programMiss)
		if err != nil {
			faultf("TraceRay: %w", err)
		}
		prog.miss(dc.child(args), ray, payload)
		return
	}
	if desc.Flags.Has(RayFlagSkipClosestHitShader) {
		return
	}
	prog, args := dc.hitRecord(desc, bestInstance, best.GeometryIndex)
	if prog.closestHit != nil {
		prog.closestHit(dc.child(args), ray, best, payload)
	}
}
