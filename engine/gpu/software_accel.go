package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/accel/bvh"
)

const (
	accelHeaderSize     = 64
	accelNodeSize       = 32
	accelTriangleSize   = 48
	accelScratchPerPrim = 24
	accelRefitPerPrim   = 8
)

var accelMagic = [4]byte{'O', 'X', 'A', 'S'}

// prebuildSizes reports result and scratch requirements. Sizes only depend on the
// primitive or instance counts, never on addresses.
func prebuildSizes(inputs AccelerationStructureInputs) (PrebuildInfo, error) {
	var prims uint64
	var leafSize uint64
	switch inputs.Type {
	case AccelerationStructureBottomLevel:
		for i, g := range inputs.Geometries {
			if err := validateGeometry(g); err != nil {
				return PrebuildInfo{}, fmt.Errorf("geometry %d: %w", i, err)
			}
			prims += uint64(g.PrimitiveCount())
		}
		leafSize = accelTriangleSize
	case AccelerationStructureTopLevel:
		prims = uint64(inputs.NumInstances)
		leafSize = InstanceDescSize
	default:
		return PrebuildInfo{}, fmt.Errorf("unknown acceleration structure type %d", inputs.Type)
	}

	info := PrebuildInfo{
		ResultDataMaxSize: common.AlignUp(accelHeaderSize+2*prims*accelNodeSize+prims*leafSize, BufferAlignment),
		ScratchDataSize:   common.AlignUp(prims*accelScratchPerPrim+accelHeaderSize, BufferAlignment),
	}
	if inputs.Flags.Has(BuildFlagAllowUpdate) {
		info.UpdateScratchDataSize = common.AlignUp(prims*accelRefitPerPrim+accelHeaderSize, BufferAlignment)
	}
	return info, nil
}

func validateGeometry(g GeometryDesc) error {
	if g.Indexed() {
		if g.IndexCount%3 != 0 {
			return fmt.Errorf("index count %d is not a multiple of 3", g.IndexCount)
		}
	} else if g.VertexCount%3 != 0 {
		return fmt.Errorf("non-indexed vertex count %d is not a multiple of 3", g.VertexCount)
	}
	if g.VertexCount > 0 && g.VertexStride < 12 {
		return fmt.Errorf("vertex stride %d is smaller than a float3 position", g.VertexStride)
	}
	return nil
}

type bottomLevel struct {
	triangles   []bvh.Triangle
	opaque      []bool
	tree        *bvh.Tree
	allowUpdate bool
}

type topLevelInstance struct {
	desc          InstanceDesc
	blas          *bottomLevel
	worldToObject common.Mat3x4
}

type topLevel struct {
	instances   []topLevelInstance
	tree        *bvh.Tree
	allowUpdate bool
}

// structureStore maps result addresses onto built structures.
type structureStore struct {
	mu         sync.RWMutex
	structures map[uint64]any
}

func newStructureStore() *structureStore {
	return &structureStore{structures: make(map[uint64]any)}
}

func (s *structureStore) put(addr DeviceAddress, v any) {
	s.mu.Lock()
	s.structures[addr.value] = v
	s.mu.Unlock()
}

func (s *structureStore) get(addr DeviceAddress) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.structures[addr.value]
	return v, ok
}

// forget drops every structure stored inside a released buffer.
func (s *structureStore) forget(base, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr := range s.structures {
		if addr >= base && addr < base+size {
			delete(s.structures, addr)
		}
	}
}

// span resolves an absolute range to its backing bytes and checks the buffer usage.
func (s *softwareSession) span(addr DeviceAddress, size uint64, usage BufferUsage) ([]byte, error) {
	buf, offset, err := s.memory.resolve(addr)
	if err != nil {
		return nil, err
	}
	if usage != BufferUsageNone && !buf.desc.Usage.Has(usage) {
		return nil, fmt.Errorf("buffer %q lacks usage %#x", buf.desc.Label, uint32(usage))
	}
	return buf.span(offset, size)
}

func (s *softwareSession) buildAccelerationStructure(desc BuildAccelerationStructureDesc) error {
	info, err := prebuildSizes(desc.Inputs)
	if err != nil {
		return err
	}
	result, err := s.span(desc.Destination, info.ResultDataMaxSize, BufferUsageAccelerationStructure)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	update := desc.Inputs.Flags.Has(BuildFlagPerformUpdate)
	scratchSize := info.ScratchDataSize
	if update {
		scratchSize = info.UpdateScratchDataSize
	}
	if scratchSize > 0 {
		if _, err := s.span(desc.Scratch, scratchSize, BufferUsageUnorderedAccess); err != nil {
			return fmt.Errorf("scratch: %w", err)
		}
	}

	var built any
	var count uint32
	if desc.Inputs.Type == AccelerationStructureBottomLevel {
		var blas *bottomLevel
		blas, err = s.buildBottomLevel(desc, update)
		built = blas
		if blas != nil {
			count = uint32(len(blas.triangles))
		}
	} else {
		var tlas *topLevel
		tlas, err = s.buildTopLevel(desc, update)
		built = tlas
		count = desc.Inputs.NumInstances
	}
	if err != nil {
		return err
	}

	copy(result[0:4], accelMagic[:])
	result[4] = byte(desc.Inputs.Type)
	binary.LittleEndian.PutUint32(result[8:12], count)
	binary.LittleEndian.PutUint32(result[12:16], uint32(desc.Inputs.Flags))
	s.structures.put(desc.Destination, built)
	return nil
}

func (s *softwareSession) readPosition(data []byte, offset uint64) common.Vec3 {
	return common.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(data[offset:])),
		math.Float32frombits(binary.LittleEndian.Uint32(data[offset+4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(data[offset+8:])),
	}
}

func (s *softwareSession) gatherTriangles(geometries []GeometryDesc) ([]bvh.Triangle, []bool, error) {
	var tris []bvh.Triangle
	opaque := make([]bool, len(geometries))
	for gi, g := range geometries {
		opaque[gi] = g.Opaque
		if g.VertexCount == 0 {
			continue
		}
		vbSize := uint64(g.VertexCount-1)*g.VertexStride + 12
		vb, err := s.span(g.VertexBuffer, vbSize, BufferUsageNone)
		if err != nil {
			return nil, nil, fmt.Errorf("geometry %d vertices: %w", gi, err)
		}
		var ib []byte
		if g.Indexed() {
			if ib, err = s.span(g.IndexBuffer, uint64(g.IndexCount)*4, BufferUsageNone); err != nil {
				return nil, nil, fmt.Errorf("geometry %d indices: %w", gi, err)
			}
		}
		vertex := func(i uint32) (common.Vec3, error) {
			if ib != nil {
				idx := binary.LittleEndian.Uint32(ib[i*4:])
				if idx >= g.VertexCount {
					return common.Vec3{}, fmt.Errorf("geometry %d: index %d out of range of %d vertices", gi, idx, g.VertexCount)
				}
				i = idx
			}
			return s.readPosition(vb, uint64(i)*g.VertexStride), nil
		}
		for p := uint32(0); p < g.PrimitiveCount(); p++ {
			var v [3]common.Vec3
			for k := range v {
				if v[k], err = vertex(p*3 + uint32(k)); err != nil {
					return nil, nil, err
				}
			}
			tris = append(tris, bvh.Triangle{V0: v[0], V1: v[1], V2: v[2], Geometry: uint32(gi), Primitive: p})
		}
	}
	return tris, opaque, nil
}

func triangleBounds(tris []bvh.Triangle) []bvh.AABB {
	out := make([]bvh.AABB, len(tris))
	for i, t := range tris {
		out[i] = t.Bounds()
	}
	return out
}

func (s *softwareSession) buildBottomLevel(desc BuildAccelerationStructureDesc, update bool) (*bottomLevel, error) {
	tris, opaque, err := s.gatherTriangles(desc.Inputs.Geometries)
	if err != nil {
		return nil, err
	}

	if update {
		prev, err := s.updateSource(desc)
		if err != nil {
			return nil, err
		}
		src, ok := prev.(*bottomLevel)
		if !ok {
			return nil, fmt.Errorf("update source %s is not a bottom-level structure", desc.Source)
		}
		if len(src.triangles) != len(tris) {
			return nil, fmt.Errorf("update changes triangle count from %d to %d", len(src.triangles), len(tris))
		}
		tree := &bvh.Tree{Nodes: append([]bvh.Node(nil), src.tree.Nodes...), Indices: src.tree.Indices}
		if err := tree.Refit(triangleBounds(tris)); err != nil {
			return nil, err
		}
		return &bottomLevel{triangles: tris, opaque: opaque, tree: tree, allowUpdate: true}, nil
	}

	return &bottomLevel{
		triangles:   tris,
		opaque:      opaque,
		tree:        bvh.Build(triangleBounds(tris), bvh.DefaultMaxLeafSize),
		allowUpdate: desc.Inputs.Flags.Has(BuildFlagAllowUpdate),
	}, nil
}

func (s *softwareSession) updateSource(desc BuildAccelerationStructureDesc) (any, error) {
	src := desc.Source
	if src.IsNull() {
		src = desc.Destination
	}
	prev, ok := s.structures.get(src)
	if !ok {
		return nil, fmt.Errorf("update source %s was never built", src)
	}
	var allow bool
	switch p := prev.(type) {
	case *bottomLevel:
		allow = p.allowUpdate
	case *topLevel:
		allow = p.allowUpdate
	}
	if !allow {
		return nil, fmt.Errorf("update source %s was not built with BuildFlagAllowUpdate", src)
	}
	return prev, nil
}

func (s *softwareSession) buildTopLevel(desc BuildAccelerationStructureDesc, update bool) (*topLevel, error) {
	n := desc.Inputs.NumInstances
	tlas := &topLevel{instances: make([]topLevelInstance, n)}

	if n > 0 {
		raw, err := s.span(desc.Inputs.InstanceDescs, uint64(n)*InstanceDescSize, BufferUsageNone)
		if err != nil {
			return nil, fmt.Errorf("instance descriptors: %w", err)
		}
		for i := range tlas.instances {
			d, err := UnmarshalInstanceDesc(raw[i*InstanceDescSize:])
			if err != nil {
				return nil, err
			}
			v, ok := s.structures.get(d.AccelerationStructure)
			blas, isBottom := v.(*bottomLevel)
			if !ok || !isBottom {
				return nil, fmt.Errorf("instance %d references %s, which holds no bottom-level structure", i, d.AccelerationStructure)
			}
			inv, ok := common.InvertAffine3x4(d.Transform)
			if !ok {
				return nil, fmt.Errorf("instance %d has a singular transform", i)
			}
			tlas.instances[i] = topLevelInstance{desc: d, blas: blas, worldToObject: inv}
		}
	}

	bounds := make([]bvh.AABB, n)
	for i, inst := range tlas.instances {
		bounds[i] = inst.blas.tree.Bounds().Transform(inst.desc.Transform)
	}

	if update {
		prev, err := s.updateSource(desc)
		if err != nil {
			return nil, err
		}
		src, ok := prev.(*topLevel)
		if !ok {
			return nil, fmt.Errorf("update source %s is not a top-level structure", desc.Source)
		}
		if len(src.instances) != int(n) {
			return nil, fmt.Errorf("update changes instance count from %d to %d", len(src.instances), n)
		}
		tlas.tree = &bvh.Tree{Nodes: append([]bvh.Node(nil), src.tree.Nodes...), Indices: src.tree.Indices}
		if err := tlas.tree.Refit(bounds); err != nil {
			return nil, err
		}
		tlas.allowUpdate = true
		return tlas, nil
	}

	tlas.tree = bvh.Build(bounds, 1)
	tlas.allowUpdate = desc.Inputs.Flags.Has(BuildFlagAllowUpdate)
	return tlas, nil
}
