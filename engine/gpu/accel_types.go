package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-rt/common"
)

// AccelerationStructureType distinguishes bottom-level (triangles) from top-level (instances) structures.
type AccelerationStructureType uint8

const (
	AccelerationStructureBottomLevel AccelerationStructureType = iota
	AccelerationStructureTopLevel
)

func (t AccelerationStructureType) String() string {
	if t == AccelerationStructureTopLevel {
		return "top-level"
	}
	return "bottom-level"
}

// BuildFlags tune acceleration-structure builds.
type BuildFlags uint32

const (
	BuildFlagNone            BuildFlags = 0
	BuildFlagAllowUpdate     BuildFlags = 1 << 0
	BuildFlagPreferFastTrace BuildFlags = 1 << 2
	BuildFlagPerformUpdate   BuildFlags = 1 << 5
)

// Has reports whether every flag in f is set.
func (b BuildFlags) Has(f BuildFlags) bool {
	return b&f == f
}

// IndexFormat is the only index format the session accepts: 32-bit unsigned.
const IndexFormat = "R32_UINT"

// GeometryDesc describes one triangle geometry of a bottom-level structure.
// Positions are the first three float32 of every vertex. A null IndexBuffer or a
// zero IndexCount selects a non-indexed triangle list.
type GeometryDesc struct {
	VertexBuffer DeviceAddress
	VertexCount  uint32
	VertexStride uint64
	IndexBuffer  DeviceAddress
	IndexCount   uint32
	Opaque       bool
}

// Indexed reports whether the geometry reads an index buffer.
func (g GeometryDesc) Indexed() bool {
	return !g.IndexBuffer.IsNull() && g.IndexCount > 0
}

// PrimitiveCount returns the number of triangles the geometry describes.
func (g GeometryDesc) PrimitiveCount() uint32 {
	if g.Indexed() {
		return g.IndexCount / 3
	}
	return g.VertexCount / 3
}

// AccelerationStructureInputs describe what a build consumes.
type AccelerationStructureInputs struct {
	Type  AccelerationStructureType
	Flags BuildFlags

	// Geometries is read for bottom-level builds.
	Geometries []GeometryDesc

	// InstanceDescs and NumInstances are read for top-level builds.
	InstanceDescs DeviceAddress
	NumInstances  uint32
}

// PrebuildInfo reports the buffer sizes a build needs.
type PrebuildInfo struct {
	ResultDataMaxSize     uint64
	ScratchDataSize       uint64
	UpdateScratchDataSize uint64
}

// BuildAccelerationStructureDesc is one recorded build or update.
type BuildAccelerationStructureDesc struct {
	Inputs      AccelerationStructureInputs
	Destination DeviceAddress
	// Source is the previous result for updates; it may equal Destination.
	Source  DeviceAddress
	Scratch DeviceAddress
}

// InstanceDescSize is the byte size of one encoded instance descriptor.
const InstanceDescSize = 64

// InstanceFlags alter how an instance is traversed.
type InstanceFlags uint8

const (
	InstanceFlagNone                InstanceFlags = 0
	InstanceFlagTriangleCullDisable InstanceFlags = 1 << 0
	InstanceFlagTriangleFrontCCW    InstanceFlags = 1 << 1
	InstanceFlagForceOpaque         InstanceFlags = 1 << 2
)

const instanceFieldMask = 0x00FFFFFF

// InstanceDesc is one top-level instance as the device reads it.
type InstanceDesc struct {
	Transform             common.Mat3x4 // offset  0: row-major object-to-world
	InstanceID            uint32        // offset 48: low 24 bits
	InstanceMask          uint8         // offset 51
	HitGroupIndex         uint32        // offset 52: low 24 bits
	Flags                 InstanceFlags // offset 55
	AccelerationStructure DeviceAddress // offset 56: bottom-level result
}

// Marshal serializes the descriptor into its 64-byte device layout.
//
// Returns:
//   - []byte: 64-byte buffer ready for upload
func (d *InstanceDesc) Marshal() []byte {
	buf := make([]byte, InstanceDescSize)
	for i, f := range d.Transform {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[48:52], d.InstanceID&instanceFieldMask|uint32(d.InstanceMask)<<24)
	binary.LittleEndian.PutUint32(buf[52:56], d.HitGroupIndex&instanceFieldMask|uint32(d.Flags)<<24)
	binary.LittleEndian.PutUint64(buf[56:64], d.AccelerationStructure.Encode())
	return buf
}

// UnmarshalInstanceDesc decodes one 64-byte instance descriptor.
//
// Parameters:
//   - buf: at least 64 bytes
//
// Returns:
//   - InstanceDesc: the decoded descriptor
//   - error: an error if buf is too short
func UnmarshalInstanceDesc(buf []byte) (InstanceDesc, error) {
	if len(buf) < InstanceDescSize {
		return InstanceDesc{}, fmt.Errorf("instance descriptor needs %d bytes, got %d", InstanceDescSize, len(buf))
	}
	var d InstanceDesc
	for i := range d.Transform {
		d.Transform[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	idMask := binary.LittleEndian.Uint32(buf[48:52])
	d.InstanceID = idMask & instanceFieldMask
	d.InstanceMask = uint8(idMask >> 24)
	hitFlags := binary.LittleEndian.Uint32(buf[52:56])
	d.HitGroupIndex = hitFlags & instanceFieldMask
	d.Flags = InstanceFlags(hitFlags >> 24)
	d.AccelerationStructure = DecodeAddress(binary.LittleEndian.Uint64(buf[56:64]))
	return d, nil
}
