package model

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VertexStride is the byte size of one vertex in a vertex buffer.
const VertexStride = 36

// IndexSize is the byte size of one index in an index buffer.
const IndexSize = 4

// GPUVertex is one mesh vertex as bottom-level builds and hit programs read it.
// Size: 36 bytes, tightly packed.
type GPUVertex struct {
	Position [3]float32 // offset  0: model-space position
	Normal   [4]float32 // offset 12: model-space normal, w unused
	TexCoord [2]float32 // offset 28: texture coordinate
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (36)
func (g *GPUVertex) Size() int {
	return VertexStride
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for upload.
//
// Returns:
//   - []byte: 36-byte buffer
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, VertexStride)
	g.put(buf)
	return buf
}

func (g *GPUVertex) put(buf []byte) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[12+i*4:], math.Float32bits(g.Normal[i]))
	}
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.TexCoord[0]))
	binary.LittleEndian.PutUint32(buf[32:], math.Float32bits(g.TexCoord[1]))
}

// UnmarshalGPUVertex decodes one vertex.
//
// Parameters:
//   - buf: at least 36 bytes
//
// Returns:
//   - GPUVertex: the decoded vertex
//   - error: an error when buf is too short
func UnmarshalGPUVertex(buf []byte) (GPUVertex, error) {
	var g GPUVertex
	if len(buf) < VertexStride {
		return g, fmt.Errorf("vertex needs %d bytes, got %d", VertexStride, len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	for i := range 3 {
		g.Position[i] = f(i * 4)
	}
	for i := range 4 {
		g.Normal[i] = f(12 + i*4)
	}
	g.TexCoord = [2]float32{f(28), f(32)}
	return g, nil
}

// MarshalVertices packs vertices back to back.
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i := range vertices {
		vertices[i].put(buf[i*VertexStride:])
	}
	return buf
}

// MarshalIndices packs 32-bit indices back to back.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*IndexSize)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*IndexSize:], idx)
	}
	return buf
}
