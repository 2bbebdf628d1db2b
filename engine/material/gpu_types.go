package material

import (
	"encoding/binary"
	"fmt"
	"math"
)

// GPUMaterialSize is the byte size of a material buffer.
const GPUMaterialSize = 64

// GPUMaterial is the per-object material buffer a hit record points at.
// Size: 64 bytes.
type GPUMaterial struct {
	Reflection        uint32     // offset  0: 1 = trace reflection rays
	Shininess         float32    // offset  4: Phong exponent
	MaxRecursionDepth int32      // offset  8: reflection bounce limit
	TriOutline        uint32     // offset 12: 1 = draw triangle edges
	TriThickness      float32    // offset 16: edge width in barycentric units
	TriColour         [3]float32 // offset 20: edge color
	ObjectColour      [4]float32 // offset 32: base color
	Roughness         float32    // offset 48: blend of reflection toward diffuse
	Texture           uint32     // offset 52: 1 = sample the bound texture
	_pad              [2]uint32  // offset 56: padding to 64 bytes
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPUMaterial) Size() int {
	return GPUMaterialSize
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for upload.
//
// Returns:
//   - []byte: 64-byte buffer
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, GPUMaterialSize)
	binary.LittleEndian.PutUint32(buf[0:4], g.Reflection)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Shininess))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(g.MaxRecursionDepth))
	binary.LittleEndian.PutUint32(buf[12:16], g.TriOutline)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.TriThickness))
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[20+i*4:], math.Float32bits(g.TriColour[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.ObjectColour[i]))
	}
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Roughness))
	binary.LittleEndian.PutUint32(buf[52:56], g.Texture)
	return buf
}

// UnmarshalGPUMaterial decodes a material buffer.
//
// Parameters:
//   - buf: at least 64 bytes
//
// Returns:
//   - GPUMaterial: the decoded block
//   - error: an error when buf is too short
func UnmarshalGPUMaterial(buf []byte) (GPUMaterial, error) {
	var g GPUMaterial
	if len(buf) < GPUMaterialSize {
		return g, fmt.Errorf("material block needs %d bytes, got %d", GPUMaterialSize, len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	g.Reflection = binary.LittleEndian.Uint32(buf[0:])
	g.Shininess = f(4)
	g.MaxRecursionDepth = int32(binary.LittleEndian.Uint32(buf[8:]))
	g.TriOutline = binary.LittleEndian.Uint32(buf[12:])
	g.TriThickness = f(16)
	for i := range 3 {
		g.TriColour[i] = f(20 + i*4)
	}
	for i := range 4 {
		g.ObjectColour[i] = f(32 + i*4)
	}
	g.Roughness = f(48)
	g.Texture = binary.LittleEndian.Uint32(buf[52:])
	return g, nil
}
