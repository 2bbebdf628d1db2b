package light

import (
	"encoding/binary"
	"fmt"
	"math"
)

// GPULightSize is the byte size of the lighting buffer.
const GPULightSize = 96

// GPULight is the lighting buffer every hit record points at.
// Size: 96 bytes.
type GPULight struct {
	Position        [4]float32 // offset  0: world-space position, w = soft shadow radius
	Ambient         [4]float32 // offset 16: ambient color
	Diffuse         [4]float32 // offset 32: diffuse color
	Specular        [4]float32 // offset 48: specular color
	SpecularPower   float32    // offset 64: specular intensity multiplier
	PointLightRange float32    // offset 68: attenuation cutoff distance
	Shadows         uint32     // offset 72: 1 = trace shadow rays
	ShadowRayCount  uint32     // offset 76: soft shadow samples per hit
	_pad            [4]uint32  // offset 80: padding to 96 bytes
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPULight) Size() int {
	return GPULightSize
}

// Marshal serializes the GPULight struct into a byte buffer suitable for upload.
//
// Returns:
//   - []byte: 96-byte buffer
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Ambient[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.Diffuse[i]))
		binary.LittleEndian.PutUint32(buf[48+i*4:], math.Float32bits(g.Specular[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(g.SpecularPower))
	binary.LittleEndian.PutUint32(buf[68:], math.Float32bits(g.PointLightRange))
	binary.LittleEndian.PutUint32(buf[72:], g.Shadows)
	binary.LittleEndian.PutUint32(buf[76:], g.ShadowRayCount)
	return buf
}

// UnmarshalGPULight decodes a lighting buffer.
//
// Parameters:
//   - buf: at least 96 bytes
//
// Returns:
//   - GPULight: the decoded block
//   - error: an error when buf is too short
func UnmarshalGPULight(buf []byte) (GPULight, error) {
	var g GPULight
	if len(buf) < GPULightSize {
		return g, fmt.Errorf("light block needs %d bytes, got %d", GPULightSize, len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	for i := range 4 {
		g.Position[i] = f(i * 4)
		g.Ambient[i] = f(16 + i*4)
		g.Diffuse[i] = f(32 + i*4)
		g.Specular[i] = f(48 + i*4)
	}
	g.SpecularPower = f(64)
	g.PointLightRange = f(68)
	g.Shadows = binary.LittleEndian.Uint32(buf[72:])
	g.ShadowRayCount = binary.LittleEndian.Uint32(buf[76:])
	return g, nil
}
