package camera

import (
	"encoding/binary"
	"fmt"
	"math"
)

// GPUCameraSize is the byte size of the camera constant buffer.
const GPUCameraSize = 160

// GPUCamera is the constant buffer the ray-generation program reads from heap slot 2.
// Size: 160 bytes.
type GPUCamera struct {
	InvView        [16]float32 // offset   0: inverse view matrix, column-major
	InvProj        [16]float32 // offset  64: inverse projection matrix, column-major
	RX             float32     // offset 128: horizontal resolution
	RY             float32     // offset 132: vertical resolution
	_pad0          [2]float32  // offset 136
	BackgroundMode float32     // offset 144: 0 = sky gradient, 1 = solid
	_pad1          [3]float32  // offset 148: padding to 160 bytes
}

// Size returns the size of the GPUCamera struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (g *GPUCamera) Size() int {
	return GPUCameraSize
}

// Marshal serializes the GPUCamera struct into a byte buffer suitable for upload.
//
// Returns:
//   - []byte: 160-byte buffer
func (g *GPUCamera) Marshal() []byte {
	buf := make([]byte, GPUCameraSize)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.InvView[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.InvProj[i]))
	}
	binary.LittleEndian.PutUint32(buf[128:], math.Float32bits(g.RX))
	binary.LittleEndian.PutUint32(buf[132:], math.Float32bits(g.RY))
	binary.LittleEndian.PutUint32(buf[144:], math.Float32bits(g.BackgroundMode))
	return buf
}

// UnmarshalGPUCamera decodes a camera constant buffer.
//
// Parameters:
//   - buf: at least 160 bytes
//
// Returns:
//   - GPUCamera: the decoded block
//   - error: an error when buf is too short
func UnmarshalGPUCamera(buf []byte) (GPUCamera, error) {
	var g GPUCamera
	if len(buf) < GPUCameraSize {
		return g, fmt.Errorf("camera block needs %d bytes, got %d", GPUCameraSize, len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	for i := range 16 {
		g.InvView[i] = f(i * 4)
		g.InvProj[i] = f(64 + i*4)
	}
	g.RX = f(128)
	g.RY = f(132)
	g.BackgroundMode = f(144)
	return g, nil
}
