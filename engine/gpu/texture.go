package gpu

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// SamplerType selects the static sampler compiled into a ray-tracing pipeline.
type SamplerType uint8

const (
	SamplerAnisotropic SamplerType = iota
	SamplerLinear
	SamplerPoint
)

func (s SamplerType) String() string {
	switch s {
	case SamplerLinear:
		return "linear"
	case SamplerPoint:
		return "point"
	default:
		return "anisotropic"
	}
}

// Next cycles to the following sampler type.
func (s SamplerType) Next() SamplerType {
	return (s + 1) % 3
}

// ParseSamplerType maps a name onto a SamplerType.
//
// Parameters:
//   - name: anisotropic, linear or point
//
// Returns:
//   - SamplerType: the parsed sampler
//   - error: an error for unknown names
func ParseSamplerType(name string) (SamplerType, error) {
	switch strings.ToLower(name) {
	case "anisotropic", "":
		return SamplerAnisotropic, nil
	case "linear":
		return SamplerLinear, nil
	case "point", "nearest":
		return SamplerPoint, nil
	}
	return SamplerAnisotropic, fmt.Errorf("unknown sampler type %q", name)
}

// TextureDescriptor describes an RGBA8 2D texture.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
}

// Texture is a read-only RGBA8 image sampled by hit programs.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32

	// Sample filters the texture at normalized coordinates with repeat addressing.
	//
	// Parameters:
	//   - u, v: texture coordinates
	//   - sampler: the filter to apply
	//
	// Returns:
	//   - [4]float32: the filtered RGBA color in [0, 1]
	Sample(u, v float32, sampler SamplerType) [4]float32

	Release()
}

type softwareTexture struct {
	desc     TextureDescriptor
	pixels   []byte
	released atomic.Bool
}

var _ Texture = &softwareTexture{}

func (t *softwareTexture) Label() string  { return t.desc.Label }
func (t *softwareTexture) Width() uint32  { return t.desc.Width }
func (t *softwareTexture) Height() uint32 { return t.desc.Height }

func (t *softwareTexture) Release() {
	t.released.Store(true)
}

func (t *softwareTexture) Sample(u, v float32, sampler SamplerType) [4]float32 {
	if t.released.Load() {
		return [4]float32{}
	}
	w, h := float32(t.desc.Width), float32(t.desc.Height)
	u = wrap(u)
	v = wrap(v)

	if sampler == SamplerPoint {
		return t.texel(int(u*w), int(v*h))
	}

	x := u*w - 0.5
	y := v*h - 0.5
	x0 := int(math.Floor(float64(x)))
	y0 := int(math.Floor(float64(y)))
	fx := x - float32(x0)
	fy := y - float32(y0)

	c00 := t.texel(x0, y0)
	c10 := t.texel(x0+1, y0)
	c01 := t.texel(x0, y0+1)
	c11 := t.texel(x0+1, y0+1)

	var out [4]float32
	for i := range out {
		top := c00[i] + (c10[i]-c00[i])*fx
		bottom := c01[i] + (c11[i]-c01[i])*fx
		out[i] = top + (bottom-top)*fy
	}
	return out
}

func (t *softwareTexture) texel(x, y int) [4]float32 {
	w, h := int(t.desc.Width), int(t.desc.Height)
	x = ((x % w) + w) % w
	y = ((y % h) + h) % h
	o := (y*w + x) * 4
	p := t.pixels[o : o+4]
	return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
}

func wrap(f float32) float32 {
	f -= float32(math.Floor(float64(f)))
	if f >= 1 {
		f = 0
	}
	return f
}
