package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPULightLayout(t *testing.T) {
	l := NewLight(WithPosition(1, 2, 3), WithSpecularPower(16), WithRange(50), WithSoftShadows(4, 0.5))
	g := l.GPU()
	buf := g.Marshal()
	require.Len(t, buf, GPULightSize)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(1), f(0))
	assert.Equal(t, float32(3), f(8))
	assert.Equal(t, float32(0.5), f(12))
	assert.Equal(t, float32(16), f(64))
	assert.Equal(t, float32(50), f(68))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[72:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[76:]))
	assert.Equal(t, make([]byte, 16), buf[80:])

	back, err := UnmarshalGPULight(buf)
	require.NoError(t, err)
	assert.Equal(t, g.Diffuse, back.Diffuse)
	assert.Equal(t, g.ShadowRayCount, back.ShadowRayCount)
}

func TestLightDirtyTracking(t *testing.T) {
	l := NewLight()
	assert.True(t, l.Dirty())
	_ = l.GPU()
	assert.False(t, l.Dirty())

	l.ToggleShadows()
	assert.True(t, l.Dirty())
	assert.Equal(t, uint32(0), l.GPU().Shadows)
}

func TestShadowRayCountClamped(t *testing.T) {
	l := NewLight(WithSoftShadows(0, 0))
	assert.Equal(t, uint32(1), l.ShadowRayCount())
	l.SetShadowRayCount(1 << 20)
	assert.Equal(t, uint32(MaxShadowRayCount), l.ShadowRayCount())
}
