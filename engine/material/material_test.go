package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUMaterialLayout(t *testing.T) {
	m := NewMaterial(
		WithBaseColor([4]float32{0.1, 0.2, 0.3, 1}),
		WithReflection(3),
		WithShininess(8),
		WithRoughness(0.25),
		WithOutline(0.05, [3]float32{1, 0, 0}),
		WithTextured(true),
	)
	g := m.GPU()
	buf := g.Marshal()
	require.Len(t, buf, GPUMaterialSize)

	u := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }
	f := func(off int) float32 { return math.Float32frombits(u(off)) }
	assert.Equal(t, uint32(1), u(0))
	assert.Equal(t, float32(8), f(4))
	assert.Equal(t, uint32(3), u(8))
	assert.Equal(t, uint32(1), u(12))
	assert.Equal(t, float32(0.05), f(16))
	assert.Equal(t, float32(1), f(20))
	assert.Equal(t, float32(0.1), f(32))
	assert.Equal(t, float32(1), f(44))
	assert.Equal(t, float32(0.25), f(48))
	assert.Equal(t, uint32(1), u(52))
	assert.Equal(t, make([]byte, 8), buf[56:])

	back, err := UnmarshalGPUMaterial(buf)
	require.NoError(t, err)
	assert.Equal(t, g.ObjectColour, back.ObjectColour)
	assert.Equal(t, g.MaxRecursionDepth, back.MaxRecursionDepth)
}

func TestMaterialToggles(t *testing.T) {
	m := NewMaterial()
	_ = m.GPU()
	require.False(t, m.Dirty())

	tests := []struct {
		name   string
		toggle func()
		read   func() bool
	}{
		{"reflection", m.ToggleReflection, m.Reflective},
		{"outline", m.ToggleOutline, m.Outlined},
		{"texture", func() { m.SetTextured(!m.Textured()) }, m.Textured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, rev := tt.read(), m.Revision()
			tt.toggle()
			assert.NotEqual(t, before, tt.read())
			assert.True(t, m.Dirty())
			assert.Equal(t, rev+1, m.Revision())
			_ = m.GPU()
			assert.False(t, m.Dirty())
			assert.Equal(t, rev+1, m.Revision(), "reading does not reset the revision")
		})
	}
}
