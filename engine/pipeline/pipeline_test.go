package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, options ...gpu.SessionBuilderOption) gpu.Session {
	t.Helper()
	s := gpu.NewSoftwareSession(append([]gpu.SessionBuilderOption{gpu.WithWorkers(1)}, options...)...)
	t.Cleanup(s.Release)
	return s
}

func TestNewPipelineDefaults(t *testing.T) {
	p, err := NewPipeline(newSession(t), WithHitGroups("Cube Hit Group"))
	require.NoError(t, err)
	defer p.Release()

	assert.False(t, p.ShadowRays())
	assert.Equal(t, uint32(1), p.RayTypeCount())
	assert.Equal(t, gpu.SamplerAnisotropic, p.Sampler())
	assert.Equal(t, uint32(DefaultMaxRecursionDepth), p.MaxRecursionDepth())
	assert.True(t, p.HasHitGroup("Cube Hit Group"))
	assert.False(t, p.HasHitGroup(shader.ShadowHitGroupName))

	for _, name := range []string{shader.RayGenName, shader.MissName, "Cube Hit Group"} {
		id, err := p.ShaderIdentifier(name)
		require.NoError(t, err, name)
		assert.Len(t, id, gpu.ShaderIdentifierSize)
	}
	_, err = p.ShaderIdentifier(shader.ShadowMissName)
	assert.ErrorIs(t, err, gpu.ErrUnknownShader)
}

func TestShadowRayTypeAddsPrograms(t *testing.T) {
	p, err := NewPipeline(newSession(t),
		WithShadowRayType(true),
		WithSampler(gpu.SamplerPoint),
		WithHitGroups("A Hit Group", "B Hit Group"),
	)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, uint32(2), p.RayTypeCount())
	assert.Equal(t, gpu.SamplerPoint, p.Raw().StaticSampler())
	assert.Equal(t, []string{"A Hit Group", "B Hit Group"}, p.HitGroups())

	for _, name := range []string{shader.ShadowMissName, shader.ShadowHitGroupName} {
		_, err := p.ShaderIdentifier(name)
		assert.NoError(t, err, name)
	}

	sig, ok := p.Raw().RootSignature("A Hit Group")
	require.True(t, ok)
	assert.Len(t, sig.Parameters, shader.HitArgCount)
}

func TestRecursionDepthClamped(t *testing.T) {
	p, err := NewPipeline(newSession(t, gpu.WithRecursionLimit(3)), WithMaxRecursionDepth(10))
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, uint32(3), p.MaxRecursionDepth())
	assert.Equal(t, uint32(3), p.Config().MaxRecursionDepth)
}

func TestUnsupportedHardware(t *testing.T) {
	_, err := NewPipeline(newSession(t, gpu.WithTier(gpu.TierNotSupported)))
	assert.ErrorIs(t, err, gpu.ErrUnsupportedHardware)
}

func TestReleasedPipeline(t *testing.T) {
	p, err := NewPipeline(newSession(t))
	require.NoError(t, err)
	p.Release()
	p.Release()
	_, err = p.ShaderIdentifier(shader.RayGenName)
	assert.ErrorIs(t, err, gpu.ErrReleased)
}
