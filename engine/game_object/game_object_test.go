package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	obj := NewGameObject(WithName("Cube"))
	assert.Equal(t, "Cube Hit Group", obj.HitGroupName())
	assert.True(t, obj.Enabled())
	assert.NotNil(t, obj.Material())
	assert.Nil(t, obj.Texture())
	assert.False(t, obj.Material().Textured())

	assert.Equal(t, common.IdentityMat4(), obj.Transform())
}

func TestUpdateSpinsAndMovesLight(t *testing.T) {
	l := light.NewLight()
	obj := NewGameObject(
		WithPosition(1, 2, 3),
		WithRotationSpeed(0, 2, 0),
		WithLight(l),
	)

	obj.Update(0.5)
	_, ry, _ := obj.Rotation()
	assert.InDelta(t, 1, ry, 1e-6)
	assert.Equal(t, common.Vec3{1, 2, 3}, l.Position())

	m := obj.Transform()
	assert.Equal(t, float32(1), m[12])
	assert.Equal(t, float32(2), m[13])
	assert.Equal(t, float32(3), m[14])
}

func TestSetTextureFollowsMaterialFlag(t *testing.T) {
	obj := NewGameObject(WithMaterial(material.NewMaterial()))
	obj.SetTexture(&texture.Texture{Name: "checker", Slot: texture.FirstSlot})
	assert.True(t, obj.Material().Textured())
	obj.SetTexture(nil)
	assert.False(t, obj.Material().Textured())
}

func TestUploadMaterialOnlyWhenDirty(t *testing.T) {
	s := gpu.NewSoftwareSession(gpu.WithWorkers(1))
	defer s.Release()

	obj := NewGameObject(WithMaterial(material.NewMaterial(material.WithBaseColor([4]float32{1, 0, 0, 1}))))
	defer obj.Release()

	wrote, err := obj.UploadMaterial(s)
	require.NoError(t, err)
	assert.True(t, wrote)
	require.NotNil(t, obj.MaterialBuffer())

	wrote, err = obj.UploadMaterial(s)
	require.NoError(t, err)
	assert.False(t, wrote)

	obj.Material().ToggleReflection()
	wrote, err = obj.UploadMaterial(s)
	require.NoError(t, err)
	assert.True(t, wrote)

	raw, err := obj.MaterialBuffer().Read(0, material.GPUMaterialSize)
	require.NoError(t, err)
	back, err := material.UnmarshalGPUMaterial(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), back.Reflection)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, back.ObjectColour)
}

func TestSharedMaterialReachesEveryObject(t *testing.T) {
	s := gpu.NewSoftwareSession(gpu.WithWorkers(1))
	defer s.Release()

	shared := material.NewMaterial(material.WithBaseColor([4]float32{0, 1, 0, 1}))
	a := NewGameObject(WithName("A"), WithMaterial(shared))
	b := NewGameObject(WithName("B"), WithMaterial(shared))
	defer a.Release()
	defer b.Release()
	for _, obj := range []GameObject{a, b} {
		_, err := obj.UploadMaterial(s)
		require.NoError(t, err)
	}

	shared.ToggleReflection()
	for _, obj := range []GameObject{a, b} {
		wrote, err := obj.UploadMaterial(s)
		require.NoError(t, err)
		assert.True(t, wrote, obj.Name())

		raw, err := obj.MaterialBuffer().Read(0, material.GPUMaterialSize)
		require.NoError(t, err)
		back, err := material.UnmarshalGPUMaterial(raw)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), back.Reflection, obj.Name())
	}
}
