package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRayTypes(t *testing.T) {
	assert.Equal(t, uint32(1), Config{}.RayTypeCount())
	assert.Equal(t, []string{MissName}, Config{}.MissNames())

	cfg := Config{ShadowRays: true}
	assert.Equal(t, uint32(2), cfg.RayTypeCount())
	assert.Equal(t, []string{MissName, ShadowMissName}, cfg.MissNames())
}

func TestLibraryExports(t *testing.T) {
	names := func(lib gpu.ShaderLibrary) []string {
		var out []string
		for _, e := range lib.Exports {
			out = append(out, e.Name)
		}
		return out
	}

	assert.ElementsMatch(t, []string{RayGenName, MissName, ClosestHitName}, names(NewLibrary(Config{})))
	assert.ElementsMatch(t,
		[]string{RayGenName, MissName, ClosestHitName, ShadowMissName, ShadowHitName},
		names(NewLibrary(Config{ShadowRays: true})))
}

func TestRootSignaturesCoverEveryExport(t *testing.T) {
	for _, cfg := range []Config{{}, {ShadowRays: true}} {
		covered := map[string]int{}
		for _, a := range RootSignatures(cfg) {
			for _, e := range a.Exports {
				covered[e] = len(a.Signature.Parameters)
			}
		}
		for _, e := range NewLibrary(cfg).Exports {
			assert.Contains(t, covered, e.Name)
		}
		assert.Equal(t, HitArgCount, covered[ClosestHitName])
		assert.Equal(t, 1, covered[RayGenName])
	}
}

func TestTraceDescRayTypes(t *testing.T) {
	heap := gpu.NullAddress
	cfg := Config{ShadowRays: true}

	primary := traceDesc(cfg, heap, RayTypePrimary, gpu.RayFlagNone, gpu.Ray{})
	assert.Equal(t, uint32(0), primary.RayContribution)
	assert.Equal(t, uint32(0), primary.MissIndex)
	assert.Equal(t, uint32(2), primary.GeometryMultiplier)
	assert.Equal(t, uint8(0xFF), primary.InstanceMask)

	shadow := traceDesc(cfg, heap, RayTypeShadow, gpu.RayFlagAcceptFirstHitAndEndSearch, gpu.Ray{})
	assert.Equal(t, uint32(1), shadow.RayContribution)
	assert.Equal(t, uint32(1), shadow.MissIndex)
	assert.True(t, shadow.Flags.Has(gpu.RayFlagAcceptFirstHitAndEndSearch))
}

func TestPrimaryRayThroughCenter(t *testing.T) {
	cam := camera.NewCamera(camera.WithResolution(3, 3)).GPU()

	center := PrimaryRay(cam, [3]uint32{1, 1, 0}, [3]uint32{3, 3, 1})
	assert.InDeltaSlice(t, []float32{0, 0, 0}, center.Origin[:], 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0, -1}, center.Direction[:], 1e-4)
	assert.Equal(t, float32(primaryTMax), center.TMax)

	topLeft := PrimaryRay(cam, [3]uint32{0, 0, 0}, [3]uint32{3, 3, 1})
	assert.Less(t, topLeft.Direction[0], float32(0))
	assert.Greater(t, topLeft.Direction[1], float32(0), "row 0 is the top of the image")
	assert.InDelta(t, 1, topLeft.Direction.Len(), 1e-4)
}

func TestPackRGBA8(t *testing.T) {
	assert.Equal(t, [4]byte{255, 0, 128, 255}, PackRGBA8(common.Vec3{2, -1, 0.5}))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, PackRGBA8(common.Vec3{}))
}

func TestBackground(t *testing.T) {
	assert.Equal(t, SolidBackground, Background(camera.BackgroundSolid, common.Vec3{0, 1, 0}))
	up := Background(camera.BackgroundSky, common.Vec3{0, 1, 0})
	assert.InDeltaSlice(t, skyZenith[:], up[:], 1e-6)
	down := Background(camera.BackgroundSky, common.Vec3{0, -1, 0})
	assert.InDeltaSlice(t, skyHorizon[:], down[:], 1e-6)
}

func TestShade(t *testing.T) {
	l := light.GPULight{
		Position:      [4]float32{0, 10, 0, 0},
		Ambient:       [4]float32{0.1, 0.1, 0.1, 1},
		Diffuse:       [4]float32{1, 1, 1, 1},
		Specular:      [4]float32{1, 1, 1, 1},
		SpecularPower: 1,
	}
	m := material.GPUMaterial{}
	s := Surface{Normal: common.Vec3{0, 1, 0}}
	white := common.Vec3{1, 1, 1}
	down := common.Vec3{0, -1, 0}

	lit := Shade(l, m, white, s, down, 1)
	assert.InDeltaSlice(t, []float32{1.1, 1.1, 1.1}, lit[:], 1e-5)

	shadowed := Shade(l, m, white, s, down, 0)
	assert.InDeltaSlice(t, []float32{0.1, 0.1, 0.1}, shadowed[:], 1e-5)

	m.Shininess = 8
	shiny := Shade(l, m, white, s, down, 1)
	assert.InDeltaSlice(t, []float32{2.1, 2.1, 2.1}, shiny[:], 1e-4, "mirror direction catches full highlight")

	l.PointLightRange = 5
	out := Shade(l, m, white, s, down, 1)
	assert.InDeltaSlice(t, []float32{0.1, 0.1, 0.1}, out[:], 1e-5, "beyond range only ambient remains")
}

func TestJitterDeterministicInBall(t *testing.T) {
	seen := map[common.Vec3]bool{}
	for i := uint32(0); i < 32; i++ {
		p := jitter([3]uint32{4, 7, 0}, i, 1)
		assert.Equal(t, p, jitter([3]uint32{4, 7, 0}, i, 1))
		assert.LessOrEqual(t, p.Dot(p), float32(1))
		seen[p] = true
	}
	require.Greater(t, len(seen), 16)
}

func TestWorldNormalUsesInverseTranspose(t *testing.T) {
	// world-to-object of a scale by (2, 1, 1)
	w2o := common.Mat3x4{
		0.5, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
	n := worldNormal(w2o, common.Vec3{1, 1, 0}.Normalize())
	assert.Less(t, n[0], n[1], "normals shrink along the stretched axis")
	assert.InDelta(t, 1, n.Len(), 1e-5)
}
