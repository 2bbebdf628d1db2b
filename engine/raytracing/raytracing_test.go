package raytracing

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/game_object"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/model"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/Carmen-Shannon/oxy-rt/engine/shader"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWidth, testHeight = 32, 16

type fixture struct {
	t       *testing.T
	session gpu.Session
	scene   scene.Scene
	cam     camera.Camera
	light   light.Light
	rt      Raytracer
}

func newFixture(t *testing.T, options ...RaytracerBuilderOption) *fixture {
	t.Helper()
	s := gpu.NewSoftwareSession(gpu.WithWorkers(2))
	t.Cleanup(s.Release)

	cam := camera.NewCamera(camera.WithResolution(testWidth, testHeight), camera.WithBackgroundMode(camera.BackgroundSolid))
	// ambient only: every hit shows its material color unchanged
	l := light.NewLight(
		light.WithColors([4]float32{1, 1, 1, 1}, [4]float32{}, [4]float32{}),
		light.WithShadows(false),
	)
	sc := scene.NewScene("test", cam, scene.WithLight(l), scene.WithComputeWorkers(1))
	t.Cleanup(sc.Release)

	rt, err := NewRaytracer(s, append([]RaytracerBuilderOption{
		WithResolution(testWidth, testHeight),
		WithDebugChecks(true),
	}, options...)...)
	require.NoError(t, err)
	t.Cleanup(rt.Release)

	return &fixture{t: t, session: s, scene: sc, cam: cam, light: l, rt: rt}
}

func (f *fixture) add(name string, x float32, rgba [4]float32) game_object.GameObject {
	f.t.Helper()
	m, err := model.NewCube(name, 1)
	require.NoError(f.t, err)
	obj := game_object.NewGameObject(
		game_object.WithName(name),
		game_object.WithModel(m),
		game_object.WithMaterial(material.NewMaterial(material.WithBaseColor(rgba))),
		game_object.WithPosition(x, 0, -6),
	)
	_, err = f.scene.Add(obj)
	require.NoError(f.t, err)
	return obj
}

func (f *fixture) render() *image.RGBA {
	f.t.Helper()
	require.NoError(f.t, f.rt.UploadConstants(f.cam, f.light))
	require.NoError(f.t, f.rt.RecordDispatch())
	require.NoError(f.t, f.session.Flush(context.Background()))
	f.rt.Retire()
	img, err := f.rt.Image()
	require.NoError(f.t, err)
	return img
}

var (
	red   = [4]float32{1, 0, 0, 1}
	green = [4]float32{0, 1, 0, 1}
	blue  = [4]float32{0, 0, 1, 1}
)

func rgba(c [4]float32) color.RGBA {
	return color.RGBA{R: uint8(c[0] * 255), G: uint8(c[1] * 255), B: uint8(c[2] * 255), A: 255}
}

func hitNames(rt Raytracer) []string {
	var out []string
	for _, e := range rt.Plan() {
		out = append(out, e.Object.HitGroupName())
	}
	return out
}

func TestNewRaytracerUnsupportedHardware(t *testing.T) {
	s := gpu.NewSoftwareSession(gpu.WithTier(gpu.TierNotSupported))
	defer s.Release()
	_, err := NewRaytracer(s)
	assert.ErrorIs(t, err, gpu.ErrUnsupportedHardware)
}

func TestOperationsBeforeSetup(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.rt.Sync(f.scene), ErrNotSetUp)
	assert.ErrorIs(t, f.rt.RefitTopLevel(), ErrNotSetUp)
	assert.ErrorIs(t, f.rt.RebuildShaderTable(), ErrNotSetUp)
	assert.ErrorIs(t, f.rt.RecordDispatch(), ErrNotSetUp)
}

func TestZeroObjects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rt.Setup(f.scene))

	l := f.rt.Layout()
	assert.Equal(t, 1, l.RayGeneration.Count)
	assert.Equal(t, 1, l.Miss.Count)
	assert.Zero(t, l.HitGroup.Size)
	assert.Equal(t, uint64(256), l.Total)
	assert.True(t, f.rt.TopLevel().Built())
	assert.Zero(t, f.rt.TopLevel().InstanceCount())

	img := f.render()
	bg := shader.PackRGBA8(shader.SolidBackground)
	assert.Equal(t, bg[:], img.Pix[:4])
	assert.Equal(t, img.RGBAAt(0, 0), img.RGBAAt(testWidth/2, testHeight/2), "every ray misses")
}

func TestOneObjectWithShadows(t *testing.T) {
	f := newFixture(t, WithShadowRayType(true))
	f.add("Cube", 0, red)
	require.NoError(t, f.rt.Setup(f.scene))

	l := f.rt.Layout()
	assert.Equal(t, 1, l.RayGeneration.Count)
	assert.Equal(t, 2, l.Miss.Count)
	assert.Equal(t, 2, l.HitGroup.Count)

	insts := f.rt.TopLevel().Instances()
	require.Len(t, insts, 1)
	assert.Equal(t, uint32(0), insts[0].HitGroupIndex)
}

func TestHitGroupIndicesFollowSlots(t *testing.T) {
	f := newFixture(t, WithShadowRayType(true))
	f.add("A", -2, red)
	f.add("B", 0, green)
	f.add("C", 2, blue)
	require.NoError(t, f.rt.Setup(f.scene))

	assert.Equal(t, []string{"A Hit Group", "B Hit Group", "C Hit Group"}, hitNames(f.rt))
	assert.Equal(t, 6, f.rt.Layout().HitGroup.Count, "one primary and one shadow record per object")

	for i, inst := range f.rt.TopLevel().Instances() {
		assert.Equal(t, uint32(2*i), inst.HitGroupIndex)
	}
}

func TestTextureAssignmentRebuildsShaderTableOnly(t *testing.T) {
	f := newFixture(t)
	f.add("A", -2, red)
	b := f.add("B", 0, green)
	f.add("C", 2, blue)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	before := f.rt.Stats()
	stride := f.rt.Layout().HitGroup.Stride
	indices := f.rt.TopLevel().Instances()

	lib := texture.NewLibrary(f.session)
	defer lib.Release()
	tex, err := lib.Load("checker", common.Checkerboard(8, 2, [4]uint8{255, 255, 255, 255}, [4]uint8{0, 0, 0, 255}))
	require.NoError(t, err)
	b.SetTexture(tex)

	require.NoError(t, f.rt.Sync(f.scene))
	after := f.rt.Stats()
	assert.Equal(t, before.ShaderTableBuilds+1, after.ShaderTableBuilds)
	assert.Equal(t, before.TopLevelBuilds, after.TopLevelBuilds)
	assert.Equal(t, before.PipelineBuilds, after.PipelineBuilds)
	assert.Equal(t, before.Refits+1, after.Refits)

	plan := f.rt.Plan()
	assert.Len(t, plan[0].Args.Pointers(), 5)
	assert.Len(t, plan[1].Args.Pointers(), 6)
	assert.Equal(t, tex.Address, plan[1].Args.Pointers()[shader.ArgTexture])
	assert.Len(t, plan[2].Args.Pointers(), 5)
	assert.Equal(t, stride, f.rt.Layout().HitGroup.Stride)

	for i, inst := range f.rt.TopLevel().Instances() {
		assert.Equal(t, indices[i].HitGroupIndex, inst.HitGroupIndex)
	}
	f.render()
}

func TestRemovingObjectRebuildsEverything(t *testing.T) {
	f := newFixture(t)
	f.add("A", -2, red)
	b := f.add("B", 0, green)
	f.add("C", 2, blue)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	before := f.rt.Stats()
	f.scene.Remove(b.ID())
	require.NoError(t, f.rt.Sync(f.scene))
	after := f.rt.Stats()

	assert.Equal(t, before.TopLevelBuilds+1, after.TopLevelBuilds)
	assert.Equal(t, before.ShaderTableBuilds+1, after.ShaderTableBuilds)
	assert.Equal(t, 2, f.rt.TopLevel().InstanceCount())
	assert.Equal(t, []string{"A Hit Group", "C Hit Group"}, hitNames(f.rt))
	assert.Equal(t, uint32(1), f.rt.TopLevel().Instances()[1].HitGroupIndex)
	f.render()

	require.NoError(t, f.rt.Sync(f.scene))
	assert.Equal(t, after.Refits+1, f.rt.Stats().Refits)
	assert.Equal(t, 2, f.rt.TopLevel().InstanceCount())
	f.render()
}

func TestAddingObjectRecompilesPipeline(t *testing.T) {
	f := newFixture(t)
	f.add("A", -2, red)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	f.add("B", 2, green)
	require.NoError(t, f.rt.Sync(f.scene))
	assert.True(t, f.rt.Pipeline().HasHitGroup("B Hit Group"))
	assert.Equal(t, uint64(2), f.rt.Stats().PipelineBuilds)
	assert.Equal(t, uint64(2), f.rt.Stats().BottomLevelBuilds)

	img := f.render()
	assert.Equal(t, rgba(green), img.RGBAAt(20, 8))
}

func TestShadowToggleRebuildsPipeline(t *testing.T) {
	f := newFixture(t)
	f.add("A", -2, red)
	f.add("B", 2, green)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	f.rt.SetShadowRayType(true)
	require.NoError(t, f.rt.Sync(f.scene))
	assert.True(t, f.rt.Pipeline().ShadowRays())
	assert.Equal(t, 2, f.rt.Layout().Miss.Count)
	assert.Equal(t, 4, f.rt.Layout().HitGroup.Count)
	assert.Equal(t, uint32(2), f.rt.TopLevel().Instances()[1].HitGroupIndex)

	f.rt.SetSampler(gpu.SamplerPoint)
	require.NoError(t, f.rt.Sync(f.scene))
	assert.Equal(t, gpu.SamplerPoint, f.rt.Pipeline().Sampler())
	assert.Equal(t, uint64(3), f.rt.Stats().PipelineBuilds)

	img := f.render()
	assert.Equal(t, rgba(red), img.RGBAAt(11, 8))
}

func TestRebuildsBeforeOneFlush(t *testing.T) {
	f := newFixture(t)
	f.add("A", -1.5, red)
	f.add("B", 1.5, green)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	require.NoError(t, f.rt.RebuildTopLevel())
	require.NoError(t, f.rt.RebuildTopLevel())
	require.NoError(t, f.rt.UploadConstants(f.cam, f.light))
	require.NoError(t, f.rt.RecordDispatch())
	require.NoError(t, f.rt.RebuildShaderTable())
	require.NoError(t, f.session.Flush(context.Background()))
	f.rt.Retire()

	img := f.render()
	assert.Equal(t, rgba(red), img.RGBAAt(11, 8))
	assert.Equal(t, rgba(green), img.RGBAAt(20, 8))
}

func TestSupersededTablesLiveUntilRetire(t *testing.T) {
	f := newFixture(t)
	f.add("A", -1.5, red)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()
	inUse := f.session.MemoryInUse()

	require.NoError(t, f.rt.RebuildShaderTable())
	require.NoError(t, f.rt.RebuildShaderTable())
	assert.Greater(t, f.session.MemoryInUse(), inUse)

	require.NoError(t, f.session.Flush(context.Background()))
	f.rt.Retire()
	assert.Equal(t, inUse, f.session.MemoryInUse())
}

func TestTextureAndPipelineChangeInOneSync(t *testing.T) {
	f := newFixture(t)
	f.add("A", -2, red)
	b := f.add("B", 2, green)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	lib := texture.NewLibrary(f.session)
	defer lib.Release()
	tex, err := lib.Load("checker", common.Checkerboard(8, 2, [4]uint8{255, 255, 255, 255}, [4]uint8{0, 0, 0, 255}))
	require.NoError(t, err)
	b.SetTexture(tex)
	f.rt.SetShadowRayType(true)
	require.NoError(t, f.rt.Sync(f.scene))
	f.render()

	before := f.rt.Stats()
	require.NoError(t, f.rt.Sync(f.scene))
	after := f.rt.Stats()
	assert.Equal(t, before.ShaderTableBuilds, after.ShaderTableBuilds)
	assert.Equal(t, before.Refits+1, after.Refits)
}

func TestEachObjectShowsItsOwnMaterial(t *testing.T) {
	f := newFixture(t, WithShadowRayType(true))
	f.add("Left", -1.5, red)
	f.add("Right", 1.5, green)
	require.NoError(t, f.rt.Setup(f.scene))

	img := f.render()
	assert.Equal(t, rgba(red), img.RGBAAt(11, 8))
	assert.Equal(t, rgba(green), img.RGBAAt(20, 8))
	assert.NotEqual(t, rgba(red), img.RGBAAt(0, 0))
}

func TestRefitMatchesRebuild(t *testing.T) {
	f := newFixture(t)
	a := f.add("A", -1.5, red)
	f.add("B", 1.5, green)
	require.NoError(t, f.rt.Setup(f.scene))
	f.render()

	require.NoError(t, f.rt.Sync(f.scene))
	first := f.render()
	require.NoError(t, f.rt.Sync(f.scene))
	assert.Equal(t, first.Pix, f.render().Pix, "refit without changes is idempotent")

	a.SetPosition(-0.5, 0.5, -6)
	a.SetRotation(0.3, 0.6, 0)
	require.NoError(t, f.rt.Sync(f.scene))
	refitted := f.render()
	assert.NotEqual(t, first.Pix, refitted.Pix)

	require.NoError(t, f.rt.RebuildTopLevel())
	assert.Equal(t, refitted.Pix, f.render().Pix)
}

func TestDisabledObjectIsMasked(t *testing.T) {
	f := newFixture(t)
	a := f.add("A", -1.5, red)
	require.NoError(t, f.rt.Setup(f.scene))
	assert.Equal(t, rgba(red), f.render().RGBAAt(11, 8))

	a.SetEnabled(false)
	require.NoError(t, f.rt.Sync(f.scene))
	assert.Equal(t, uint8(0), f.rt.TopLevel().Instances()[0].Mask)
	assert.NotEqual(t, rgba(red), f.render().RGBAAt(11, 8))
}

func TestDispatchDescMatchesLayout(t *testing.T) {
	f := newFixture(t)
	f.add("A", 0, red)
	require.NoError(t, f.rt.Setup(f.scene))

	d := f.rt.DispatchDesc()
	l := f.rt.Layout()
	base := f.rt.ShaderTable().Address()
	assert.Equal(t, base, d.RayGenerationShaderRecord.StartAddress)
	assert.Equal(t, base.Offset(l.Miss.Offset), d.MissShaderTable.StartAddress)
	assert.Equal(t, l.HitGroup.Stride, d.HitGroupTable.StrideInBytes)
	assert.Equal(t, uint32(testWidth), d.Width)
	assert.Equal(t, uint32(testHeight), d.Height)
	assert.Equal(t, uint32(1), d.Depth)
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rt.Setup(f.scene))
	require.NoError(t, f.rt.Resize(8, 4))
	w, h := f.rt.Resolution()
	assert.Equal(t, uint32(8), w)
	assert.Equal(t, uint32(4), h)
	assert.Equal(t, uint64(8*4*4), f.rt.Output().Size())
}
