package engine

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/game_object"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/model"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, objects int) Engine {
	t.Helper()
	session := gpu.NewSoftwareSession(gpu.WithWorkers(2))
	t.Cleanup(session.Release)

	ctrl := camera.NewOrbitController(camera.WithRadius(8))
	cam := camera.NewCamera(camera.WithController(ctrl), camera.WithResolution(24, 16))
	s := scene.NewScene("test", cam, scene.WithComputeWorkers(1))
	t.Cleanup(s.Release)

	mdl, err := model.NewCube("cube", 1)
	require.NoError(t, err)
	for i := range objects {
		_, err := s.Add(game_object.NewGameObject(
			game_object.WithName(string(rune('A'+i))),
			game_object.WithModel(mdl),
			game_object.WithPosition(float32(i)*1.5-1.5, 0, 0),
			game_object.WithRotationSpeed(0, 1, 0),
		))
		require.NoError(t, err)
	}

	e, err := NewEngine(session, s)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e
}

func TestRenderFrame(t *testing.T) {
	e := newTestEngine(t, 3)

	img, err := e.RenderFrame(0.016)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Rect.Dx())
	assert.Equal(t, 16, img.Rect.Dy())

	_, err = e.RenderFrame(0.016)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Frames())
	assert.Equal(t, 2, e.Profiler().Frames())

	stats := e.Raytracer().Stats()
	assert.Equal(t, uint64(1), stats.TopLevelBuilds)
	assert.Equal(t, uint64(1), stats.Refits)
	assert.Equal(t, uint64(1), stats.BottomLevelBuilds, "objects share one model")
}

func TestSelectionCycles(t *testing.T) {
	e := newTestEngine(t, 3)
	assert.Equal(t, "A", e.Selected().Name())

	e.HandleKey(common.KeyTab)
	e.HandleKey(common.KeyTab)
	_, err := e.RenderFrame(0)
	require.NoError(t, err)
	assert.Equal(t, "C", e.Selected().Name())

	e.Enqueue(ActionSelectNext)
	_, err = e.RenderFrame(0)
	require.NoError(t, err)
	assert.Equal(t, "A", e.Selected().Name())
}

func TestToggleTextureRebuildsShaderTableOnly(t *testing.T) {
	e := newTestEngine(t, 2)
	_, err := e.RenderFrame(0)
	require.NoError(t, err)
	before := e.Raytracer().Stats()

	e.HandleKey(common.KeyT)
	_, err = e.RenderFrame(0)
	require.NoError(t, err)

	checker, ok := e.Textures().Get("checker")
	require.True(t, ok)
	assert.Same(t, checker, e.Selected().Texture())
	assert.True(t, e.Selected().Material().Textured())
	after := e.Raytracer().Stats()
	assert.Equal(t, before.ShaderTableBuilds+1, after.ShaderTableBuilds)
	assert.Equal(t, before.TopLevelBuilds, after.TopLevelBuilds)

	e.HandleKey(common.KeyT)
	_, err = e.RenderFrame(0)
	require.NoError(t, err)
	assert.Nil(t, e.Selected().Texture())
}

func TestRemoveSelected(t *testing.T) {
	e := newTestEngine(t, 3)
	_, err := e.RenderFrame(0)
	require.NoError(t, err)

	e.HandleKey(common.KeyDelete)
	_, err = e.RenderFrame(0)
	require.NoError(t, err)

	assert.Equal(t, 2, e.Scene().Count())
	assert.Equal(t, "B", e.Selected().Name())
	assert.Equal(t, 2, e.Raytracer().TopLevel().InstanceCount())
	assert.Equal(t, uint64(2), e.Raytracer().Stats().TopLevelBuilds)

	e.HandleKey(common.KeyDelete)
	e.HandleKey(common.KeyDelete)
	e.HandleKey(common.KeyDelete)
	_, err = e.RenderFrame(0)
	require.NoError(t, err)
	assert.Zero(t, e.Scene().Count())
	assert.Nil(t, e.Selected())
}

func TestPipelineToggles(t *testing.T) {
	e := newTestEngine(t, 1)
	_, err := e.RenderFrame(0)
	require.NoError(t, err)
	shadows := e.Scene().Light().Shadows()

	for _, key := range []uint32{common.KeyK, common.KeyP, common.KeyL, common.KeyB} {
		e.HandleKey(key)
	}
	_, err = e.RenderFrame(0)
	require.NoError(t, err)

	assert.True(t, e.Raytracer().ShadowRayType())
	assert.Equal(t, gpu.SamplerLinear, e.Raytracer().Sampler())
	assert.Equal(t, !shadows, e.Scene().Light().Shadows())
	assert.Equal(t, camera.BackgroundSolid, e.Scene().Camera().BackgroundMode())
	assert.Equal(t, uint64(2), e.Raytracer().Stats().PipelineBuilds)
}

func TestPauseStopsSpin(t *testing.T) {
	e := newTestEngine(t, 1)
	obj := e.Selected()

	_, err := e.RenderFrame(0.5)
	require.NoError(t, err)
	_, ry, _ := obj.Rotation()
	assert.InDelta(t, 0.5, ry, 1e-6)

	e.HandleKey(common.KeySpace)
	_, err = e.RenderFrame(0.5)
	require.NoError(t, err)
	_, ry, _ = obj.Rotation()
	assert.InDelta(t, 0.5, ry, 1e-6)
}

func TestCameraActions(t *testing.T) {
	e := newTestEngine(t, 1)
	ctrl := e.Scene().Camera().Controller()

	e.HandleKey(common.KeyRight)
	e.HandleKey(common.KeyEqual)
	_, err := e.RenderFrame(0)
	require.NoError(t, err)
	assert.Greater(t, ctrl.Azimuth(), float32(0))
	assert.Less(t, ctrl.Radius(), float32(8))
}

func TestQueueOverflowDoesNotBlock(t *testing.T) {
	e := newTestEngine(t, 1)
	for range actionQueueSize * 2 {
		e.Enqueue(ActionNone)
	}
	_, err := e.RenderFrame(0)
	require.NoError(t, err)
}

func TestRunWithoutWindow(t *testing.T) {
	e := newTestEngine(t, 0)
	assert.ErrorIs(t, e.Run(), ErrNoWindow)
}

func TestActionNames(t *testing.T) {
	assert.Equal(t, "remove selected", ActionRemoveSelected.String())
	assert.Equal(t, "unknown", Action(999).String())
	for key, a := range DefaultKeyMap {
		assert.NotEqual(t, "unknown", a.String(), "key %d", key)
	}
}
