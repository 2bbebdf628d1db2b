package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() sceneOptions {
	return sceneOptions{
		width:    24,
		height:   16,
		scene:    "showcase",
		gridSize: 2,
		shadows:  true,
		sampler:  "anisotropic",
		workers:  2,
	}
}

func TestRenderWritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, renderFrames(testOptions(), 2, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestRenderGridWithSettings(t *testing.T) {
	opts := testOptions()
	opts.scene = "grid"
	opts.softShadows = 2
	opts.shadowRayType = true
	opts.sampler = "point"
	out := filepath.Join(t.TempDir(), "grid.png")
	require.NoError(t, renderFrames(opts, 1, out))
	assert.FileExists(t, out)
}

func TestRenderRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()

	opts := testOptions()
	opts.scene = "nope"
	assert.Error(t, renderFrames(opts, 1, filepath.Join(dir, "a.png")))

	opts = testOptions()
	opts.sampler = "cubic"
	assert.Error(t, renderFrames(opts, 1, filepath.Join(dir, "b.png")))

	opts = testOptions()
	opts.width = 0
	assert.Error(t, renderFrames(opts, 1, filepath.Join(dir, "c.png")))

	opts = testOptions()
	opts.texture = filepath.Join(dir, "missing.png")
	assert.Error(t, renderFrames(opts, 1, filepath.Join(dir, "d.png")))
}

func TestWindowLimitsContainFrame(t *testing.T) {
	opts := testOptions()
	opts.width, opts.height = 1280, 720
	minW, minH, maxW, maxH := windowLimits(opts)
	assert.Equal(t, [4]int{320, 180, 2560, 1440}, [4]int{minW, minH, maxW, maxH})

	opts.width, opts.height = 2, 3
	minW, minH, _, _ = windowLimits(opts)
	assert.Equal(t, [2]int{1, 1}, [2]int{minW, minH})
}

func TestCapabilityTable(t *testing.T) {
	s := gpu.NewSoftwareSession(gpu.WithWorkers(3))
	defer s.Release()

	out := capabilityTable(s.Capabilities())
	assert.Contains(t, out, "Ray tracing tier")
	assert.Contains(t, out, "emulated")
	assert.Contains(t, out, "32 bytes")
	assert.Contains(t, out, "Dispatch workers")
}
