package renderer

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestPresentShaderEntryPoints(t *testing.T) {
	for _, entry := range []string{presentVertexEntry, presentFragmentEntry} {
		assert.True(t, strings.Contains(presentShaderSource, "fn "+entry+"("), entry)
	}
	assert.Contains(t, presentShaderSource, "@binding(0) var frame")
	assert.Contains(t, presentShaderSource, "@binding(1) var frameSampler")
}

func TestPresentModeMapping(t *testing.T) {
	assert.Equal(t, wgpu.PresentModeFifo, wgpuPresentMode(PresentModeVSync))
	assert.Equal(t, wgpu.PresentModeImmediate, wgpuPresentMode(PresentModeUncapped))
	assert.Equal(t, wgpu.PresentModeImmediate, wgpuPresentMode(PresentMode(42)))
}

func TestPresentRejectsEmptyFrame(t *testing.T) {
	r := &renderer{}
	assert.ErrorIs(t, r.Present(nil), ErrEmptyFrame)
}
