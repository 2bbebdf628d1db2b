package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeIsClampedToLimits(t *testing.T) {
	w := newEngineWindow(WithSize(50, 5000), WithSizeLimits(100, 0, 0, 1000))
	assert.Equal(t, 100, w.Width())
	assert.Equal(t, 1000, w.Height())
}

func TestSizeLimits(t *testing.T) {
	tests := []struct {
		name             string
		limits           [4]int
		wantMin, wantMax [2]int
	}{
		{"defaults kept", [4]int{0, 0, 0, 0}, [2]int{160, 120}, [2]int{3840, 2160}},
		{"all set", [4]int{320, 240, 1920, 1080}, [2]int{320, 240}, [2]int{1920, 1080}},
		{"max raised to min", [4]int{800, 600, 640, 480}, [2]int{800, 600}, [2]int{800, 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newEngineWindow(WithSizeLimits(tt.limits[0], tt.limits[1], tt.limits[2], tt.limits[3]))
			assert.Equal(t, tt.wantMin, [2]int{w.minWidth, w.minHeight})
			assert.Equal(t, tt.wantMax, [2]int{w.maxWidth, w.maxHeight})
		})
	}
}

func TestCallbacksFire(t *testing.T) {
	w := newEngineWindow()

	var keys []uint32
	var size [2]int
	var zoom float32
	w.SetKeyDownCallback(func(k uint32) { keys = append(keys, k) })
	w.SetResizeCallback(func(width, height int) { size = [2]int{width, height} })
	w.SetScrollCallback(func(d float32) { zoom += d })

	w.keyDown(84)
	w.resized(320, 240)
	w.resized(0, 0)
	w.scrolled(1.5)

	assert.Equal(t, []uint32{84}, keys)
	assert.Equal(t, [2]int{320, 240}, size)
	assert.Equal(t, float32(1.5), zoom)
	assert.Equal(t, 0, w.Width(), "a minimised framebuffer is stored but not forwarded")
}

func TestUninitializedWindow(t *testing.T) {
	w := newEngineWindow(WithTitle("viewer"))
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	require.Error(t, w.Close())

	w.SetTitle("other")
	assert.Equal(t, "other", w.Title())
}
