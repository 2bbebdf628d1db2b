package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T, slots int) (gpu.Session, Library) {
	t.Helper()
	s := gpu.NewSoftwareSession(gpu.WithWorkers(1), gpu.WithDescriptorCapacity(slots))
	t.Cleanup(s.Release)
	return s, NewLibrary(s)
}

func TestLoadAssignsSlotsFromThree(t *testing.T) {
	s, lib := newLibrary(t, 8)
	checker := common.Checkerboard(4, 2, [4]uint8{255, 0, 0, 255}, [4]uint8{0, 0, 255, 255})

	a, err := lib.Load("a", checker)
	require.NoError(t, err)
	b, err := lib.Load("b", checker)
	require.NoError(t, err)
	assert.Equal(t, FirstSlot, a.Slot)
	assert.Equal(t, FirstSlot+1, b.Slot)

	again, err := lib.Load("a", checker)
	require.NoError(t, err)
	assert.Same(t, a, again)

	slot, err := s.DescriptorHeap().SlotOf(b.Address)
	require.NoError(t, err)
	assert.Equal(t, b.Slot, slot)

	d, err := s.DescriptorHeap().Descriptor(a.Slot)
	require.NoError(t, err)
	assert.Equal(t, gpu.DescriptorTexture, d.Kind)
}

func TestUnloadFreesSlot(t *testing.T) {
	s, lib := newLibrary(t, 8)
	checker := common.Checkerboard(2, 1, [4]uint8{1, 2, 3, 4}, [4]uint8{1, 2, 3, 4})
	a, err := lib.Load("a", checker)
	require.NoError(t, err)
	_, err = lib.Load("b", checker)
	require.NoError(t, err)

	require.NoError(t, lib.Unload("a"))
	_, err = s.DescriptorHeap().Descriptor(a.Slot)
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)
	assert.Error(t, lib.Unload("a"))

	c, err := lib.Load("c", checker)
	require.NoError(t, err)
	assert.Equal(t, a.Slot, c.Slot)
	assert.Equal(t, 2, lib.Len())
}

func TestHeapFull(t *testing.T) {
	_, lib := newLibrary(t, FirstSlot+1)
	checker := common.Checkerboard(2, 1, [4]uint8{}, [4]uint8{})
	_, err := lib.Load("a", checker)
	require.NoError(t, err)
	_, err = lib.Load("b", checker)
	assert.ErrorIs(t, err, ErrHeapFull)
}

func TestLoadRejectsBadPixels(t *testing.T) {
	_, lib := newLibrary(t, 8)
	_, err := lib.Load("bad", common.TextureStagingData{Pixels: make([]byte, 3), Width: 1, Height: 1})
	assert.Error(t, err)
	assert.Zero(t, lib.Len())
}

func TestImportPNG(t *testing.T) {
	_, lib := newLibrary(t, 8)
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	tex, err := lib.Import(&common.ImportedTexture{Name: "red", Data: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.GPU.Width())
	c := tex.GPU.Sample(0.75, 0.75, gpu.SamplerPoint)
	assert.InDelta(t, 1, c[0], 1e-6)
}

func TestLibrariesShareHeap(t *testing.T) {
	s, first := newLibrary(t, 8)
	second := NewLibrary(s)
	checker := common.Checkerboard(4, 2, [4]uint8{255, 255, 255, 255}, [4]uint8{0, 0, 0, 255})

	a, err := first.Load("a", checker)
	require.NoError(t, err)
	b, err := second.Load("b", checker)
	require.NoError(t, err)
	assert.NotEqual(t, a.Slot, b.Slot)
}
