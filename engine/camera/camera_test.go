package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUCameraLayout(t *testing.T) {
	g := GPUCamera{RX: 640, RY: 480, BackgroundMode: BackgroundSolid}
	g.InvView[0] = 2
	g.InvProj[15] = 3

	buf := g.Marshal()
	require.Len(t, buf, 160)
	assert.Equal(t, 160, g.Size())

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(2), f(0))
	assert.Equal(t, float32(3), f(64+15*4))
	assert.Equal(t, float32(640), f(128))
	assert.Equal(t, float32(480), f(132))
	assert.Zero(t, f(136))
	assert.Equal(t, BackgroundSolid, f(144))

	back, err := UnmarshalGPUCamera(buf)
	require.NoError(t, err)
	assert.Equal(t, g.RX, back.RX)
	assert.Equal(t, g.InvView, back.InvView)

	_, err = UnmarshalGPUCamera(buf[:100])
	assert.Error(t, err)
}

func TestCameraInverseViewPlacesEye(t *testing.T) {
	ctrl := NewOrbitController(WithTarget(common.Vec3{1, 0, 0}), WithRadius(5), WithElevation(0))
	c := NewCamera(WithController(ctrl), WithResolution(200, 100))

	assert.InDelta(t, 2.0, c.Aspect(), 1e-6)
	eye := common.MulVec4(c.InverseViewMatrix(), [4]float32{0, 0, 0, 1})
	assert.InDelta(t, 1, eye[0], 1e-4)
	assert.InDelta(t, 0, eye[1], 1e-4)
	assert.InDelta(t, 5, eye[2], 1e-4)

	forward := common.MulVec4(c.InverseViewMatrix(), [4]float32{0, 0, -1, 0})
	assert.InDelta(t, -1, forward[2], 1e-4)
}

func TestOrbitControllerClamps(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(2), WithRadiusBounds(1, 3), WithOrbitSpeed(1))
	ctrl.Zoom(100)
	assert.Equal(t, float32(1), ctrl.Radius())
	ctrl.Zoom(-100)
	assert.Equal(t, float32(3), ctrl.Radius())

	for range 10 {
		ctrl.OrbitUp()
	}
	assert.Less(t, ctrl.Elevation(), float32(math.Pi/2))
	ctrl.OrbitRight()
	assert.Equal(t, float32(1), ctrl.Azimuth())
	assert.InDelta(t, 3, ctrl.Position().Sub(ctrl.Target()).Len(), 1e-4)
}

func TestToggleBackground(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, BackgroundSky, c.BackgroundMode())
	c.ToggleBackground()
	assert.Equal(t, BackgroundSolid, c.GPU().BackgroundMode)
	c.ToggleBackground()
	assert.Equal(t, BackgroundSky, c.BackgroundMode())
}
