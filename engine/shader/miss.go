package shader

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

var (
	skyHorizon = common.Vec3{1, 1, 1}
	skyZenith  = common.Vec3{0.35, 0.55, 0.95}
	// SolidBackground is the miss color in solid background mode.
	SolidBackground = common.Vec3{0.05, 0.05, 0.08}
)

// Background returns the miss color for a ray direction.
//
// Parameters:
//   - mode: camera background mode
//   - dir: normalized ray direction
//
// Returns:
//   - common.Vec3: the background color
func Background(mode float32, dir common.Vec3) common.Vec3 {
	if mode == camera.BackgroundSolid {
		return SolidBackground
	}
	t := common.Clamp(0.5*(dir[1]+1), 0, 1)
	return skyHorizon.Lerp(skyZenith, t)
}

func miss(dc gpu.DispatchContext, ray gpu.Ray, payload any) {
	cam := loadCamera(dc, dc.RootArgument(0))
	payload.(*HitInfo).Color = Background(cam.BackgroundMode, ray.Direction)
}

func shadowMiss(_ gpu.DispatchContext, _ gpu.Ray, payload any) {
	payload.(*ShadowInfo).Occluded = false
}
