package shader

import (
	"math"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/camera"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
)

func loadCamera(dc gpu.DispatchContext, heap gpu.DeviceAddress) camera.GPUCamera {
	d := slot(dc, heap, SlotCamera, gpu.DescriptorConstantBuffer)
	cam, err := camera.UnmarshalGPUCamera(dc.Load(d.Buffer.Address(), camera.GPUCameraSize))
	if err != nil {
		panic(err)
	}
	return cam
}

// PrimaryRay builds the camera ray through the center of a launch cell.
//
// Parameters:
//   - cam: the camera block
//   - index: launch index
//   - dims: launch dimensions
//
// Returns:
//   - gpu.Ray: a normalized world-space ray starting at the eye
func PrimaryRay(cam camera.GPUCamera, index, dims [3]uint32) gpu.Ray {
	dx := (float32(index[0])+0.5)/float32(dims[0])*2 - 1
	dy := (float32(index[1])+0.5)/float32(dims[1])*2 - 1

	eye := common.MulVec4(cam.InvView, [4]float32{0, 0, 0, 1})
	target := common.MulVec4(cam.InvProj, [4]float32{dx, -dy, 1, 1})
	dir := common.Vec3{target[0], target[1], target[2]}
	if target[3] != 0 {
		dir = dir.Scale(1 / target[3])
	}
	dir = dir.Normalize()
	world := common.MulVec4(cam.InvView, [4]float32{dir[0], dir[1], dir[2], 0})

	return gpu.Ray{
		Origin:    common.Vec3{eye[0], eye[1], eye[2]},
		Direction: common.Vec3{world[0], world[1], world[2]}.Normalize(),
		TMax:      primaryTMax,
	}
}

// PackRGBA8 converts a linear color into an opaque RGBA8 texel.
func PackRGBA8(c common.Vec3) [4]byte {
	c = c.Saturate()
	q := func(f float32) byte { return byte(math.Round(float64(f) * 255)) }
	return [4]byte{q(c[0]), q(c[1]), q(c[2]), 255}
}

func rayGeneration(cfg Config) gpu.RayGenerationFunc {
	return func(dc gpu.DispatchContext) {
		heap := dc.RootArgument(0)
		out := slot(dc, heap, SlotOutput, gpu.DescriptorOutput)
		cam := loadCamera(dc, heap)

		index, dims := dc.DispatchRaysIndex(), dc.DispatchRaysDimensions()
		if index[0] >= out.Width || index[1] >= out.Height {
			return
		}

		payload := &HitInfo{}
		dc.TraceRay(traceDesc(cfg, heap, RayTypePrimary, gpu.RayFlagNone, PrimaryRay(cam, index, dims)), payload)

		px := PackRGBA8(payload.Color)
		dc.Store(out.Buffer.Address().Offset(uint64(index[1]*out.Width+index[0])*4), px[:])
	}
}
