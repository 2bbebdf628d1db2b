package raytracing

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/engine/accel"
	"github.com/Carmen-Shannon/oxy-rt/engine/game_object"
	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/model"
)

// HitGroupArgs are the root arguments of a hit record. Texture is only set for textured
// objects, which makes their record one pointer longer.
type HitGroupArgs struct {
	VertexBuffer gpu.DeviceAddress
	// IndexBuffer is null for non-indexed geometry.
	IndexBuffer gpu.DeviceAddress
	Lighting    gpu.DeviceAddress
	Material    gpu.DeviceAddress
	Heap        gpu.DeviceAddress
	Texture     *gpu.DeviceAddress
}

// Pointers returns the arguments in root signature order.
func (a HitGroupArgs) Pointers() []gpu.DeviceAddress {
	out := []gpu.DeviceAddress{a.VertexBuffer, a.IndexBuffer, a.Lighting, a.Material, a.Heap}
	if a.Texture != nil {
		out = append(out, *a.Texture)
	}
	return out
}

// PlanEntry is one object of the render plan. The plan is the single ordering both the
// top-level structure and the shader table are built from.
type PlanEntry struct {
	Object game_object.GameObject
	// HitGroupIndex is the position of the object's first hit record.
	HitGroupIndex uint32
	Args          HitGroupArgs
}

// textureKey captures the texture bound to every plan entry; a change means the shader
// table is stale.
func textureKey(objs []game_object.GameObject) string {
	key := make([]byte, 0, len(objs)*4)
	for _, obj := range objs {
		slot := -1
		if tex := obj.Texture(); tex != nil {
			slot = tex.Slot
		}
		key = fmt.Appendf(key, "%d,", slot)
	}
	return string(key)
}

// buildPlan orders objects by slot and assigns hit group indices. Objects must have
// uploaded models and materials.
func buildPlan(objs []game_object.GameObject, rayTypes uint32, lighting, heap gpu.DeviceAddress) []PlanEntry {
	plan := make([]PlanEntry, len(objs))
	for i, obj := range objs {
		mdl := obj.Model()
		args := HitGroupArgs{
			VertexBuffer: mdl.VertexBuffer().Address(),
			IndexBuffer:  gpu.NullAddress,
			Lighting:     lighting,
			Material:     obj.MaterialBuffer().Address(),
			Heap:         heap,
		}
		if ib := mdl.IndexBuffer(); ib != nil {
			args.IndexBuffer = ib.Address()
		}
		if tex := obj.Texture(); tex != nil {
			addr := tex.Address
			args.Texture = &addr
		}
		plan[i] = PlanEntry{
			Object:        obj,
			HitGroupIndex: uint32(i) * rayTypes,
			Args:          args,
		}
	}
	return plan
}

// instances maps the plan onto top-level instances with current transforms. Disabled
// objects keep their instance with an empty mask so the instance count stays stable.
func instances(plan []PlanEntry, blas map[model.Model]accel.BottomLevelStructure) []accel.Instance {
	out := make([]accel.Instance, len(plan))
	for i, e := range plan {
		mask := uint8(0xFF)
		if !e.Object.Enabled() {
			mask = 0
		}
		out[i] = accel.Instance{
			BLAS:          blas[e.Object.Model()],
			Transform:     e.Object.Transform(),
			InstanceID:    uint32(e.Object.ID()),
			HitGroupIndex: e.HitGroupIndex,
			Mask:          mask,
		}
	}
	return out
}

// hitGroupNames lists the object hit groups of a plan.
func hitGroupNames(plan []PlanEntry) []string {
	out := make([]string, len(plan))
	for i, e := range plan {
		out[i] = e.Object.HitGroupName()
	}
	return out
}
